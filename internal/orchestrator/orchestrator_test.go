package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/ShayCichocki/convoke/internal/graph"
	"github.com/ShayCichocki/convoke/pkg/models"
)

// fakePlanner serves canned graphs.
type fakePlanner struct {
	planGraph   *models.AgentGraph
	planErr     error
	replanGraph *models.AgentGraph
	replanErr   error

	replanCalls       int
	replanLimitations []models.ToolLimitation
}

func (f *fakePlanner) Plan(_ context.Context, _ string) (*models.AgentGraph, error) {
	return f.planGraph, f.planErr
}

func (f *fakePlanner) Replan(_ context.Context, _ string, limitations []models.ToolLimitation) (*models.AgentGraph, error) {
	f.replanCalls++
	f.replanLimitations = limitations
	return f.replanGraph, f.replanErr
}

// fakeRunner records execution order and fails the listed agent IDs.
type fakeRunner struct {
	mu      sync.Mutex
	started []int
	failIDs map[int]bool
}

func (f *fakeRunner) Run(_ context.Context, spec *models.AgentSpec, _ map[int]*models.AgentResult) (*models.AgentResult, error) {
	f.mu.Lock()
	f.started = append(f.started, spec.ID)
	f.mu.Unlock()

	if f.failIDs[spec.ID] {
		return &models.AgentResult{
			AgentID:      spec.ID,
			Config:       spec,
			Status:       models.StatusFailure,
			PrimaryError: fmt.Sprintf("agent %d exploded", spec.ID),
		}, nil
	}
	return &models.AgentResult{
		AgentID: spec.ID,
		Config:  spec,
		Output:  fmt.Sprintf("output of agent %d", spec.ID),
		Status:  models.StatusSuccess,
	}, nil
}

// fakeVerdict records the synthesis prompt it received.
type fakeVerdict struct {
	prompt string
	err    error
}

func (f *fakeVerdict) Complete(_ context.Context, _, _, prompt string) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return "the final answer", nil
}

func diamondGraph() *models.AgentGraph {
	return &models.AgentGraph{
		Query: "compare two things",
		Agents: []models.AgentSpec{
			{ID: 1, Type: "Research A", Prompt: "research A"},
			{ID: 2, Type: "Research B", Prompt: "research B"},
			{ID: 3, Type: "Synthesis", Prompt: "compare", ReliesOn: []int{1, 2}},
		},
	}
}

func drainEvents(o *Orchestrator) []Event {
	var events []Event
	for e := range o.Events() {
		events = append(events, e)
	}
	return events
}

func TestRunHappyPath(t *testing.T) {
	planner := &fakePlanner{planGraph: diamondGraph()}
	runner := &fakeRunner{}
	verdict := &fakeVerdict{}

	o := New(planner, runner, verdict)
	outcome, err := o.Run(context.Background(), "compare two things")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Output != "the final answer" {
		t.Errorf("output = %q", outcome.Output)
	}
	if outcome.Degraded {
		t.Error("run should not be degraded")
	}
	if outcome.Passes != 1 || outcome.Replans != 0 {
		t.Errorf("passes = %d, replans = %d", outcome.Passes, outcome.Replans)
	}
	if outcome.Waves != 2 {
		t.Errorf("waves = %d, want 2", outcome.Waves)
	}
	if outcome.Succeeded() != 3 || outcome.Failed() != 0 {
		t.Errorf("succeeded = %d, failed = %d", outcome.Succeeded(), outcome.Failed())
	}

	// Agent 3 must start only after both dependencies.
	if len(runner.started) != 3 || runner.started[2] != 3 {
		t.Errorf("execution order = %v", runner.started)
	}

	// Verdict prompt carries every agent's output and the query.
	for _, want := range []string{"compare two things", "output of agent 1", "output of agent 2", "output of agent 3"} {
		if !strings.Contains(verdict.prompt, want) {
			t.Errorf("verdict prompt missing %q", want)
		}
	}
}

func TestRunEmitsEvents(t *testing.T) {
	o := New(&fakePlanner{planGraph: diamondGraph()}, &fakeRunner{}, &fakeVerdict{})
	if _, err := o.Run(context.Background(), "q"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	seen := make(map[EventType]bool)
	for _, e := range drainEvents(o) {
		seen[e.Type] = true
		if e.RunID == "" {
			t.Errorf("event %s missing run id", e.Type)
		}
	}

	for _, want := range []EventType{EventPlanStarted, EventPlanCompleted, EventWaveStarted, EventAgentStarted, EventAgentCompleted, EventVerdictStarted, EventRunCompleted} {
		if !seen[want] {
			t.Errorf("event %s never emitted", want)
		}
	}
}

func TestRunPlanFailure(t *testing.T) {
	o := New(&fakePlanner{planErr: errors.New("capability down")}, &fakeRunner{}, &fakeVerdict{})
	if _, err := o.Run(context.Background(), "q"); err == nil {
		t.Fatal("expected error when planning fails")
	}
}

func TestRunReplanOnCriticalLimitation(t *testing.T) {
	firstPlan := &models.AgentGraph{
		Query: "q",
		Agents: []models.AgentSpec{
			{
				ID: 1, Type: "Finance Agent", Prompt: "get prices",
				RequiredTools: []models.ToolRequirement{
					{ToolName: "market_data", RequiredCapabilities: []string{"realtime_quotes"}, Critical: true},
				},
			},
		},
	}
	secondPlan := &models.AgentGraph{
		Query: "q",
		Agents: []models.AgentSpec{
			{ID: 7, Type: "Estimator Agent", Prompt: "estimate from filings"},
		},
	}

	planner := &fakePlanner{planGraph: firstPlan, replanGraph: secondPlan}
	runner := &fakeRunner{failIDs: map[int]bool{1: true}}
	o := New(planner, runner, &fakeVerdict{})

	outcome, err := o.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if planner.replanCalls != 1 {
		t.Fatalf("replan calls = %d, want 1", planner.replanCalls)
	}
	if len(planner.replanLimitations) != 1 {
		t.Fatalf("limitations passed to replan = %d", len(planner.replanLimitations))
	}
	lim := planner.replanLimitations[0]
	if lim.AgentID != 1 || lim.ToolName != "market_data" {
		t.Errorf("unexpected limitation: %+v", lim)
	}
	if !strings.Contains(lim.Error, "agent 1 exploded") {
		t.Errorf("limitation error = %q", lim.Error)
	}

	if outcome.Replans != 1 || outcome.Passes != 2 {
		t.Errorf("replans = %d, passes = %d", outcome.Replans, outcome.Passes)
	}
	// Pass state is discarded wholesale: only the new graph's results remain.
	if _, stale := outcome.Results[1]; stale {
		t.Error("results from the discarded pass leaked into the outcome")
	}
	if r, ok := outcome.Results[7]; !ok || !r.Status.Succeeded() {
		t.Errorf("re-planned agent result missing or failed: %+v", outcome.Results)
	}
	if len(outcome.Limitations) != 0 {
		t.Errorf("limitations should be resolved by re-plan: %+v", outcome.Limitations)
	}
}

func TestRunReplanFailureKeepsDegradedResults(t *testing.T) {
	plan := &models.AgentGraph{
		Query: "q",
		Agents: []models.AgentSpec{
			{
				ID: 1, Type: "Broken", Prompt: "p",
				RequiredTools: []models.ToolRequirement{{ToolName: "db", Critical: true}},
			},
			{ID: 2, Type: "Fine", Prompt: "p"},
		},
	}

	planner := &fakePlanner{planGraph: plan, replanErr: errors.New("planner unavailable")}
	runner := &fakeRunner{failIDs: map[int]bool{1: true}}
	o := New(planner, runner, &fakeVerdict{})

	outcome, err := o.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run should not fail when re-planning fails: %v", err)
	}

	if outcome.Replans != 0 {
		t.Errorf("replans = %d, want 0 after failed attempt", outcome.Replans)
	}
	if outcome.Succeeded() != 1 || outcome.Failed() != 1 {
		t.Errorf("succeeded = %d, failed = %d", outcome.Succeeded(), outcome.Failed())
	}
	if len(outcome.Limitations) != 1 {
		t.Errorf("unresolved limitations should be reported: %+v", outcome.Limitations)
	}
}

func TestRunReplanIsBounded(t *testing.T) {
	broken := &models.AgentGraph{
		Query: "q",
		Agents: []models.AgentSpec{
			{
				ID: 1, Type: "Broken", Prompt: "p",
				RequiredTools: []models.ToolRequirement{{ToolName: "db", Critical: true}},
			},
		},
	}

	// The re-planned graph fails critically too; only one round may run.
	planner := &fakePlanner{planGraph: broken, replanGraph: broken}
	runner := &fakeRunner{failIDs: map[int]bool{1: true}}
	o := New(planner, runner, &fakeVerdict{})

	outcome, err := o.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if planner.replanCalls != 1 {
		t.Errorf("replan calls = %d, want exactly 1", planner.replanCalls)
	}
	if outcome.Passes != 2 {
		t.Errorf("passes = %d, want 2", outcome.Passes)
	}
	if len(outcome.Limitations) != 1 {
		t.Errorf("final limitations = %+v", outcome.Limitations)
	}
}

func TestRunNonCriticalFailureDoesNotReplan(t *testing.T) {
	plan := &models.AgentGraph{
		Query: "q",
		Agents: []models.AgentSpec{
			{
				ID: 1, Type: "Soft", Prompt: "p",
				RequiredTools: []models.ToolRequirement{{ToolName: "cache", Critical: false}},
			},
		},
	}

	planner := &fakePlanner{planGraph: plan}
	o := New(planner, &fakeRunner{failIDs: map[int]bool{1: true}}, &fakeVerdict{})

	outcome, err := o.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if planner.replanCalls != 0 {
		t.Errorf("non-critical failure must not trigger re-planning, got %d calls", planner.replanCalls)
	}
	if outcome.Failed() != 1 {
		t.Errorf("failed = %d", outcome.Failed())
	}
}

func TestRunVerdictFailureDegrades(t *testing.T) {
	verdict := &fakeVerdict{err: errors.New("synthesis unavailable")}
	o := New(&fakePlanner{planGraph: diamondGraph()}, &fakeRunner{}, verdict)

	outcome, err := o.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !outcome.Degraded {
		t.Fatal("outcome should be degraded when verdict fails")
	}
	for _, want := range []string{"output of agent 1", "output of agent 2", "output of agent 3"} {
		if !strings.Contains(outcome.Output, want) {
			t.Errorf("degraded output missing %q", want)
		}
	}
}

// streamingVerdict supports the streaming variant.
type streamingVerdict struct {
	fakeVerdict
	streamed bool
}

func (f *streamingVerdict) StreamComplete(_ context.Context, _, _, prompt string, sink io.Writer) (string, error) {
	f.prompt = prompt
	f.streamed = true
	fmt.Fprint(sink, "streamed answer")
	return "streamed answer", nil
}

func TestRunStreamsVerdictWhenSinkConfigured(t *testing.T) {
	verdict := &streamingVerdict{}
	var sink bytes.Buffer

	o := New(&fakePlanner{planGraph: diamondGraph()}, &fakeRunner{}, verdict, WithVerdictSink(&sink))
	outcome, err := o.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !verdict.streamed {
		t.Error("streaming capability should be preferred when a sink is set")
	}
	if sink.String() != "streamed answer" || outcome.Output != "streamed answer" {
		t.Errorf("sink = %q, output = %q", sink.String(), outcome.Output)
	}
}

func TestRunBuffersVerdictWithoutSink(t *testing.T) {
	verdict := &streamingVerdict{}

	o := New(&fakePlanner{planGraph: diamondGraph()}, &fakeRunner{}, verdict)
	if _, err := o.Run(context.Background(), "q"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if verdict.streamed {
		t.Error("without a sink the buffered call should be used")
	}
}

func TestBuildVerdictPromptReportsFailures(t *testing.T) {
	ag := diamondGraph()
	results := map[int]*models.AgentResult{
		1: {AgentID: 1, Output: "alpha", Status: models.StatusSuccess},
		2: {AgentID: 2, Status: models.StatusFailure, PrimaryError: "tool broke", FallbackError: "retry broke"},
	}

	prompt := buildVerdictPrompt(ag, results)
	for _, want := range []string{"alpha", "tool broke", "retry broke", "not executed", "agent(s) 2 failed"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	// Declaration order.
	if strings.Index(prompt, "AGENT 1") > strings.Index(prompt, "AGENT 2") {
		t.Error("agent blocks out of declaration order")
	}
}

func TestCriticalLimitationsFiltersNonCritical(t *testing.T) {
	result := &models.AgentResult{
		AgentID:      4,
		Status:       models.StatusFailure,
		PrimaryError: "boom",
		Config: &models.AgentSpec{
			ID:   4,
			Type: "Mixed",
			RequiredTools: []models.ToolRequirement{
				{ToolName: "critical_one", Critical: true},
				{ToolName: "optional_one", Critical: false},
				{ToolName: "critical_two", RequiredCapabilities: []string{"x"}, Critical: true},
			},
		},
	}

	limitations := criticalLimitations(result)
	if len(limitations) != 2 {
		t.Fatalf("limitations = %d, want 2", len(limitations))
	}
	if limitations[0].ToolName != "critical_one" || limitations[1].ToolName != "critical_two" {
		t.Errorf("unexpected limitation tools: %+v", limitations)
	}
}

func TestDeadlockDiagnosticsNamesUnmetDependencies(t *testing.T) {
	g, err := graph.Build([]models.AgentSpec{
		{ID: 1},
		{ID: 2, ReliesOn: []int{1}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	diag := deadlockDiagnostics(g, map[int]bool{2: true}, map[int]bool{})
	if !strings.Contains(diag, "agent 2 waiting on [1]") {
		t.Errorf("diagnostics = %q", diag)
	}
}
