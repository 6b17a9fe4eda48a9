package orchestrator

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/convoke/internal/graph"
	"github.com/ShayCichocki/convoke/pkg/models"
)

// GraphPlanner produces agent graphs for a query and corrected graphs after
// critical tool limitations. Satisfied by *plan.Planner.
type GraphPlanner interface {
	Plan(ctx context.Context, query string) (*models.AgentGraph, error)
	Replan(ctx context.Context, query string, limitations []models.ToolLimitation) (*models.AgentGraph, error)
}

// AgentRunner executes one agent to a terminal result. Satisfied by
// *agent.Runner.
type AgentRunner interface {
	Run(ctx context.Context, spec *models.AgentSpec, deps map[int]*models.AgentResult) (*models.AgentResult, error)
}

// Completer is the text-generation capability used for the verdict call.
// Satisfied by *api.Client.
type Completer interface {
	Complete(ctx context.Context, model, system, prompt string) (string, error)
}

// StreamCompleter is the optional streaming variant. When the verdict
// capability supports it and a sink is configured, synthesis text is
// streamed as it is produced.
type StreamCompleter interface {
	StreamComplete(ctx context.Context, model, system, prompt string, sink io.Writer) (string, error)
}

// Orchestrator runs a query end to end: plan, execute in waves, re-plan at
// most maxReplans times when critical limitations surface, then synthesize
// the verdict.
type Orchestrator struct {
	planner GraphPlanner
	runner  AgentRunner
	verdict Completer

	verdictModel   string
	verdictSystem  string
	verdictTimeout time.Duration
	verdictSink    io.Writer

	maxReplans      int
	eventBufferSize int

	events chan Event
	logger *DebugLogger
}

// Outcome is the result of one complete run.
type Outcome struct {
	// RunID uniquely identifies the run.
	RunID string
	// Query is the original user request.
	Query string
	// Graph is the plan that produced the final results. After a re-plan
	// this is the corrected graph, never the discarded one.
	Graph *models.AgentGraph
	// Results maps agent ID to its terminal result for the final pass.
	Results map[int]*models.AgentResult
	// Order records the completion order of the final pass.
	Order []int
	// Output is the final deliverable: the verdict, or the degraded raw
	// aggregation when synthesis failed.
	Output string
	// Degraded is true when the verdict call failed and Output fell back to
	// raw agent outputs.
	Degraded bool
	// Replans is how many re-plan rounds actually ran.
	Replans int
	// Passes is how many execution passes ran (1 + Replans).
	Passes int
	// Waves is how many waves the final pass took.
	Waves int
	// Deadlocked is true when the final pass stalled with agents remaining.
	Deadlocked bool
	// Diagnostics describes the stuck agents when Deadlocked.
	Diagnostics string
	// Limitations are the unresolved critical tool limitations of the final pass.
	Limitations []models.ToolLimitation
	// Duration is the wall-clock time of the whole run.
	Duration time.Duration
}

// Succeeded counts final-pass agents whose status was success or
// fallback_success.
func (o *Outcome) Succeeded() int {
	n := 0
	for _, r := range o.Results {
		if r.Status.Succeeded() {
			n++
		}
	}
	return n
}

// FallbackSucceeded counts final-pass agents that only succeeded via their
// fallback strategy.
func (o *Outcome) FallbackSucceeded() int {
	n := 0
	for _, r := range o.Results {
		if r.Status == models.StatusFallbackSuccess {
			n++
		}
	}
	return n
}

// Failed counts final-pass agents whose status was failure.
func (o *Outcome) Failed() int {
	n := 0
	for _, r := range o.Results {
		if r.Status == models.StatusFailure {
			n++
		}
	}
	return n
}

// New creates an orchestrator over the given planning, execution, and
// synthesis capabilities.
func New(planner GraphPlanner, runner AgentRunner, verdict Completer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		planner:         planner,
		runner:          runner,
		verdict:         verdict,
		verdictSystem:   DefaultVerdictSystem,
		maxReplans:      1,
		eventBufferSize: 64,
	}

	for _, opt := range opts {
		opt(o)
	}

	o.events = make(chan Event, o.eventBufferSize)
	if o.logger != nil {
		setPackageLogger(o.logger)
	}

	return o
}

// Events returns the run's event stream. The channel is closed when Run
// returns; events that would overflow the buffer are dropped.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// Run executes a query end to end. It returns an error only when no initial
// plan could be obtained or validated; execution failures, deadlocks, failed
// re-plans, and failed synthesis all degrade into the Outcome instead.
func (o *Orchestrator) Run(ctx context.Context, query string) (*Outcome, error) {
	started := time.Now()
	runID := uuid.New().String()
	defer close(o.events)

	debugLog("run %s started: %q", runID, query)
	o.emit(Event{Type: EventPlanStarted, RunID: runID, Pass: 1})

	ag, err := o.planner.Plan(ctx, query)
	if err != nil {
		debugLog("run %s planning failed: %v", runID, err)
		return nil, fmt.Errorf("plan query: %w", err)
	}
	dg, err := graph.Build(ag.Agents)
	if err != nil {
		return nil, fmt.Errorf("validate plan: %w", err)
	}
	if ag.Query == "" {
		ag.Query = query
	}

	o.emit(Event{Type: EventPlanCompleted, RunID: runID, Pass: 1, Message: fmt.Sprintf("%d agent(s) planned", len(ag.Agents))})

	outcome := &Outcome{RunID: runID, Query: query}
	pass := 1

	for {
		canReplan := outcome.Replans < o.maxReplans && ctx.Err() == nil
		pr := o.executePass(ctx, dg, runID, pass, canReplan)

		outcome.Graph = ag
		outcome.Results = pr.results
		outcome.Order = pr.order
		outcome.Waves = pr.waves
		outcome.Deadlocked = pr.deadlocked
		outcome.Diagnostics = pr.diagnostics
		outcome.Limitations = pr.limitations
		outcome.Passes = pass

		if len(pr.limitations) == 0 || !canReplan {
			break
		}

		debugLog("run %s pass %d hit %d critical limitation(s), re-planning", runID, pass, len(pr.limitations))
		o.emit(Event{Type: EventReplanRequested, RunID: runID, Pass: pass, Message: fmt.Sprintf("%d critical limitation(s)", len(pr.limitations))})

		newAg, err := o.planner.Replan(ctx, query, pr.limitations)
		if err != nil {
			// Keep the degraded pass results rather than aborting the run.
			debugLog("run %s re-plan failed: %v", runID, err)
			o.emit(Event{Type: EventReplanFailed, RunID: runID, Pass: pass, Err: err})
			break
		}
		newDg, err := graph.Build(newAg.Agents)
		if err != nil {
			debugLog("run %s re-planned graph invalid: %v", runID, err)
			o.emit(Event{Type: EventReplanFailed, RunID: runID, Pass: pass, Err: err})
			break
		}
		if newAg.Query == "" {
			newAg.Query = query
		}

		// The corrected graph replaces the old one wholesale; results from
		// the discarded pass never carry over.
		ag, dg = newAg, newDg
		outcome.Replans++
		pass++
		o.emit(Event{Type: EventPlanCompleted, RunID: runID, Pass: pass, Message: fmt.Sprintf("%d agent(s) re-planned", len(ag.Agents))})
	}

	o.emit(Event{Type: EventVerdictStarted, RunID: runID, Pass: pass})
	prompt := buildVerdictPrompt(outcome.Graph, outcome.Results)

	verdict, err := o.synthesize(ctx, prompt)
	if err != nil {
		debugLog("run %s verdict failed, degrading: %v", runID, err)
		outcome.Output = degradedOutput(outcome.Graph, outcome.Results)
		outcome.Degraded = true
	} else {
		outcome.Output = verdict
	}

	outcome.Duration = time.Since(started)
	debugLog("run %s completed in %s: %d succeeded, %d failed, %d pass(es)",
		runID, outcome.Duration, outcome.Succeeded(), outcome.Failed(), outcome.Passes)
	o.emit(Event{Type: EventRunCompleted, RunID: runID, Pass: pass, Message: fmt.Sprintf("%d succeeded, %d failed", outcome.Succeeded(), outcome.Failed())})

	return outcome, nil
}

// synthesize runs the verdict call, streaming when both the capability and
// a sink support it.
func (o *Orchestrator) synthesize(ctx context.Context, prompt string) (string, error) {
	if o.verdictTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.verdictTimeout)
		defer cancel()
	}

	if sc, ok := o.verdict.(StreamCompleter); ok && o.verdictSink != nil {
		return sc.StreamComplete(ctx, o.verdictModel, o.verdictSystem, prompt, o.verdictSink)
	}
	return o.verdict.Complete(ctx, o.verdictModel, o.verdictSystem, prompt)
}

// emit delivers an event without blocking; the stream is advisory and a slow
// consumer must not stall scheduling.
func (o *Orchestrator) emit(e Event) {
	e.Timestamp = time.Now()
	select {
	case o.events <- e:
	default:
	}
}
