package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/convoke/pkg/models"
)

// scriptedExecutor fails a fixed number of times, then succeeds.
type scriptedExecutor struct {
	failures int
	calls    []string
	output   string
	delay    time.Duration
}

func (s *scriptedExecutor) Complete(ctx context.Context, _, _, prompt string) (string, error) {
	s.calls = append(s.calls, prompt)

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.delay):
		}
	}

	if len(s.calls) <= s.failures {
		return "", fmt.Errorf("simulated failure %d", len(s.calls))
	}
	return s.output, nil
}

func TestRunSuccess(t *testing.T) {
	exec := &scriptedExecutor{output: "primary output"}
	r := NewRunner(exec, 0)

	spec := &models.AgentSpec{ID: 1, Type: "Research", Prompt: "do research"}
	result, err := r.Run(context.Background(), spec, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Status != models.StatusSuccess {
		t.Errorf("status = %s, want success", result.Status)
	}
	if result.Output != "primary output" {
		t.Errorf("output = %q", result.Output)
	}
	if result.PrimaryError != "" || result.FallbackError != "" {
		t.Errorf("unexpected errors recorded: %+v", result)
	}
	if result.Config != spec {
		t.Error("result should back-reference the spec")
	}
}

func TestRunFallbackSuccess(t *testing.T) {
	exec := &scriptedExecutor{failures: 1, output: "fallback output"}
	r := NewRunner(exec, 0)

	spec := &models.AgentSpec{
		ID:               2,
		Type:             "Finance",
		Prompt:           "get stock data",
		FallbackStrategy: "estimate from public filings",
	}

	result, err := r.Run(context.Background(), spec, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Status != models.StatusFallbackSuccess {
		t.Errorf("status = %s, want fallback_success", result.Status)
	}
	if result.Output != "fallback output" {
		t.Errorf("output = %q", result.Output)
	}
	if !strings.Contains(result.PrimaryError, "simulated failure 1") {
		t.Errorf("primary error not preserved: %q", result.PrimaryError)
	}

	if len(exec.calls) != 2 {
		t.Fatalf("expected 2 invocations, got %d", len(exec.calls))
	}
	retry := exec.calls[1]
	if !strings.Contains(retry, "simulated failure 1") {
		t.Error("retry prompt should state the original error")
	}
	if !strings.Contains(retry, "estimate from public filings") {
		t.Error("retry prompt should include the fallback strategy")
	}
}

func TestRunFallbackAlsoFails(t *testing.T) {
	exec := &scriptedExecutor{failures: 5}
	r := NewRunner(exec, 0)

	spec := &models.AgentSpec{ID: 3, Prompt: "p", FallbackStrategy: "try harder"}
	result, err := r.Run(context.Background(), spec, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Status != models.StatusFailure {
		t.Errorf("status = %s, want failure", result.Status)
	}
	if result.PrimaryError == "" || result.FallbackError == "" {
		t.Errorf("both errors should be recorded: %+v", result)
	}
	// Exactly one fallback attempt, never more.
	if len(exec.calls) != 2 {
		t.Errorf("expected exactly 2 invocations, got %d", len(exec.calls))
	}
}

func TestRunNoFallbackStrategy(t *testing.T) {
	exec := &scriptedExecutor{failures: 5}
	r := NewRunner(exec, 0)

	result, err := r.Run(context.Background(), &models.AgentSpec{ID: 4, Prompt: "p"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Status != models.StatusFailure {
		t.Errorf("status = %s, want failure", result.Status)
	}
	if len(exec.calls) != 1 {
		t.Errorf("expected 1 invocation without fallback strategy, got %d", len(exec.calls))
	}
}

func TestRunMissingDependency(t *testing.T) {
	r := NewRunner(&scriptedExecutor{}, 0)

	spec := &models.AgentSpec{ID: 5, ReliesOn: []int{1, 2}}
	deps := map[int]*models.AgentResult{
		1: {AgentID: 1, Config: &models.AgentSpec{ID: 1}},
	}

	_, err := r.Run(context.Background(), spec, deps)
	var missingErr *MissingDependencyError
	if !errors.As(err, &missingErr) {
		t.Fatalf("expected *MissingDependencyError, got %v", err)
	}
	if missingErr.AgentID != 5 || missingErr.Missing != 2 {
		t.Errorf("unexpected error detail: %+v", missingErr)
	}
}

func TestRunTimeoutFeedsFallbackPath(t *testing.T) {
	exec := &scriptedExecutor{delay: 50 * time.Millisecond, output: "late"}
	r := NewRunner(exec, 5*time.Millisecond)

	result, err := r.Run(context.Background(), &models.AgentSpec{ID: 6, Prompt: "p"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Status != models.StatusFailure {
		t.Errorf("status = %s, want failure on timeout", result.Status)
	}
	if !strings.Contains(result.PrimaryError, "context deadline exceeded") {
		t.Errorf("primary error = %q, want deadline exceeded", result.PrimaryError)
	}
}

func TestComposeInputOrdersDependencyBlocks(t *testing.T) {
	spec := &models.AgentSpec{
		ID:       3,
		Prompt:   "synthesize the research",
		ReliesOn: []int{2, 1}, // declaration order, not numeric order
	}
	deps := map[int]*models.AgentResult{
		1: {AgentID: 1, Output: "output one", Config: &models.AgentSpec{ID: 1, Type: "Agent One", Usecase: "first"}},
		2: {AgentID: 2, Output: "output two", Config: &models.AgentSpec{ID: 2, Type: "Agent Two", Usecase: "second"}},
	}

	input := ComposeInput(spec, deps)

	posTwo := strings.Index(input, "output two")
	posOne := strings.Index(input, "output one")
	if posTwo == -1 || posOne == -1 {
		t.Fatalf("dependency outputs missing from input:\n%s", input)
	}
	if posTwo > posOne {
		t.Error("dependency blocks must follow relies_on declaration order")
	}
	if !strings.Contains(input, "Agent Two") || !strings.Contains(input, "second") {
		t.Error("dependency block should carry type and usecase")
	}
	if !strings.Contains(input, "synthesize the research") {
		t.Error("agent's own prompt missing")
	}
}

func TestComposeInputRendersToolMetadata(t *testing.T) {
	spec := &models.AgentSpec{
		ID:     1,
		Prompt: "p",
		RequiredTools: []models.ToolRequirement{
			{ToolName: "finance", RequiredCapabilities: []string{"stock_price"}, FallbackTools: []string{"web_search"}, Critical: true},
		},
		FallbackStrategy: "use cached data",
	}

	input := ComposeInput(spec, nil)
	for _, want := range []string{"finance", "stock_price", "web_search", "[critical]", "use cached data"} {
		if !strings.Contains(input, want) {
			t.Errorf("input missing %q:\n%s", want, input)
		}
	}
}

func TestComposeInputBareAgent(t *testing.T) {
	input := ComposeInput(&models.AgentSpec{ID: 1, Prompt: "just do it"}, nil)
	if strings.Contains(input, "CONTEXT FROM AGENTS") {
		t.Error("no dependency header expected for agents without relies_on")
	}
	if !strings.Contains(input, "just do it") {
		t.Error("prompt missing")
	}
}
