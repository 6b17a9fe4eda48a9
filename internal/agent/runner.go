// Package agent executes one planned agent at a time: it composes the
// agent's effective input from its upstream dependency outputs, invokes the
// external execution capability, and applies the one-shot fallback strategy
// on failure.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/ShayCichocki/convoke/pkg/models"
)

// Executor is the external agent-execution capability: run a model against
// system instructions and a task input, return text or an error.
// Satisfied by *api.Client.
type Executor interface {
	Complete(ctx context.Context, model, system, prompt string) (string, error)
}

// MissingDependencyError indicates the scheduler handed an agent to the
// runner before one of its dependencies completed. This is a defensive
// invariant check; it should never fire when the scheduler is correct.
type MissingDependencyError struct {
	AgentID int
	Missing int
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("agent %d launched without result of dependency %d", e.AgentID, e.Missing)
}

// Runner executes planned agents against an execution capability.
type Runner struct {
	executor Executor
	// timeout bounds each capability invocation. Zero disables the bound.
	timeout time.Duration
}

// NewRunner creates a runner. A zero timeout disables per-invocation bounds.
func NewRunner(executor Executor, timeout time.Duration) *Runner {
	return &Runner{executor: executor, timeout: timeout}
}

// Run executes one agent and always returns a terminal result: success,
// fallback_success, or failure. Failure handling is bounded to exactly one
// fallback attempt. The returned error is non-nil only for the defensive
// missing-dependency invariant violation, which is fatal to this agent alone.
func (r *Runner) Run(ctx context.Context, spec *models.AgentSpec, deps map[int]*models.AgentResult) (*models.AgentResult, error) {
	for _, depID := range spec.ReliesOn {
		if _, ok := deps[depID]; !ok {
			return nil, &MissingDependencyError{AgentID: spec.ID, Missing: depID}
		}
	}

	input := ComposeInput(spec, deps)

	output, primaryErr := r.invoke(ctx, spec.Model, spec.System, input)
	if primaryErr == nil {
		return &models.AgentResult{
			AgentID: spec.ID,
			Config:  spec,
			Output:  output,
			Status:  models.StatusSuccess,
		}, nil
	}

	if spec.FallbackStrategy == "" {
		return &models.AgentResult{
			AgentID:      spec.ID,
			Config:       spec,
			Status:       models.StatusFailure,
			PrimaryError: primaryErr.Error(),
		}, nil
	}

	output, fallbackErr := r.invoke(ctx, spec.Model, spec.System, composeFallbackInput(spec, input, primaryErr))
	if fallbackErr != nil {
		return &models.AgentResult{
			AgentID:       spec.ID,
			Config:        spec,
			Status:        models.StatusFailure,
			PrimaryError:  primaryErr.Error(),
			FallbackError: fallbackErr.Error(),
		}, nil
	}

	return &models.AgentResult{
		AgentID:      spec.ID,
		Config:       spec,
		Output:       output,
		Status:       models.StatusFallbackSuccess,
		PrimaryError: primaryErr.Error(),
	}, nil
}

// invoke calls the execution capability with the per-invocation timeout.
// A timeout surfaces as an ordinary execution error and feeds the normal
// fallback path.
func (r *Runner) invoke(ctx context.Context, model, system, input string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.executor.Complete(ctx, model, system, input)
}
