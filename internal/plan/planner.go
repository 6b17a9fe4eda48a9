package plan

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/convoke/pkg/models"
)

// Completer is the text-generation capability the planner runs against.
// Satisfied by *api.Client.
type Completer interface {
	Complete(ctx context.Context, model, system, prompt string) (string, error)
}

// Planner requests agent graphs from the external planning capability.
// It is safe to call repeatedly; each call produces an independent graph.
type Planner struct {
	completer Completer
	model     string
	system    string
}

// NewPlanner creates a planner using the given completion capability and
// model. An empty system prompt selects the built-in default.
func NewPlanner(completer Completer, model, system string) *Planner {
	if system == "" {
		system = DefaultPlannerSystem
	}
	return &Planner{completer: completer, model: model, system: system}
}

// Plan requests an initial agent graph for the query.
func (p *Planner) Plan(ctx context.Context, query string) (*models.AgentGraph, error) {
	raw, err := p.completer.Complete(ctx, p.model, p.system, query)
	if err != nil {
		return nil, fmt.Errorf("planning capability: %w", err)
	}
	return Parse(raw)
}

// Replan requests a corrected agent graph after critical tool limitations
// were detected during execution. The returned graph fully replaces the old
// one; callers discard all state from the failed pass.
func (p *Planner) Replan(ctx context.Context, query string, limitations []models.ToolLimitation) (*models.AgentGraph, error) {
	prompt := BuildReplanPrompt(query, limitations)
	raw, err := p.completer.Complete(ctx, p.model, p.system, prompt)
	if err != nil {
		return nil, fmt.Errorf("planning capability: %w", err)
	}
	return Parse(raw)
}
