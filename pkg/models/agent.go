// Package models defines the shared data types for planned agent graphs
// and their execution results.
package models

// ToolRequirement describes one capability an agent declares it needs.
type ToolRequirement struct {
	// ToolName is the primary tool the agent wants to use.
	ToolName string `json:"tool_name"`
	// RequiredCapabilities lists what the tool must be able to do.
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`
	// FallbackTools are alternatives to try, in order, if the primary is unavailable.
	FallbackTools []string `json:"fallback_tools,omitempty"`
	// Critical marks requirements whose failure should trigger re-planning
	// instead of silent degradation.
	Critical bool `json:"critical"`
}

// AgentSpec is one planned agent: its instructions, prompt, and the agents
// it relies on.
type AgentSpec struct {
	// ID is unique within a single graph.
	ID int `json:"id"`
	// Type is a short label, e.g. "Research Agent - SaaS Content Marketing".
	Type string `json:"type"`
	// Usecase describes what this agent is responsible for researching or solving.
	Usecase string `json:"usecase"`
	// System contains the behavioral instructions for the agent.
	System string `json:"system"`
	// Prompt contains the task instructions.
	Prompt string `json:"prompt"`
	// Model optionally selects the execution backend for this agent.
	Model string `json:"model,omitempty"`
	// ReliesOn lists agent IDs whose outputs this agent needs, in the order
	// their outputs should appear in its input.
	ReliesOn []int `json:"relies_on,omitempty"`
	// RequiredTools lists the capabilities this agent declares it needs.
	RequiredTools []ToolRequirement `json:"required_tools,omitempty"`
	// FallbackStrategy is an alternate instruction set retried once when the
	// primary execution fails.
	FallbackStrategy string `json:"fallback_strategy,omitempty"`
}

// HasCriticalTools returns true if any declared tool requirement is critical.
func (a *AgentSpec) HasCriticalTools() bool {
	for _, t := range a.RequiredTools {
		if t.Critical {
			return true
		}
	}
	return false
}

// AgentGraph is a validated plan produced by the planning capability.
// It is immutable once handed to the scheduler; a re-plan produces a
// brand-new graph, never a mutation of the old one.
type AgentGraph struct {
	// Query is the original user request the plan answers.
	Query string `json:"query"`
	// IntentAnalysis is the planner's reading of explicit and implicit needs.
	IntentAnalysis string `json:"intent_analysis"`
	// ResponseOverview describes how the final deliverable will be assembled.
	ResponseOverview string `json:"response_overview"`
	// Agents lists all planned agents. IDs are unique; declaration order is
	// the order results are presented to the verdict step.
	Agents []AgentSpec `json:"agents"`
	// EstimatedStepCount is the planner's optional wave estimate.
	EstimatedStepCount int `json:"estimated_step_count,omitempty"`
	// PlanConfidence is the planner's optional self-assessed confidence.
	PlanConfidence float64 `json:"plan_confidence,omitempty"`
}

// Agent returns the spec with the given ID, or nil if the graph has none.
func (g *AgentGraph) Agent(id int) *AgentSpec {
	for i := range g.Agents {
		if g.Agents[i].ID == id {
			return &g.Agents[i]
		}
	}
	return nil
}

// AgentIDs returns the IDs of all agents in declaration order.
func (g *AgentGraph) AgentIDs() []int {
	ids := make([]int, 0, len(g.Agents))
	for i := range g.Agents {
		ids = append(ids, g.Agents[i].ID)
	}
	return ids
}
