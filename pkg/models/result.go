package models

// ResultStatus represents the terminal state of one agent execution.
type ResultStatus string

const (
	// StatusSuccess indicates the primary invocation succeeded.
	StatusSuccess ResultStatus = "success"
	// StatusFallbackSuccess indicates the primary invocation failed but the
	// one-shot fallback retry succeeded.
	StatusFallbackSuccess ResultStatus = "fallback_success"
	// StatusFailure indicates both the primary invocation and any fallback failed.
	StatusFailure ResultStatus = "failure"
)

// Valid returns true if the status is a known value.
func (s ResultStatus) Valid() bool {
	switch s {
	case StatusSuccess, StatusFallbackSuccess, StatusFailure:
		return true
	default:
		return false
	}
}

// Succeeded returns true if the agent produced usable output.
func (s ResultStatus) Succeeded() bool {
	return s == StatusSuccess || s == StatusFallbackSuccess
}

// AgentResult is the write-once outcome of executing one agent. It is
// produced by exactly one runner invocation and treated as immutable after.
type AgentResult struct {
	// AgentID is the ID of the executed agent.
	AgentID int `json:"agent_id"`
	// Config is a back-reference to the spec that produced this result.
	Config *AgentSpec `json:"-"`
	// Output is the text the agent produced. For fallback_success this is the
	// fallback invocation's output.
	Output string `json:"output,omitempty"`
	// Status is the terminal state of the execution.
	Status ResultStatus `json:"status"`
	// PrimaryError is the error from the primary invocation, if it failed.
	PrimaryError string `json:"primary_error,omitempty"`
	// FallbackError is the error from the fallback invocation, if it failed.
	FallbackError string `json:"fallback_error,omitempty"`
}

// ToolLimitation records a critical tool requirement that could not be
// satisfied during execution. Accumulated limitations drive re-planning.
type ToolLimitation struct {
	// AgentID is the agent whose critical requirement failed.
	AgentID int `json:"agent_id"`
	// AgentType is the failed agent's label, for the re-plan report.
	AgentType string `json:"agent_type"`
	// ToolName is the unsatisfiable tool.
	ToolName string `json:"tool_name"`
	// RequiredCapabilities lists what the tool needed to do.
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`
	// Error is the execution error that surfaced the limitation.
	Error string `json:"error"`
}
