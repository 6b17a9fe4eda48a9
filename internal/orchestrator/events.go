package orchestrator

import (
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventPlanStarted indicates the planning capability was invoked.
	EventPlanStarted EventType = "plan_started"
	// EventPlanCompleted indicates a validated agent graph was received.
	EventPlanCompleted EventType = "plan_completed"
	// EventWaveStarted indicates a wave of ready agents is being launched.
	EventWaveStarted EventType = "wave_started"
	// EventAgentStarted indicates one agent began executing.
	EventAgentStarted EventType = "agent_started"
	// EventAgentCompleted indicates one agent reached success or fallback_success.
	EventAgentCompleted EventType = "agent_completed"
	// EventAgentFailed indicates one agent ended in failure status.
	EventAgentFailed EventType = "agent_failed"
	// EventDeadlock indicates the pass ended with unsatisfiable dependencies.
	EventDeadlock EventType = "deadlock"
	// EventReplanRequested indicates critical limitations triggered a re-plan.
	EventReplanRequested EventType = "replan_requested"
	// EventReplanFailed indicates the re-plan attempt failed; the run
	// continues degraded with existing results.
	EventReplanFailed EventType = "replan_failed"
	// EventVerdictStarted indicates the final synthesis call began.
	EventVerdictStarted EventType = "verdict_started"
	// EventRunCompleted indicates the whole run finished.
	EventRunCompleted EventType = "run_completed"
)

// Event is emitted by the orchestrator as a run progresses. Consumed by the
// CLI printer or the TUI run view.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID identifies the run this event belongs to.
	RunID string
	// Pass is the 1-based execution pass (increments on re-plan).
	Pass int
	// Wave is the 1-based wave index within the pass, if applicable.
	Wave int
	// AgentID is the ID of the related agent, if applicable.
	AgentID int
	// AgentType is the related agent's label, if applicable.
	AgentType string
	// Message provides additional context about the event.
	Message string
	// Err contains error details for failure events.
	Err error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
