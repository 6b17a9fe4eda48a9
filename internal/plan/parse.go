// Package plan is the boundary to the external planning capability: it
// turns raw planner output into validated agent graphs and renders the
// prompts the planner is driven with.
package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/convoke/internal/graph"
	"github.com/ShayCichocki/convoke/pkg/models"
)

// ParseError indicates the planner output could not be decoded into an
// agent graph. It is fatal to the run.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unparseable plan: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("unparseable plan: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes raw planner output into a validated AgentGraph. The payload
// is either bare JSON or JSON wrapped in markdown code fencing; fenced
// payloads are extracted between the first fence opener and the last fence
// closer. Structural validation (unknown dependencies, cycles) runs before
// the graph is returned, so callers never schedule an invalid plan.
func Parse(raw string) (*models.AgentGraph, error) {
	payload := extractFenced(raw)
	if strings.TrimSpace(payload) == "" {
		return nil, &ParseError{Reason: "empty planner output"}
	}

	var g models.AgentGraph
	if err := json.Unmarshal([]byte(payload), &g); err != nil {
		return nil, &ParseError{Reason: "invalid JSON", Err: err}
	}
	if len(g.Agents) == 0 {
		return nil, &ParseError{Reason: "plan contains no agents"}
	}

	if _, err := graph.Build(g.Agents); err != nil {
		return nil, err
	}

	return &g, nil
}

// extractFenced returns the substring between the first code-fence opener
// and the last code-fence closer, or the input unchanged when no fence pair
// is present. Language tags on the opener line are discarded.
func extractFenced(raw string) string {
	const fence = "```"

	start := strings.Index(raw, fence)
	if start == -1 {
		return raw
	}
	end := strings.LastIndex(raw, fence)
	if end <= start {
		return raw
	}

	inner := raw[start+len(fence) : end]
	// Drop the language tag (e.g. "json") on the opener line.
	if nl := strings.IndexByte(inner, '\n'); nl != -1 {
		firstLine := strings.TrimSpace(inner[:nl])
		if firstLine != "" && !strings.ContainsAny(firstLine, "{[") {
			inner = inner[nl+1:]
		}
	}
	return strings.TrimSpace(inner)
}
