package orchestrator

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/convoke/pkg/models"
)

// DefaultVerdictSystem is the system prompt for the final synthesis call.
const DefaultVerdictSystem = `You are the final synthesis step of a multi-agent research system. You receive the original query, the plan's intent analysis, and the outputs of every agent that executed. Produce one coherent, complete answer to the original query.

Rules:
- Synthesize across agent outputs; do not repeat them verbatim or mention the agents themselves.
- If an agent failed, work with what the successful agents produced and note material gaps honestly.
- Answer the user's query directly. Do not describe the process that produced the answer.`

// buildVerdictPrompt assembles the synthesis input: the original query, the
// planner's framing, then one block per agent in plan declaration order.
// Failed agents contribute their error text so the verdict can account for
// the gap instead of silently omitting it.
func buildVerdictPrompt(graph *models.AgentGraph, results map[int]*models.AgentResult) string {
	var sb strings.Builder

	sb.WriteString("ORIGINAL QUERY:\n")
	sb.WriteString(graph.Query)
	sb.WriteString("\n\n")

	if graph.IntentAnalysis != "" {
		sb.WriteString("INTENT ANALYSIS:\n")
		sb.WriteString(graph.IntentAnalysis)
		sb.WriteString("\n\n")
	}
	if graph.ResponseOverview != "" {
		sb.WriteString("RESPONSE OVERVIEW:\n")
		sb.WriteString(graph.ResponseOverview)
		sb.WriteString("\n\n")
	}

	sb.WriteString("AGENT RESULTS:\n\n")
	for i := range graph.Agents {
		spec := &graph.Agents[i]
		result := results[spec.ID]

		sb.WriteString(fmt.Sprintf("--- AGENT %d: %s ---\n", spec.ID, spec.Type))
		if spec.Usecase != "" {
			sb.WriteString(fmt.Sprintf("FOCUS: %s\n", spec.Usecase))
		}

		switch {
		case result == nil:
			sb.WriteString("STATUS: not executed\n")
		case result.Status.Succeeded():
			sb.WriteString(fmt.Sprintf("STATUS: %s\n", result.Status))
			sb.WriteString("OUTPUT:\n")
			sb.WriteString(result.Output)
			sb.WriteString("\n")
		default:
			sb.WriteString("STATUS: failure\n")
			sb.WriteString(fmt.Sprintf("ERROR: %s\n", result.PrimaryError))
			if result.FallbackError != "" {
				sb.WriteString(fmt.Sprintf("FALLBACK ERROR: %s\n", result.FallbackError))
			}
		}
		sb.WriteString("\n")
	}

	var failed []string
	for i := range graph.Agents {
		if r := results[graph.Agents[i].ID]; r != nil && r.Status == models.StatusFailure {
			failed = append(failed, fmt.Sprintf("%d", graph.Agents[i].ID))
		}
	}
	if len(failed) > 0 {
		sb.WriteString(fmt.Sprintf("NOTE: agent(s) %s failed; their contribution is missing or incomplete. Account for these gaps explicitly.\n\n", strings.Join(failed, ", ")))
	}

	sb.WriteString("Produce an unbiased, decision-grade synthesis that answers the original query. Integrate the agent outputs rather than summarizing them one by one.")
	return sb.String()
}

// degradedOutput is the fallback deliverable when the verdict call itself
// fails: the raw successful outputs concatenated in declaration order, with
// an honest preamble about the missing synthesis.
func degradedOutput(graph *models.AgentGraph, results map[int]*models.AgentResult) string {
	var sb strings.Builder

	sb.WriteString("Final synthesis was unavailable; raw agent outputs follow.\n\n")
	for i := range graph.Agents {
		spec := &graph.Agents[i]
		result := results[spec.ID]
		if result == nil || !result.Status.Succeeded() {
			continue
		}
		sb.WriteString(fmt.Sprintf("## %s\n\n", spec.Type))
		sb.WriteString(result.Output)
		sb.WriteString("\n\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}
