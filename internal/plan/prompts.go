package plan

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/convoke/pkg/models"
)

// DefaultPlannerSystem is the built-in system prompt for the planning
// capability. It can be overridden via the prompt store.
const DefaultPlannerSystem = `You are a master planning agent. Given a user query, decompose it into a set of specialized sub-agents that together produce a complete answer.

Respond with a single JSON object matching this schema:
{
  "query": "the original user query",
  "intent_analysis": "detailed analysis of the user's explicit and implicit needs",
  "response_overview": "general description of how the final deliverable will be assembled",
  "estimated_step_count": 2,
  "plan_confidence": 0.9,
  "agents": [
    {
      "id": 1,
      "type": "short label, e.g. 'Research Agent - SaaS Content Marketing'",
      "usecase": "what this agent is responsible for researching or solving",
      "system": "system instructions defining the agent's role and behavior",
      "prompt": "the task instructions for this agent",
      "model": "optional model override",
      "relies_on": [],
      "required_tools": [
        {"tool_name": "web_search", "required_capabilities": ["news"], "fallback_tools": ["wikipedia"], "critical": false}
      ],
      "fallback_strategy": "optional alternate instructions if the primary approach fails"
    }
  ]
}

Rules:
- Agent ids must be unique integers. An agent that needs another agent's output lists that id in relies_on; it will only run after those agents finish and will see their outputs.
- relies_on must never form a cycle and must only reference ids present in the plan.
- Mark a required tool critical only when the agent's task is impossible without it.
- Do not wrap the JSON in markdown fencing.`

// BuildReplanPrompt renders a structured limitations report for requesting a
// corrected plan after critical tool requirements could not be satisfied.
func BuildReplanPrompt(query string, limitations []models.ToolLimitation) string {
	var sb strings.Builder

	sb.WriteString("ORIGINAL QUERY: ")
	sb.WriteString(query)
	sb.WriteString("\n\nThe previous plan could not be executed: the agents below required tools that are unavailable in this environment. Produce a new complete plan for the original query that avoids these tools, using the same JSON schema as before. The new plan fully replaces the old one.\n\nTOOL LIMITATIONS:\n")

	for _, lim := range limitations {
		sb.WriteString(fmt.Sprintf("- agent %d (%s): tool %q", lim.AgentID, lim.AgentType, lim.ToolName))
		if len(lim.RequiredCapabilities) > 0 {
			sb.WriteString(fmt.Sprintf(" requiring capabilities [%s]", strings.Join(lim.RequiredCapabilities, ", ")))
		}
		sb.WriteString(fmt.Sprintf("; error: %s\n", lim.Error))
	}

	return sb.String()
}
