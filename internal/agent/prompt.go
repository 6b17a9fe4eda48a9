package agent

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/convoke/pkg/models"
)

// ComposeInput builds an agent's effective task input: one labeled block per
// upstream dependency in relies_on order, the agent's own prompt, then a
// rendering of its declared tool requirements and fallback strategy.
func ComposeInput(spec *models.AgentSpec, deps map[int]*models.AgentResult) string {
	var sb strings.Builder

	if len(spec.ReliesOn) > 0 {
		sb.WriteString("CONTEXT FROM AGENTS YOU RELY ON:\n\n")
		for _, depID := range spec.ReliesOn {
			dep := deps[depID]
			sb.WriteString(fmt.Sprintf("AGENT %d: %s\n", dep.AgentID, dep.Config.Type))
			sb.WriteString(fmt.Sprintf("FOCUS: %s\n", dep.Config.Usecase))
			sb.WriteString("OUTPUT:\n")
			sb.WriteString(dep.Output)
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString("YOUR TASK:\n")
	sb.WriteString(spec.Prompt)

	if meta := renderToolMetadata(spec); meta != "" {
		sb.WriteString("\n\n")
		sb.WriteString(meta)
	}

	return sb.String()
}

// renderToolMetadata renders required_tools and fallback_strategy as text so
// the execution capability can honor them. Empty when the spec declares neither.
func renderToolMetadata(spec *models.AgentSpec) string {
	if len(spec.RequiredTools) == 0 && spec.FallbackStrategy == "" {
		return ""
	}

	var sb strings.Builder

	if len(spec.RequiredTools) > 0 {
		sb.WriteString("REQUIRED TOOLS:\n")
		for _, tool := range spec.RequiredTools {
			sb.WriteString(fmt.Sprintf("- %s", tool.ToolName))
			if len(tool.RequiredCapabilities) > 0 {
				sb.WriteString(fmt.Sprintf(" (capabilities: %s)", strings.Join(tool.RequiredCapabilities, ", ")))
			}
			if len(tool.FallbackTools) > 0 {
				sb.WriteString(fmt.Sprintf(" (fallbacks: %s)", strings.Join(tool.FallbackTools, ", ")))
			}
			if tool.Critical {
				sb.WriteString(" [critical]")
			}
			sb.WriteString("\n")
		}
	}

	if spec.FallbackStrategy != "" {
		sb.WriteString(fmt.Sprintf("FALLBACK STRATEGY: %s\n", spec.FallbackStrategy))
	}

	return strings.TrimRight(sb.String(), "\n")
}

// composeFallbackInput wraps the original input with the primary failure and
// the agent's fallback instructions for the single retry attempt.
func composeFallbackInput(spec *models.AgentSpec, original string, primaryErr error) string {
	var sb strings.Builder

	sb.WriteString("Your first attempt at this task failed with the following error:\n")
	sb.WriteString(primaryErr.Error())
	sb.WriteString("\n\nApply this fallback strategy instead:\n")
	sb.WriteString(spec.FallbackStrategy)
	sb.WriteString("\n\nORIGINAL TASK:\n")
	sb.WriteString(original)

	return sb.String()
}
