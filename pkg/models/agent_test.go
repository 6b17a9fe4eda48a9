package models

import (
	"encoding/json"
	"testing"
)

func TestAgentGraphAgent(t *testing.T) {
	g := &AgentGraph{
		Agents: []AgentSpec{
			{ID: 1, Type: "Research"},
			{ID: 4, Type: "Analysis"},
		},
	}

	if a := g.Agent(4); a == nil || a.Type != "Analysis" {
		t.Errorf("expected agent 4 to be Analysis, got %+v", a)
	}

	if a := g.Agent(99); a != nil {
		t.Errorf("expected nil for unknown agent, got %+v", a)
	}
}

func TestAgentGraphAgentIDsPreservesOrder(t *testing.T) {
	g := &AgentGraph{
		Agents: []AgentSpec{{ID: 3}, {ID: 1}, {ID: 2}},
	}

	ids := g.AgentIDs()
	want := []int{3, 1, 2}
	if len(ids) != len(want) {
		t.Fatalf("expected %d ids, got %d", len(want), len(ids))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %d, want %d (declaration order must be preserved)", i, ids[i], want[i])
		}
	}
}

func TestAgentSpecHasCriticalTools(t *testing.T) {
	tests := []struct {
		name  string
		tools []ToolRequirement
		want  bool
	}{
		{"no tools", nil, false},
		{"non-critical only", []ToolRequirement{{ToolName: "search"}}, false},
		{"one critical", []ToolRequirement{{ToolName: "search"}, {ToolName: "finance", Critical: true}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &AgentSpec{RequiredTools: tt.tools}
			if got := a.HasCriticalTools(); got != tt.want {
				t.Errorf("HasCriticalTools() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAgentSpecWireFormat(t *testing.T) {
	raw := `{
		"id": 2,
		"type": "Market Agent",
		"usecase": "pricing research",
		"system": "You research pricing.",
		"prompt": "Find pricing data.",
		"model": "claude-3-5-haiku-20241022",
		"relies_on": [1],
		"required_tools": [
			{"tool_name": "finance", "required_capabilities": ["stock_price"], "fallback_tools": ["web_search"], "critical": true}
		],
		"fallback_strategy": "Answer from general knowledge."
	}`

	var spec AgentSpec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if spec.ID != 2 || spec.Type != "Market Agent" {
		t.Errorf("unexpected identity fields: %+v", spec)
	}
	if len(spec.ReliesOn) != 1 || spec.ReliesOn[0] != 1 {
		t.Errorf("relies_on = %v, want [1]", spec.ReliesOn)
	}
	if len(spec.RequiredTools) != 1 {
		t.Fatalf("expected 1 tool requirement, got %d", len(spec.RequiredTools))
	}
	tool := spec.RequiredTools[0]
	if tool.ToolName != "finance" || !tool.Critical {
		t.Errorf("unexpected tool requirement: %+v", tool)
	}
	if tool.FallbackTools[0] != "web_search" {
		t.Errorf("fallback_tools = %v", tool.FallbackTools)
	}
	if spec.FallbackStrategy == "" {
		t.Error("fallback_strategy not decoded")
	}
}

func TestResultStatus(t *testing.T) {
	for _, s := range []ResultStatus{StatusSuccess, StatusFallbackSuccess, StatusFailure} {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if ResultStatus("partial").Valid() {
		t.Error("expected unknown status to be invalid")
	}

	if !StatusSuccess.Succeeded() || !StatusFallbackSuccess.Succeeded() {
		t.Error("success statuses should report Succeeded")
	}
	if StatusFailure.Succeeded() {
		t.Error("failure should not report Succeeded")
	}
}
