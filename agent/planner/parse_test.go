package planner

import (
	"errors"
	"testing"

	contractx "github.com/casavia/concierge/agent/contract"
)

func TestParsePlanStepArray(t *testing.T) {
	t.Parallel()

	raw := `[
		{"step": 1, "agent_to_use": "MenuPricingAgent", "sub_task_query": "list vegan dishes"},
		{"step": 2, "agent_to_use": "TableAvailabilityAgent", "sub_task_query": "table for 2 on Friday"}
	]`

	plan, err := ParsePlan(raw, "vegan dinner for two on friday")
	if err != nil {
		t.Fatalf("ParsePlan() error = %v", err)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(plan.Steps))
	}
	if plan.Steps[0].Agent != contractx.AgentMenuPricing || plan.Steps[1].Agent != contractx.AgentTableAvailability {
		t.Fatalf("unexpected agents: %+v", plan.Steps)
	}
	if plan.Steps[0].Step != 1 || plan.Steps[1].Step != 2 {
		t.Fatalf("steps not renumbered: %+v", plan.Steps)
	}
}

func TestParsePlanFencedWithProse(t *testing.T) {
	t.Parallel()

	raw := "Here is the plan:\n```json\n[{\"step\":1,\"agent_to_use\":\"restaurantinfoagent\",\"sub_task_query\":\"opening hours\"}]\n```"

	plan, err := ParsePlan(raw, "when do you open")
	if err != nil {
		t.Fatalf("ParsePlan() error = %v", err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Agent != contractx.AgentRestaurantInfo {
		t.Fatalf("unexpected plan: %+v", plan)
	}
}

func TestParsePlanDeduplicatesAgents(t *testing.T) {
	t.Parallel()

	raw := `[
		{"step": 1, "agent_to_use": "MenuPricingAgent", "sub_task_query": "starters"},
		{"step": 2, "agent_to_use": "MenuPricingAgent", "sub_task_query": "mains"}
	]`

	plan, err := ParsePlan(raw, "menu")
	if err != nil {
		t.Fatalf("ParsePlan() error = %v", err)
	}
	if len(plan.Steps) != 1 {
		t.Fatalf("duplicates not collapsed: %+v", plan.Steps)
	}
	if plan.Steps[0].Subtask != "starters" {
		t.Fatalf("expected first occurrence kept, got %q", plan.Steps[0].Subtask)
	}
}

func TestParsePlanUnknownAgent(t *testing.T) {
	t.Parallel()

	raw := `[{"step":1,"agent_to_use":"WeatherAgent","sub_task_query":"forecast"}]`
	_, err := ParsePlan(raw, "weather")
	if !errors.Is(err, contractx.ErrUnknownAgent) {
		t.Fatalf("expected ErrUnknownAgent, got %v", err)
	}
}

func TestParsePlanEmptySubtask(t *testing.T) {
	t.Parallel()

	raw := `[{"step":1,"agent_to_use":"MenuPricingAgent","sub_task_query":"   "}]`
	_, err := ParsePlan(raw, "menu")
	if !errors.Is(err, contractx.ErrPlanParse) {
		t.Fatalf("expected ErrPlanParse, got %v", err)
	}
}

func TestParsePlanIntentWord(t *testing.T) {
	t.Parallel()

	plan, err := ParsePlan("menu", "what do you serve")
	if err != nil {
		t.Fatalf("ParsePlan() error = %v", err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Agent != contractx.AgentMenuPricing {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if plan.Steps[0].Subtask != "what do you serve" {
		t.Fatalf("intent path must carry the original message, got %q", plan.Steps[0].Subtask)
	}
}

func TestParsePlanGarbage(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"",
		"   ",
		"I think you should ask the menu team about this.",
		`{"agent_to_use":"MenuPricingAgent"}`,
		"[]",
		"[not json]",
		"weatherwizard",
	} {
		if _, err := ParsePlan(raw, "msg"); !errors.Is(err, contractx.ErrPlanParse) && !errors.Is(err, contractx.ErrUnknownAgent) {
			t.Errorf("ParsePlan(%q) error = %v, want parse failure", raw, err)
		}
	}
}
