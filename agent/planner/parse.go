package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/casavia/concierge/agent/contract"
	registryx "github.com/casavia/concierge/agent/registry"
)

// Intent words the planner may answer with instead of a JSON plan.
var intentWords = map[string]contractx.AgentName{
	"menu":         contractx.AgentMenuPricing,
	"pricing":      contractx.AgentMenuPricing,
	"availability": contractx.AgentTableAvailability,
	"tables":       contractx.AgentTableAvailability,
	"reservation":  contractx.AgentReservation,
	"booking":      contractx.AgentReservation,
	"celebration":  contractx.AgentCelebration,
	"info":         contractx.AgentRestaurantInfo,
	"hours":        contractx.AgentRestaurantInfo,
	"support":      contractx.AgentCustomerSupport,
	"general":      contractx.AgentCustomerSupport,
}

type rawStep struct {
	Step     int    `json:"step"`
	Agent    string `json:"agent_to_use"`
	Subtask  string `json:"sub_task_query"`
	AltAgent string `json:"agent,omitempty"`
	AltTask  string `json:"subtask,omitempty"`
}

// ParsePlan turns arbitrary planner output into a validated ExecutionPlan.
// Accepted shapes: a single lowercase intent word, or a JSON array of steps
// (optionally wrapped in fences or surrounding prose). Everything else is a
// plan-parse error.
func ParsePlan(raw, originalMessage string) (contractx.ExecutionPlan, error) {
	trimmed := stripFences(strings.TrimSpace(raw))
	if trimmed == "" {
		return contractx.ExecutionPlan{}, fmt.Errorf("%w: empty output", contractx.ErrPlanParse)
	}

	if array, ok := extractArray(trimmed); ok {
		return parseArrayPlan(array)
	}

	// Single intent word path. Anything with whitespace is prose, not an
	// intent label.
	word := strings.ToLower(trimmed)
	if strings.ContainsAny(word, " \t\n{}") {
		return contractx.ExecutionPlan{}, fmt.Errorf("%w: output is neither intent word nor step array", contractx.ErrPlanParse)
	}
	if agent, ok := intentWords[word]; ok {
		return singleStepPlan(agent, originalMessage), nil
	}
	if agent, ok := registryx.Resolve(word); ok {
		return singleStepPlan(agent, originalMessage), nil
	}
	return contractx.ExecutionPlan{}, fmt.Errorf("%w: unknown intent word %q", contractx.ErrPlanParse, word)
}

func parseArrayPlan(array string) (contractx.ExecutionPlan, error) {
	var steps []rawStep
	if err := json.Unmarshal([]byte(array), &steps); err != nil {
		return contractx.ExecutionPlan{}, fmt.Errorf("%w: %v", contractx.ErrPlanParse, err)
	}
	if len(steps) == 0 {
		return contractx.ExecutionPlan{}, fmt.Errorf("%w: empty step array", contractx.ErrPlanParse)
	}

	plan := contractx.ExecutionPlan{Steps: make([]contractx.PlanStep, 0, len(steps))}
	seen := make(map[contractx.AgentName]struct{}, len(steps))
	for i, rs := range steps {
		rawAgent := rs.Agent
		if rawAgent == "" {
			rawAgent = rs.AltAgent
		}
		agent, ok := registryx.Resolve(rawAgent)
		if !ok {
			return contractx.ExecutionPlan{}, fmt.Errorf("%w: step %d names %q", contractx.ErrUnknownAgent, i+1, rawAgent)
		}

		subtask := strings.TrimSpace(rs.Subtask)
		if subtask == "" {
			subtask = strings.TrimSpace(rs.AltTask)
		}
		if subtask == "" {
			return contractx.ExecutionPlan{}, fmt.Errorf("%w: step %d has an empty subtask", contractx.ErrPlanParse, i+1)
		}

		// No redundant duplicate routing: keep the first occurrence.
		if _, dup := seen[agent]; dup {
			continue
		}
		seen[agent] = struct{}{}

		plan.Steps = append(plan.Steps, contractx.PlanStep{
			Step:    len(plan.Steps) + 1,
			Agent:   agent,
			Subtask: subtask,
		})
	}

	if len(plan.Steps) == 0 {
		return contractx.ExecutionPlan{}, fmt.Errorf("%w: no usable steps", contractx.ErrPlanParse)
	}
	return plan, nil
}

func singleStepPlan(agent contractx.AgentName, message string) contractx.ExecutionPlan {
	return contractx.ExecutionPlan{Steps: []contractx.PlanStep{{
		Step:    1,
		Agent:   agent,
		Subtask: strings.TrimSpace(message),
	}}}
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func extractArray(s string) (string, bool) {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
