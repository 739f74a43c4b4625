package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/casavia/concierge/agent/contract"
	llmx "github.com/casavia/concierge/agent/llm"
	registryx "github.com/casavia/concierge/agent/registry"
	toolx "github.com/casavia/concierge/agent/tool"
)

// selection is the outcome of the select phase.
type selection struct {
	Tool            string         `json:"tool"`
	Parameters      map[string]any `json:"parameters,omitempty"`
	HandoffTo       string         `json:"handoff_to,omitempty"`
	UnansweredQuery string         `json:"unanswered_query,omitempty"`
}

// selectTool decides which one tool to run. The LLM selector is preferred
// when configured; any failure falls back to the deterministic rules.
func (r *Runner) selectTool(ctx context.Context, entry registryx.Entry, req contractx.AgentRequest) selection {
	if r.completer != nil {
		sel, err := r.selectWithModel(ctx, entry, req)
		if err == nil {
			return sel
		}
		log.Debug().Str("agent", string(entry.Name)).Err(err).Msg("model selection unusable, using rule selection")
	}
	return r.selectWithRules(entry, req)
}

func (r *Runner) selectWithModel(ctx context.Context, entry registryx.Entry, req contractx.AgentRequest) (selection, error) {
	payload := map[string]any{
		"agent":          entry.Name,
		"subtask":        req.Subtask,
		"allowed_tools":  describeTools(entry.AllowedTools),
		"global_context": summarizeContext(req.GlobalContext),
		"flow_state":     req.FlowState,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return selection{}, fmt.Errorf("marshal selector payload: %w", err)
	}

	creq := r.llmCfg.RequestFor(llmx.RoleSelector)
	creq.System = r.selectorPrompt
	creq.User = string(encoded)

	raw, err := r.completer.Complete(ctx, creq)
	if err != nil {
		return selection{}, err
	}

	var sel selection
	trimmed := stripSelectorFences(raw)
	if err := json.Unmarshal([]byte(trimmed), &sel); err != nil {
		return selection{}, fmt.Errorf("decode selection: %w", err)
	}
	if strings.TrimSpace(sel.Tool) == "" && strings.TrimSpace(sel.HandoffTo) == "" {
		return selection{}, fmt.Errorf("selection names no tool")
	}
	if sel.Tool == "" {
		// A pure handoff still needs a tool to fail closed on; clarification
		// is the safe substitute when the handoff target turns out invalid.
		sel.Tool = toolx.ToolAskClarification
		sel.Parameters = map[string]any{"question": clarificationQuestion(entry)}
	}
	return sel, nil
}

// selectWithRules is the deterministic selector: each agent has one primary
// tool, parameterized from the subtask where extraction is possible. Only the
// catch-all support agent proposes hand-offs on this path; domain agents
// answer or ask for clarification.
func (r *Runner) selectWithRules(entry registryx.Entry, req contractx.AgentRequest) selection {
	subtask := strings.TrimSpace(req.Subtask)

	if entry.Name == contractx.AgentCustomerSupport {
		if intent := r.rules.Intent(subtask); intent != contractx.AgentCustomerSupport {
			return selection{
				Tool:            toolx.ToolGeneralInquiry,
				Parameters:      map[string]any{"query": subtask},
				HandoffTo:       string(intent),
				UnansweredQuery: subtask,
			}
		}
		return selection{
			Tool:       toolx.ToolGeneralInquiry,
			Parameters: map[string]any{"query": subtask},
		}
	}

	switch entry.Name {
	case contractx.AgentTableAvailability:
		slots := extractBookingSlots(subtask)
		if slots.date != "" && slots.time != "" && slots.partySize > 0 {
			return selection{Tool: toolx.ToolCheckAvailability, Parameters: map[string]any{
				"date":       slots.date,
				"time":       slots.time,
				"party_size": slots.partySize,
			}}
		}
		return selection{Tool: toolx.ToolAskClarification, Parameters: map[string]any{
			"question": "Which date and time, and for how many guests?",
		}}
	case contractx.AgentMenuPricing:
		params := map[string]any{}
		if category := extractMenuCategory(subtask); category != "" {
			params["category"] = category
		}
		return selection{Tool: toolx.ToolGetMenu, Parameters: params}
	case contractx.AgentCelebration:
		params := map[string]any{}
		if occasion := extractOccasion(subtask); occasion != "" {
			params["occasion"] = occasion
		}
		return selection{Tool: toolx.ToolGetCelebrationPackages, Parameters: params}
	case contractx.AgentReservation:
		slots := extractBookingSlots(subtask)
		params := map[string]any{}
		if slots.date != "" {
			params["date"] = slots.date
		}
		if slots.time != "" {
			params["time"] = slots.time
		}
		if slots.partySize > 0 {
			params["party_size"] = slots.partySize
		}
		return selection{Tool: toolx.ToolCollectReservation, Parameters: params}
	case contractx.AgentRestaurantInfo:
		params := map[string]any{}
		if topic := extractInfoTopic(subtask); topic != "" {
			params["topic"] = topic
		}
		return selection{Tool: toolx.ToolGetRestaurantInfo, Parameters: params}
	default:
		return selection{Tool: toolx.ToolAskClarification, Parameters: map[string]any{
			"question": clarificationQuestion(entry),
		}}
	}
}

func describeTools(tools []string) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, name := range tools {
		schema, ok := toolx.SchemaFor(name)
		if !ok {
			continue
		}
		params := make(map[string]any, len(schema.Params))
		for pname, p := range schema.Params {
			params[pname] = map[string]any{
				"type":     string(p.Type),
				"desc":     p.Desc,
				"required": p.Required,
			}
		}
		out = append(out, map[string]any{"name": name, "parameters": params})
	}
	return out
}

func summarizeContext(global map[contractx.AgentName]contractx.ToolResult) []map[string]any {
	out := make([]map[string]any, 0, len(global))
	for _, name := range registryx.Names() {
		result, ok := global[name]
		if !ok {
			continue
		}
		out = append(out, map[string]any{
			"agent": name,
			"tool":  result.Tool,
			"kind":  result.Kind,
			"ok":    result.OK(),
		})
	}
	return out
}

func stripSelectorFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(trimmed), "```"))
}
