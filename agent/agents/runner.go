// Package agents implements the uniform agent execution contract: every
// registered domain agent runs the same two-phase protocol (select one tool
// from its allowed set, then act) and returns a normalized AgentResult. No
// failure inside an agent escapes this package.
package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/casavia/concierge/agent/contract"
	llmx "github.com/casavia/concierge/agent/llm"
	registryx "github.com/casavia/concierge/agent/registry"
	statex "github.com/casavia/concierge/agent/state"
	toolx "github.com/casavia/concierge/agent/tool"
	openrouterx "github.com/casavia/concierge/pkg/openrouter"
)

const apologyMessage = "I'm sorry, I can't help with that right now. Could you try asking differently?"

// FlowKeyAwaitingSlot names the booking slot the user was last asked for.
const FlowKeyAwaitingSlot = "awaitingSlot"

// Runner executes registered agents. It implements contract.AgentExecutor.
type Runner struct {
	completer      openrouterx.Completer
	llmCfg         llmx.Config
	selectorPrompt string
	gateway        contractx.ToolGateway
	rules          contractx.Classifier
	now            func() time.Time
}

var _ contractx.AgentExecutor = (*Runner)(nil)

// NewRunner builds the agent runner. completer may be nil; tool selection
// then relies entirely on the deterministic rules.
func NewRunner(completer openrouterx.Completer, llmCfg llmx.Config, selectorPrompt string, gateway contractx.ToolGateway, rules contractx.Classifier) (*Runner, error) {
	if rules == nil {
		return nil, fmt.Errorf("%w: classifier is required", contractx.ErrValidation)
	}
	return &Runner{
		completer:      completer,
		llmCfg:         llmCfg,
		selectorPrompt: strings.TrimSpace(selectorPrompt),
		gateway:        gateway,
		rules:          rules,
		now:            time.Now,
	}, nil
}

// Execute runs one agent on one subtask. It never panics and never returns
// an error shape: unknown agents and internal failures become a safe,
// complete AgentResult.
func (r *Runner) Execute(ctx context.Context, agent contractx.AgentName, req contractx.AgentRequest) (result contractx.AgentResult) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("agent", string(agent)).Interface("panic", rec).Msg("agent execution panicked")
			result = r.apologeticResult(agent)
		}
	}()

	entry, ok := registryx.Lookup(agent)
	if !ok {
		log.Warn().Str("agent", string(agent)).Msg("execution requested for unregistered agent")
		return r.apologeticResult(agent)
	}

	sel := r.selectTool(ctx, entry, req)

	// Allowed-set enforcement: anything outside the declared set collapses
	// into a clarification request.
	if !entry.AllowsTool(sel.Tool) {
		log.Debug().Str("agent", string(agent)).Str("tool", sel.Tool).Msg("selection outside allowed set, substituting clarification")
		sel = selection{
			Tool: toolx.ToolAskClarification,
			Parameters: map[string]any{
				"question": clarificationQuestion(entry),
			},
		}
	}

	if target, ok := registryx.Resolve(sel.HandoffTo); ok && target != agent {
		unanswered := strings.TrimSpace(sel.UnansweredQuery)
		if unanswered == "" {
			unanswered = req.Subtask
		}
		return contractx.AgentResult{
			Agent:             agent,
			IsTaskComplete:    false,
			HandoffSuggestion: target,
			UnansweredQuery:   unanswered,
			Timestamp:         r.now().UTC(),
		}
	}

	return r.act(ctx, agent, sel, req)
}

// act executes the selected tool and folds the outcome into an AgentResult.
func (r *Runner) act(ctx context.Context, agent contractx.AgentName, sel selection, req contractx.AgentRequest) contractx.AgentResult {
	params := sel.Parameters
	if params == nil {
		params = map[string]any{}
	}
	if sel.Tool == toolx.ToolCollectReservation {
		params = r.mergeReservationParams(params, req)
	}

	toolResult := toolx.Exec(ctx, r.gateway, sel.Tool, params, req.VenueID)

	result := contractx.AgentResult{
		Agent:          agent,
		ToolResult:     &toolResult,
		IsTaskComplete: true,
		Timestamp:      r.now().UTC(),
	}

	switch {
	case sel.Tool == toolx.ToolCollectReservation && toolResult.Kind == contractx.KindReservation:
		// Booking complete; the flow ends here, commit happens upstream.
		result.StateUpdates = contractx.StateUpdates{ClearFlow: true}
	case sel.Tool == toolx.ToolCollectReservation && toolResult.Kind == contractx.KindClarification:
		patch := reservationFlowPatch(toolResult.Reservation)
		if missing := toolResult.Reservation.MissingFields(); len(missing) > 0 {
			patch[FlowKeyAwaitingSlot] = missing[0]
		}
		result.StateUpdates = contractx.StateUpdates{
			ActiveFlow:        statex.FlowBooking,
			FlowPatch:         patch,
			BookingInProgress: true,
			AwaitUser:         true,
		}
	case toolResult.Kind == contractx.KindClarification:
		result.StateUpdates = contractx.StateUpdates{AwaitUser: true}
	}

	return result
}

func (r *Runner) apologeticResult(agent contractx.AgentName) contractx.AgentResult {
	tr := contractx.ClarificationResult(toolx.ToolAskClarification, apologyMessage)
	return contractx.AgentResult{
		Agent:          agent,
		ToolResult:     &tr,
		IsTaskComplete: true,
		Timestamp:      r.now().UTC(),
	}
}

// mergeReservationParams overlays this turn's extracted slot values onto the
// accumulated flow state. New values win; an awaited slot absorbs the raw
// reply when extraction produced nothing for it. A resume phrase is never a
// slot value: the first turn after a resume re-asks for the awaited slot.
func (r *Runner) mergeReservationParams(params map[string]any, req contractx.AgentRequest) map[string]any {
	merged := make(map[string]any, 8)
	for _, slot := range []string{"date", "time", "party_size", "name", "phone", "special_requests"} {
		if v, ok := req.FlowState[slot]; ok && v != nil {
			merged[slot] = v
		}
	}
	for k, v := range params {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		merged[k] = v
	}

	awaiting, _ := req.FlowState[FlowKeyAwaitingSlot].(string)
	if awaiting != "" && merged[awaiting] == nil {
		if answer := strings.TrimSpace(req.Subtask); answer != "" && !r.rules.IsResumeRequest(answer) {
			if awaiting == "party_size" {
				if n, ok := parseLeadingInt(answer); ok {
					merged[awaiting] = n
				}
			} else {
				merged[awaiting] = answer
			}
		}
	}
	return merged
}

func reservationFlowPatch(p *contractx.ReservationPayload) map[string]any {
	patch := make(map[string]any, 8)
	if p == nil {
		return patch
	}
	if p.Date != "" {
		patch["date"] = p.Date
	}
	if p.Time != "" {
		patch["time"] = p.Time
	}
	if p.PartySize > 0 {
		patch["party_size"] = p.PartySize
	}
	if p.Name != "" {
		patch["name"] = p.Name
	}
	if p.Phone != "" {
		patch["phone"] = p.Phone
	}
	if p.SpecialRequests != "" {
		patch["special_requests"] = p.SpecialRequests
	}
	return patch
}

func clarificationQuestion(entry registryx.Entry) string {
	return fmt.Sprintf("Could you tell me a bit more about what you need? I can help with: %s.", strings.Join(entry.Capabilities, ", "))
}
