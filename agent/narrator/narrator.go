// Package narrator merges the turn's ordered tool results into one
// user-facing reply. The external narration call is best-effort; a
// deterministic template merge backs it.
package narrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/casavia/concierge/agent/contract"
	llmx "github.com/casavia/concierge/agent/llm"
	openrouterx "github.com/casavia/concierge/pkg/openrouter"
)

// NoResultsApology is returned when a turn produced nothing to narrate.
const NoResultsApology = "Sorry, I couldn't find anything useful for that. Could you rephrase your request?"

// Consolidator implements contract.Narrator.
type Consolidator struct {
	completer    openrouterx.Completer
	llmCfg       llmx.Config
	systemPrompt string
}

var _ contractx.Narrator = (*Consolidator)(nil)

// New builds the consolidator. A nil completer means the template merge is
// always used.
func New(completer openrouterx.Completer, llmCfg llmx.Config, systemPrompt string) *Consolidator {
	return &Consolidator{
		completer:    completer,
		llmCfg:       llmCfg,
		systemPrompt: strings.TrimSpace(systemPrompt),
	}
}

// Consolidate produces the final reply for a turn. It never returns an
// error: narration failures degrade to the deterministic template merge, and
// an empty result set yields the fixed apology without any external call.
func (c *Consolidator) Consolidate(ctx context.Context, message string, results []contractx.ToolResult, history []contractx.HistoryEntry) (string, error) {
	if len(results) == 0 {
		return NoResultsApology, nil
	}

	if c.completer != nil {
		reply, err := c.narrate(ctx, message, results, history)
		if err == nil && strings.TrimSpace(reply) != "" {
			return strings.TrimSpace(reply), nil
		}
		log.Debug().Err(err).Msg("narration unusable, using template merge")
	}

	return TemplateMerge(results), nil
}

func (c *Consolidator) narrate(ctx context.Context, message string, results []contractx.ToolResult, history []contractx.HistoryEntry) (string, error) {
	payload := map[string]any{
		"original_utterance": message,
		"tool_results":       results,
		"history":            history,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal narration payload: %v", contractx.ErrNarration, err)
	}

	req := c.llmCfg.RequestFor(llmx.RoleNarrator)
	req.System = c.systemPrompt
	req.User = string(encoded)

	reply, err := c.completer.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrNarration, err)
	}
	return reply, nil
}

// TemplateMerge concatenates one fixed summary sentence per tool result, in
// order.
func TemplateMerge(results []contractx.ToolResult) string {
	sentences := make([]string, 0, len(results))
	for _, r := range results {
		if s := summarize(r); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return NoResultsApology
	}
	return strings.Join(sentences, " ")
}

func summarize(r contractx.ToolResult) string {
	switch r.Kind {
	case contractx.KindAvailability:
		a := r.Availability
		if a == nil {
			return ""
		}
		if a.Available {
			return fmt.Sprintf("We have a table for %d on %s at %s.", a.PartySize, a.Date, a.Time)
		}
		if len(a.Alternatives) > 0 {
			return fmt.Sprintf("We're fully booked for %d on %s at %s, but %s would work.", a.PartySize, a.Date, a.Time, strings.Join(a.Alternatives, " or "))
		}
		return fmt.Sprintf("Unfortunately we have no table for %d on %s at %s.", a.PartySize, a.Date, a.Time)
	case contractx.KindMenu:
		m := r.Menu
		if m == nil || len(m.Items) == 0 {
			return "The menu is currently unavailable."
		}
		names := make([]string, 0, len(m.Items))
		for _, item := range m.Items {
			names = append(names, fmt.Sprintf("%s (%.2f)", item.Name, item.Price))
		}
		return fmt.Sprintf("On the menu: %s.", strings.Join(names, ", "))
	case contractx.KindCelebration:
		c := r.Celebration
		if c == nil || len(c.Packages) == 0 {
			return "We have no celebration packages listed right now."
		}
		names := make([]string, 0, len(c.Packages))
		for _, p := range c.Packages {
			names = append(names, fmt.Sprintf("%s (%.2f)", p.Name, p.Price))
		}
		return fmt.Sprintf("For celebrations we offer: %s.", strings.Join(names, ", "))
	case contractx.KindReservation:
		p := r.Reservation
		if p == nil {
			return ""
		}
		if p.ReservationID != "" {
			return fmt.Sprintf("Your reservation for %d on %s at %s is confirmed (reference %s).", p.PartySize, p.Date, p.Time, p.ReservationID)
		}
		return "Your booking details are noted."
	case contractx.KindInfo:
		if r.Info == nil || strings.TrimSpace(r.Info.Answer) == "" {
			return ""
		}
		return r.Info.Answer
	case contractx.KindClarification:
		if r.Clarification == nil || strings.TrimSpace(r.Clarification.Question) == "" {
			return ""
		}
		return r.Clarification.Question
	case contractx.KindFailure:
		return "One part of your request couldn't be completed right now."
	default:
		return ""
	}
}
