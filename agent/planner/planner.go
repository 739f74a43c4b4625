// Package planner acquires the per-turn execution plan. The external LLM
// planner is unreliable by contract: anything it returns is validated, and
// every failure collapses into the deterministic heuristic plan so the
// dispatch loop always receives at least one valid step.
package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/rs/zerolog/log"

	contractx "github.com/casavia/concierge/agent/contract"
	llmx "github.com/casavia/concierge/agent/llm"
	registryx "github.com/casavia/concierge/agent/registry"
	openrouterx "github.com/casavia/concierge/pkg/openrouter"
)

const (
	historyTailSize = 6
	defaultCacheTTL = 2 * time.Minute
	cacheMaxCost    = 1 << 10
)

// Acquirer implements contract.Planner on top of an external completion
// endpoint, with a short-TTL plan cache and the heuristic fallback.
type Acquirer struct {
	completer    openrouterx.Completer
	llmCfg       llmx.Config
	systemPrompt string
	rules        contractx.Classifier

	cache    *ristretto.Cache[string, contractx.ExecutionPlan]
	cacheTTL time.Duration
}

var _ contractx.Planner = (*Acquirer)(nil)

// Option customizes an Acquirer.
type Option func(*Acquirer)

// WithCacheTTL overrides the default plan-cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(a *Acquirer) {
		if ttl > 0 {
			a.cacheTTL = ttl
		}
	}
}

// New builds the plan acquirer. A nil completer is allowed: acquisition then
// always takes the heuristic path (useful for offline runs).
func New(completer openrouterx.Completer, llmCfg llmx.Config, systemPrompt string, rules contractx.Classifier, opts ...Option) (*Acquirer, error) {
	if rules == nil {
		return nil, fmt.Errorf("%w: classifier is required", contractx.ErrValidation)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, contractx.ExecutionPlan]{
		NumCounters: cacheMaxCost * 10,
		MaxCost:     cacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create plan cache: %w", err)
	}

	a := &Acquirer{
		completer:    completer,
		llmCfg:       llmCfg,
		systemPrompt: strings.TrimSpace(systemPrompt),
		rules:        rules,
		cache:        cache,
		cacheTTL:     defaultCacheTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Close releases the plan cache.
func (a *Acquirer) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
}

// GetPlan returns a validated plan. It never returns an error: malformed or
// unusable planner output degrades to the heuristic plan.
func (a *Acquirer) GetPlan(ctx context.Context, message string, history []contractx.HistoryEntry, venueID int64) (contractx.ExecutionPlan, error) {
	key := cacheKey(venueID, message)
	if cached, ok := a.cache.Get(key); ok && len(cached.Steps) > 0 {
		return cached, nil
	}

	plan, err := a.acquire(ctx, message, history)
	if err != nil {
		log.Debug().Err(err).Str("message", message).Msg("planner unusable, using heuristic plan")
		plan = a.HeuristicPlan(message)
	}

	a.cache.SetWithTTL(key, plan, 1, a.cacheTTL)
	return plan, nil
}

// HeuristicPlan maps the message to exactly one agent by keyword containment.
func (a *Acquirer) HeuristicPlan(message string) contractx.ExecutionPlan {
	return contractx.ExecutionPlan{Steps: []contractx.PlanStep{{
		Step:    1,
		Agent:   a.rules.Intent(message),
		Subtask: strings.TrimSpace(message),
	}}}
}

func (a *Acquirer) acquire(ctx context.Context, message string, history []contractx.HistoryEntry) (contractx.ExecutionPlan, error) {
	if a.completer == nil {
		return contractx.ExecutionPlan{}, fmt.Errorf("%w: no planner endpoint configured", contractx.ErrPlanParse)
	}

	req := a.llmCfg.RequestFor(llmx.RolePlanner)
	req.System = a.systemPrompt
	req.User = buildUserPrompt(message, history)

	raw, err := a.completer.Complete(ctx, req)
	if err != nil {
		return contractx.ExecutionPlan{}, fmt.Errorf("%w: %v", contractx.ErrPlanParse, err)
	}

	return ParsePlan(raw, message)
}

func buildUserPrompt(message string, history []contractx.HistoryEntry) string {
	var b strings.Builder
	b.WriteString("Available agents:\n")
	b.WriteString(registryx.ResponsibilitySheet())
	b.WriteString("\n\n")

	tail := history
	if len(tail) > historyTailSize {
		tail = tail[len(tail)-historyTailSize:]
	}
	if len(tail) > 0 {
		b.WriteString("Recent history:\n")
		for _, h := range tail {
			fmt.Fprintf(&b, "%s: %s\n", h.Sender, h.Text)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "User message: %s", message)
	return b.String()
}

func cacheKey(venueID int64, message string) string {
	return fmt.Sprintf("%d|%s", venueID, strings.ToLower(strings.TrimSpace(message)))
}
