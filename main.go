package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	agentsx "github.com/casavia/concierge/agent/agents"
	classifierx "github.com/casavia/concierge/agent/classifier"
	contractx "github.com/casavia/concierge/agent/contract"
	llmx "github.com/casavia/concierge/agent/llm"
	narratorx "github.com/casavia/concierge/agent/narrator"
	orchestratorx "github.com/casavia/concierge/agent/orchestrator"
	plannerx "github.com/casavia/concierge/agent/planner"
	promptx "github.com/casavia/concierge/agent/prompt"
	reservationx "github.com/casavia/concierge/agent/reservation"
	statex "github.com/casavia/concierge/agent/state"
	toolx "github.com/casavia/concierge/agent/tool"
	configx "github.com/casavia/concierge/pkg/config"
	_ "github.com/casavia/concierge/pkg/logger/autoload"
	openrouterx "github.com/casavia/concierge/pkg/openrouter"
)

type AppConfig struct {
	SessionID string `envconfig:"SESSION_ID" split_words:"true" default:"local-demo"`
	VenueID   int64  `envconfig:"VENUE_ID" split_words:"true" default:"1"`
}

func main() {
	appCfg := configx.MustNew[AppConfig]("APP")
	rules := classifierx.NewRule()
	prompts := promptx.LoadPromptSet()

	// The completer is optional: without OPENROUTER_* settings every layer
	// takes its deterministic path (heuristic plan, rule selector, template
	// narration).
	var completer openrouterx.Completer
	var llmCfg llmx.Config
	if openRouterCfg, err := configx.New[openrouterx.Config]("OPENROUTER"); err == nil {
		client, cerr := openrouterx.NewClient(*openRouterCfg)
		if cerr != nil {
			log.Warn().Err(cerr).Msg("openrouter client unavailable, running deterministically")
		} else {
			completer = client
		}
		if cfg, lerr := configx.New[llmx.Config]("LLM"); lerr == nil {
			llmCfg = *cfg
		} else {
			llmCfg = llmx.Config{Model: openRouterCfg.Model, Temperature: openRouterCfg.Temperature, MaxTokens: openRouterCfg.MaxCompletionToken}
		}
	} else {
		log.Info().Msg("no openrouter configuration, running deterministically")
	}

	store := buildStore()
	reservations := buildReservationStore()

	planner, err := plannerx.New(completer, llmCfg, prompts.Planner, rules)
	if err != nil {
		log.Fatal().Err(err).Msg("build planner")
	}
	defer planner.Close()

	narrator := narratorx.New(completer, llmCfg, prompts.Narrator)

	executor, err := agentsx.NewRunner(completer, llmCfg, prompts.Selector, toolx.NewStaticGateway(), rules)
	if err != nil {
		log.Fatal().Err(err).Msg("build agent runner")
	}

	orch, err := orchestratorx.New(store, planner, narrator, executor, reservations, rules)
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	runLoop(orch, appCfg.SessionID, appCfg.VenueID)
}

func buildStore() statex.Store {
	if cfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS"); err == nil {
		store, serr := statex.NewUpstashRedisStore(*cfg)
		if serr == nil {
			log.Info().Msg("using upstash redis session store")
			return store
		}
		log.Warn().Err(serr).Msg("upstash redis store unavailable, using in-memory store")
	}
	return statex.NewMemoryStore()
}

func buildReservationStore() contractx.ReservationStore {
	cfg, err := configx.New[reservationx.Config]("RESERVATION")
	if err != nil || strings.TrimSpace(cfg.DSN) == "" {
		log.Info().Msg("no reservation DSN, bookings will not be persisted")
		return nil
	}
	store, serr := reservationx.NewPostgresStore(*cfg)
	if serr != nil {
		log.Warn().Err(serr).Msg("reservation store unavailable, bookings will not be persisted")
		return nil
	}
	return store
}

func runLoop(orch *orchestratorx.Orchestrator, sessionID string, venueID int64) {
	fmt.Println("concierge demo; type a message, 'quit' to exit")

	var history []contractx.HistoryEntry
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}

		resp := orch.ProcessMessage(context.Background(), contractx.TurnRequest{
			Message:   line,
			History:   history,
			VenueID:   venueID,
			SessionID: sessionID,
		})

		fmt.Println(resp.Response)
		if resp.Type == contractx.ResponseRedirect && resp.ReservationDetails != nil {
			fmt.Printf("[reservation %s]\n", resp.ReservationDetails.ReservationID)
		}

		history = append(history,
			contractx.HistoryEntry{Sender: "user", Text: line},
			contractx.HistoryEntry{Sender: "assistant", Text: resp.Response},
		)
	}
}
