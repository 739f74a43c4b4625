// Package orchestrator is the dispatch core: it routes every turn through a
// compiled graph, runs the bounded delegation machine, commits finished
// bookings and guarantees the caller always receives a response.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/casavia/concierge/agent/contract"
	nodex "github.com/casavia/concierge/agent/nodes"
	statex "github.com/casavia/concierge/agent/state"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
)

// processFailureReply is the single user-visible failure mode. Any
// unanticipated error inside a turn collapses into this message plus an error
// marker in the metadata.
const processFailureReply = "I'm sorry, something went wrong while handling your request. Please try again."

// Orchestrator is the turn entry point. Collaborators are injected; the
// reservation store may be nil, every other one is required.
type Orchestrator struct {
	store        statex.Store
	planner      contractx.Planner
	narrator     contractx.Narrator
	executor     contractx.AgentExecutor
	reservations contractx.ReservationStore
	rules        contractx.Classifier

	graphRunner compose.Runnable[nodex.GraphInput, contractx.TurnResponse]

	now   func() time.Time
	newID func() string
}

// New builds the orchestrator and compiles its turn graph.
func New(
	store statex.Store,
	planner contractx.Planner,
	narrator contractx.Narrator,
	executor contractx.AgentExecutor,
	reservations contractx.ReservationStore,
	rules contractx.Classifier,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if planner == nil {
		return nil, errors.New("planner is required")
	}
	if narrator == nil {
		return nil, errors.New("narrator is required")
	}
	if executor == nil {
		return nil, errors.New("agent executor is required")
	}
	if rules == nil {
		return nil, errors.New("classifier is required")
	}

	o := &Orchestrator{
		store:        store,
		planner:      planner,
		narrator:     narrator,
		executor:     executor,
		reservations: reservations,
		rules:        rules,
		now:          time.Now,
		newID:        uuid.NewString,
	}

	graphRunner, err := o.compileProcessMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// ProcessMessage handles one turn. It never returns an error: failures of any
// collaborator are absorbed into an apologetic response with the failure
// recorded in the metadata.
func (o *Orchestrator) ProcessMessage(ctx context.Context, req contractx.TurnRequest) (resp contractx.TurnResponse) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("session_id", req.SessionID).
				Any("panic", r).
				Msg("turn processing panicked")
			resp = o.failureResponse(req, "internal error")
		}
	}()

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: req.SessionID,
		Message:   req.Message,
		History:   req.History,
		VenueID:   req.VenueID,
	})
	if err != nil {
		log.Error().
			Str("session_id", req.SessionID).
			Err(err).
			Msg("turn processing failed")
		return o.failureResponse(req, err.Error())
	}
	return out
}

func (o *Orchestrator) failureResponse(req contractx.TurnRequest, marker string) contractx.TurnResponse {
	return contractx.TurnResponse{
		Response: processFailureReply,
		Type:     contractx.ResponseMessage,
		Orchestrator: contractx.TurnMetadata{
			TurnID:       o.newID(),
			RulesVersion: o.rules.RulesVersion(),
			Timestamp:    o.now().UTC(),
			Error:        marker,
		},
	}
}
