// Package orchestratornode holds the turn-graph state and the node functions
// the orchestrator wires into its compiled graph. Nodes mutate the shared
// GraphState and never touch stores or collaborators they are not handed.
package orchestratornode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/casavia/concierge/agent/contract"
	statex "github.com/casavia/concierge/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = errors.New("session id is empty")
)

// GraphInput is the raw turn request entering the graph.
type GraphInput struct {
	SessionID string
	Message   string
	History   []contractx.HistoryEntry
	VenueID   int64
}

// GraphState is the mutable record threaded through the turn graph.
type GraphState struct {
	SessionID string
	Message   string
	History   []contractx.HistoryEntry
	VenueID   int64
	Now       time.Time
	TurnID    string

	Session *statex.ConversationState

	// Set by the resume/interrupt node.
	Resumed     bool
	Interrupted bool

	// Filled by the dispatch machine, in execution order.
	Results      []contractx.ToolResult
	FinalAgent   contractx.AgentName
	ShortCircuit bool

	// Filled by the committer when a complete booking short-circuits the turn.
	Reservation *contractx.ReservationDetails

	Reply          string
	IsConsolidated bool
}

// ValidateRequest normalizes the raw input and seeds the graph state.
func ValidateRequest(in GraphInput, nowFn func() time.Time, newID func() string) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		SessionID: sessionID,
		Message:   message,
		History:   in.History,
		VenueID:   in.VenueID,
		Now:       nowFn().UTC(),
		TurnID:    newID(),
	}, nil
}
