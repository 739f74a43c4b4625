// Package state holds the per-session conversation record and its stores.
package state

import (
	"errors"
	"fmt"
	"time"

	contractx "github.com/casavia/concierge/agent/contract"
)

// MaxDelegationSteps bounds the delegation chain per turn. Plan steps and
// hand-offs both count against it.
const MaxDelegationSteps = 3

// FlowBooking is the only multi-turn flow currently modeled.
const FlowBooking = "booking"

// FlowKeyBookingInProgress marks an in-progress booking inside FlowState.
const FlowKeyBookingInProgress = "bookingInProgress"

var (
	ErrChainBound     = errors.New("delegation chain bound reached")
	ErrNoSnapshot     = errors.New("no interrupted context to resume")
	ErrInvalidSession = errors.New("session id is empty")
)

// DelegationStep is one executed hop of the current turn's chain.
type DelegationStep struct {
	Agent     contractx.AgentName    `json:"agent"`
	Subtask   string                 `json:"subtask"`
	Result    *contractx.AgentResult `json:"result,omitempty"`
	StepIndex int                    `json:"step_index"`
	Timestamp time.Time              `json:"timestamp"`
}

// InterruptedContext snapshots an in-progress flow when the user switches
// topics. One snapshot at a time; a later interruption overwrites it.
type InterruptedContext struct {
	Agent       contractx.AgentName `json:"agent"`
	ActiveFlow  string              `json:"active_flow,omitempty"`
	FlowState   map[string]any      `json:"flow_state,omitempty"`
	LastMessage string              `json:"last_message,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
}

// ConversationState is the per-session mutable record, exclusively owned by
// the orchestrator for that session.
type ConversationState struct {
	SessionID string `json:"session_id"`
	VenueID   int64  `json:"venue_id,omitempty"`

	ActiveAgent     contractx.AgentName `json:"active_agent,omitempty"`
	DelegationChain []DelegationStep    `json:"delegation_chain,omitempty"`

	GlobalContext map[contractx.AgentName]contractx.ToolResult `json:"global_context,omitempty"`

	ActiveFlow string         `json:"active_flow,omitempty"`
	FlowState  map[string]any `json:"flow_state,omitempty"`

	InterruptedContext *InterruptedContext `json:"interrupted_context,omitempty"`

	IsAwaitingUserResponse bool                `json:"is_awaiting_user_response"`
	NextAgent              contractx.AgentName `json:"next_agent,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversationState returns the default state for a fresh session.
func NewConversationState(sessionID string, venueID int64, now time.Time) *ConversationState {
	return &ConversationState{
		SessionID:     sessionID,
		VenueID:       venueID,
		GlobalContext: make(map[contractx.AgentName]contractx.ToolResult, 4),
		FlowState:     make(map[string]any, 8),
		UpdatedAt:     now.UTC(),
	}
}

func (s *ConversationState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// EnsureMaps initializes nil maps after deserialization.
func (s *ConversationState) EnsureMaps() {
	if s.GlobalContext == nil {
		s.GlobalContext = make(map[contractx.AgentName]contractx.ToolResult, 4)
	}
	if s.FlowState == nil {
		s.FlowState = make(map[string]any, 8)
	}
}

// BeginTurn clears the turn-scoped chain. Cross-turn fields (global context,
// flow, interrupt snapshot, awaiting flags) are untouched.
func (s *ConversationState) BeginTurn() {
	s.DelegationChain = nil
}

// AppendDelegation records one executed hop, enforcing the per-turn bound.
func (s *ConversationState) AppendDelegation(step DelegationStep) error {
	if len(s.DelegationChain) >= MaxDelegationSteps {
		return fmt.Errorf("%w: max=%d", ErrChainBound, MaxDelegationSteps)
	}
	step.StepIndex = len(s.DelegationChain)
	s.DelegationChain = append(s.DelegationChain, step)
	s.ActiveAgent = step.Agent
	return nil
}

// ChainExhausted reports whether another delegation would exceed the bound.
func (s *ConversationState) ChainExhausted() bool {
	return len(s.DelegationChain) >= MaxDelegationSteps
}

// SetGlobalContext stores an agent's latest tool result, last-write-wins.
func (s *ConversationState) SetGlobalContext(agent contractx.AgentName, result contractx.ToolResult) {
	s.EnsureMaps()
	s.GlobalContext[agent] = result
}

// BookingInProgress reports whether a booking flow is mid-collection.
func (s *ConversationState) BookingInProgress() bool {
	if s == nil || s.FlowState == nil {
		return false
	}
	v, _ := s.FlowState[FlowKeyBookingInProgress].(bool)
	return v
}

// ApplyUpdates folds an agent's requested state mutations into the session.
func (s *ConversationState) ApplyUpdates(agent contractx.AgentName, updates contractx.StateUpdates, now time.Time) {
	s.EnsureMaps()
	if updates.ClearFlow {
		s.ActiveFlow = ""
		s.FlowState = make(map[string]any, 8)
	}
	if updates.ActiveFlow != "" {
		s.ActiveFlow = updates.ActiveFlow
	}
	for k, v := range updates.FlowPatch {
		s.FlowState[k] = v
	}
	if updates.BookingInProgress {
		s.FlowState[FlowKeyBookingInProgress] = true
	}
	if updates.AwaitUser {
		s.IsAwaitingUserResponse = true
		s.NextAgent = agent
	}
	s.Touch(now)
}

// Interrupt snapshots the in-progress flow and resets everything else,
// deliberately preserving only the snapshot. Last interruption wins.
func (s *ConversationState) Interrupt(lastMessage string, now time.Time) {
	s.InterruptedContext = &InterruptedContext{
		Agent:       s.ActiveAgent,
		ActiveFlow:  s.ActiveFlow,
		FlowState:   s.FlowState,
		LastMessage: lastMessage,
		Timestamp:   now.UTC(),
	}
	s.ActiveAgent = ""
	s.DelegationChain = nil
	s.GlobalContext = make(map[contractx.AgentName]contractx.ToolResult, 4)
	s.ActiveFlow = ""
	s.FlowState = make(map[string]any, 8)
	s.IsAwaitingUserResponse = false
	s.NextAgent = ""
	s.Touch(now)
}

// Resume restores the interrupted flow and consumes the snapshot.
func (s *ConversationState) Resume(now time.Time) (contractx.AgentName, error) {
	snap := s.InterruptedContext
	if snap == nil {
		return "", ErrNoSnapshot
	}
	s.ActiveAgent = snap.Agent
	s.ActiveFlow = snap.ActiveFlow
	s.FlowState = snap.FlowState
	s.EnsureMaps()
	s.InterruptedContext = nil
	s.IsAwaitingUserResponse = true
	s.NextAgent = snap.Agent
	s.Touch(now)
	return snap.Agent, nil
}

// Reset clears the session except, if present, the interrupt snapshot.
func (s *ConversationState) Reset(now time.Time) {
	snap := s.InterruptedContext
	*s = *NewConversationState(s.SessionID, s.VenueID, now)
	s.InterruptedContext = snap
}

// Validate enforces the structural invariants of the record.
func (s *ConversationState) Validate() error {
	if s.SessionID == "" {
		return ErrInvalidSession
	}
	if len(s.DelegationChain) > MaxDelegationSteps {
		return fmt.Errorf("%w: chain=%d", ErrChainBound, len(s.DelegationChain))
	}
	if s.NextAgent != "" && !s.IsAwaitingUserResponse {
		return fmt.Errorf("%w: next_agent set without awaiting flag", contractx.ErrValidation)
	}
	if s.IsAwaitingUserResponse && s.NextAgent == "" {
		return fmt.Errorf("%w: awaiting flag set without next_agent", contractx.ErrValidation)
	}
	return nil
}
