package contract

import (
	"strings"
	"time"
)

// AgentName identifies a registered domain agent.
type AgentName string

const (
	AgentTableAvailability AgentName = "TableAvailabilityAgent"
	AgentMenuPricing       AgentName = "MenuPricingAgent"
	AgentCelebration       AgentName = "CelebrationAgent"
	AgentReservation       AgentName = "ReservationAgent"
	AgentRestaurantInfo    AgentName = "RestaurantInfoAgent"
	AgentCustomerSupport   AgentName = "CustomerSupportAgent"
)

// HistoryEntry is one prior message of the conversation, oldest first.
type HistoryEntry struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// PlanStep is one {agent, subtask} unit of a decomposition plan.
type PlanStep struct {
	Step    int       `json:"step"`
	Agent   AgentName `json:"agent_to_use"`
	Subtask string    `json:"sub_task_query"`
}

// ExecutionPlan is an ordered decomposition of one utterance. Every agent
// appears at most once; every agent is registered. Built by the planner or
// by the heuristic fallback, never empty once validated.
type ExecutionPlan struct {
	Steps []PlanStep `json:"steps"`
}

// ResultKind tags a ToolResult variant. Exactly one payload field matching
// the kind is set on a success result; KindFailure carries only Err.
type ResultKind string

const (
	KindAvailability  ResultKind = "availability"
	KindMenu          ResultKind = "menu"
	KindCelebration   ResultKind = "celebration"
	KindReservation   ResultKind = "reservation"
	KindInfo          ResultKind = "info"
	KindClarification ResultKind = "clarification"
	KindFailure       ResultKind = "failure"
)

// AvailabilityPayload reports table availability for a requested slot.
type AvailabilityPayload struct {
	Date         string   `json:"date"`
	Time         string   `json:"time"`
	PartySize    int      `json:"party_size"`
	Available    bool     `json:"available"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// MenuItem is one priced menu entry.
type MenuItem struct {
	Name     string  `json:"name"`
	Category string  `json:"category,omitempty"`
	Price    float64 `json:"price"`
}

// MenuPayload lists menu items, optionally filtered by category.
type MenuPayload struct {
	Category string     `json:"category,omitempty"`
	Items    []MenuItem `json:"items"`
}

// CelebrationPackage is one celebration offering.
type CelebrationPackage struct {
	Name        string  `json:"name"`
	Occasion    string  `json:"occasion,omitempty"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
}

// CelebrationPayload lists celebration packages for an occasion.
type CelebrationPayload struct {
	Occasion string               `json:"occasion,omitempty"`
	Packages []CelebrationPackage `json:"packages"`
}

// ReservationPayload is the booking flow's accumulated record. Only complete
// payloads reach the side-effect committer.
type ReservationPayload struct {
	Date            string `json:"date,omitempty"`
	Time            string `json:"time,omitempty"`
	PartySize       int    `json:"party_size,omitempty"`
	Name            string `json:"name,omitempty"`
	Phone           string `json:"phone,omitempty"`
	SpecialRequests string `json:"special_requests,omitempty"`
	ReservationID   string `json:"reservation_id,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
}

// Complete reports whether all required booking fields are present.
func (p *ReservationPayload) Complete() bool {
	return p != nil && len(p.MissingFields()) == 0
}

// MissingFields returns the required booking fields not yet collected, in the
// fixed ask order.
func (p *ReservationPayload) MissingFields() []string {
	if p == nil {
		return []string{"date", "time", "party_size", "name", "phone"}
	}
	var missing []string
	if strings.TrimSpace(p.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(p.Time) == "" {
		missing = append(missing, "time")
	}
	if p.PartySize <= 0 {
		missing = append(missing, "party_size")
	}
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(p.Phone) == "" {
		missing = append(missing, "phone")
	}
	return missing
}

// InfoPayload answers a venue information question.
type InfoPayload struct {
	Topic  string `json:"topic,omitempty"`
	Answer string `json:"answer"`
}

// ClarificationPayload asks the user for more input before the agent can act.
type ClarificationPayload struct {
	Question string `json:"question"`
}

// ToolResult is the tagged outcome of one tool execution. Produced and owned
// by the agent that ran the tool; read-only once stored in global context.
type ToolResult struct {
	Tool string     `json:"tool"`
	Kind ResultKind `json:"kind"`

	Availability  *AvailabilityPayload  `json:"availability,omitempty"`
	Menu          *MenuPayload          `json:"menu,omitempty"`
	Celebration   *CelebrationPayload   `json:"celebration,omitempty"`
	Reservation   *ReservationPayload   `json:"reservation,omitempty"`
	Info          *InfoPayload          `json:"info,omitempty"`
	Clarification *ClarificationPayload `json:"clarification,omitempty"`

	Err string `json:"error,omitempty"`
}

// OK reports whether the result is a success variant.
func (r ToolResult) OK() bool {
	return r.Kind != KindFailure && r.Kind != ""
}

// FailureResult builds the failure variant for a tool.
func FailureResult(tool, reason string) ToolResult {
	return ToolResult{Tool: tool, Kind: KindFailure, Err: reason}
}

// ClarificationResult builds a clarification variant for a tool.
func ClarificationResult(tool, question string) ToolResult {
	return ToolResult{
		Tool:          tool,
		Kind:          KindClarification,
		Clarification: &ClarificationPayload{Question: question},
	}
}

// StateUpdates carries the session mutations an agent requests alongside its
// result. The orchestrator applies them after the step; agents never touch
// ConversationState directly.
type StateUpdates struct {
	ActiveFlow        string         `json:"active_flow,omitempty"`
	FlowPatch         map[string]any `json:"flow_patch,omitempty"`
	BookingInProgress bool           `json:"booking_in_progress,omitempty"`
	AwaitUser         bool           `json:"await_user,omitempty"`
	ClearFlow         bool           `json:"clear_flow,omitempty"`
}

// AgentRequest is the uniform input of one agent execution.
type AgentRequest struct {
	Subtask       string                   `json:"subtask"`
	History       []HistoryEntry           `json:"history,omitempty"`
	VenueID       int64                    `json:"venue_id,omitempty"`
	GlobalContext map[AgentName]ToolResult `json:"global_context,omitempty"`
	FlowState     map[string]any           `json:"flow_state,omitempty"`
}

// AgentResult is the normalized outcome of one agent execution. When
// IsTaskComplete is false, HandoffSuggestion and UnansweredQuery are both set.
type AgentResult struct {
	Agent             AgentName    `json:"agent"`
	ToolResult        *ToolResult  `json:"tool_result,omitempty"`
	IsTaskComplete    bool         `json:"is_task_complete"`
	HandoffSuggestion AgentName    `json:"handoff_suggestion,omitempty"`
	UnansweredQuery   string       `json:"unanswered_query,omitempty"`
	StateUpdates      StateUpdates `json:"state_updates,omitempty"`
	Timestamp         time.Time    `json:"timestamp"`
}

// ReservationDetails is the committed booking attached to a redirect response.
type ReservationDetails struct {
	ReservationID string              `json:"reservationId"`
	CreatedAt     time.Time           `json:"createdAt"`
	Payload       *ReservationPayload `json:"payload,omitempty"`
	InsertError   string              `json:"insertError,omitempty"`
}

// TurnRequest is the orchestrator's entry payload for one turn.
type TurnRequest struct {
	Message   string         `json:"message"`
	History   []HistoryEntry `json:"history,omitempty"`
	VenueID   int64          `json:"venue_id,omitempty"`
	SessionID string         `json:"session_id"`
}

// ResponseType discriminates the turn outcome.
type ResponseType string

const (
	ResponseMessage  ResponseType = "message"
	ResponseRedirect ResponseType = "redirect"
)

// DelegationRecord is the externally visible shape of one delegation step.
type DelegationRecord struct {
	Agent     AgentName `json:"agent"`
	Subtask   string    `json:"subtask"`
	StepIndex int       `json:"step_index"`
	Timestamp time.Time `json:"timestamp"`
}

// TurnMetadata describes how a turn was processed.
type TurnMetadata struct {
	TurnID              string                   `json:"turn_id"`
	DelegationChain     []DelegationRecord       `json:"delegation_chain"`
	TotalAgentsInvolved int                      `json:"total_agents_involved"`
	FinalAgent          AgentName                `json:"final_agent,omitempty"`
	GlobalContext       map[AgentName]ToolResult `json:"global_context,omitempty"`
	IsConsolidated      bool                     `json:"is_consolidated"`
	ToolResultsCount    int                      `json:"tool_results_count"`
	RulesVersion        string                   `json:"rules_version,omitempty"`
	Timestamp           time.Time                `json:"timestamp"`
	Error               string                   `json:"error,omitempty"`
}

// TurnResponse is what the caller receives for every turn, failures included.
type TurnResponse struct {
	Response           string              `json:"response"`
	Type               ResponseType        `json:"type"`
	ReservationDetails *ReservationDetails `json:"reservationDetails,omitempty"`
	Orchestrator       TurnMetadata        `json:"orchestrator"`
}
