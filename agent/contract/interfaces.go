package contract

import (
	"context"
	"time"
)

// Planner is the external plan-acquisition collaborator. Implementations must
// return a validated plan or an error; the orchestrator's acquisition layer
// owns the heuristic fallback, so a planner error never reaches the caller.
type Planner interface {
	GetPlan(ctx context.Context, message string, history []HistoryEntry, venueID int64) (ExecutionPlan, error)
}

// Narrator is the external consolidation collaborator: it merges the ordered
// tool results of one turn into a single user-facing reply.
type Narrator interface {
	Consolidate(ctx context.Context, message string, results []ToolResult, history []HistoryEntry) (string, error)
}

// AgentExecutor is the uniform execution contract into any registered agent.
type AgentExecutor interface {
	Execute(ctx context.Context, agent AgentName, req AgentRequest) AgentResult
}

// ToolGateway executes one domain tool. Parameter validation happens before
// the gateway is reached; gateway failures are converted into failure-variant
// results by the calling layer.
type ToolGateway interface {
	ExecuteTool(ctx context.Context, tool string, params map[string]any, venueID int64) (ToolResult, error)
}

// ReservationStore is the persistence collaborator for finished bookings.
type ReservationStore interface {
	InsertReservation(ctx context.Context, payload ReservationPayload, venueID int64, idempotencyKey string) (id string, createdAt time.Time, err error)
}

// Classifier maps an utterance to deterministic routing decisions. The
// rule-based implementation is the default; an external planner may refine
// intent but never replaces resume/affirmative detection.
type Classifier interface {
	Intent(message string) AgentName
	IsResumeRequest(message string) bool
	RulesVersion() string
}
