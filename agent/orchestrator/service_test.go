package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	classifierx "github.com/casavia/concierge/agent/classifier"
	contractx "github.com/casavia/concierge/agent/contract"
	statex "github.com/casavia/concierge/agent/state"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakePlanner struct {
	plan        contractx.ExecutionPlan
	err         error
	calls       int
	lastMessage string
}

func (f *fakePlanner) GetPlan(ctx context.Context, message string, history []contractx.HistoryEntry, venueID int64) (contractx.ExecutionPlan, error) {
	f.calls++
	f.lastMessage = message
	return f.plan, f.err
}

type fakeNarrator struct {
	reply       string
	err         error
	calls       int
	lastResults []contractx.ToolResult
}

func (f *fakeNarrator) Consolidate(ctx context.Context, message string, results []contractx.ToolResult, history []contractx.HistoryEntry) (string, error) {
	f.calls++
	f.lastResults = results
	return f.reply, f.err
}

type execCall struct {
	agent contractx.AgentName
	req   contractx.AgentRequest
}

// fakeExecutor answers from the scripted queue first, then from byAgent, then
// with a default complete info result.
type fakeExecutor struct {
	scripted []contractx.AgentResult
	byAgent  map[contractx.AgentName]contractx.AgentResult
	calls    []execCall
}

func (f *fakeExecutor) Execute(ctx context.Context, agent contractx.AgentName, req contractx.AgentRequest) contractx.AgentResult {
	f.calls = append(f.calls, execCall{agent: agent, req: req})

	var result contractx.AgentResult
	switch {
	case len(f.scripted) > 0:
		result = f.scripted[0]
		f.scripted = f.scripted[1:]
	default:
		var ok bool
		result, ok = f.byAgent[agent]
		if !ok {
			result = contractx.AgentResult{
				IsTaskComplete: true,
				ToolResult:     &contractx.ToolResult{Tool: "answer_general_question", Kind: contractx.KindInfo, Info: &contractx.InfoPayload{Answer: "ok"}},
			}
		}
	}
	if result.Agent == "" {
		result.Agent = agent
	}
	result.Timestamp = testNow
	return result
}

type fakeReservations struct {
	id    string
	err   error
	calls int
}

func (f *fakeReservations) InsertReservation(ctx context.Context, payload contractx.ReservationPayload, venueID int64, idempotencyKey string) (string, time.Time, error) {
	f.calls++
	if f.err != nil {
		return "", time.Time{}, f.err
	}
	return f.id, testNow, nil
}

type fixture struct {
	store        *statex.MemoryStore
	planner      *fakePlanner
	narrator     *fakeNarrator
	executor     *fakeExecutor
	reservations *fakeReservations
}

func newTestOrchestrator(t *testing.T, fx *fixture) *Orchestrator {
	t.Helper()

	if fx.store == nil {
		fx.store = statex.NewMemoryStore()
		t.Cleanup(fx.store.Close)
	}
	if fx.planner == nil {
		fx.planner = &fakePlanner{}
	}
	if fx.narrator == nil {
		fx.narrator = &fakeNarrator{reply: "Here is what I found."}
	}
	if fx.executor == nil {
		fx.executor = &fakeExecutor{}
	}
	if fx.reservations == nil {
		fx.reservations = &fakeReservations{id: "res-1"}
	}

	o, err := New(fx.store, fx.planner, fx.narrator, fx.executor, fx.reservations, classifierx.NewRule())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	o.now = func() time.Time { return testNow }

	seq := 0
	o.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return o
}

func planOf(steps ...contractx.PlanStep) contractx.ExecutionPlan {
	for i := range steps {
		steps[i].Step = i + 1
	}
	return contractx.ExecutionPlan{Steps: steps}
}

func completeResult(kind contractx.ResultKind, tool string) contractx.AgentResult {
	r := contractx.ToolResult{Tool: tool, Kind: kind}
	switch kind {
	case contractx.KindMenu:
		r.Menu = &contractx.MenuPayload{Items: []contractx.MenuItem{{Name: "Risotto"}}}
	case contractx.KindAvailability:
		r.Availability = &contractx.AvailabilityPayload{Available: true}
	case contractx.KindInfo:
		r.Info = &contractx.InfoPayload{Answer: "We open at noon."}
	}
	return contractx.AgentResult{IsTaskComplete: true, ToolResult: &r}
}

func TestProcessMessageInvalidInput(t *testing.T) {
	t.Parallel()

	fx := &fixture{}
	o := newTestOrchestrator(t, fx)

	resp := o.ProcessMessage(context.Background(), contractx.TurnRequest{SessionID: "s1", Message: "   "})
	if resp.Response != processFailureReply {
		t.Fatalf("response = %q", resp.Response)
	}
	if resp.Orchestrator.Error == "" {
		t.Fatal("metadata must record the failure")
	}
	if fx.planner.calls != 0 || len(fx.executor.calls) != 0 {
		t.Fatal("invalid input must not reach the dispatch loop")
	}
}

func TestProcessMessageSingleStep(t *testing.T) {
	t.Parallel()

	fx := &fixture{
		planner: &fakePlanner{plan: planOf(contractx.PlanStep{Agent: contractx.AgentMenuPricing, Subtask: "vegan options"})},
		executor: &fakeExecutor{byAgent: map[contractx.AgentName]contractx.AgentResult{
			contractx.AgentMenuPricing: completeResult(contractx.KindMenu, "get_menu"),
		}},
		narrator: &fakeNarrator{reply: "We have several vegan dishes."},
	}
	o := newTestOrchestrator(t, fx)

	resp := o.ProcessMessage(context.Background(), contractx.TurnRequest{SessionID: "s1", Message: "do you have vegan options?", VenueID: 1})
	if resp.Type != contractx.ResponseMessage || resp.Response != "We have several vegan dishes." {
		t.Fatalf("response wrong: %+v", resp)
	}
	meta := resp.Orchestrator
	if meta.Error != "" {
		t.Fatalf("unexpected error marker %q", meta.Error)
	}
	if len(meta.DelegationChain) != 1 || meta.TotalAgentsInvolved != 1 || meta.FinalAgent != contractx.AgentMenuPricing {
		t.Fatalf("chain metadata wrong: %+v", meta)
	}
	if meta.ToolResultsCount != 1 || meta.IsConsolidated {
		t.Fatalf("result metadata wrong: %+v", meta)
	}
	if got := fx.executor.calls[0].req.Subtask; got != "vegan options" {
		t.Fatalf("subtask = %q", got)
	}

	saved, err := fx.store.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("state not saved: %v", err)
	}
	if _, ok := saved.GlobalContext[contractx.AgentMenuPricing]; !ok {
		t.Fatal("tool result missing from saved global context")
	}
}

func TestProcessMessageTwoStepConsolidation(t *testing.T) {
	t.Parallel()

	fx := &fixture{
		planner: &fakePlanner{plan: planOf(
			contractx.PlanStep{Agent: contractx.AgentMenuPricing, Subtask: "wine list"},
			contractx.PlanStep{Agent: contractx.AgentTableAvailability, Subtask: "table for 2 tonight"},
		)},
		executor: &fakeExecutor{byAgent: map[contractx.AgentName]contractx.AgentResult{
			contractx.AgentMenuPricing:       completeResult(contractx.KindMenu, "get_menu"),
			contractx.AgentTableAvailability: completeResult(contractx.KindAvailability, "check_availability"),
		}},
		narrator: &fakeNarrator{reply: "Wine list attached, and yes we have a table."},
	}
	o := newTestOrchestrator(t, fx)

	resp := o.ProcessMessage(context.Background(), contractx.TurnRequest{SessionID: "s1", Message: "wine list, and a table for 2 tonight", VenueID: 1})
	meta := resp.Orchestrator
	if meta.ToolResultsCount != 2 || !meta.IsConsolidated || meta.TotalAgentsInvolved != 2 {
		t.Fatalf("metadata wrong: %+v", meta)
	}
	if meta.FinalAgent != contractx.AgentTableAvailability {
		t.Fatalf("final agent = %s", meta.FinalAgent)
	}
	if fx.narrator.calls != 1 || len(fx.narrator.lastResults) != 2 {
		t.Fatal("narrator must receive both results")
	}
	if fx.narrator.lastResults[0].Kind != contractx.KindMenu || fx.narrator.lastResults[1].Kind != contractx.KindAvailability {
		t.Fatal("results must keep execution order")
	}
}

func TestProcessMessageChainBound(t *testing.T) {
	t.Parallel()

	// Every step hands off to yet another agent; the chain bound must stop
	// the loop after three executions.
	handoff := func(next contractx.AgentName) contractx.AgentResult {
		return contractx.AgentResult{
			IsTaskComplete:    false,
			HandoffSuggestion: next,
			UnansweredQuery:   "still unanswered",
		}
	}
	fx := &fixture{
		planner: &fakePlanner{plan: planOf(contractx.PlanStep{Agent: contractx.AgentCustomerSupport, Subtask: "help"})},
		executor: &fakeExecutor{scripted: []contractx.AgentResult{
			handoff(contractx.AgentMenuPricing),
			handoff(contractx.AgentCelebration),
			handoff(contractx.AgentRestaurantInfo),
		}},
		narrator: &fakeNarrator{reply: "Sorry, I could not get a full answer."},
	}
	o := newTestOrchestrator(t, fx)

	resp := o.ProcessMessage(context.Background(), contractx.TurnRequest{SessionID: "s1", Message: "help me with everything"})
	if resp.Orchestrator.Error != "" {
		t.Fatalf("bound must end the turn cleanly, got error %q", resp.Orchestrator.Error)
	}
	if len(fx.executor.calls) != statex.MaxDelegationSteps {
		t.Fatalf("executions = %d, want %d", len(fx.executor.calls), statex.MaxDelegationSteps)
	}
	if len(resp.Orchestrator.DelegationChain) != statex.MaxDelegationSteps {
		t.Fatalf("chain length = %d", len(resp.Orchestrator.DelegationChain))
	}
	if fx.executor.calls[1].req.Subtask != "still unanswered" {
		t.Fatal("hand-off must carry the unanswered query")
	}
}

func TestProcessMessageSkipsUnregisteredAgent(t *testing.T) {
	t.Parallel()

	fx := &fixture{
		planner: &fakePlanner{plan: planOf(
			contractx.PlanStep{Agent: "GhostAgent", Subtask: "boo"},
			contractx.PlanStep{Agent: contractx.AgentMenuPricing, Subtask: "menu"},
		)},
		executor: &fakeExecutor{byAgent: map[contractx.AgentName]contractx.AgentResult{
			contractx.AgentMenuPricing: completeResult(contractx.KindMenu, "get_menu"),
		}},
	}
	o := newTestOrchestrator(t, fx)

	resp := o.ProcessMessage(context.Background(), contractx.TurnRequest{SessionID: "s1", Message: "menu please"})
	if resp.Orchestrator.Error != "" {
		t.Fatalf("unexpected error marker %q", resp.Orchestrator.Error)
	}
	if len(fx.executor.calls) != 1 || fx.executor.calls[0].agent != contractx.AgentMenuPricing {
		t.Fatalf("calls = %+v", fx.executor.calls)
	}
	if len(resp.Orchestrator.DelegationChain) != 1 {
		t.Fatalf("chain = %+v", resp.Orchestrator.DelegationChain)
	}
}

func TestProcessMessageInterruptSavesSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := &fixture{
		store: statex.NewMemoryStore(),
		planner: &fakePlanner{plan: planOf(
			contractx.PlanStep{Agent: contractx.AgentRestaurantInfo, Subtask: "owner's phone number"},
		)},
		executor: &fakeExecutor{byAgent: map[contractx.AgentName]contractx.AgentResult{
			contractx.AgentRestaurantInfo: completeResult(contractx.KindInfo, "get_restaurant_info"),
		}},
	}
	t.Cleanup(fx.store.Close)

	seed := statex.NewConversationState("s1", 1, testNow)
	seed.ActiveAgent = contractx.AgentReservation
	seed.ActiveFlow = statex.FlowBooking
	seed.FlowState = map[string]any{statex.FlowKeyBookingInProgress: true, "date": "2026-03-06"}
	seed.IsAwaitingUserResponse = true
	seed.NextAgent = contractx.AgentReservation
	if err := fx.store.Save(ctx, seed); err != nil {
		t.Fatal(err)
	}

	o := newTestOrchestrator(t, fx)
	resp := o.ProcessMessage(ctx, contractx.TurnRequest{SessionID: "s1", Message: "what's the owner's phone number?", VenueID: 1})
	if resp.Orchestrator.Error != "" {
		t.Fatalf("unexpected error marker %q", resp.Orchestrator.Error)
	}
	if fx.executor.calls[0].agent != contractx.AgentRestaurantInfo {
		t.Fatalf("new topic must be dispatched, got %+v", fx.executor.calls)
	}

	saved, err := fx.store.Load(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	snap := saved.InterruptedContext
	if snap == nil || snap.Agent != contractx.AgentReservation {
		t.Fatalf("snapshot wrong: %+v", snap)
	}
	if snap.FlowState["date"] != "2026-03-06" {
		t.Fatalf("flow state lost: %+v", snap.FlowState)
	}
	if saved.BookingInProgress() {
		t.Fatal("live flow must be cleared after the interrupt")
	}
}

func TestProcessMessageResumeRestoresFlow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := &fixture{
		store: statex.NewMemoryStore(),
		executor: &fakeExecutor{byAgent: map[contractx.AgentName]contractx.AgentResult{
			contractx.AgentReservation: {
				IsTaskComplete: true,
				ToolResult: &contractx.ToolResult{
					Tool: "ask_clarification", Kind: contractx.KindClarification,
					Clarification: &contractx.ClarificationPayload{Question: "What name should I put the booking under?"},
				},
				StateUpdates: contractx.StateUpdates{AwaitUser: true, BookingInProgress: true, ActiveFlow: statex.FlowBooking},
			},
		}},
	}
	t.Cleanup(fx.store.Close)

	seed := statex.NewConversationState("s1", 1, testNow)
	seed.InterruptedContext = &statex.InterruptedContext{
		Agent:      contractx.AgentReservation,
		ActiveFlow: statex.FlowBooking,
		FlowState:  map[string]any{statex.FlowKeyBookingInProgress: true, "date": "2026-03-06"},
		Timestamp:  testNow,
	}
	if err := fx.store.Save(ctx, seed); err != nil {
		t.Fatal(err)
	}

	o := newTestOrchestrator(t, fx)
	resp := o.ProcessMessage(ctx, contractx.TurnRequest{SessionID: "s1", Message: "yes, continue the reservation", VenueID: 1})
	if resp.Orchestrator.Error != "" {
		t.Fatalf("unexpected error marker %q", resp.Orchestrator.Error)
	}

	// The resumed flow routes via direct reply, planner untouched.
	if fx.planner.calls != 0 {
		t.Fatal("resume must bypass plan acquisition")
	}
	call := fx.executor.calls[0]
	if call.agent != contractx.AgentReservation {
		t.Fatalf("agent = %s", call.agent)
	}
	if call.req.FlowState["date"] != "2026-03-06" {
		t.Fatalf("restored flow state missing: %+v", call.req.FlowState)
	}

	saved, err := fx.store.Load(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if saved.InterruptedContext != nil {
		t.Fatal("snapshot must be consumed by the resume")
	}
}

func TestProcessMessageDirectReply(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := &fixture{
		store: statex.NewMemoryStore(),
		executor: &fakeExecutor{byAgent: map[contractx.AgentName]contractx.AgentResult{
			contractx.AgentReservation: {
				IsTaskComplete: true,
				ToolResult: &contractx.ToolResult{
					Tool: "ask_clarification", Kind: contractx.KindClarification,
					Clarification: &contractx.ClarificationPayload{Question: "And the name for the booking?"},
				},
				StateUpdates: contractx.StateUpdates{AwaitUser: true, BookingInProgress: true},
			},
		}},
	}
	t.Cleanup(fx.store.Close)

	seed := statex.NewConversationState("s1", 1, testNow)
	seed.ActiveAgent = contractx.AgentReservation
	seed.ActiveFlow = statex.FlowBooking
	seed.FlowState = map[string]any{statex.FlowKeyBookingInProgress: true, "date": "tomorrow"}
	seed.IsAwaitingUserResponse = true
	seed.NextAgent = contractx.AgentReservation
	if err := fx.store.Save(ctx, seed); err != nil {
		t.Fatal(err)
	}

	o := newTestOrchestrator(t, fx)
	resp := o.ProcessMessage(ctx, contractx.TurnRequest{SessionID: "s1", Message: "7pm", VenueID: 1})
	if resp.Orchestrator.Error != "" {
		t.Fatalf("unexpected error marker %q", resp.Orchestrator.Error)
	}
	if fx.planner.calls != 0 {
		t.Fatal("a slot answer must go straight to the awaiting agent")
	}
	call := fx.executor.calls[0]
	if call.agent != contractx.AgentReservation || call.req.Subtask != "7pm" {
		t.Fatalf("call = %+v", call)
	}
}

func TestProcessMessageReservationShortCircuit(t *testing.T) {
	t.Parallel()

	fx := &fixture{
		planner: &fakePlanner{plan: planOf(contractx.PlanStep{Agent: contractx.AgentReservation, Subtask: "finish the booking"})},
		executor: &fakeExecutor{byAgent: map[contractx.AgentName]contractx.AgentResult{
			contractx.AgentReservation: {
				IsTaskComplete: true,
				ToolResult: &contractx.ToolResult{
					Tool: "collect_reservation", Kind: contractx.KindReservation,
					Reservation: &contractx.ReservationPayload{
						Date: "2026-03-06", Time: "19:00", PartySize: 2,
						Name: "Ann Lee", Phone: "555-0102",
					},
				},
				StateUpdates: contractx.StateUpdates{ClearFlow: true},
			},
		}},
		reservations: &fakeReservations{id: "res-7"},
	}
	o := newTestOrchestrator(t, fx)

	resp := o.ProcessMessage(context.Background(), contractx.TurnRequest{SessionID: "s1", Message: "555-0102", VenueID: 1})
	if resp.Type != contractx.ResponseRedirect {
		t.Fatalf("type = %s, want redirect", resp.Type)
	}
	if resp.ReservationDetails == nil || resp.ReservationDetails.ReservationID != "res-7" {
		t.Fatalf("details = %+v", resp.ReservationDetails)
	}
	if !strings.Contains(resp.Response, "res-7") {
		t.Fatalf("reply = %q", resp.Response)
	}
	if fx.narrator.calls != 0 {
		t.Fatal("a committed booking must bypass narration")
	}
	if fx.reservations.calls != 1 {
		t.Fatalf("insert calls = %d", fx.reservations.calls)
	}
}

func TestProcessMessageCommitFailureStillResponds(t *testing.T) {
	t.Parallel()

	fx := &fixture{
		planner: &fakePlanner{plan: planOf(contractx.PlanStep{Agent: contractx.AgentReservation, Subtask: "finish"})},
		executor: &fakeExecutor{byAgent: map[contractx.AgentName]contractx.AgentResult{
			contractx.AgentReservation: {
				IsTaskComplete: true,
				ToolResult: &contractx.ToolResult{
					Tool: "collect_reservation", Kind: contractx.KindReservation,
					Reservation: &contractx.ReservationPayload{
						Date: "2026-03-06", Time: "19:00", PartySize: 2,
						Name: "Ann Lee", Phone: "555-0102",
					},
				},
			},
		}},
		reservations: &fakeReservations{err: errors.New("connection refused")},
	}
	o := newTestOrchestrator(t, fx)

	resp := o.ProcessMessage(context.Background(), contractx.TurnRequest{SessionID: "s1", Message: "555-0102", VenueID: 1})
	if resp.Type != contractx.ResponseRedirect {
		t.Fatalf("type = %s", resp.Type)
	}
	if resp.Orchestrator.Error != "" {
		t.Fatal("a commit failure must not fail the turn")
	}
	if resp.ReservationDetails == nil || resp.ReservationDetails.InsertError == "" {
		t.Fatalf("details = %+v", resp.ReservationDetails)
	}
	if !strings.Contains(resp.Response, "couldn't confirm") {
		t.Fatalf("reply = %q", resp.Response)
	}
}

func TestProcessMessagePlannerFallback(t *testing.T) {
	t.Parallel()

	fx := &fixture{
		planner: &fakePlanner{err: errors.New("upstream timeout")},
		executor: &fakeExecutor{byAgent: map[contractx.AgentName]contractx.AgentResult{
			contractx.AgentReservation: {
				IsTaskComplete: true,
				ToolResult: &contractx.ToolResult{
					Tool: "ask_clarification", Kind: contractx.KindClarification,
					Clarification: &contractx.ClarificationPayload{Question: "What date would you like?"},
				},
				StateUpdates: contractx.StateUpdates{AwaitUser: true, BookingInProgress: true, ActiveFlow: statex.FlowBooking},
			},
		}},
	}
	o := newTestOrchestrator(t, fx)

	resp := o.ProcessMessage(context.Background(), contractx.TurnRequest{SessionID: "s1", Message: "I want to book a table", VenueID: 1})
	if resp.Orchestrator.Error != "" {
		t.Fatalf("heuristic fallback must absorb the planner error, got %q", resp.Orchestrator.Error)
	}
	if fx.planner.calls != 1 {
		t.Fatalf("planner calls = %d", fx.planner.calls)
	}
	call := fx.executor.calls[0]
	if call.agent != contractx.AgentReservation || call.req.Subtask != "I want to book a table" {
		t.Fatalf("heuristic step wrong: %+v", call)
	}
}

func TestProcessMessageExecutorPanicIsAbsorbed(t *testing.T) {
	t.Parallel()

	fx := &fixture{
		planner:  &fakePlanner{plan: planOf(contractx.PlanStep{Agent: contractx.AgentMenuPricing, Subtask: "menu"})},
		executor: &fakeExecutor{},
	}
	o := newTestOrchestrator(t, fx)
	o.graphRunner = nil // force a panic inside the turn

	resp := o.ProcessMessage(context.Background(), contractx.TurnRequest{SessionID: "s1", Message: "menu"})
	if resp.Response != processFailureReply || resp.Orchestrator.Error == "" {
		t.Fatalf("panic must collapse into the failure response: %+v", resp)
	}
}
