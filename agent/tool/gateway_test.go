package tool

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/casavia/concierge/agent/contract"
)

type fakeGateway struct {
	result contractx.ToolResult
	err    error
	calls  int
}

func (f *fakeGateway) ExecuteTool(ctx context.Context, tool string, params map[string]any, venueID int64) (contractx.ToolResult, error) {
	f.calls++
	if f.err != nil {
		return contractx.ToolResult{}, f.err
	}
	return f.result, nil
}

func TestExecInvalidParamsBecomeFailureResult(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{}
	result := Exec(context.Background(), gateway, ToolCheckAvailability, map[string]any{"date": "2026-03-06"}, 1)

	if result.Kind != contractx.KindFailure {
		t.Fatalf("kind = %s, want failure", result.Kind)
	}
	if result.Err == "" {
		t.Fatal("failure result must carry a reason")
	}
	if gateway.calls != 0 {
		t.Fatal("invalid parameters must not reach the gateway")
	}
}

func TestExecGatewayErrorBecomesFailureResult(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{err: errors.New("downstream unavailable")}
	result := Exec(context.Background(), gateway, ToolGetMenu, map[string]any{}, 1)

	if result.Kind != contractx.KindFailure {
		t.Fatalf("kind = %s, want failure", result.Kind)
	}
	if !strings.Contains(result.Err, "downstream unavailable") {
		t.Fatalf("err = %q", result.Err)
	}
}

func TestExecAskClarificationRunsInProcess(t *testing.T) {
	t.Parallel()

	result := Exec(context.Background(), nil, ToolAskClarification, map[string]any{"question": "For which date?"}, 1)
	if result.Kind != contractx.KindClarification {
		t.Fatalf("kind = %s", result.Kind)
	}
	if result.Clarification.Question != "For which date?" {
		t.Fatalf("question = %q", result.Clarification.Question)
	}
}

func TestExecCollectReservationIncomplete(t *testing.T) {
	t.Parallel()

	result := Exec(context.Background(), nil, ToolCollectReservation, map[string]any{
		"date": "2026-03-06", "time": "19:00",
	}, 1)

	if result.Kind != contractx.KindClarification {
		t.Fatalf("kind = %s, want clarification", result.Kind)
	}
	// party_size is the first missing field in the fixed ask order.
	if !strings.Contains(result.Clarification.Question, "guests") {
		t.Fatalf("question = %q", result.Clarification.Question)
	}
	if result.Reservation == nil || result.Reservation.Date != "2026-03-06" {
		t.Fatalf("partial payload not carried: %+v", result.Reservation)
	}
}

func TestExecCollectReservationComplete(t *testing.T) {
	t.Parallel()

	result := Exec(context.Background(), nil, ToolCollectReservation, map[string]any{
		"date": "2026-03-06", "time": "19:00", "party_size": 2,
		"name": "Ann Lee", "phone": "555-0102",
	}, 1)

	if result.Kind != contractx.KindReservation {
		t.Fatalf("kind = %s, want reservation", result.Kind)
	}
	if !result.Reservation.Complete() {
		t.Fatalf("payload incomplete: %+v", result.Reservation)
	}
}

func TestExecUntaggedGatewayResult(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{result: contractx.ToolResult{}}
	result := Exec(context.Background(), gateway, ToolGetMenu, map[string]any{}, 1)
	if result.Kind != contractx.KindFailure {
		t.Fatalf("kind = %s, want failure for untagged result", result.Kind)
	}
}

func TestStaticGateway(t *testing.T) {
	t.Parallel()

	g := NewStaticGateway()
	ctx := context.Background()

	avail, err := g.ExecuteTool(ctx, ToolCheckAvailability, map[string]any{
		"date": "2026-03-06", "time": "19:00", "party_size": 10,
	}, 1)
	if err != nil {
		t.Fatalf("ExecuteTool() error = %v", err)
	}
	if avail.Availability.Available {
		t.Fatal("party of 10 must not be available")
	}

	menu, err := g.ExecuteTool(ctx, ToolGetMenu, map[string]any{}, 1)
	if err != nil {
		t.Fatalf("ExecuteTool() error = %v", err)
	}
	if menu.Kind != contractx.KindMenu || len(menu.Menu.Items) == 0 {
		t.Fatalf("unexpected menu result: %+v", menu)
	}

	if _, err := g.ExecuteTool(ctx, "unknown_tool", nil, 1); err == nil {
		t.Fatal("unknown tool must error")
	}
}
