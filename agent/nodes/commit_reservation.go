package orchestratornode

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/casavia/concierge/agent/contract"
)

// CommitReservation persists the turn's finished booking, if any. At most one
// commit per turn. A persistence failure is captured as InsertError on the
// response; it never fails the turn.
func CommitReservation(
	ctx context.Context,
	in *GraphState,
	reservations contractx.ReservationStore,
	newKey func() string,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if !in.ShortCircuit {
		return in, nil
	}

	payload := completedReservation(in.Results)
	if payload == nil {
		return nil, fmt.Errorf("%w: short-circuit without a complete reservation", contractx.ErrValidation)
	}

	details := &contractx.ReservationDetails{Payload: payload}
	in.Reservation = details

	if reservations == nil {
		details.InsertError = "reservation persistence is not configured"
		return in, nil
	}

	id, createdAt, err := reservations.InsertReservation(ctx, *payload, in.VenueID, newKey())
	if err != nil {
		details.InsertError = fmt.Errorf("%w: %v", contractx.ErrPersistence, err).Error()
		log.Warn().
			Str("session_id", in.SessionID).
			Err(err).
			Msg("reservation commit failed")
		return in, nil
	}

	details.ReservationID = id
	details.CreatedAt = createdAt
	payload.ReservationID = id
	payload.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	return in, nil
}

func completedReservation(results []contractx.ToolResult) *contractx.ReservationPayload {
	for i := range results {
		r := results[i]
		if r.Kind == contractx.KindReservation && r.Reservation.Complete() {
			return r.Reservation
		}
	}
	return nil
}
