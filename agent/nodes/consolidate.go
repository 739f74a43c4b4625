package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/casavia/concierge/agent/contract"
	narratorx "github.com/casavia/concierge/agent/narrator"
)

// Consolidate produces the user-facing reply. A committed booking bypasses
// narration entirely: the redirect reply is built from the reservation record.
func Consolidate(ctx context.Context, in *GraphState, narrator contractx.Narrator) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	if in.ShortCircuit {
		in.Reply = reservationReply(in.Reservation)
		return in, nil
	}

	reply, err := narrator.Consolidate(ctx, in.Message, in.Results, in.History)
	if err != nil || reply == "" {
		reply = narratorx.TemplateMerge(in.Results)
	}
	in.Reply = reply
	in.IsConsolidated = len(in.Results) > 1
	return in, nil
}

func reservationReply(details *contractx.ReservationDetails) string {
	if details == nil || details.Payload == nil {
		return "Your reservation is being processed."
	}
	p := details.Payload
	if details.InsertError != "" {
		return fmt.Sprintf(
			"I have all your reservation details for %s at %s, party of %d under %s, but I couldn't confirm it just now. Please try again in a moment.",
			p.Date, p.Time, p.PartySize, p.Name,
		)
	}
	return fmt.Sprintf(
		"Your table is booked! %s at %s for %d, under %s. Your reservation reference is %s.",
		p.Date, p.Time, p.PartySize, p.Name, details.ReservationID,
	)
}
