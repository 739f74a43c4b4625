package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/casavia/concierge/agent/contract"
)

// Exec validates parameters against the tool schema and runs the tool. Flow
// tools (clarification, reservation collection) execute in-process; domain
// tools go through the injected gateway. Every failure mode comes back as a
// failure-variant ToolResult so the turn continues.
func Exec(ctx context.Context, gateway contractx.ToolGateway, tool string, params map[string]any, venueID int64) contractx.ToolResult {
	if err := Validate(tool, params); err != nil {
		log.Debug().Str("tool", tool).Err(err).Msg("tool parameters rejected")
		return contractx.FailureResult(tool, err.Error())
	}

	switch tool {
	case ToolAskClarification:
		return contractx.ClarificationResult(tool, StringParam(params, "question"))
	case ToolCollectReservation:
		return executeCollectReservation(params)
	}

	if gateway == nil {
		return contractx.FailureResult(tool, "no tool gateway configured")
	}

	result, err := gateway.ExecuteTool(ctx, tool, params, venueID)
	if err != nil {
		log.Warn().Str("tool", tool).Err(err).Msg("tool gateway failed")
		return contractx.FailureResult(tool, err.Error())
	}
	if result.Tool == "" {
		result.Tool = tool
	}
	if result.Kind == "" {
		return contractx.FailureResult(tool, "gateway returned an untagged result")
	}
	return result
}

// executeCollectReservation folds the provided slot values into a booking
// payload. Complete payloads become a reservation result; otherwise the next
// missing slot is asked for.
func executeCollectReservation(params map[string]any) contractx.ToolResult {
	payload := &contractx.ReservationPayload{
		Date:            StringParam(params, "date"),
		Time:            StringParam(params, "time"),
		Name:            StringParam(params, "name"),
		Phone:           StringParam(params, "phone"),
		SpecialRequests: StringParam(params, "special_requests"),
	}
	if size, ok := NumberParam(params, "party_size"); ok {
		payload.PartySize = size
	}

	if payload.Complete() {
		return contractx.ToolResult{
			Tool:        ToolCollectReservation,
			Kind:        contractx.KindReservation,
			Reservation: payload,
		}
	}

	missing := payload.MissingFields()
	result := contractx.ClarificationResult(ToolCollectReservation, slotQuestion(missing[0]))
	result.Reservation = payload
	return result
}

func slotQuestion(slot string) string {
	switch slot {
	case "date":
		return "What date would you like to book?"
	case "time":
		return "What time should I book the table for?"
	case "party_size":
		return "How many guests will be joining?"
	case "name":
		return "What name should the reservation be under?"
	case "phone":
		return "What phone number can we reach you on?"
	default:
		return fmt.Sprintf("Could you tell me the %s for your booking?", strings.ReplaceAll(slot, "_", " "))
	}
}
