package orchestratornode

import (
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/casavia/concierge/agent/contract"
)

// ResumeOrInterrupt runs the deterministic flow-manager rules before dispatch.
//
// Resume wins over everything: if a snapshot exists and the message matches a
// resume phrase or a bare affirmative, the snapshot is restored and consumed.
// Otherwise, a conclusive intent for a different agent while a booking is
// mid-collection snapshots the flow and resets the session for the new topic.
// The catch-all support intent is not conclusive: slot answers like "7pm" or
// "John" classify there, and those must reach the awaiting agent untouched.
func ResumeOrInterrupt(in *GraphState, rules contractx.Classifier) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	sess := in.Session

	if sess.InterruptedContext != nil && rules.IsResumeRequest(in.Message) {
		agent, err := sess.Resume(in.Now)
		if err != nil {
			return nil, err
		}
		in.Resumed = true
		log.Debug().
			Str("session_id", in.SessionID).
			Str("agent", string(agent)).
			Msg("resumed interrupted flow")
		return in, nil
	}

	if sess.BookingInProgress() && sess.ActiveAgent != "" {
		intent := rules.Intent(in.Message)
		if intent != sess.ActiveAgent && intent != contractx.AgentCustomerSupport {
			sess.Interrupt(in.Message, in.Now)
			in.Interrupted = true
			log.Debug().
				Str("session_id", in.SessionID).
				Str("interrupted_agent", string(sess.InterruptedContext.Agent)).
				Str("new_intent", string(intent)).
				Msg("booking flow interrupted by topic switch")
		}
	}

	return in, nil
}
