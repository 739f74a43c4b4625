package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/casavia/concierge/agent/contract"
	statex "github.com/casavia/concierge/agent/state"
)

// LoadOrCreateState attaches the session record, creating the default on first
// use, and clears the previous turn's delegation chain.
func LoadOrCreateState(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	st, err := store.Load(ctx, in.SessionID)
	if err != nil {
		if !errors.Is(err, statex.ErrStateNotFound) {
			return nil, err
		}
		st = statex.NewConversationState(in.SessionID, in.VenueID, in.Now)
	}
	st.EnsureMaps()
	st.BeginTurn()

	in.Session = st
	return in, nil
}
