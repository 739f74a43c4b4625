package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/casavia/concierge/agent/contract"
)

// FinalizeResponse assembles the caller-visible turn response and metadata.
func FinalizeResponse(in *GraphState, rulesVersion string) (contractx.TurnResponse, error) {
	if in == nil || in.Session == nil {
		return contractx.TurnResponse{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Reply)
	if reply == "" {
		return contractx.TurnResponse{}, fmt.Errorf("%w: empty reply after consolidation", contractx.ErrValidation)
	}

	responseType := contractx.ResponseMessage
	if in.ShortCircuit {
		responseType = contractx.ResponseRedirect
	}

	chain := make([]contractx.DelegationRecord, 0, len(in.Session.DelegationChain))
	involved := make(map[contractx.AgentName]struct{}, len(in.Session.DelegationChain))
	for _, step := range in.Session.DelegationChain {
		chain = append(chain, contractx.DelegationRecord{
			Agent:     step.Agent,
			Subtask:   step.Subtask,
			StepIndex: step.StepIndex,
			Timestamp: step.Timestamp,
		})
		involved[step.Agent] = struct{}{}
	}

	return contractx.TurnResponse{
		Response:           reply,
		Type:               responseType,
		ReservationDetails: in.Reservation,
		Orchestrator: contractx.TurnMetadata{
			TurnID:              in.TurnID,
			DelegationChain:     chain,
			TotalAgentsInvolved: len(involved),
			FinalAgent:          in.FinalAgent,
			GlobalContext:       in.Session.GlobalContext,
			IsConsolidated:      in.IsConsolidated,
			ToolResultsCount:    len(in.Results),
			RulesVersion:        rulesVersion,
			Timestamp:           in.Now,
		},
	}, nil
}
