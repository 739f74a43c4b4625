package orchestrator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/casavia/concierge/agent/contract"
	nodex "github.com/casavia/concierge/agent/nodes"
	registryx "github.com/casavia/concierge/agent/registry"
	statex "github.com/casavia/concierge/agent/state"
)

// DispatchState names one state of the per-turn dispatch machine.
type DispatchState string

const (
	StateRoute          DispatchState = "route"
	StateDirectReply    DispatchState = "direct_reply"
	StateAcquirePlan    DispatchState = "acquire_plan"
	StateExecuteStep    DispatchState = "execute_step"
	StateResolveHandoff DispatchState = "resolve_handoff"
	StateShortCircuit   DispatchState = "short_circuit"
	StateDone           DispatchState = "done"
)

// dispatchTransitions is the machine's complete transition table. Every hop
// the loop takes is checked against it; an off-table hop is a programming
// error and aborts the turn into the top-level guard.
var dispatchTransitions = map[DispatchState][]DispatchState{
	StateRoute:          {StateDirectReply, StateAcquirePlan},
	StateDirectReply:    {StateExecuteStep},
	StateAcquirePlan:    {StateExecuteStep, StateDone},
	StateExecuteStep:    {StateExecuteStep, StateResolveHandoff, StateShortCircuit, StateDone},
	StateResolveHandoff: {StateExecuteStep, StateDone},
	StateShortCircuit:   {StateDone},
	StateDone:           nil,
}

func transitionAllowed(from, to DispatchState) bool {
	for _, next := range dispatchTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type pendingExec struct {
	agent   contractx.AgentName
	subtask string
}

// dispatcher runs the bounded delegation loop for one turn. It owns the
// pending-execution queue; the session's delegation chain enforces the bound.
type dispatcher struct {
	executor contractx.AgentExecutor
	planner  contractx.Planner
	rules    contractx.Classifier

	queue      []pendingExec
	lastResult contractx.AgentResult
}

func (d *dispatcher) run(ctx context.Context, in *nodex.GraphState) error {
	state := StateRoute
	for state != StateDone {
		next, err := d.step(ctx, in, state)
		if err != nil {
			return err
		}
		if !transitionAllowed(state, next) {
			return fmt.Errorf("%w: dispatch transition %s -> %s", contractx.ErrValidation, state, next)
		}
		state = next
	}
	return nil
}

func (d *dispatcher) step(ctx context.Context, in *nodex.GraphState, state DispatchState) (DispatchState, error) {
	switch state {
	case StateRoute:
		return d.route(in), nil
	case StateDirectReply:
		return d.directReply(in), nil
	case StateAcquirePlan:
		return d.acquirePlan(ctx, in), nil
	case StateExecuteStep:
		return d.executeStep(ctx, in), nil
	case StateResolveHandoff:
		return d.resolveHandoff(in), nil
	case StateShortCircuit:
		in.ShortCircuit = true
		return StateDone, nil
	default:
		return StateDone, fmt.Errorf("%w: unknown dispatch state %q", contractx.ErrValidation, state)
	}
}

func (d *dispatcher) route(in *nodex.GraphState) DispatchState {
	sess := in.Session
	if sess.IsAwaitingUserResponse && sess.NextAgent != "" {
		return StateDirectReply
	}
	return StateAcquirePlan
}

// directReply routes the message straight to the awaiting agent. The awaiting
// flags are cleared before execution so a failing agent cannot trap the
// session in the direct-reply path.
func (d *dispatcher) directReply(in *nodex.GraphState) DispatchState {
	sess := in.Session
	agent := sess.NextAgent
	sess.NextAgent = ""
	sess.IsAwaitingUserResponse = false

	d.queue = append(d.queue, pendingExec{agent: agent, subtask: in.Message})
	return StateExecuteStep
}

func (d *dispatcher) acquirePlan(ctx context.Context, in *nodex.GraphState) DispatchState {
	plan, err := d.planner.GetPlan(ctx, in.Message, in.History, in.VenueID)
	if err != nil || len(plan.Steps) == 0 {
		if err != nil {
			log.Debug().Err(err).Str("session_id", in.SessionID).Msg("planner failed, using heuristic step")
		}
		plan = contractx.ExecutionPlan{Steps: []contractx.PlanStep{{
			Step:    1,
			Agent:   d.rules.Intent(in.Message),
			Subtask: in.Message,
		}}}
	}

	for _, step := range plan.Steps {
		d.queue = append(d.queue, pendingExec{agent: step.Agent, subtask: step.Subtask})
	}
	return StateExecuteStep
}

func (d *dispatcher) executeStep(ctx context.Context, in *nodex.GraphState) DispatchState {
	sess := in.Session
	if len(d.queue) == 0 {
		return StateDone
	}
	if sess.ChainExhausted() {
		log.Warn().
			Str("session_id", in.SessionID).
			Int("dropped", len(d.queue)).
			Msg("delegation chain bound reached, dropping remaining steps")
		d.queue = nil
		return StateDone
	}

	pending := d.queue[0]
	d.queue = d.queue[1:]

	if !registryx.IsRegistered(pending.agent) {
		log.Warn().
			Str("session_id", in.SessionID).
			Str("agent", string(pending.agent)).
			Msg("skipping step for unregistered agent")
		return StateExecuteStep
	}

	result := d.executor.Execute(ctx, pending.agent, contractx.AgentRequest{
		Subtask:       pending.subtask,
		History:       in.History,
		VenueID:       in.VenueID,
		GlobalContext: sess.GlobalContext,
		FlowState:     sess.FlowState,
	})
	d.lastResult = result

	step := statex.DelegationStep{
		Agent:     pending.agent,
		Subtask:   pending.subtask,
		Result:    &result,
		Timestamp: result.Timestamp,
	}
	if err := sess.AppendDelegation(step); err != nil {
		d.queue = nil
		return StateDone
	}

	if result.ToolResult != nil {
		sess.SetGlobalContext(pending.agent, *result.ToolResult)
		in.Results = append(in.Results, *result.ToolResult)
	}
	sess.ApplyUpdates(pending.agent, result.StateUpdates, in.Now)
	in.FinalAgent = pending.agent

	if r := result.ToolResult; r != nil && r.Kind == contractx.KindReservation && r.Reservation.Complete() {
		return StateShortCircuit
	}
	if !result.IsTaskComplete && result.HandoffSuggestion != "" {
		return StateResolveHandoff
	}
	return StateExecuteStep
}

// resolveHandoff validates the suggested target and prepends it to the queue
// so the unanswered query runs before any remaining plan steps.
func (d *dispatcher) resolveHandoff(in *nodex.GraphState) DispatchState {
	sess := in.Session
	target := d.lastResult.HandoffSuggestion

	if !registryx.IsRegistered(target) {
		log.Warn().
			Str("session_id", in.SessionID).
			Str("agent", string(target)).
			Msg("hand-off to unregistered agent dropped")
		if len(d.queue) > 0 {
			return StateExecuteStep
		}
		return StateDone
	}
	if target == d.lastResult.Agent || sess.ChainExhausted() {
		if len(d.queue) > 0 && !sess.ChainExhausted() {
			return StateExecuteStep
		}
		return StateDone
	}

	subtask := d.lastResult.UnansweredQuery
	if subtask == "" {
		subtask = in.Message
	}
	d.queue = append([]pendingExec{{agent: target, subtask: subtask}}, d.queue...)
	return StateExecuteStep
}
