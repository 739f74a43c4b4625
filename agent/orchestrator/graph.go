package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/casavia/concierge/agent/contract"
	nodex "github.com/casavia/concierge/agent/nodes"
)

func (o *Orchestrator) compileProcessMessageGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, contractx.TurnResponse], error) {
	graph := compose.NewGraph[nodex.GraphInput, contractx.TurnResponse]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now, o.newID)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_state",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadOrCreateState(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_state: %w", err)
	}

	if err := graph.AddLambdaNode("resume_or_interrupt",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ResumeOrInterrupt(in, o.rules)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node resume_or_interrupt: %w", err)
	}

	if err := graph.AddLambdaNode("dispatch",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			d := &dispatcher{executor: o.executor, planner: o.planner, rules: o.rules}
			if err := d.run(ctx, in); err != nil {
				return nil, err
			}
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node dispatch: %w", err)
	}

	if err := graph.AddLambdaNode("commit_reservation",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.CommitReservation(ctx, in, o.reservations, o.newID)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node commit_reservation: %w", err)
	}

	if err := graph.AddLambdaNode("consolidate",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Consolidate(ctx, in, o.narrator)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node consolidate: %w", err)
	}

	if err := graph.AddLambdaNode("save_state",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ValidateAndSaveState(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node save_state: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_response",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (contractx.TurnResponse, error) {
			return nodex.FinalizeResponse(in, o.rules.RulesVersion())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_response: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_state"},
		{"load_state", "resume_or_interrupt"},
		{"resume_or_interrupt", "dispatch"},
		{"dispatch", "commit_reservation"},
		{"commit_reservation", "consolidate"},
		{"consolidate", "save_state"},
		{"save_state", "finalize_response"},
		{"finalize_response", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.process_message"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
