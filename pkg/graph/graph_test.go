package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/perspectivelab/perspective/pkg/state"
)

func succeed(id NodeID) NodeFunc {
	return func(ctx context.Context, s state.State) state.Update {
		return state.Update{
			Message: state.Ptr(string(id)),
			Status:  state.Ptr(state.StatusSuccess),
		}
	}
}

func toEnd(state.State) NodeID { return End }

func TestRunLinearTraversal(t *testing.T) {
	e := New(nil).
		AddNode("first", succeed("first")).
		AddNode("second", succeed("second")).
		SetEntry("first").
		Route("first", func(state.State) NodeID { return "second" }).
		Route("second", toEnd)

	final, err := e.Run(context.Background(), state.State{CleanedText: "in"})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if final.Message != "second" {
		t.Errorf("expected terminal node to run last, got %q", final.Message)
	}
	if final.CleanedText != "in" {
		t.Errorf("initial state lost: %q", final.CleanedText)
	}
}

func TestRunConditionalRouting(t *testing.T) {
	flag := func(ctx context.Context, s state.State) state.Update {
		return state.ErrorUpdate("first", "went wrong")
	}

	e := New(nil).
		AddNode("first", flag).
		AddNode("recover", succeed("recover")).
		AddNode("normal", succeed("normal")).
		SetEntry("first").
		Route("first", func(s state.State) NodeID {
			if s.IsError() {
				return "recover"
			}
			return "normal"
		}).
		Route("recover", toEnd).
		Route("normal", toEnd)

	final, err := e.Run(context.Background(), state.State{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if final.Message != "recover" {
		t.Errorf("error state should route to recover, got %q", final.Message)
	}
}

func TestRunNoEntry(t *testing.T) {
	e := New(nil).AddNode("only", succeed("only")).Route("only", toEnd)
	if _, err := e.Run(context.Background(), state.State{}); !errors.Is(err, ErrNoEntry) {
		t.Fatalf("expected ErrNoEntry, got %v", err)
	}
}

func TestRunUnknownNode(t *testing.T) {
	e := New(nil).
		AddNode("first", succeed("first")).
		SetEntry("first").
		Route("first", func(state.State) NodeID { return "missing" })

	if _, err := e.Run(context.Background(), state.State{}); !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("expected ErrUnknownNode, got %v", err)
	}
}

func TestRunMissingRoute(t *testing.T) {
	e := New(nil).AddNode("first", succeed("first")).SetEntry("first")
	if _, err := e.Run(context.Background(), state.State{}); !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
}

func TestRunMaxStepsGuard(t *testing.T) {
	e := New(nil).
		AddNode("loop", succeed("loop")).
		SetEntry("loop").
		Route("loop", func(state.State) NodeID { return "loop" })

	if _, err := e.Run(context.Background(), state.State{}); !errors.Is(err, ErrMaxSteps) {
		t.Fatalf("expected ErrMaxSteps, got %v", err)
	}
}

func TestRunPanicBecomesErrorState(t *testing.T) {
	panicky := func(ctx context.Context, s state.State) state.Update {
		panic("node exploded")
	}

	e := New(nil).
		AddNode("boom", panicky).
		AddNode("handler", succeed("handler")).
		SetEntry("boom").
		Route("boom", func(s state.State) NodeID {
			if s.IsError() {
				return "handler"
			}
			return End
		}).
		Route("handler", toEnd)

	final, err := e.Run(context.Background(), state.State{})
	if err != nil {
		t.Fatalf("panic must not surface as an engine error, got %v", err)
	}
	if final.Message != "handler" {
		t.Errorf("panic should route through the error path, got %q", final.Message)
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(nil).
		AddNode("first", succeed("first")).
		SetEntry("first").
		Route("first", toEnd)

	if _, err := e.Run(ctx, state.State{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunDoesNotMutateInitialState(t *testing.T) {
	initial := state.State{Claims: []string{"claim"}}

	mutator := func(ctx context.Context, s state.State) state.Update {
		s.Claims[0] = "attempted mutation"
		return state.Update{Claims: state.Ptr([]string{"new"})}
	}

	e := New(nil).AddNode("m", mutator).SetEntry("m").Route("m", toEnd)
	if _, err := e.Run(context.Background(), initial); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if initial.Claims[0] != "claim" {
		t.Errorf("initial state mutated through node snapshot: %v", initial.Claims)
	}
}
