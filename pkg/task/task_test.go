package task

import (
	"context"
	"strings"
	"testing"
)

func TestRunRecoversPanic(t *testing.T) {
	panicky := Func(func(ctx context.Context, input any) Result {
		panic("broken collaborator")
	})

	result := Run(context.Background(), panicky, nil)
	if !result.Failed() {
		t.Fatal("expected failed result from panicking task")
	}
	if !strings.Contains(result.Reason(), "task panic") {
		t.Errorf("unexpected reason: %q", result.Reason())
	}
}

func TestRunChecksContextFirst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	result := Run(ctx, Func(func(ctx context.Context, input any) Result {
		called = true
		return Ok("unreachable")
	}), nil)

	if called {
		t.Error("task executed despite cancelled context")
	}
	if !result.Failed() {
		t.Error("expected failed result for cancelled context")
	}
}

func TestResultAccessors(t *testing.T) {
	ok := Ok("payload")
	if ok.Failed() || ok.Payload() != "payload" || ok.Reason() != "" {
		t.Errorf("unexpected ok result: %+v", ok)
	}

	failed := Fail("reason")
	if !failed.Failed() || failed.Reason() != "reason" {
		t.Errorf("unexpected failed result: %+v", failed)
	}
	if failed.Payload() != nil {
		t.Errorf("failed result should have nil payload, got %v", failed.Payload())
	}
}
