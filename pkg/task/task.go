// Package task defines the uniform contract between the workflow engine and
// the external units of work it invokes: classifiers, extractors, search
// providers, generators, judges and sinks. The engine is agnostic to what a
// task does; it only observes the Ok/Failed result.
package task

import "context"

// Task is a single unit of external work. Implementations must translate any
// internal fault into a Failed result; Execute never panics through to the
// caller when the task is run via Run.
type Task interface {
	Execute(ctx context.Context, input any) Result
}

// Result is the tagged outcome of a task: either Ok with a payload or Failed
// with a reason.
type Result struct {
	payload any
	reason  string
	failed  bool
}

// Ok returns a successful result carrying the task's payload.
func Ok(payload any) Result {
	return Result{payload: payload}
}

// Fail returns a failed result carrying a human-readable reason.
func Fail(reason string) Result {
	return Result{failed: true, reason: reason}
}

// Failed reports whether the task failed.
func (r Result) Failed() bool {
	return r.failed
}

// Payload returns the payload of a successful result, nil when failed.
func (r Result) Payload() any {
	if r.failed {
		return nil
	}
	return r.payload
}

// Reason returns the failure reason, empty when the result is Ok.
func (r Result) Reason() string {
	return r.reason
}

// Func adapts an ordinary function to the Task interface.
type Func func(ctx context.Context, input any) Result

// Execute implements Task.
func (f Func) Execute(ctx context.Context, input any) Result {
	return f(ctx, input)
}

// Run executes t, recovering any panic into a Failed result so faults cannot
// escape the task boundary.
func Run(ctx context.Context, t Task, input any) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Fail(panicReason(r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return Fail(err.Error())
	}
	return t.Execute(ctx, input)
}

func panicReason(r any) string {
	switch v := r.(type) {
	case error:
		return "task panic: " + v.Error()
	case string:
		return "task panic: " + v
	default:
		return "task panic"
	}
}
