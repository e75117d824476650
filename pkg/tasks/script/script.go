// Package script adapts a user-supplied JavaScript snippet into a pipeline
// task. Operators use it to plug bespoke collaborators (custom searchers,
// sinks, classifiers) into the workflow without recompiling the service.
//
// The snippet must define `function execute(input)`; its return value
// becomes the task payload and a thrown error becomes a Failed result, so a
// scripted task honors the same boundary contract as a native one.
package script

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/perspectivelab/perspective/pkg/task"
)

// defaultTimeout bounds a single script execution.
const defaultTimeout = 10 * time.Second

// entryFunction is the function name the snippet must define.
const entryFunction = "execute"

// nodeGlobals are Node.js globals removed from the runtime; scripted tasks
// get plain ECMAScript only.
var nodeGlobals = []string{
	"require", "module", "exports", "process", "global",
	"__dirname", "__filename", "Buffer", "setImmediate", "clearImmediate",
}

// Task executes a JavaScript snippet per invocation. Each execution runs in
// a fresh runtime, so scripts cannot leak state between invocations and the
// task is safe for concurrent use.
type Task struct {
	source  string
	timeout time.Duration
}

// Option customizes a scripted task.
type Option func(*Task)

// WithTimeout overrides the per-execution timeout.
func WithTimeout(d time.Duration) Option {
	return func(t *Task) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// New compiles a scripted task from source. The source is validated eagerly
// so a malformed snippet fails at wiring time rather than mid-run.
func New(source string, opts ...Option) (*Task, error) {
	if source == "" {
		return nil, errors.New("script source cannot be empty")
	}

	t := &Task{source: source, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(t)
	}

	vm, err := t.newRuntime()
	if err != nil {
		return nil, err
	}
	if _, ok := goja.AssertFunction(vm.Get(entryFunction)); !ok {
		return nil, fmt.Errorf("script must define function %s(input)", entryFunction)
	}
	return t, nil
}

// Execute implements task.Task.
func (t *Task) Execute(ctx context.Context, input any) task.Result {
	vm, err := t.newRuntime()
	if err != nil {
		return task.Fail(err.Error())
	}

	fn, ok := goja.AssertFunction(vm.Get(entryFunction))
	if !ok {
		return task.Fail(fmt.Sprintf("script does not define function %s(input)", entryFunction))
	}

	execCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-execCtx.Done():
			vm.Interrupt(execCtx.Err())
		case <-done:
		}
	}()
	defer close(done)

	value, err := fn(goja.Undefined(), vm.ToValue(input))
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return task.Fail(fmt.Sprintf("script interrupted: %v", interrupted.Value()))
		}
		var jsErr *goja.Exception
		if errors.As(err, &jsErr) {
			return task.Fail(fmt.Sprintf("script error: %s", jsErr.Value().String()))
		}
		return task.Fail(fmt.Sprintf("script execution failed: %v", err))
	}

	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return task.Fail("script returned no value")
	}
	return task.Ok(value.Export())
}

func (t *Task) newRuntime() (*goja.Runtime, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	for _, name := range nodeGlobals {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return nil, fmt.Errorf("failed to clear global %s: %w", name, err)
		}
	}

	if _, err := vm.RunString(t.source); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return vm, nil
}
