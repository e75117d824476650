package script

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesScript(t *testing.T) {
	_, err := New("")
	assert.Error(t, err, "empty source must be rejected")

	_, err = New("this is not javascript {{{")
	assert.Error(t, err, "invalid source must be rejected")

	_, err = New("var x = 1;")
	assert.Error(t, err, "source without execute() must be rejected")

	_, err = New("function execute(input) { return input; }")
	assert.NoError(t, err)
}

func TestExecuteReturnsValue(t *testing.T) {
	st, err := New(`function execute(input) {
		return { echoed: input, doubled: input.length * 2 };
	}`)
	require.NoError(t, err)

	result := st.Execute(context.Background(), "abc")
	require.False(t, result.Failed(), result.Reason())

	payload, ok := result.Payload().(map[string]any)
	require.True(t, ok, "expected exported object, got %T", result.Payload())
	assert.Equal(t, "abc", payload["echoed"])
	assert.Equal(t, int64(6), payload["doubled"])
}

func TestExecuteThrownErrorFails(t *testing.T) {
	st, err := New(`function execute(input) { throw new Error("bad input"); }`)
	require.NoError(t, err)

	result := st.Execute(context.Background(), nil)
	require.True(t, result.Failed())
	assert.Contains(t, result.Reason(), "bad input")
}

func TestExecuteTimeoutInterrupts(t *testing.T) {
	st, err := New(`function execute(input) { while (true) {} }`, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	result := st.Execute(context.Background(), nil)
	require.True(t, result.Failed())
	assert.Contains(t, result.Reason(), "interrupted")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecuteUndefinedReturnFails(t *testing.T) {
	st, err := New(`function execute(input) {}`)
	require.NoError(t, err)

	result := st.Execute(context.Background(), nil)
	require.True(t, result.Failed())
	assert.Contains(t, result.Reason(), "no value")
}

func TestNodeGlobalsUnavailable(t *testing.T) {
	st, err := New(`function execute(input) {
		return typeof require === "undefined" && typeof process === "undefined";
	}`)
	require.NoError(t, err)

	result := st.Execute(context.Background(), nil)
	require.False(t, result.Failed(), result.Reason())
	assert.Equal(t, true, result.Payload())
}

func TestExecutionsAreIsolated(t *testing.T) {
	st, err := New(`
		var counter = 0;
		function execute(input) {
			counter++;
			return counter;
		}`)
	require.NoError(t, err)

	first := st.Execute(context.Background(), nil)
	second := st.Execute(context.Background(), nil)
	require.False(t, first.Failed())
	require.False(t, second.Failed())
	assert.Equal(t, first.Payload(), second.Payload(), "each execution runs in a fresh runtime")
}
