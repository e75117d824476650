package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perspectivelab/perspective/pkg/state"
	"github.com/perspectivelab/perspective/pkg/task"
)

func TestJudgeScoresPerspective(t *testing.T) {
	judge := task.Func(func(ctx context.Context, input any) task.Result {
		assert.Equal(t, "a counter view", input)
		return task.Ok("I would rate this 82 out of 100. Solid grounding.")
	})

	node := Judge(judge, nil)
	s := state.State{Perspective: &state.Perspective{Perspective: "a counter view"}}

	update := node(context.Background(), s)
	merged := state.Apply(s, update)

	require.False(t, merged.IsError())
	require.NotNil(t, merged.Score)
	assert.Equal(t, 82, *merged.Score)
}

func TestJudgeRejectsMissingPerspective(t *testing.T) {
	called := false
	judge := task.Func(func(ctx context.Context, input any) task.Result {
		called = true
		return task.Ok("90")
	})

	node := Judge(judge, nil)

	for _, s := range []state.State{
		{},
		{Perspective: &state.Perspective{Perspective: "   "}},
	} {
		update := node(context.Background(), s)
		merged := state.Apply(s, update)
		require.True(t, merged.IsError())
		assert.Equal(t, string(NodeJudge), merged.ErrorFrom)
	}
	assert.False(t, called)
}

func TestJudgeTaskFailure(t *testing.T) {
	judge := task.Func(func(ctx context.Context, input any) task.Result {
		return task.Fail("evaluator down")
	})

	node := Judge(judge, nil)
	update := node(context.Background(), state.State{Perspective: &state.Perspective{Perspective: "p"}})
	merged := state.Apply(state.State{}, update)

	require.True(t, merged.IsError())
	assert.Equal(t, "evaluator down", merged.Message)
}

func TestParseScore(t *testing.T) {
	cases := []struct {
		name    string
		payload any
		want    int
		wantErr bool
	}{
		{name: "bare int", payload: 77, want: 77},
		{name: "float from json", payload: float64(64), want: 64},
		{name: "int above range clamps", payload: 250, want: 100},
		{name: "negative clamps", payload: -3, want: 0},
		{name: "first int in prose", payload: "Score: 85. Reasoning follows with 3 points.", want: 85},
		{name: "three digit string clamps", payload: "999", want: 100},
		{name: "no digits", payload: "excellent work", wantErr: true},
		{name: "unscoreable type", payload: []string{"85"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseScore(tc.payload)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
