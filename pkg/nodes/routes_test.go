package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/perspectivelab/perspective/pkg/graph"
	"github.com/perspectivelab/perspective/pkg/state"
)

func TestJudgeRouter(t *testing.T) {
	cases := []struct {
		name  string
		state state.State
		want  graph.NodeID
	}{
		{
			name:  "error goes to handler",
			state: state.State{Status: state.StatusError, ErrorFrom: "judge_perspective"},
			want:  NodeErrorHandler,
		},
		{
			name:  "high score stores",
			state: state.State{Status: state.StatusSuccess, Score: state.Ptr(85), Retries: 1},
			want:  NodeStore,
		},
		{
			name:  "threshold score stores",
			state: state.State{Status: state.StatusSuccess, Score: state.Ptr(70), Retries: 1},
			want:  NodeStore,
		},
		{
			name:  "low score with budget loops",
			state: state.State{Status: state.StatusSuccess, Score: state.Ptr(69), Retries: 1},
			want:  NodeGenerate,
		},
		{
			name:  "low score at second attempt still loops",
			state: state.State{Status: state.StatusSuccess, Score: state.Ptr(40), Retries: 2},
			want:  NodeGenerate,
		},
		{
			name:  "low score with exhausted budget stores anyway",
			state: state.State{Status: state.StatusSuccess, Score: state.Ptr(40), Retries: 3},
			want:  NodeStore,
		},
		{
			name:  "missing score counts as zero",
			state: state.State{Status: state.StatusSuccess, Retries: 0},
			want:  NodeGenerate,
		},
		{
			name:  "missing score with exhausted budget stores",
			state: state.State{Status: state.StatusSuccess, Retries: 3},
			want:  NodeStore,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, JudgeRouter(tc.state))
		})
	}
}

func TestRoutesTable(t *testing.T) {
	routes := Routes()

	okState := state.State{Status: state.StatusSuccess}
	errState := state.State{Status: state.StatusError}

	assert.Equal(t, NodeGenerate, routes[NodeAnalyze](okState))
	assert.Equal(t, NodeErrorHandler, routes[NodeAnalyze](errState))

	assert.Equal(t, NodeJudge, routes[NodeGenerate](okState))
	assert.Equal(t, NodeErrorHandler, routes[NodeGenerate](errState))

	assert.Equal(t, graph.End, routes[NodeStore](okState))
	assert.Equal(t, NodeErrorHandler, routes[NodeStore](errState))

	assert.Equal(t, graph.End, routes[NodeErrorHandler](errState),
		"error handler must be terminal")
}
