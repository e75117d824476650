package nodes

import (
	"context"

	"github.com/perspectivelab/perspective/pkg/analysis"
	"github.com/perspectivelab/perspective/pkg/graph"
	"github.com/perspectivelab/perspective/pkg/state"
)

// Analyze wraps the parallel analysis stage as a graph node.
func Analyze(stage *analysis.Stage) graph.NodeFunc {
	return func(ctx context.Context, s state.State) state.Update {
		return stage.Run(ctx, s)
	}
}
