package nodes

import (
	"context"

	"go.uber.org/zap"

	"github.com/perspectivelab/perspective/pkg/graph"
	"github.com/perspectivelab/perspective/pkg/state"
	"github.com/perspectivelab/perspective/pkg/task"
)

// Store returns the terminal success node. The sink task receives the full
// final state and is responsible for persistence and any notification; a
// sink failure routes the run to the error handler instead of finishing.
func Store(sink task.Task, logger *zap.Logger) graph.NodeFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(ctx context.Context, s state.State) state.Update {
		result := task.Run(ctx, sink, s)
		if result.Failed() {
			return state.ErrorUpdate(string(NodeStore), result.Reason())
		}

		logger.Info("stored pipeline result",
			zap.String("sentiment", s.Sentiment),
			zap.Int("facts", len(s.Facts)),
			zap.Int("retries", s.Retries))

		return state.SuccessUpdate()
	}
}
