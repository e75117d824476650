package nodes

import (
	"context"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/perspectivelab/perspective/pkg/graph"
	"github.com/perspectivelab/perspective/pkg/state"
)

// ErrorHandler returns the terminal failure node. It logs the failing stage,
// forwards it to Sentry when a client is configured, and leaves the error
// fields in place for the caller.
func ErrorHandler(logger *zap.Logger) graph.NodeFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(ctx context.Context, s state.State) state.Update {
		logger.Error("pipeline failed",
			zap.String("errorFrom", s.ErrorFrom),
			zap.String("message", s.Message))

		if hub := sentry.CurrentHub(); hub.Client() != nil {
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("error_from", s.ErrorFrom)
				scope.SetLevel(sentry.LevelError)
				hub.CaptureMessage(s.Message)
			})
		}

		return state.Update{Status: state.Ptr(state.StatusError)}
	}
}
