package nodes

import (
	"github.com/perspectivelab/perspective/pkg/graph"
	"github.com/perspectivelab/perspective/pkg/state"
)

// Routes returns the full routing table of the pipeline graph. The table is
// pure data over pure functions, so it can be exercised without running any
// node.
func Routes() map[graph.NodeID]graph.Router {
	return map[graph.NodeID]graph.Router{
		NodeAnalyze:      errorOr(NodeGenerate),
		NodeGenerate:     errorOr(NodeJudge),
		NodeJudge:        JudgeRouter,
		NodeStore:        errorOr(graph.End),
		NodeErrorHandler: func(state.State) graph.NodeID { return graph.End },
	}
}

// JudgeRouter implements the engine's only loop. A failed judge goes to the
// error handler; a score below the threshold loops back to generation until
// the retry budget is exhausted, after which the perspective is accepted as
// is and stored.
func JudgeRouter(s state.State) graph.NodeID {
	if s.IsError() {
		return NodeErrorHandler
	}

	score := 0
	if s.Score != nil {
		score = *s.Score
	}
	if score < scoreThreshold {
		if s.Retries >= maxRetries {
			return NodeStore
		}
		return NodeGenerate
	}
	return NodeStore
}

// errorOr routes to the error handler on a failed state and to next
// otherwise.
func errorOr(next graph.NodeID) graph.Router {
	return func(s state.State) graph.NodeID {
		if s.IsError() {
			return NodeErrorHandler
		}
		return next
	}
}
