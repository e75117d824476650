package nodes

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/perspectivelab/perspective/pkg/graph"
	"github.com/perspectivelab/perspective/pkg/state"
	"github.com/perspectivelab/perspective/pkg/task"
)

// scorePattern pulls the first one-to-three digit integer out of a judge
// reply; evaluator collaborators rarely return a bare number.
var scorePattern = regexp.MustCompile(`\b(\d{1,3})\b`)

// Judge returns the node that scores the generated perspective. The judge
// task receives the perspective text and its reply is parsed for the first
// integer, clamped to [0,100].
func Judge(judge task.Task, logger *zap.Logger) graph.NodeFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(ctx context.Context, s state.State) state.Update {
		if s.Perspective == nil || strings.TrimSpace(s.Perspective.Perspective) == "" {
			return state.ErrorUpdate(string(NodeJudge), "empty perspective for scoring")
		}

		result := task.Run(ctx, judge, s.Perspective.Perspective)
		if result.Failed() {
			return state.ErrorUpdate(string(NodeJudge), result.Reason())
		}

		score, err := ParseScore(result.Payload())
		if err != nil {
			return state.ErrorUpdate(string(NodeJudge), err.Error())
		}

		logger.Info("judged perspective",
			zap.Int("score", score),
			zap.Int("retries", s.Retries))

		return state.Update{
			Score:  state.Ptr(score),
			Status: state.Ptr(state.StatusSuccess),
		}
	}
}

// ParseScore extracts a clamped 0..100 score from a judge payload. An
// integer payload is used directly; text payloads are scanned for the first
// integer.
func ParseScore(payload any) (int, error) {
	switch v := payload.(type) {
	case int:
		return state.ClampScore(v), nil
	case float64:
		return state.ClampScore(int(v)), nil
	case string:
		m := scorePattern.FindStringSubmatch(v)
		if m == nil {
			return 0, fmt.Errorf("could not parse a score from %q", strings.TrimSpace(v))
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("could not parse a score from %q", strings.TrimSpace(v))
		}
		return state.ClampScore(n), nil
	default:
		return 0, fmt.Errorf("judge returned an unscoreable payload of type %T", payload)
	}
}
