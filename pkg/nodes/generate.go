package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/perspectivelab/perspective/pkg/graph"
	"github.com/perspectivelab/perspective/pkg/state"
	"github.com/perspectivelab/perspective/pkg/task"
)

// GenerateInput is the structured input handed to the generator task.
type GenerateInput struct {
	Text      string       `json:"text"`
	Sentiment string       `json:"sentiment"`
	Facts     []state.Fact `json:"facts"`
}

// Generate returns the node that produces a counter-perspective. It
// increments the retry counter on every entry, including the first, which is
// what bounds the judge loop.
func Generate(generator task.Task, logger *zap.Logger) graph.NodeFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(ctx context.Context, s state.State) state.Update {
		retries := s.Retries + 1

		if strings.TrimSpace(s.CleanedText) == "" {
			return withRetries(retries, state.ErrorUpdate(string(NodeGenerate), "missing or empty cleaned_text in state"))
		}

		if len(s.Facts) == 0 {
			logger.Warn("no verified facts in state, generating from text only")
		}

		sentiment := s.Sentiment
		if sentiment == "" {
			sentiment = "neutral"
		}

		result := task.Run(ctx, generator, GenerateInput{
			Text:      s.CleanedText,
			Sentiment: sentiment,
			Facts:     s.Facts,
		})
		if result.Failed() {
			return withRetries(retries, state.ErrorUpdate(string(NodeGenerate), result.Reason()))
		}

		perspective, err := DecodePerspective(result.Payload())
		if err != nil {
			return withRetries(retries, state.ErrorUpdate(string(NodeGenerate), err.Error()))
		}

		logger.Info("generated perspective",
			zap.Int("attempt", retries),
			zap.Int("reasoning_steps", len(perspective.Reasoning)))

		return state.Update{
			Perspective: &perspective,
			Retries:     state.Ptr(retries),
			Status:      state.Ptr(state.StatusSuccess),
		}
	}
}

// DecodePerspective converts a generator payload into the structured
// perspective. Accepts the typed struct directly or JSON with "reasoning"
// (alias "reasoning_steps") and "perspective" keys.
func DecodePerspective(payload any) (state.Perspective, error) {
	switch v := payload.(type) {
	case state.Perspective:
		return v, nil
	case *state.Perspective:
		if v == nil {
			return state.Perspective{}, fmt.Errorf("generator returned a nil perspective")
		}
		return *v, nil
	}

	raw, err := toJSONBytes(payload)
	if err != nil {
		return state.Perspective{}, err
	}

	var wire struct {
		Reasoning      []string `json:"reasoning"`
		ReasoningSteps []string `json:"reasoning_steps"`
		Perspective    string   `json:"perspective"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return state.Perspective{}, fmt.Errorf("invalid perspective payload: %w", err)
	}

	reasoning := wire.Reasoning
	if reasoning == nil {
		reasoning = wire.ReasoningSteps
	}
	if strings.TrimSpace(wire.Perspective) == "" {
		return state.Perspective{}, fmt.Errorf("perspective payload has no perspective text")
	}
	return state.Perspective{Reasoning: reasoning, Perspective: wire.Perspective}, nil
}

// withRetries attaches the incremented retry counter to an update so the
// per-entry increment holds on both success and failure paths.
func withRetries(retries int, u state.Update) state.Update {
	u.Retries = state.Ptr(retries)
	return u
}

func toJSONBytes(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return nil, fmt.Errorf("empty payload")
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case json.RawMessage:
		return v, nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("payload is not JSON-encodable: %w", err)
		}
		return raw, nil
	}
}
