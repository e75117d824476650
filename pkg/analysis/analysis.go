// Package analysis implements the parallel analysis stage: a sentiment
// branch and a fact-checking branch executed concurrently over immutable
// state snapshots, joined into a single partial update.
//
// Unlike the per-search containment inside the fact-checking chain, a failed
// branch here fails the whole stage: a broken sentiment call or claim
// extraction invalidates everything downstream, so the stage halts early
// instead of propagating corrupt state forward.
package analysis

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/perspectivelab/perspective/pkg/factcheck"
	"github.com/perspectivelab/perspective/pkg/state"
	"github.com/perspectivelab/perspective/pkg/task"
)

// Branch names used for failure attribution.
const (
	SentimentBranch = "sentiment_analysis"
	FactCheckBranch = "fact_checking"
)

// Stage composes the sentiment task and the fact-checking chain.
type Stage struct {
	sentiment task.Task
	chain     *factcheck.Chain
	logger    *zap.Logger
}

// NewStage creates an analysis stage. Both collaborators are required.
func NewStage(sentiment task.Task, chain *factcheck.Chain, logger *zap.Logger) (*Stage, error) {
	if sentiment == nil {
		return nil, errors.New("sentiment task cannot be nil")
	}
	if chain == nil {
		return nil, errors.New("fact-checking chain cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{
		sentiment: sentiment,
		chain:     chain,
		logger:    logger,
	}, nil
}

type sentimentOutcome struct {
	label string
	err   string
}

type factCheckOutcome struct {
	result factcheck.Result
	err    string
}

// Run executes both branches concurrently and merges their outputs. Each
// branch receives its own snapshot of the state; the merge happens only here
// at the join point. When both branches fail, the sentiment failure wins the
// attribution.
func (s *Stage) Run(ctx context.Context, snapshot state.State) state.Update {
	sentimentChan := make(chan sentimentOutcome, 1)
	factCheckChan := make(chan factCheckOutcome, 1)

	go func() {
		sentimentChan <- s.runSentiment(ctx, snapshot.Clone())
	}()
	go func() {
		factCheckChan <- s.runFactCheck(ctx, snapshot.Clone())
	}()

	sentiment := <-sentimentChan
	factCheck := <-factCheckChan

	if sentiment.err != "" {
		return state.ErrorUpdate(SentimentBranch, sentiment.err)
	}
	if factCheck.err != "" {
		return state.ErrorUpdate(FactCheckBranch, factCheck.err)
	}

	s.logger.Info("parallel analysis complete",
		zap.String("sentiment", sentiment.label),
		zap.Int("claims", len(factCheck.result.Claims)),
		zap.Int("facts", len(factCheck.result.Facts)))

	return state.Update{
		Sentiment:     state.Ptr(sentiment.label),
		Claims:        state.Ptr(factCheck.result.Claims),
		SearchQueries: state.Ptr(factCheck.result.SearchQueries),
		SearchResults: state.Ptr(factCheck.result.SearchResults),
		Facts:         state.Ptr(factCheck.result.Facts),
		Status:        state.Ptr(state.StatusSuccess),
	}
}

func (s *Stage) runSentiment(ctx context.Context, snapshot state.State) sentimentOutcome {
	if strings.TrimSpace(snapshot.CleanedText) == "" {
		return sentimentOutcome{err: "missing or empty cleaned_text in state"}
	}

	result := task.Run(ctx, s.sentiment, snapshot.CleanedText)
	if result.Failed() {
		s.logger.Error("sentiment branch failed", zap.String("reason", result.Reason()))
		return sentimentOutcome{err: result.Reason()}
	}

	label, ok := result.Payload().(string)
	if !ok {
		return sentimentOutcome{err: "sentiment task returned a non-text payload"}
	}
	return sentimentOutcome{label: strings.ToLower(strings.TrimSpace(label))}
}

func (s *Stage) runFactCheck(ctx context.Context, snapshot state.State) factCheckOutcome {
	result, err := s.chain.Run(ctx, snapshot)
	if err != nil {
		s.logger.Error("fact-checking branch failed", zap.Error(err))
		return factCheckOutcome{err: err.Error()}
	}
	return factCheckOutcome{result: result}
}
