// Package factcheck implements the sequential fact-checking chain: extract
// verifiable claims, plan one search per claim, execute the searches
// concurrently and verify the claims against the gathered evidence.
//
// Every step degrades gracefully: a failed claim extraction yields an empty
// claim list and the remaining steps run as no-ops, so a broken collaborator
// produces empty outputs rather than a failed branch.
package factcheck

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/perspectivelab/perspective/pkg/fanout"
	"github.com/perspectivelab/perspective/pkg/state"
	"github.com/perspectivelab/perspective/pkg/task"
)

// maxExtractChars caps the text handed to the claim extractor.
const maxExtractChars = 4000

// searchFailedSentinel replaces the evidence of a search that failed.
const searchFailedSentinel = "Search failed"

// VerifyInput is the structured input handed to the verifier task.
type VerifyInput struct {
	Claims  []string             `json:"claims"`
	Results []state.SearchResult `json:"results"`
}

// Result holds the merged outputs of a completed chain run.
type Result struct {
	Claims        []string
	SearchQueries []state.SearchQuery
	SearchResults []state.SearchResult
	Facts         []state.Fact
}

// Chain wires the four fact-checking steps to their collaborator tasks.
type Chain struct {
	extractor task.Task
	planner   task.Task
	searcher  task.Task
	verifier  task.Task
	executor  *fanout.Executor
	logger    *zap.Logger
}

// Config holds the collaborators for a Chain.
type Config struct {
	// Extractor returns the verifiable claims found in a text
	Extractor task.Task
	// Planner returns one search query per claim
	Planner task.Task
	// Searcher executes a single search query
	Searcher task.Task
	// Verifier judges the claims against gathered evidence
	Verifier task.Task
	// Executor runs the planned searches concurrently
	Executor *fanout.Executor
	// Logger is optional; nil falls back to a no-op logger
	Logger *zap.Logger
}

// NewChain creates a fact-checking chain. All four tasks and the executor
// are required.
func NewChain(cfg Config) (*Chain, error) {
	if cfg.Extractor == nil {
		return nil, errors.New("extractor task cannot be nil")
	}
	if cfg.Planner == nil {
		return nil, errors.New("planner task cannot be nil")
	}
	if cfg.Searcher == nil {
		return nil, errors.New("searcher task cannot be nil")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("verifier task cannot be nil")
	}
	if cfg.Executor == nil {
		return nil, errors.New("fanout executor cannot be nil")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Chain{
		extractor: cfg.Extractor,
		planner:   cfg.Planner,
		searcher:  cfg.Searcher,
		verifier:  cfg.Verifier,
		executor:  cfg.Executor,
		logger:    logger,
	}, nil
}

// Run executes the chain against a state snapshot. The only fatal error is
// context cancellation; collaborator failures degrade to empty outputs.
func (c *Chain) Run(ctx context.Context, snapshot state.State) (Result, error) {
	var res Result

	claims, err := c.extractClaims(ctx, snapshot.CleanedText)
	if err != nil {
		return res, err
	}
	res.Claims = claims

	queries, err := c.planSearches(ctx, claims)
	if err != nil {
		return res, err
	}
	res.SearchQueries = queries

	results, err := c.executeSearches(ctx, queries)
	if err != nil {
		return res, err
	}
	res.SearchResults = results

	facts, err := c.verifyFacts(ctx, claims, results)
	if err != nil {
		return res, err
	}
	res.Facts = facts

	return res, nil
}

func (c *Chain) extractClaims(ctx context.Context, text string) ([]string, error) {
	c.logger.Info("fact check step 1: extracting claims")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(text) > maxExtractChars {
		text = text[:maxExtractChars]
	}

	result := task.Run(ctx, c.extractor, text)
	if result.Failed() {
		c.logger.Error("claim extraction failed, continuing with no claims",
			zap.String("reason", result.Reason()))
		return []string{}, nil
	}

	claims := ParseClaims(payloadString(result.Payload()))
	c.logger.Info("extracted claims", zap.Int("count", len(claims)))
	return claims, nil
}

func (c *Chain) planSearches(ctx context.Context, claims []string) ([]state.SearchQuery, error) {
	c.logger.Info("fact check step 2: planning searches")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(claims) == 0 {
		return []state.SearchQuery{}, nil
	}

	result := task.Run(ctx, c.planner, claims)
	if result.Failed() {
		c.logger.Error("search planning failed, continuing with no queries",
			zap.String("reason", result.Reason()))
		return []state.SearchQuery{}, nil
	}

	queries, err := DecodeSearchPlan(result.Payload())
	if err != nil {
		c.logger.Error("search plan could not be decoded, continuing with no queries",
			zap.Error(err))
		return []state.SearchQuery{}, nil
	}
	return queries, nil
}

func (c *Chain) executeSearches(ctx context.Context, queries []state.SearchQuery) ([]state.SearchResult, error) {
	c.logger.Info("fact check step 3: executing searches", zap.Int("count", len(queries)))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(queries) == 0 {
		return []state.SearchResult{}, nil
	}

	jobs := make([]fanout.Job, 0, len(queries))
	for _, q := range queries {
		jobs = append(jobs, fanout.Job{
			ID:    q.ClaimID,
			Input: q.Query,
			Task:  c.searcher,
		})
	}

	outcomes := c.executor.RunAll(ctx, jobs)

	results := make([]state.SearchResult, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Result.Failed() {
			results = append(results, state.SearchResult{
				ClaimID: o.ID,
				Result:  searchFailedSentinel,
			})
			continue
		}
		results = append(results, state.SearchResult{
			ClaimID: o.ID,
			Result:  payloadString(o.Result.Payload()),
		})
	}

	// Outcomes arrive in completion order; order by claim for determinism.
	sort.Slice(results, func(i, j int) bool { return results[i].ClaimID < results[j].ClaimID })

	c.logger.Info("completed searches", zap.Int("count", len(results)))
	return results, nil
}

func (c *Chain) verifyFacts(ctx context.Context, claims []string, results []state.SearchResult) ([]state.Fact, error) {
	c.logger.Info("fact check step 4: verifying facts")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(claims) == 0 {
		return []state.Fact{}, nil
	}

	// Drop results whose claim id does not map back to a claim.
	evidence := make([]state.SearchResult, 0, len(results))
	for _, r := range results {
		if r.ClaimID >= 0 && r.ClaimID < len(claims) {
			evidence = append(evidence, r)
		}
	}

	result := task.Run(ctx, c.verifier, VerifyInput{Claims: claims, Results: evidence})
	if result.Failed() {
		c.logger.Error("fact verification failed, continuing with no facts",
			zap.String("reason", result.Reason()))
		return []state.Fact{}, nil
	}

	facts, err := DecodeVerdicts(result.Payload())
	if err != nil {
		c.logger.Error("fact verdicts could not be decoded, continuing with no facts",
			zap.Error(err))
		return []state.Fact{}, nil
	}
	return facts, nil
}
