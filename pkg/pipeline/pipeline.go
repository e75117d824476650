// Package pipeline assembles the perspective workflow: it wires the
// collaborator tasks into graph nodes, builds the engine with the standard
// routing table and exposes the single entry point callers use.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/perspectivelab/perspective/pkg/analysis"
	"github.com/perspectivelab/perspective/pkg/concurrency"
	"github.com/perspectivelab/perspective/pkg/factcheck"
	"github.com/perspectivelab/perspective/pkg/fanout"
	"github.com/perspectivelab/perspective/pkg/graph"
	"github.com/perspectivelab/perspective/pkg/nodes"
	"github.com/perspectivelab/perspective/pkg/state"
	"github.com/perspectivelab/perspective/pkg/task"
)

// ErrEmptyInput is returned when Run is called without cleaned text.
var ErrEmptyInput = errors.New("cleaned_text cannot be empty")

// Tasks holds the external collaborators the pipeline invokes. All are
// required.
type Tasks struct {
	// Sentiment classifies the overall sentiment of the text
	Sentiment task.Task
	// ClaimExtractor lists the verifiable claims in the text
	ClaimExtractor task.Task
	// SearchPlanner plans one verification search per claim
	SearchPlanner task.Task
	// Searcher executes a single verification search
	Searcher task.Task
	// FactVerifier judges claims against gathered evidence
	FactVerifier task.Task
	// Generator produces the counter-perspective
	Generator task.Task
	// Judge scores a generated perspective
	Judge task.Task
	// Sink persists the final state and notifies consumers
	Sink task.Task
}

// Config configures a Pipeline.
type Config struct {
	Tasks Tasks

	// Limiter bounds concurrent search dispatch; nil builds one from the
	// environment-derived concurrency config.
	Limiter *concurrency.Limiter

	// FanoutMode overrides the dispatch mode; empty uses the config default.
	FanoutMode concurrency.FanoutMode

	// Logger is optional; nil falls back to a no-op logger.
	Logger *zap.Logger
}

// Pipeline is a compiled perspective workflow.
type Pipeline struct {
	engine *graph.Engine
	logger *zap.Logger
}

// New validates the collaborators and compiles the workflow graph.
func New(cfg Config) (*Pipeline, error) {
	if err := validateTasks(cfg.Tasks); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	limiter := cfg.Limiter
	mode := cfg.FanoutMode
	if limiter == nil || mode == "" {
		conc := concurrency.LoadConfig()
		if limiter == nil {
			limiter = concurrency.NewLimiter(conc.MaxConcurrent)
		}
		if mode == "" {
			mode = conc.FanoutMode
		}
	}

	executor := fanout.NewExecutor(limiter, mode, logger)

	chain, err := factcheck.NewChain(factcheck.Config{
		Extractor: cfg.Tasks.ClaimExtractor,
		Planner:   cfg.Tasks.SearchPlanner,
		Searcher:  cfg.Tasks.Searcher,
		Verifier:  cfg.Tasks.FactVerifier,
		Executor:  executor,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build fact-checking chain: %w", err)
	}

	stage, err := analysis.NewStage(cfg.Tasks.Sentiment, chain, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build analysis stage: %w", err)
	}

	engine := graph.New(logger).
		AddNode(nodes.NodeAnalyze, nodes.Analyze(stage)).
		AddNode(nodes.NodeGenerate, nodes.Generate(cfg.Tasks.Generator, logger)).
		AddNode(nodes.NodeJudge, nodes.Judge(cfg.Tasks.Judge, logger)).
		AddNode(nodes.NodeStore, nodes.Store(cfg.Tasks.Sink, logger)).
		AddNode(nodes.NodeErrorHandler, nodes.ErrorHandler(logger)).
		SetEntry(nodes.NodeAnalyze)

	for id, router := range nodes.Routes() {
		engine.Route(id, router)
	}

	return &Pipeline{engine: engine, logger: logger}, nil
}

// Run executes the workflow for an initial state and returns the state
// reached at the terminal node. Success is status=success with the Store
// node reached; failure is status=error with error_from and message set.
// Internal re-generations are invisible to the caller.
func (p *Pipeline) Run(ctx context.Context, initial state.State) (state.State, error) {
	if strings.TrimSpace(initial.CleanedText) == "" {
		return initial, ErrEmptyInput
	}
	return p.engine.Run(ctx, initial)
}

// Process is a convenience wrapper building the initial state from cleaned
// text.
func (p *Pipeline) Process(ctx context.Context, cleanedText string) (state.State, error) {
	return p.Run(ctx, state.State{CleanedText: cleanedText})
}

func validateTasks(t Tasks) error {
	switch {
	case t.Sentiment == nil:
		return errors.New("sentiment task cannot be nil")
	case t.ClaimExtractor == nil:
		return errors.New("claim extractor task cannot be nil")
	case t.SearchPlanner == nil:
		return errors.New("search planner task cannot be nil")
	case t.Searcher == nil:
		return errors.New("searcher task cannot be nil")
	case t.FactVerifier == nil:
		return errors.New("fact verifier task cannot be nil")
	case t.Generator == nil:
		return errors.New("generator task cannot be nil")
	case t.Judge == nil:
		return errors.New("judge task cannot be nil")
	case t.Sink == nil:
		return errors.New("sink task cannot be nil")
	}
	return nil
}
