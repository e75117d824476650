// Package graph implements the workflow engine: a state machine over named
// nodes whose transitions are decided by per-node routers reading the run
// state after each node completes.
//
// Control flow is data flow: a node returns a partial state update, the
// engine merges it, and the node's router picks the successor from the
// merged state. Nodes never raise; any fault inside a node is converted at
// the node boundary into a status=error update and routed like any other
// outcome.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/perspectivelab/perspective/pkg/state"
)

// NodeID names a graph node.
type NodeID string

// End is the absorbing pseudo-node a router returns to finish the traversal.
const End NodeID = "__end__"

// defaultMaxSteps bounds a single traversal. The judge loop is already
// retry-bounded; this guard only catches a mis-wired routing table.
const defaultMaxSteps = 25

// Engine errors.
var (
	// ErrUnknownNode is returned when routing selects an unregistered node.
	ErrUnknownNode = errors.New("unknown graph node")

	// ErrNoRoute is returned when a completed node has no router.
	ErrNoRoute = errors.New("no route registered for node")

	// ErrNoEntry is returned when Run is called before an entry node is set.
	ErrNoEntry = errors.New("entry node not set")

	// ErrMaxSteps is returned when the traversal exceeds the step guard.
	ErrMaxSteps = errors.New("max traversal steps exceeded")
)

// NodeFunc is a single processing stage. It receives a state snapshot and
// returns a partial update; it must signal failure through the update's
// status field rather than panicking.
type NodeFunc func(ctx context.Context, s state.State) state.Update

// Router selects the next node from the state reached after a node
// completes. Routers must be pure: no I/O, no mutation.
type Router func(s state.State) NodeID

// Engine drives a traversal from the entry node to a terminal node.
type Engine struct {
	nodes    map[NodeID]NodeFunc
	routes   map[NodeID]Router
	entry    NodeID
	maxSteps int
	logger   *zap.Logger
	tracer   trace.Tracer
}

// New creates an empty engine. A nil logger falls back to a no-op logger.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		nodes:    make(map[NodeID]NodeFunc),
		routes:   make(map[NodeID]Router),
		maxSteps: defaultMaxSteps,
		logger:   logger,
		tracer:   otel.Tracer("perspective/graph"),
	}
}

// AddNode registers a node under the given id, replacing any previous
// registration.
func (e *Engine) AddNode(id NodeID, fn NodeFunc) *Engine {
	e.nodes[id] = fn
	return e
}

// Route registers the router evaluated after the given node completes.
func (e *Engine) Route(id NodeID, router Router) *Engine {
	e.routes[id] = router
	return e
}

// SetEntry sets the node the traversal starts from.
func (e *Engine) SetEntry(id NodeID) *Engine {
	e.entry = id
	return e
}

// Run executes the graph from the entry node until a router returns End,
// and returns the state reached at the terminal node. The returned error
// reports engine-level faults only (mis-wired graph, cancellation); node
// failures travel inside the state.
func (e *Engine) Run(ctx context.Context, initial state.State) (state.State, error) {
	if e.entry == "" {
		return initial, ErrNoEntry
	}

	runID := uuid.New().String()
	ctx, span := e.tracer.Start(ctx, "graph.run",
		trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	e.logger.Info("graph run started",
		zap.String("runID", runID),
		zap.String("entry", string(e.entry)))

	current := e.entry
	s := initial.Clone()

	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "run cancelled")
			return s, err
		}
		if step >= e.maxSteps {
			span.SetStatus(codes.Error, ErrMaxSteps.Error())
			return s, fmt.Errorf("%w after %d steps at node %s", ErrMaxSteps, step, current)
		}

		fn, ok := e.nodes[current]
		if !ok {
			span.SetStatus(codes.Error, ErrUnknownNode.Error())
			return s, fmt.Errorf("%w: %s", ErrUnknownNode, current)
		}

		update := e.execNode(ctx, runID, current, fn, s)
		s = state.Apply(s, update)

		router, ok := e.routes[current]
		if !ok {
			span.SetStatus(codes.Error, ErrNoRoute.Error())
			return s, fmt.Errorf("%w: %s", ErrNoRoute, current)
		}

		next := router(s)
		e.logger.Debug("routed",
			zap.String("runID", runID),
			zap.String("from", string(current)),
			zap.String("to", string(next)),
			zap.String("status", string(s.Status)))

		if next == End {
			if s.IsError() {
				span.SetStatus(codes.Error, s.Message)
			} else {
				span.SetStatus(codes.Ok, "run completed")
			}
			e.logger.Info("graph run finished",
				zap.String("runID", runID),
				zap.String("terminal", string(current)),
				zap.String("status", string(s.Status)))
			return s, nil
		}
		current = next
	}
}

// execNode runs one node with the panic boundary. A recovered panic becomes
// a status=error update attributed to the node itself; the engine has no
// other recovery path.
func (e *Engine) execNode(ctx context.Context, runID string, id NodeID, fn NodeFunc, s state.State) (update state.Update) {
	ctx, span := e.tracer.Start(ctx, "graph.node",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("node.id", string(id)),
		))
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("node panicked",
				zap.String("runID", runID),
				zap.String("node", string(id)),
				zap.Any("panic", r))
			span.SetStatus(codes.Error, "node panicked")
			update = state.ErrorUpdate(string(id), fmt.Sprintf("panic: %v", r))
		}
		span.SetAttributes(attribute.Int64("node.duration_ms", time.Since(start).Milliseconds()))
	}()

	update = fn(ctx, s.Clone())

	if update.Status != nil && *update.Status == state.StatusError {
		span.SetStatus(codes.Error, deref(update.Message))
		e.logger.Error("node reported failure",
			zap.String("runID", runID),
			zap.String("node", string(id)),
			zap.String("errorFrom", deref(update.ErrorFrom)),
			zap.String("message", deref(update.Message)))
	} else {
		span.SetStatus(codes.Ok, "node completed")
	}
	return update
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
