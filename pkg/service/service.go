// Package service runs the perspective pipeline as a NATS JetStream
// consumer. It pulls process requests in batches, distributes them to worker
// goroutines, and publishes the final state of each run to the result
// subject.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	inats "github.com/perspectivelab/perspective/internal/nats"
	"github.com/perspectivelab/perspective/pkg/message"
	"github.com/perspectivelab/perspective/pkg/pipeline"
	"github.com/perspectivelab/perspective/pkg/state"
)

const (
	defaultBatchSize      = 10
	defaultProcessTimeout = 5 * time.Minute
	pullWait              = 2 * time.Second
)

// Config configures a Service.
type Config struct {
	// Connection describes the JetStream streams and subjects.
	Connection *inats.ConnectionConfig

	// Pipeline is the compiled workflow executed per request.
	Pipeline *pipeline.Pipeline

	// Consumer is the durable consumer name on the request stream.
	Consumer string

	// NumWorkers is the number of processing goroutines.
	NumWorkers int

	// BatchSize is how many requests to pull at once. Zero uses the default.
	BatchSize int

	// ProcessTimeout bounds a single pipeline run. Zero uses the default.
	ProcessTimeout time.Duration

	// Logger is required.
	Logger *zap.Logger
}

// Service consumes process requests and runs the pipeline for each.
type Service struct {
	conn           *nats.Conn
	js             nats.JetStreamContext
	cfg            *inats.ConnectionConfig
	pipeline       *pipeline.Pipeline
	consumer       string
	numWorkers     int
	batchSize      int
	processTimeout time.Duration
	logger         *zap.Logger
	tracer         trace.Tracer
}

// New creates a Service on an already connected NATS connection.
func New(conn *nats.Conn, cfg Config) (*Service, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if cfg.Connection == nil {
		return nil, errors.New("connection config cannot be nil")
	}
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline cannot be nil")
	}
	if cfg.Consumer == "" {
		return nil, errors.New("consumer name cannot be empty")
	}
	if cfg.NumWorkers <= 0 {
		return nil, errors.New("numWorkers must be greater than 0")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	s := &Service{
		conn:           conn,
		js:             js,
		cfg:            cfg.Connection,
		pipeline:       cfg.Pipeline,
		consumer:       cfg.Consumer,
		numWorkers:     cfg.NumWorkers,
		batchSize:      cfg.BatchSize,
		processTimeout: cfg.ProcessTimeout,
		logger:         cfg.Logger,
		tracer:         otel.Tracer("perspective/service"),
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.processTimeout <= 0 {
		s.processTimeout = defaultProcessTimeout
	}

	if err := s.ensureStream(s.cfg.RequestStream, s.cfg.RequestSubject); err != nil {
		return nil, fmt.Errorf("failed to ensure request stream: %w", err)
	}
	if err := s.ensureStream(s.cfg.ResultStream, s.cfg.ResultSubject); err != nil {
		return nil, fmt.Errorf("failed to ensure result stream: %w", err)
	}

	return s, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func (s *Service) ensureStream(streamName, subject string) error {
	info, err := s.js.StreamInfo(streamName)
	if err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return fmt.Errorf("failed to get stream info for '%s': %w", streamName, err)
		}

		s.logger.Info("Creating JetStream stream",
			zap.String("stream", streamName),
			zap.String("subject", subject))

		_, err = s.js.AddStream(&nats.StreamConfig{
			Name:     streamName,
			Subjects: []string{subject},
			Storage:  nats.FileStorage,
			MaxAge:   24 * time.Hour,
			MaxMsgs:  100000,
			Replicas: 1,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream '%s': %w", streamName, err)
		}
		return nil
	}

	s.logger.Info("JetStream stream already exists",
		zap.String("stream", streamName),
		zap.Uint64("messages", info.State.Msgs),
		zap.Int("consumers", info.State.Consumers))
	return nil
}

// Run starts the processing loop. It spawns worker goroutines and pulls
// requests from the request stream until the context is cancelled, then
// waits for in-flight work to finish.
func (s *Service) Run(ctx context.Context) error {
	sub, err := s.js.PullSubscribe(s.cfg.RequestSubject, s.consumer,
		nats.BindStream(s.cfg.RequestStream),
		nats.MaxDeliver(s.cfg.MaxDeliver))
	if err != nil {
		return fmt.Errorf("failed to create pull subscription: %w", err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("Error unsubscribing", zap.Error(err))
		}
	}()

	requestChan := make(chan *message.ProcessRequest, s.batchSize)
	var wg sync.WaitGroup

	for i := 0; i < s.numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID, requestChan)
		}(i)
	}

	go func() {
		defer close(requestChan)
		s.pull(ctx, sub, requestChan)
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()

	select {
	case <-done:
		s.logger.Info("Service completed")
		return nil
	case <-ctx.Done():
		s.logger.Info("Service stopping, waiting for workers")
		<-done
		return ctx.Err()
	}
}

// pull fetches request batches and feeds the worker channel, backing off on
// errors.
func (s *Service) pull(ctx context.Context, sub *nats.Subscription, requestChan chan<- *message.ProcessRequest) {
	backoffDelay := 100 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Shutting down request puller")
			return
		default:
		}

		msgs, err := sub.Fetch(s.batchSize, nats.MaxWait(pullWait))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, nats.ErrTimeout) {
				backoffDelay = 100 * time.Millisecond
				continue
			}
			s.logger.Error("Error pulling requests", zap.Error(err))
			select {
			case <-time.After(backoffDelay):
			case <-ctx.Done():
				return
			}
			if backoffDelay < maxBackoff {
				backoffDelay *= 2
			}
			continue
		}

		backoffDelay = 100 * time.Millisecond

		for _, msg := range msgs {
			req, err := message.RequestFromNATSMsg(msg)
			if err != nil {
				// Malformed payloads can never succeed, drop them from
				// the stream.
				s.logger.Error("Dropping malformed request", zap.Error(err))
				if termErr := msg.Term(); termErr != nil {
					s.logger.Warn("Error terminating malformed request", zap.Error(termErr))
				}
				continue
			}

			select {
			case requestChan <- req:
			case <-ctx.Done():
				if nakErr := req.Nak(); nakErr != nil {
					s.logger.Warn("Error naking request on shutdown", zap.Error(nakErr))
				}
				return
			}
		}
	}
}

// worker processes requests from the channel.
func (s *Service) worker(ctx context.Context, workerID int, requestChan <-chan *message.ProcessRequest) {
	s.logger.Info("Worker started", zap.Int("workerID", workerID))
	defer s.logger.Info("Worker stopped", zap.Int("workerID", workerID))

	for {
		select {
		case req, ok := <-requestChan:
			if !ok {
				return
			}
			s.processRequest(ctx, workerID, req)
		case <-ctx.Done():
			return
		}
	}
}

// processRequest runs the pipeline for one request and publishes the result.
func (s *Service) processRequest(ctx context.Context, workerID int, req *message.ProcessRequest) {
	runID := uuid.New().String()
	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = runID
	}

	ctx, span := s.tracer.Start(ctx, "service.processRequest",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("run.id", runID),
			attribute.String("correlation.id", correlationID),
			attribute.String("stream", s.cfg.RequestStream),
			attribute.String("consumer", s.consumer),
		))
	defer span.End()

	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("Invalid request, terminating",
			zap.String("correlationID", correlationID),
			zap.Error(err))
		if termErr := req.Term(); termErr != nil {
			s.logger.Warn("Error terminating invalid request", zap.Error(termErr))
		}
		return
	}

	processCtx, cancel := context.WithTimeout(ctx, s.processTimeout)
	defer cancel()

	start := time.Now()
	s.logger.Info("Processing request",
		zap.Int("workerID", workerID),
		zap.String("runID", runID),
		zap.String("correlationID", correlationID))

	initial := state.State{
		CleanedText: req.CleanedText,
		Keywords:    append([]string(nil), req.Keywords...),
	}
	final, err := s.pipeline.Run(processCtx, initial)
	duration := time.Since(start)
	span.SetAttributes(attribute.Int64("processing.duration_ms", duration.Milliseconds()))

	if err != nil {
		// Engine errors are infrastructure failures (cancellation, routing
		// faults); the request may succeed on redelivery.
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("Pipeline run failed",
			zap.Int("workerID", workerID),
			zap.String("runID", runID),
			zap.Duration("processingTime", duration),
			zap.Error(err))
		if nakErr := req.Nak(); nakErr != nil {
			s.logger.Error("Error naking request", zap.Error(nakErr))
		}
		return
	}

	span.SetAttributes(attribute.String("run.status", string(final.Status)))
	if final.IsError() {
		span.SetStatus(codes.Ok, "Run completed with pipeline error")
	} else {
		span.SetStatus(codes.Ok, "Run completed")
	}

	result := message.NewProcessResult(correlationID, runID, final, duration)
	if err := s.publishResult(result); err != nil {
		s.logger.Error("Error publishing result",
			zap.String("runID", runID),
			zap.Error(err))
		if nakErr := req.Nak(); nakErr != nil {
			s.logger.Error("Error naking request after publish failure", zap.Error(nakErr))
		}
		return
	}

	s.logger.Info("Request processed",
		zap.Int("workerID", workerID),
		zap.String("runID", runID),
		zap.String("status", string(final.Status)),
		zap.Int("retries", final.Retries),
		zap.Duration("processingTime", duration))

	if ackErr := req.Ack(); ackErr != nil {
		s.logger.Error("Error acking request", zap.Error(ackErr))
	}
}

func (s *Service) publishResult(result *message.ProcessResult) error {
	data, err := result.ToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	if _, err := s.js.Publish(s.cfg.ResultSubject, data); err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}
	return nil
}
