package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/perspectivelab/perspective/pkg/state"
	"github.com/perspectivelab/perspective/pkg/task"
)

// RunRecord is the persisted form of a completed pipeline run.
type RunRecord struct {
	RunID       string      `json:"run_id"`
	ProcessedAt time.Time   `json:"processed_at"`
	State       state.State `json:"state"`
}

// RunResultClient stores final pipeline states as JSON blobs, one per run.
type RunResultClient struct {
	blobClient BlobStorageClient
	logger     *zap.Logger
}

// NewRunResultClient creates a run result client.
func NewRunResultClient(blobClient BlobStorageClient, logger *zap.Logger) (*RunResultClient, error) {
	if blobClient == nil {
		return nil, fmt.Errorf("blob client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunResultClient{blobClient: blobClient, logger: logger}, nil
}

// RunResultPath returns the standard blob path for a run's result.
func RunResultPath(runID string) string {
	return fmt.Sprintf("runs/%s/result.json", runID)
}

// SaveRunResult uploads the final state of a run and returns the blob URL.
func (c *RunResultClient) SaveRunResult(ctx context.Context, runID string, s state.State) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	record := RunRecord{
		RunID:       runID,
		ProcessedAt: time.Now().UTC(),
		State:       s,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run record: %w", err)
	}

	blobPath := RunResultPath(runID)
	blobURL, err := c.blobClient.Upload(ctx, blobPath, data, map[string]string{
		"run_id":    runID,
		"status":    string(s.Status),
		"sentiment": s.Sentiment,
		"retries":   fmt.Sprintf("%d", s.Retries),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload run result: %w", err)
	}

	c.logger.Info("Stored run result",
		zap.String("run_id", runID),
		zap.String("blob_path", blobPath),
		zap.Int("size_bytes", len(data)))

	return blobURL, nil
}

// GetRunResult downloads and parses a stored run record.
func (c *RunResultClient) GetRunResult(ctx context.Context, runID string) (*RunRecord, error) {
	data, err := c.blobClient.Download(ctx, RunResultPath(runID))
	if err != nil {
		return nil, fmt.Errorf("failed to download run result: %w", err)
	}

	var record RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse run result: %w", err)
	}

	return &record, nil
}

// Sink adapts the run result client into a pipeline sink task. The task
// input is the final run state; each invocation stores it under a fresh
// run id supplied by the id function.
type Sink struct {
	client *RunResultClient
	nextID func() string
}

// NewSink creates a sink task. nextID supplies the run id per invocation.
func NewSink(client *RunResultClient, nextID func() string) (*Sink, error) {
	if client == nil {
		return nil, fmt.Errorf("run result client is required")
	}
	if nextID == nil {
		return nil, fmt.Errorf("id function is required")
	}
	return &Sink{client: client, nextID: nextID}, nil
}

// Execute implements task.Task.
func (s *Sink) Execute(ctx context.Context, input any) task.Result {
	final, ok := input.(state.State)
	if !ok {
		return task.Fail(fmt.Sprintf("sink expects a pipeline state, got %T", input))
	}

	url, err := s.client.SaveRunResult(ctx, s.nextID(), final)
	if err != nil {
		return task.Fail(err.Error())
	}
	return task.Ok(url)
}
