// Package message defines the JetStream envelopes the perspective service
// consumes and publishes. All envelopes are serialized to JSON and carry a
// correlation id so requests and results can be matched across services.
package message

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/perspectivelab/perspective/pkg/state"
)

// ProcessRequest asks the service to run the pipeline over cleaned article
// text. Publishers that only have raw text should clean it first; the
// service rejects empty text.
type ProcessRequest struct {
	// CorrelationID is a unique identifier for tracking related messages
	CorrelationID string `json:"correlationId,omitempty"`

	// CleanedText is the normalized article text to analyze
	CleanedText string `json:"cleanedText"`

	// Keywords optionally carries pre-extracted keywords
	Keywords []string `json:"keywords,omitempty"`

	// Metadata holds additional key-value pairs for the request
	Metadata map[string]string `json:"metadata,omitempty"`

	// CreatedAt is the timestamp when the request was created
	CreatedAt string `json:"createdAt"`

	// natsMsg holds the original NATS message for acknowledgment (not serialized)
	natsMsg *nats.Msg `json:"-"`
}

// ProcessResult carries the final pipeline state back to consumers.
type ProcessResult struct {
	// CorrelationID matches the originating request
	CorrelationID string `json:"correlationId,omitempty"`

	// RunID identifies the pipeline run that produced this result
	RunID string `json:"runId"`

	// State is the final run state, success or error
	State state.State `json:"state"`

	// DurationMs is the wall-clock processing time
	DurationMs int64 `json:"durationMs"`

	// CompletedAt is the timestamp when processing finished
	CompletedAt string `json:"completedAt"`
}

// NewProcessRequest creates a request with a timestamp.
func NewProcessRequest(cleanedText string) *ProcessRequest {
	return &ProcessRequest{
		CleanedText: cleanedText,
		Metadata:    make(map[string]string),
		CreatedAt:   time.Now().Format(time.RFC3339),
	}
}

// WithCorrelationID sets the correlation ID for the request.
func (r *ProcessRequest) WithCorrelationID(correlationID string) *ProcessRequest {
	r.CorrelationID = correlationID
	return r
}

// WithMetadata adds metadata to the request.
func (r *ProcessRequest) WithMetadata(key, value string) *ProcessRequest {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
	return r
}

// Validate checks that the request can be processed.
func (r *ProcessRequest) Validate() error {
	if strings.TrimSpace(r.CleanedText) == "" {
		return fmt.Errorf("cleanedText cannot be empty")
	}
	return nil
}

// ToBytes serializes the request to JSON bytes.
func (r *ProcessRequest) ToBytes() ([]byte, error) {
	return json.Marshal(r)
}

// RequestFromBytes deserializes a request from JSON bytes.
func RequestFromBytes(data []byte) (*ProcessRequest, error) {
	var req ProcessRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// RequestFromNATSMsg converts a NATS message into a request, keeping the
// underlying message so the handler can acknowledge it.
func RequestFromNATSMsg(natsMsg *nats.Msg) (*ProcessRequest, error) {
	req, err := RequestFromBytes(natsMsg.Data)
	if err != nil {
		return nil, err
	}
	req.natsMsg = natsMsg
	return req, nil
}

// Ack acknowledges the request to JetStream, indicating successful
// processing. The message will not be redelivered after acknowledgment.
func (r *ProcessRequest) Ack() error {
	if r.natsMsg == nil || r.natsMsg.Reply == "" {
		return nil
	}
	return r.natsMsg.Ack()
}

// Nak negatively acknowledges the request, indicating processing failure.
// The message will be redelivered according to the consumer's configuration.
func (r *ProcessRequest) Nak() error {
	if r.natsMsg == nil || r.natsMsg.Reply == "" {
		return nil
	}
	return r.natsMsg.Nak()
}

// InProgress extends the acknowledgment deadline for long-running
// processing to prevent timeout-based redelivery.
func (r *ProcessRequest) InProgress() error {
	if r.natsMsg == nil || r.natsMsg.Reply == "" {
		return nil
	}
	return r.natsMsg.InProgress()
}

// Term terminates delivery of the request, removing it from the stream.
// Use this for malformed requests that should never be retried.
func (r *ProcessRequest) Term() error {
	if r.natsMsg == nil || r.natsMsg.Reply == "" {
		return nil
	}
	return r.natsMsg.Term()
}

// NewProcessResult builds a result envelope for a completed run.
func NewProcessResult(correlationID, runID string, final state.State, duration time.Duration) *ProcessResult {
	return &ProcessResult{
		CorrelationID: correlationID,
		RunID:         runID,
		State:         final,
		DurationMs:    duration.Milliseconds(),
		CompletedAt:   time.Now().Format(time.RFC3339),
	}
}

// ToBytes serializes the result to JSON bytes.
func (r *ProcessResult) ToBytes() ([]byte, error) {
	return json.Marshal(r)
}

// ResultFromBytes deserializes a result from JSON bytes.
func ResultFromBytes(data []byte) (*ProcessResult, error) {
	var res ProcessResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
