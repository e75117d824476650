package factcheck

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/perspectivelab/perspective/pkg/state"
)

// ParseClaims splits a raw extractor reply into individual claims. Lines are
// kept when their trimmed form is longer than ten characters, and list
// markers are stripped from the ends.
func ParseClaims(raw string) []string {
	claims := []string{}
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) <= 10 {
			continue
		}
		claims = append(claims, strings.Trim(trimmed, "- *"))
	}
	return claims
}

// searchPlan is the wire shape of a planner reply.
type searchPlan struct {
	Searches []state.SearchQuery `json:"searches"`
}

// DecodeSearchPlan converts a planner payload into search queries. Accepts
// an already-typed query slice, or JSON (string, bytes or generic map) in the
// shape {"searches": [{"query": ..., "claim_id": ...}]}.
func DecodeSearchPlan(payload any) ([]state.SearchQuery, error) {
	switch v := payload.(type) {
	case []state.SearchQuery:
		return v, nil
	case searchPlan:
		return v.Searches, nil
	}

	raw, err := payloadBytes(payload)
	if err != nil {
		return nil, err
	}

	var plan searchPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("invalid search plan: %w", err)
	}
	if plan.Searches == nil {
		return []state.SearchQuery{}, nil
	}
	return plan.Searches, nil
}

// DecodeVerdicts converts a verifier payload into facts. Collaborators wrap
// the verdict list inconsistently, so a bare list is accepted alongside
// objects keyed by "facts" or "verified_claims"; any other object is treated
// as a single verdict.
func DecodeVerdicts(payload any) ([]state.Fact, error) {
	if v, ok := payload.([]state.Fact); ok {
		return v, nil
	}

	raw, err := payloadBytes(payload)
	if err != nil {
		return nil, err
	}

	var list []state.Fact
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("invalid verdict payload: %w", err)
	}

	for _, key := range []string{"facts", "verified_claims"} {
		inner, ok := wrapped[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(inner, &list); err != nil {
			return nil, fmt.Errorf("invalid verdict list under %q: %w", key, err)
		}
		return list, nil
	}

	var single state.Fact
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("invalid verdict object: %w", err)
	}
	return []state.Fact{single}, nil
}

// payloadString renders a task payload as text.
func payloadString(payload any) string {
	switch v := payload.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// payloadBytes renders a task payload as JSON bytes for decoding.
func payloadBytes(payload any) ([]byte, error) {
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
