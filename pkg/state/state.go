// Package state defines the run state shared by every stage of the perspective
// pipeline and the replacement-merge primitive used to advance it.
package state

// Status reports whether the most recent stage completed successfully.
type Status string

const (
	// StatusSuccess indicates the stage completed without error.
	StatusSuccess Status = "success"

	// StatusError indicates the stage failed; ErrorFrom and Message carry detail.
	StatusError Status = "error"
)

// SearchQuery is a planned verification search for a single claim.
type SearchQuery struct {
	// Query is the search text to execute
	Query string `json:"query"`
	// ClaimID is the index of the claim this query verifies
	ClaimID int `json:"claim_id"`
}

// SearchResult is the outcome of one verification search.
type SearchResult struct {
	// ClaimID correlates the result back to its claim
	ClaimID int `json:"claim_id"`
	// Result is the raw search output, or a sentinel when the search failed
	Result string `json:"result"`
}

// Fact is a verified claim with its verdict.
type Fact struct {
	Claim  string `json:"claim"`
	Status string `json:"status"` // True, False or Unverified
	Reason string `json:"reason"`
}

// Perspective is the structured output of the generation stage.
type Perspective struct {
	// Reasoning is the ordered chain of reasoning steps
	Reasoning []string `json:"reasoning"`
	// Perspective is the generated counter-perspective text
	Perspective string `json:"perspective"`
}

// State is the record threaded through one pipeline run. It is advanced only
// through Apply; stages never mutate a State they were handed.
type State struct {
	// CleanedText is the primary input, set before engine entry
	CleanedText string `json:"cleaned_text"`
	// Keywords are extracted ahead of engine entry and carried for consumers
	Keywords []string `json:"keywords,omitempty"`

	// Analysis outputs
	Sentiment     string         `json:"sentiment,omitempty"`
	Claims        []string       `json:"claims,omitempty"`
	SearchQueries []SearchQuery  `json:"search_queries,omitempty"`
	SearchResults []SearchResult `json:"search_results,omitempty"`
	Facts         []Fact         `json:"facts,omitempty"`

	// Generation and judging outputs
	Perspective *Perspective `json:"perspective,omitempty"`
	Score       *int         `json:"score,omitempty"`
	Retries     int          `json:"retries"`

	// Stage outcome
	Status    Status `json:"status"`
	ErrorFrom string `json:"error_from,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Update is a partial State. A nil field is absent and leaves the prior value
// untouched; a non-nil field overwrites it. Slice fields use pointers so that
// "present but empty" is distinguishable from "absent".
type Update struct {
	CleanedText   *string         `json:"cleaned_text,omitempty"`
	Keywords      *[]string       `json:"keywords,omitempty"`
	Sentiment     *string         `json:"sentiment,omitempty"`
	Claims        *[]string       `json:"claims,omitempty"`
	SearchQueries *[]SearchQuery  `json:"search_queries,omitempty"`
	SearchResults *[]SearchResult `json:"search_results,omitempty"`
	Facts         *[]Fact         `json:"facts,omitempty"`
	Perspective   *Perspective    `json:"perspective,omitempty"`
	Score         *int            `json:"score,omitempty"`
	Retries       *int            `json:"retries,omitempty"`
	Status        *Status         `json:"status,omitempty"`
	ErrorFrom     *string         `json:"error_from,omitempty"`
	Message       *string         `json:"message,omitempty"`
}

// Ptr returns a pointer to v. Convenience for building Update literals.
func Ptr[T any](v T) *T {
	return &v
}

// Apply merges a partial update into s and returns the resulting state.
// Every field present in the update overwrites the prior value; absent fields
// persist. Neither s nor the update is mutated.
func Apply(s State, u Update) State {
	out := s.Clone()

	if u.CleanedText != nil {
		out.CleanedText = *u.CleanedText
	}
	if u.Keywords != nil {
		out.Keywords = copySlice(*u.Keywords)
	}
	if u.Sentiment != nil {
		out.Sentiment = *u.Sentiment
	}
	if u.Claims != nil {
		out.Claims = copySlice(*u.Claims)
	}
	if u.SearchQueries != nil {
		out.SearchQueries = copySlice(*u.SearchQueries)
	}
	if u.SearchResults != nil {
		out.SearchResults = copySlice(*u.SearchResults)
	}
	if u.Facts != nil {
		out.Facts = copySlice(*u.Facts)
	}
	if u.Perspective != nil {
		p := *u.Perspective
		p.Reasoning = copySlice(p.Reasoning)
		out.Perspective = &p
	}
	if u.Score != nil {
		score := *u.Score
		out.Score = &score
	}
	if u.Retries != nil {
		out.Retries = *u.Retries
	}
	if u.Status != nil {
		out.Status = *u.Status
	}
	if u.ErrorFrom != nil {
		out.ErrorFrom = *u.ErrorFrom
	}
	if u.Message != nil {
		out.Message = *u.Message
	}

	return out
}

// Clone returns a deep copy of s. Concurrent branches each receive a clone so
// no branch can observe another's writes mid-flight.
func (s State) Clone() State {
	out := s
	out.Keywords = copySlice(s.Keywords)
	out.Claims = copySlice(s.Claims)
	out.SearchQueries = copySlice(s.SearchQueries)
	out.SearchResults = copySlice(s.SearchResults)
	out.Facts = copySlice(s.Facts)
	if s.Perspective != nil {
		p := *s.Perspective
		p.Reasoning = copySlice(p.Reasoning)
		out.Perspective = &p
	}
	if s.Score != nil {
		score := *s.Score
		out.Score = &score
	}
	return out
}

// IsError reports whether the state carries a stage failure.
func (s State) IsError() bool {
	return s.Status == StatusError
}

// ClampScore bounds a raw judge score to the valid [0,100] range.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// SuccessUpdate returns an update that marks the stage successful.
func SuccessUpdate() Update {
	return Update{Status: Ptr(StatusSuccess)}
}

// ErrorUpdate returns an update that marks the stage failed, attributing the
// failure to the named stage.
func ErrorUpdate(from, message string) Update {
	return Update{
		Status:    Ptr(StatusError),
		ErrorFrom: Ptr(from),
		Message:   Ptr(message),
	}
}

func copySlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
