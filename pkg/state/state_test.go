package state

import (
	"reflect"
	"testing"
)

func TestApplyOverwritesOnlyPresentFields(t *testing.T) {
	s := State{
		CleanedText: "original text",
		Sentiment:   "negative",
		Claims:      []string{"claim a", "claim b"},
		Retries:     1,
		Status:      StatusSuccess,
	}

	out := Apply(s, Update{Sentiment: Ptr("positive")})

	if out.Sentiment != "positive" {
		t.Errorf("expected sentiment overwritten, got %q", out.Sentiment)
	}
	if out.CleanedText != "original text" {
		t.Errorf("absent field was modified: %q", out.CleanedText)
	}
	if !reflect.DeepEqual(out.Claims, []string{"claim a", "claim b"}) {
		t.Errorf("absent claims were modified: %v", out.Claims)
	}
	if out.Retries != 1 {
		t.Errorf("absent retries were modified: %d", out.Retries)
	}
}

func TestApplyDistinguishesEmptyFromAbsent(t *testing.T) {
	s := State{Claims: []string{"claim a"}}

	kept := Apply(s, Update{})
	if len(kept.Claims) != 1 {
		t.Fatalf("absent update should keep claims, got %v", kept.Claims)
	}

	cleared := Apply(s, Update{Claims: Ptr([]string{})})
	if cleared.Claims == nil || len(cleared.Claims) != 0 {
		t.Fatalf("present-but-empty update should clear claims, got %v", cleared.Claims)
	}
}

func TestApplyDoesNotMutateInputs(t *testing.T) {
	s := State{Claims: []string{"claim a"}, Perspective: &Perspective{Perspective: "p"}}
	u := Update{Claims: Ptr([]string{"claim b"})}

	out := Apply(s, u)
	out.Claims[0] = "mutated"
	out.Perspective.Perspective = "mutated"

	if s.Claims[0] != "claim a" {
		t.Errorf("input state claims mutated: %v", s.Claims)
	}
	if s.Perspective.Perspective != "p" {
		t.Errorf("input state perspective mutated: %v", s.Perspective)
	}
	if (*u.Claims)[0] != "claim b" {
		t.Errorf("update mutated: %v", *u.Claims)
	}
}

func TestCloneIsDeep(t *testing.T) {
	score := 80
	s := State{
		Keywords:      []string{"one"},
		SearchResults: []SearchResult{{ClaimID: 0, Result: "evidence"}},
		Perspective:   &Perspective{Reasoning: []string{"step"}, Perspective: "text"},
		Score:         &score,
	}

	c := s.Clone()
	c.Keywords[0] = "changed"
	c.SearchResults[0].Result = "changed"
	c.Perspective.Reasoning[0] = "changed"
	*c.Score = 10

	if s.Keywords[0] != "one" || s.SearchResults[0].Result != "evidence" {
		t.Errorf("clone shares slices with original")
	}
	if s.Perspective.Reasoning[0] != "step" {
		t.Errorf("clone shares perspective with original")
	}
	if *s.Score != 80 {
		t.Errorf("clone shares score with original")
	}
}

func TestErrorUpdate(t *testing.T) {
	s := Apply(State{Status: StatusSuccess}, ErrorUpdate("fact_checking", "boom"))

	if !s.IsError() {
		t.Fatalf("expected error status, got %s", s.Status)
	}
	if s.ErrorFrom != "fact_checking" || s.Message != "boom" {
		t.Errorf("unexpected attribution: from=%q message=%q", s.ErrorFrom, s.Message)
	}
}

func TestClampScore(t *testing.T) {
	cases := []struct{ in, want int }{
		{-5, 0},
		{0, 0},
		{70, 70},
		{100, 100},
		{150, 100},
	}
	for _, c := range cases {
		if got := ClampScore(c.in); got != c.want {
			t.Errorf("ClampScore(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
