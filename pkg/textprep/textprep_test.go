package textprep

import (
	"reflect"
	"testing"
)

func TestCleanCollapsesWhitespace(t *testing.T) {
	raw := "First   line\t with\ttabs\n\n\n\n  Second line  \nThird\x00line"

	got := Clean(raw)
	want := "First line with tabs\n\nSecond line\nThirdline"
	if got != want {
		t.Errorf("Clean() = %q, want %q", got, want)
	}
}

func TestCleanEmpty(t *testing.T) {
	if got := Clean(""); got != "" {
		t.Errorf("Clean(\"\") = %q", got)
	}
	if got := Clean("   \n\n  "); got != "" {
		t.Errorf("Clean(whitespace) = %q", got)
	}
}

func TestKeywordsFrequencyOrder(t *testing.T) {
	text := "Transit transit TRANSIT ridership ridership council the the the a"

	got := Keywords(text, 10)
	want := []string{"transit", "ridership", "council"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords() = %v, want %v", got, want)
	}
}

func TestKeywordsTieBreakAlphabetical(t *testing.T) {
	got := Keywords("zebra apple zebra apple", 10)
	want := []string{"apple", "zebra"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords() = %v, want %v", got, want)
	}
}

func TestKeywordsLimit(t *testing.T) {
	got := Keywords("one two three four five", 2)
	if len(got) != 2 {
		t.Errorf("expected 2 keywords, got %v", got)
	}
}

func TestKeywordsSkipsStopwordsAndShortTokens(t *testing.T) {
	got := Keywords("the quick brown fox is in a tree", 10)
	for _, w := range got {
		if stopwords[w] || len([]rune(w)) < 2 {
			t.Errorf("keyword %q should have been filtered", w)
		}
	}
}

func TestKeywordsZeroLimit(t *testing.T) {
	got := Keywords("some text here", 0)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}
