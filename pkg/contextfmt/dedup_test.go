package contextfmt

import (
	"reflect"
	"testing"
)

func TestDedupOrderDependence(t *testing.T) {
	in := []string{
		"the quick brown fox",
		"the quick brown dog",
		"completely unrelated sentence",
	}
	got := DedupFacts(in)

	want := []string{"the quick brown fox", "completely unrelated sentence"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DedupFacts(%v) = %v, want %v", in, got, want)
	}
}

func TestDedupShortListsUnchanged(t *testing.T) {
	if got := DedupFacts(nil); got != nil {
		t.Fatalf("nil should pass through, got %v", got)
	}
	one := []string{"single fact"}
	if got := DedupFacts(one); !reflect.DeepEqual(got, one) {
		t.Fatalf("single-element list should pass through, got %v", got)
	}
}

func TestDedupKeepsBelowThreshold(t *testing.T) {
	in := []string{
		"caching layer handles identifiers",
		"caching queue handles messages worklog",
	}
	// Second fact: keywords caching,queue,handles,messages,worklog;
	// overlap caching+handles = 2/5 < 0.5, so it survives.
	got := DedupFacts(in)
	if len(got) != 2 {
		t.Fatalf("expected both facts kept, got %v", got)
	}
}

func TestDedupAccumulatesSeenKeywords(t *testing.T) {
	in := []string{
		"alpha module persists documents",
		"bravo module renders sections tier",
		// Overlaps across BOTH earlier facts: module+persists from the
		// first, renders+tier from the second = 4/6 >= 0.5.
		"module persists renders tier charlie deltas",
	}
	got := DedupFacts(in)
	if len(got) != 2 {
		t.Fatalf("third fact should be dropped against accumulated keywords, got %v", got)
	}
}

func TestDedupNoKeywords(t *testing.T) {
	// Facts of only short words have no keywords; ratio 0/1 keeps them.
	in := []string{"a b c", "d e f", "g h i"}
	got := DedupFacts(in)
	if len(got) != 3 {
		t.Fatalf("keyword-free facts should all survive, got %v", got)
	}
}
