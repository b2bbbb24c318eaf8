package worklog

import (
	"path/filepath"
	"strings"
	"testing"
)

func newTestLog(t *testing.T, maxEntries int) *Log {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "work-log.md"), maxEntries)
}

func entriesAfter(text string) []string {
	idx := strings.Index(text, RecentActivityHeader)
	if idx < 0 {
		return nil
	}
	return activityLines(text[idx:])
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	l := newTestLog(t, 5)
	if got := l.Load(); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}

func TestAppendEntrySeedsPreamble(t *testing.T) {
	l := newTestLog(t, 5)

	if err := l.AppendEntry("first action"); err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}

	text := l.Load()
	if !strings.Contains(text, "# Recall Work Log") {
		t.Fatal("preamble missing")
	}
	if !strings.Contains(text, RecentActivityHeader) {
		t.Fatal("activity header missing")
	}
	if !strings.Contains(text, "first action") {
		t.Fatal("entry missing")
	}
}

func TestAppendEntryBound(t *testing.T) {
	l := newTestLog(t, 5)

	for i := 0; i < 10; i++ {
		if err := l.AppendEntry("action " + string(rune('0'+i))); err != nil {
			t.Fatalf("AppendEntry %d: %v", i, err)
		}
	}

	got := entriesAfter(l.Load())
	if len(got) != 5 {
		t.Fatalf("expected 5 retained entries, got %d: %v", len(got), got)
	}
	// Oldest dropped first, chronological order retained.
	for i, want := range []string{"action 5", "action 6", "action 7", "action 8", "action 9"} {
		if !strings.Contains(got[i], want) {
			t.Errorf("entry %d = %q, want suffix %q", i, got[i], want)
		}
	}
}

func TestAppendEntryPreservesPreambleEdits(t *testing.T) {
	l := newTestLog(t, 3)

	custom := "# My Notes\n\nImportant context I typed myself.\n\n" + RecentActivityHeader + "\n\n- [x] old entry\n"
	if err := l.Save(custom); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := l.AppendEntry("new action"); err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}

	text := l.Load()
	if !strings.Contains(text, "Important context I typed myself.") {
		t.Fatal("preamble content must survive trims")
	}
	if !strings.Contains(text, "new action") {
		t.Fatal("new entry missing")
	}
}

// Removing the header is a supported user edit: entries are then
// appended without trimming and nothing is deleted.
func TestAppendEntryMissingHeader(t *testing.T) {
	l := newTestLog(t, 2)

	if err := l.Save("freeform user notes\nwith no recognized section\n"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := l.AppendEntry("untrimmed entry"); err != nil {
			t.Fatalf("AppendEntry: %v", err)
		}
	}

	text := l.Load()
	if !strings.Contains(text, "freeform user notes") {
		t.Fatal("user content must be preserved")
	}
	if got := strings.Count(text, "untrimmed entry"); got != 4 {
		t.Fatalf("expected all 4 entries kept without trimming, got %d", got)
	}
}

func TestGenerateSummaryWorkItems(t *testing.T) {
	l := newTestLog(t, 5)

	text := l.GenerateSummary("proj-main", []string{"implement cache", "review queue"}, nil)

	if !strings.Contains(text, "Session: proj-main") {
		t.Fatal("session name missing")
	}
	if !strings.Contains(text, "- implement cache") || !strings.Contains(text, "- review queue") {
		t.Fatal("work items must be listed verbatim")
	}
	if !strings.Contains(text, RecentActivityHeader) {
		t.Fatal("summary must carry the activity header for later trims")
	}
}

func TestGenerateSummaryExtractsActions(t *testing.T) {
	l := newTestLog(t, 5)

	messages := []string{
		"Created the identity cache. It maps names to ids.",
		"Just thinking out loud here, nothing concrete",
		"Fixed the TTL boundary check! More detail follows.",
		"Updated " + strings.Repeat("x", 300) + ". Too long to keep.",
	}
	text := l.GenerateSummary("s", nil, messages)

	if !strings.Contains(text, "Created the identity cache") {
		t.Fatal("first action missing")
	}
	if !strings.Contains(text, "Fixed the TTL boundary check") {
		t.Fatal("second action missing")
	}
	if strings.Contains(text, "thinking out loud") {
		t.Fatal("non-action message should not be extracted")
	}
	if strings.Contains(text, "Too long to keep") || strings.Contains(text, "xxxxxxxxxx") {
		t.Fatal("overlong sentences must be skipped")
	}
}

func TestGenerateSummaryScansOnlyRecentMessages(t *testing.T) {
	l := newTestLog(t, 5)

	var messages []string
	messages = append(messages, "Created something ancient that should scroll away.")
	for i := 0; i < 10; i++ {
		messages = append(messages, "no verbs here")
	}
	text := l.GenerateSummary("s", nil, messages)

	if strings.Contains(text, "ancient") {
		t.Fatal("only the last 10 messages should be scanned")
	}
}

func TestMergeRecentActivity(t *testing.T) {
	l := newTestLog(t, 4)

	prior := "# Recall Work Log\n\n" + RecentActivityHeader + "\n\n" +
		"- [2026-01-01 09:00] old one\n" +
		"- [2026-01-01 09:05] old two\n"
	fresh := l.GenerateSummary("merge-session", nil, []string{
		"Created the hook runner.",
		"Fixed the queue flush path.",
	})

	merged := l.MergeRecentActivity(prior, fresh)
	got := entriesAfter(merged)
	if len(got) != 4 {
		t.Fatalf("expected 4 merged entries, got %d: %v", len(got), got)
	}
	if !strings.Contains(got[0], "old one") || !strings.Contains(got[1], "old two") {
		t.Fatal("prior entries must come first")
	}
	if !strings.Contains(merged, "merge-session") {
		t.Fatal("fresh header content must survive the merge")
	}
}

func TestMergeRecentActivityBound(t *testing.T) {
	l := newTestLog(t, 2)

	prior := RecentActivityHeader + "\n\n- a\n- b\n- c\n"
	fresh := RecentActivityHeader + "\n\n- d\n"

	got := entriesAfter(l.MergeRecentActivity(prior, fresh))
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %v", got)
	}
	if got[0] != "- c" || got[1] != "- d" {
		t.Fatalf("expected newest entries kept in order, got %v", got)
	}
}

func TestMergeRecentActivityMissingHeaderKeepsFresh(t *testing.T) {
	l := newTestLog(t, 5)

	fresh := RecentActivityHeader + "\n\n- only\n"
	if got := l.MergeRecentActivity("hand-written notes", fresh); got != fresh {
		t.Fatalf("expected fresh document unchanged, got %q", got)
	}
}
