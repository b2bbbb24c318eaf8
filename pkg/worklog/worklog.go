// Package worklog maintains a bounded human-readable log of recent
// actions. It is the instant, dependency-free fallback memory source
// when the remote service is unreachable.
package worklog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/odvcencio/recall/pkg/paths"
)

// RecentActivityHeader anchors the trimmed section. Trimming locates it
// by literal substring match: if a user edit removes or alters it, new
// entries are appended without trimming rather than failing or deleting
// user content.
const RecentActivityHeader = "## Recent Activity"

const preamble = `# Recall Work Log

Running log of recent actions, maintained automatically. Content above
the Recent Activity section is preserved verbatim and safe to edit.

` + RecentActivityHeader + "\n"

const timestampLayout = "2006-01-02 15:04"

// Log owns the work-log document.
type Log struct {
	path       string
	maxEntries int
	now        func() time.Time
}

// New creates a work log at path (well-known location when empty)
// retaining at most maxEntries activity lines.
func New(path string, maxEntries int) *Log {
	if path == "" {
		path = paths.WorkLogPath()
	}
	return &Log{path: path, maxEntries: maxEntries, now: time.Now}
}

// Path returns the work-log file location.
func (l *Log) Path() string {
	return l.path
}

// Load returns the document text, or the empty string when the file is
// missing or unreadable.
func (l *Log) Load() string {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return ""
	}
	return string(data)
}

// Save overwrites the whole document.
func (l *Log) Save(text string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create work log directory: %w", err)
	}
	if err := os.WriteFile(l.path, []byte(text), 0644); err != nil {
		return fmt.Errorf("write work log: %w", err)
	}
	return nil
}

// AppendEntry appends one timestamped activity line, trimming the
// Recent Activity section to the configured bound. Preamble content
// before the header survives verbatim.
func (l *Log) AppendEntry(description string) error {
	text := l.Load()
	if strings.TrimSpace(text) == "" {
		text = preamble
	}

	entry := fmt.Sprintf("- [%s] %s", l.now().Format(timestampLayout), description)

	idx := strings.Index(text, RecentActivityHeader)
	if idx < 0 {
		// Header missing, likely hand-edited away. Append without
		// trimming rather than touching the user's content.
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		return l.Save(text + entry + "\n")
	}

	head := text[:idx+len(RecentActivityHeader)]
	body := text[idx+len(RecentActivityHeader):]

	var activities []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "- ") {
			activities = append(activities, strings.TrimSpace(line))
		}
	}
	if l.maxEntries > 0 && len(activities) > l.maxEntries-1 {
		activities = activities[len(activities)-(l.maxEntries-1):]
	}
	activities = append(activities, entry)

	var b strings.Builder
	b.WriteString(head)
	b.WriteString("\n\n")
	for _, line := range activities {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return l.Save(b.String())
}

// actionVerbs mark assistant messages worth extracting into the summary.
var actionVerbs = []string{"Created", "Updated", "Fixed"}

const (
	maxScannedMessages  = 10
	maxExtractedActions = 10
	maxSentenceLength   = 200
)

// GenerateSummary builds a fresh work-log document for a finished
// session: the given work items verbatim, plus actions extracted from
// the tail of the assistant's messages. It replaces the whole document;
// callers wanting prior activity preserved must re-merge the Recent
// Activity section afterward.
func (l *Log) GenerateSummary(sessionName string, workItems, assistantMessages []string) string {
	var b strings.Builder
	b.WriteString("# Recall Work Log\n\n")
	fmt.Fprintf(&b, "Generated: %s\n", l.now().Format(timestampLayout))
	fmt.Fprintf(&b, "Session: %s\n\n", sessionName)

	if len(workItems) > 0 {
		b.WriteString("## Work Items\n\n")
		for _, item := range workItems {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		b.WriteString("\n")
	}

	b.WriteString(RecentActivityHeader)
	b.WriteString("\n\n")
	for _, action := range extractActions(assistantMessages) {
		fmt.Fprintf(&b, "- [%s] %s\n", l.now().Format(timestampLayout), action)
	}
	return b.String()
}

// MergeRecentActivity folds the Recent Activity entries of a prior
// document into a freshly generated one, oldest first, keeping at most
// the configured number of lines. Either document missing its header
// falls back to the fresh text unchanged.
func (l *Log) MergeRecentActivity(prior, fresh string) string {
	priorIdx := strings.Index(prior, RecentActivityHeader)
	freshIdx := strings.Index(fresh, RecentActivityHeader)
	if priorIdx < 0 || freshIdx < 0 {
		return fresh
	}

	entries := activityLines(prior[priorIdx:])
	entries = append(entries, activityLines(fresh[freshIdx:])...)
	if l.maxEntries > 0 && len(entries) > l.maxEntries {
		entries = entries[len(entries)-l.maxEntries:]
	}

	var b strings.Builder
	b.WriteString(fresh[:freshIdx+len(RecentActivityHeader)])
	b.WriteString("\n\n")
	for _, line := range entries {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func activityLines(section string) []string {
	var out []string
	for _, line := range strings.Split(section, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "- ") {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}

// extractActions scans the last messages for action verbs and pulls the
// first sentence of each match when it is short enough to log.
func extractActions(messages []string) []string {
	if len(messages) > maxScannedMessages {
		messages = messages[len(messages)-maxScannedMessages:]
	}

	var actions []string
	for _, msg := range messages {
		if !containsActionVerb(msg) {
			continue
		}
		sentence := firstSentence(msg)
		if sentence == "" || len(sentence) >= maxSentenceLength {
			continue
		}
		actions = append(actions, sentence)
	}
	if len(actions) > maxExtractedActions {
		actions = actions[len(actions)-maxExtractedActions:]
	}
	return actions
}

func containsActionVerb(msg string) bool {
	for _, verb := range actionVerbs {
		if strings.Contains(msg, verb) {
			return true
		}
	}
	return false
}

func firstSentence(msg string) string {
	msg = strings.TrimSpace(msg)
	if idx := strings.IndexAny(msg, ".!?\n"); idx >= 0 {
		msg = msg[:idx]
	}
	return strings.TrimSpace(msg)
}
