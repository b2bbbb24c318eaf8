// Package contextfmt renders retrieved memory into token-budgeted text
// blocks for LLM prompt injection. A FullContext snapshot goes in, one
// text block comes out; which sections survive is governed by a fixed
// per-tier budget table.
package contextfmt

import "github.com/odvcencio/recall/pkg/gitstate"

// EntityContext holds the retrieved knowledge about one peer.
type EntityContext struct {
	// Facts are explicitly observed statements.
	Facts []string
	// Insights are conclusions derived from underlying facts.
	Insights []string
	// Profile is a small set of summarizing profile lines.
	Profile []string
	// Dialectic is free-text synthesis from the remote knowledge
	// service; expensive to obtain and only rendered at the deep tier.
	Dialectic string
}

// SessionContext identifies the current session and its summaries.
type SessionContext struct {
	Name      string
	ID        string
	Summaries []string
}

// FullContext is the merged snapshot passed to the formatter. It is
// built fresh per hook invocation and never persisted.
type FullContext struct {
	UserName  string
	AgentName string

	User  *EntityContext
	Agent *EntityContext

	Session *SessionContext

	Git     *gitstate.State
	Feature *gitstate.FeatureContext
	Changes []gitstate.Change

	// WorkLog is the local work-log text used as fallback memory.
	WorkLog string
}
