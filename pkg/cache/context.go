package cache

import (
	"encoding/json"
	"time"

	"github.com/odvcencio/recall/pkg/paths"
)

// contextSection is one independently aged slice of cached remote context.
type contextSection struct {
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// contextDocument is the on-disk shape of the context cache.
type contextDocument struct {
	UserContext             *contextSection `json:"userContext,omitempty"`
	AgentContext            *contextSection `json:"agentContext,omitempty"`
	Summaries               *contextSection `json:"summaries,omitempty"`
	MessageCount            int             `json:"messageCount"`
	LastRefreshMessageCount int             `json:"lastRefreshMessageCount"`
}

// ContextCache stores the last-fetched remote context payloads with a
// TTL, plus a message counter that triggers deeper refreshes by
// conversation volume rather than wall-clock age.
type ContextCache struct {
	path      string
	ttl       time.Duration
	threshold int
	now       func() time.Time
}

// NewContextCache creates a context cache at path (well-known location
// when empty) with the given TTL and deep-refresh message threshold.
func NewContextCache(path string, ttl time.Duration, threshold int) *ContextCache {
	if path == "" {
		path = paths.ContextCachePath()
	}
	return &ContextCache{path: path, ttl: ttl, threshold: threshold, now: time.Now}
}

func (c *ContextCache) load() contextDocument {
	var doc contextDocument
	LoadInto(c.path, &doc)
	return doc
}

func (c *ContextCache) fresh(s *contextSection) bool {
	return s != nil && c.now().Sub(s.FetchedAt) < c.ttl
}

// UserContext returns the cached user context if it is within the TTL.
func (c *ContextCache) UserContext() (json.RawMessage, bool) {
	doc := c.load()
	if !c.fresh(doc.UserContext) {
		return nil, false
	}
	return doc.UserContext.Data, true
}

// SetUserContext stores the user context with fetchedAt = now.
func (c *ContextCache) SetUserContext(data json.RawMessage) error {
	doc := c.load()
	doc.UserContext = &contextSection{Data: data, FetchedAt: c.now()}
	return Save(c.path, doc)
}

// AgentContext returns the cached agent context if it is within the TTL.
func (c *ContextCache) AgentContext() (json.RawMessage, bool) {
	doc := c.load()
	if !c.fresh(doc.AgentContext) {
		return nil, false
	}
	return doc.AgentContext.Data, true
}

// SetAgentContext stores the agent context with fetchedAt = now.
func (c *ContextCache) SetAgentContext(data json.RawMessage) error {
	doc := c.load()
	doc.AgentContext = &contextSection{Data: data, FetchedAt: c.now()}
	return Save(c.path, doc)
}

// Summaries returns cached session summaries if within the TTL.
func (c *ContextCache) Summaries() (json.RawMessage, bool) {
	doc := c.load()
	if !c.fresh(doc.Summaries) {
		return nil, false
	}
	return doc.Summaries.Data, true
}

// SetSummaries stores session summaries with fetchedAt = now.
func (c *ContextCache) SetSummaries(data json.RawMessage) error {
	doc := c.load()
	doc.Summaries = &contextSection{Data: data, FetchedAt: c.now()}
	return Save(c.path, doc)
}

// IsStale reports whether a remote refresh is warranted: true when no
// user-context section exists or it has exceeded the TTL.
func (c *ContextCache) IsStale() bool {
	doc := c.load()
	return !c.fresh(doc.UserContext)
}

// IncrementMessageCount increments the observed-message counter by one
// and returns the new value, so the caller can decide on a deeper
// refresh without a second read.
func (c *ContextCache) IncrementMessageCount() (int, error) {
	doc := c.load()
	doc.MessageCount++
	if err := Save(c.path, doc); err != nil {
		return 0, err
	}
	return doc.MessageCount, nil
}

// ShouldRefreshDeepContext reports whether enough conversation volume has
// accumulated since the last refresh. This is a separate trigger from the
// TTL: a fast-moving conversation can go stale well before it elapses.
func (c *ContextCache) ShouldRefreshDeepContext() bool {
	doc := c.load()
	return doc.MessageCount-doc.LastRefreshMessageCount >= c.threshold
}

// MarkRefreshed records that a deep refresh happened at the current
// message count.
func (c *ContextCache) MarkRefreshed() error {
	doc := c.load()
	doc.LastRefreshMessageCount = doc.MessageCount
	return Save(c.path, doc)
}

// ResetMessageCount zeroes both counters at the start of a new top-level
// session. The count never goes negative on reset.
func (c *ContextCache) ResetMessageCount() error {
	doc := c.load()
	doc.MessageCount = 0
	doc.LastRefreshMessageCount = 0
	return Save(c.path, doc)
}
