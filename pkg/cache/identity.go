package cache

import (
	"time"

	"github.com/odvcencio/recall/pkg/paths"
)

// identityDocument is the on-disk shape of the identity cache.
type identityDocument struct {
	Workspace  *workspaceEntry         `json:"workspace,omitempty"`
	Peers      map[string]string       `json:"peers,omitempty"`
	Sessions   map[string]sessionEntry `json:"sessions,omitempty"`
	InstanceID string                  `json:"instanceId,omitempty"`
}

type workspaceEntry struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type sessionEntry struct {
	Name      string    `json:"name"`
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IdentityCache maps stable local keys (workspace name, peer name, cwd)
// to remote-assigned identifiers so repeated hook runs avoid redundant
// get-or-create calls. Identifiers never expire; they are assumed durable
// for the lifetime of the remote workspace.
type IdentityCache struct {
	path string
	now  func() time.Time
}

// NewIdentityCache creates an identity cache at path, or at the
// well-known location when path is empty.
func NewIdentityCache(path string) *IdentityCache {
	if path == "" {
		path = paths.IdentityCachePath()
	}
	return &IdentityCache{path: path, now: time.Now}
}

func (c *IdentityCache) load() identityDocument {
	var doc identityDocument
	LoadInto(c.path, &doc)
	return doc
}

// WorkspaceID returns the cached workspace id. A cached workspace with a
// different name is a miss, not an update: at most one workspace identity
// is held at a time.
func (c *IdentityCache) WorkspaceID(name string) (string, bool) {
	doc := c.load()
	if doc.Workspace == nil || doc.Workspace.Name != name {
		return "", false
	}
	return doc.Workspace.ID, true
}

// SetWorkspaceID replaces any previously cached workspace.
func (c *IdentityCache) SetWorkspaceID(name, id string) error {
	doc := c.load()
	doc.Workspace = &workspaceEntry{Name: name, ID: id}
	return Save(c.path, doc)
}

// PeerID returns the cached id for a peer name.
func (c *IdentityCache) PeerID(name string) (string, bool) {
	doc := c.load()
	id, ok := doc.Peers[name]
	return id, ok
}

// SetPeerID caches the id for a peer name.
func (c *IdentityCache) SetPeerID(name, id string) error {
	doc := c.load()
	if doc.Peers == nil {
		doc.Peers = make(map[string]string)
	}
	doc.Peers[name] = id
	return Save(c.path, doc)
}

// SessionID returns the cached session id for a working directory.
func (c *IdentityCache) SessionID(cwd string) (string, bool) {
	doc := c.load()
	entry, ok := doc.Sessions[cwd]
	if !ok {
		return "", false
	}
	return entry.ID, true
}

// SetSessionID caches the session identity for a working directory. The
// updatedAt timestamp is refreshed on every set, even when the id is
// unchanged.
func (c *IdentityCache) SetSessionID(cwd, name, id string) error {
	doc := c.load()
	if doc.Sessions == nil {
		doc.Sessions = make(map[string]sessionEntry)
	}
	doc.Sessions[cwd] = sessionEntry{Name: name, ID: id, UpdatedAt: c.now()}
	return Save(c.path, doc)
}

// InstanceID returns the stored instance id, used to re-associate queued
// work with the concurrently running agent session that produced it.
func (c *IdentityCache) InstanceID() (string, bool) {
	doc := c.load()
	if doc.InstanceID == "" {
		return "", false
	}
	return doc.InstanceID, true
}

// SetInstanceID overwrites the single instance id slot.
func (c *IdentityCache) SetInstanceID(id string) error {
	doc := c.load()
	doc.InstanceID = id
	return Save(c.path, doc)
}
