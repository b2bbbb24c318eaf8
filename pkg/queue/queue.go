// Package queue implements the durable outbox of messages awaiting
// upload to the remote knowledge service. Messages are stored one JSON
// object per line in an append-only log; appends are single O_APPEND
// writes so concurrent hook processes never interleave at the byte
// level.
package queue

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/odvcencio/recall/pkg/cache"
	"github.com/odvcencio/recall/pkg/paths"
)

// Message is one queued outgoing message.
type Message struct {
	Content    string    `json:"content"`
	PeerID     string    `json:"peerId"`
	CWD        string    `json:"cwd"`
	Timestamp  time.Time `json:"timestamp"`
	Uploaded   bool      `json:"uploaded"`
	InstanceID string    `json:"instanceId,omitempty"`
}

// Queue owns the message log file. Entries are appended on creation and
// physically removed once the remote confirms upload; nothing is ever
// mutated in place.
type Queue struct {
	path     string
	identity *cache.IdentityCache
	now      func() time.Time
}

// New creates a queue at path (well-known location when empty). The
// identity cache supplies the fallback instance id for Enqueue.
func New(path string, identity *cache.IdentityCache) *Queue {
	if path == "" {
		path = paths.QueuePath()
	}
	return &Queue{path: path, identity: identity, now: time.Now}
}

// Path returns the queue file location.
func (q *Queue) Path() string {
	return q.path
}

// Enqueue appends one message line. When instanceID is empty the
// identity cache's stored instance id is used; if that is also absent
// the field stays unset. The append is a single write in O_APPEND mode.
func (q *Queue) Enqueue(content, peerID, cwd, instanceID string) error {
	if instanceID == "" && q.identity != nil {
		if id, ok := q.identity.InstanceID(); ok {
			instanceID = id
		}
	}

	msg := Message{
		Content:    content,
		PeerID:     peerID,
		CWD:        cwd,
		Timestamp:  q.now(),
		Uploaded:   false,
		InstanceID: instanceID,
	}
	line, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal queued message: %w", err)
	}
	line = append(line, '\n')

	if err := os.MkdirAll(filepath.Dir(q.path), 0755); err != nil {
		return fmt.Errorf("create queue directory: %w", err)
	}
	f, err := os.OpenFile(q.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append queued message: %w", err)
	}
	return nil
}

// Pending returns the not-yet-uploaded messages in file order, oldest
// first. Blank and unparseable lines are skipped. When forCwd is
// non-empty only that working directory's messages are returned. Read
// failures resolve to an empty slice; absence of data is never an error.
func (q *Queue) Pending(forCwd string) []Message {
	f, err := os.Open(q.path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		if msg.Uploaded {
			continue
		}
		if forCwd != "" && msg.CWD != forCwd {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// Clear truncates the queue to empty.
func (q *Queue) Clear() error {
	if _, err := os.Stat(q.path); os.IsNotExist(err) {
		return nil
	}
	if err := os.Truncate(q.path, 0); err != nil {
		return fmt.Errorf("truncate queue: %w", err)
	}
	return nil
}

// MarkUploaded removes the messages for a working directory after the
// remote confirms upload; with an empty cwd the whole queue is cleared.
// The removal is a selective physical delete: the replacement content is
// built fully in memory and written in one atomic replace, so a crash
// leaves either the old file or a valid new one. Lines that fail to
// parse are conservatively kept, since a corrupt line's ownership is
// unknown. The whole operation is best-effort; failures are swallowed
// and the file keeps its prior state.
func (q *Queue) MarkUploaded(forCwd string) {
	if forCwd == "" {
		_ = q.Clear()
		return
	}

	f, err := os.Open(q.path)
	if err != nil {
		return
	}

	var kept [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			kept = append(kept, append([]byte(nil), line...))
			continue
		}
		if msg.CWD != forCwd {
			kept = append(kept, append([]byte(nil), line...))
		}
	}
	f.Close()
	if scanner.Err() != nil {
		return
	}

	var buf bytes.Buffer
	for _, line := range kept {
		buf.Write(line)
		buf.WriteByte('\n')
	}

	dir := filepath.Dir(q.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(q.path)+".tmp-*")
	if err != nil {
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return
	}
	if err := os.Rename(tmpName, q.path); err != nil {
		os.Remove(tmpName)
	}
}
