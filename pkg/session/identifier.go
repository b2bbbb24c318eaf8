// Package session derives stable names and fresh identifiers for the
// workspace, session, and hook instance. Names are deterministic per
// working directory so the remote get-or-create calls converge; ids are
// unique per run.
package session

import (
	cryptorand "crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/odvcencio/recall/pkg/gitstate"
)

// DetermineSessionName returns the deterministic session name for a
// working directory: repo name plus branch inside a git repository,
// directory name plus a path hash elsewhere.
func DetermineSessionName(cwd string) string {
	if state, err := gitstate.Capture(cwd); err == nil && state.RepoName != "" {
		branch := state.Branch
		if branch == "" {
			branch = "unknown"
		}
		return fmt.Sprintf("%s-%s", state.RepoName, branch)
	}

	dirName := filepath.Base(cwd)
	return fmt.Sprintf("%s-%s", dirName, shortHash(cwd))
}

// DetermineWorkspaceName returns the workspace name for a working
// directory: the repo name when inside a git repository, else the
// directory base name.
func DetermineWorkspaceName(cwd string) string {
	if state, err := gitstate.Capture(cwd); err == nil && state.RepoName != "" {
		return state.RepoName
	}
	return filepath.Base(cwd)
}

// shortHash generates a short hash of a string
func shortHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:4])
}

// DefaultSessionName returns the session name for the current working
// directory.
func DefaultSessionName() string {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Sprintf("default-%s", shortHash(fmt.Sprintf("%d", os.Getpid())))
	}
	return DetermineSessionName(cwd)
}

var sessionNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9\-]`)
var ulidEntropy = ulid.Monotonic(cryptorand.Reader, 0)

// GenerateRunID returns a unique identifier for one hook run using the
// provided base name, suitable for naming diagnostic log streams.
func GenerateRunID(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "run"
	}
	base = strings.ToLower(strings.ReplaceAll(base, " ", "-"))
	base = sessionNameSanitizer.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "run"
	}

	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
	return fmt.Sprintf("%s-%s", base, strings.ToLower(id))
}

// NewInstanceID returns a fresh identifier distinguishing one
// concurrently running agent session from another sharing the same
// local cache directory.
func NewInstanceID() string {
	return uuid.NewString()
}
