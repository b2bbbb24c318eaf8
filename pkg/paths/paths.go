// Package paths defines the well-known on-disk locations recall uses.
// Every persisted artifact lives under a single data directory so that
// concurrent hook processes agree on where state lives.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const EnvRecallDataDir = "RECALL_DATA_DIR"

// DataDir returns the base directory for all recall state.
// Resolution order: RECALL_DATA_DIR, then ~/.recall, then .recall
// relative to the working directory when no home is available.
func DataDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvRecallDataDir)); dir != "" {
		return filepath.Clean(expandHomePath(dir))
	}
	if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
		return filepath.Join(home, ".recall")
	}
	return ".recall"
}

func expandHomePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	return path
}

// IdentityCachePath is the identity cache document (workspace/peer/session ids).
func IdentityCachePath() string {
	return filepath.Join(DataDir(), "identity.json")
}

// ContextCachePath is the cached remote context snapshot.
func ContextCachePath() string {
	return filepath.Join(DataDir(), "context.json")
}

// QueuePath is the append-only outgoing message log.
func QueuePath() string {
	return filepath.Join(DataDir(), "message-queue.jsonl")
}

// WorkLogPath is the human-readable running work log.
func WorkLogPath() string {
	return filepath.Join(DataDir(), "work-log.md")
}

// GitStatePath is the last captured git state, kept for change detection
// between hook invocations.
func GitStatePath() string {
	return filepath.Join(DataDir(), "git-state.json")
}

// ConfigPath is the user-level configuration file.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// LogsDir holds diagnostic JSONL logs.
func LogsDir() string {
	return filepath.Join(DataDir(), "logs")
}
