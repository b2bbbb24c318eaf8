package hooks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/odvcencio/recall/pkg/cache"
	"github.com/odvcencio/recall/pkg/config"
	"github.com/odvcencio/recall/pkg/honcho"
	"github.com/odvcencio/recall/pkg/queue"
	"github.com/odvcencio/recall/pkg/worklog"
)

// fakeRemote implements the remote interface in memory.
type fakeRemote struct {
	mu sync.Mutex

	failAll bool

	workspaceCalls int
	peerCalls      int
	sessionCalls   int
	contextCalls   int
	summaryCalls   int
	flagCalls      int

	userContext  *honcho.PeerContext
	agentContext *honcho.PeerContext
	summaries    []string
	dialectic    string

	added []honcho.MessageInput
}

var errRemoteDown = errors.New("service unavailable")

func (f *fakeRemote) GetOrCreateWorkspace(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workspaceCalls++
	if f.failAll {
		return "", errRemoteDown
	}
	return "ws-" + name, nil
}

func (f *fakeRemote) GetOrCreatePeer(ctx context.Context, workspaceID, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.peerCalls++
	if f.failAll {
		return "", errRemoteDown
	}
	return "peer-" + name, nil
}

func (f *fakeRemote) GetOrCreateSession(ctx context.Context, workspaceID, name string, metadata map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionCalls++
	if f.failAll {
		return "", errRemoteDown
	}
	return "sess-" + name, nil
}

func (f *fakeRemote) SetSessionPeerFlags(ctx context.Context, workspaceID, sessionID, peerID string, observeMe, observeOthers bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flagCalls++
	if f.failAll {
		return errRemoteDown
	}
	return nil
}

func (f *fakeRemote) AddMessages(ctx context.Context, workspaceID, sessionID string, msgs []honcho.MessageInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errRemoteDown
	}
	f.added = append(f.added, msgs...)
	return nil
}

func (f *fakeRemote) PeerContextSnapshot(ctx context.Context, workspaceID, peerID string, opts honcho.ContextOptions) (*honcho.PeerContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contextCalls++
	if f.failAll {
		return nil, errRemoteDown
	}
	if strings.Contains(peerID, "assistant") {
		if f.agentContext == nil {
			return &honcho.PeerContext{}, nil
		}
		return f.agentContext, nil
	}
	if f.userContext == nil {
		return &honcho.PeerContext{}, nil
	}
	return f.userContext, nil
}

func (f *fakeRemote) SessionSummaries(ctx context.Context, workspaceID, sessionID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryCalls++
	if f.failAll {
		return nil, errRemoteDown
	}
	return f.summaries, nil
}

func (f *fakeRemote) DialecticQuery(ctx context.Context, workspaceID, peerID, query string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return "", errRemoteDown
	}
	return f.dialectic, nil
}

func newTestRunner(t *testing.T, cfg *config.Config, client remote) *Runner {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("RECALL_DATA_DIR", dir)

	identity := cache.NewIdentityCache(filepath.Join(dir, "identity.json"))
	ctxCache := cache.NewContextCache(filepath.Join(dir, "context.json"), cfg.ContextTTL(), cfg.Cache.RefreshThreshold)
	q := queue.New(filepath.Join(dir, "queue.jsonl"), identity)
	wl := worklog.New(filepath.Join(dir, "work-log.md"), cfg.WorkLog.MaxEntries)
	return newRunner(cfg, nil, identity, ctxCache, q, wl, client)
}

func TestSessionStartEmitsFetchedContext(t *testing.T) {
	fake := &fakeRemote{
		userContext: &honcho.PeerContext{
			Facts:    []string{"prefers table-driven tests"},
			Insights: []string{"works on storage layers"},
		},
		summaries: []string{"built the queue flush path"},
	}
	r := newTestRunner(t, config.DefaultConfig(), fake)

	out, err := r.SessionStart(context.Background(), Input{CWD: t.TempDir()})
	if err != nil {
		t.Fatalf("SessionStart failed: %v", err)
	}
	if !strings.Contains(out, "[honcho-memory]") || !strings.Contains(out, "[end-memory]") {
		t.Fatalf("output missing memory markers: %q", out)
	}
	if !strings.Contains(out, "prefers table-driven tests") {
		t.Errorf("output missing user fact: %q", out)
	}
	if !strings.Contains(out, "built the queue flush path") {
		t.Errorf("output missing session summary: %q", out)
	}
}

func TestSessionStartCachesIdentity(t *testing.T) {
	fake := &fakeRemote{}
	r := newTestRunner(t, config.DefaultConfig(), fake)
	cwd := t.TempDir()

	if _, err := r.SessionStart(context.Background(), Input{CWD: cwd}); err != nil {
		t.Fatalf("first SessionStart failed: %v", err)
	}
	if fake.workspaceCalls != 1 || fake.sessionCalls != 1 {
		t.Fatalf("expected one get-or-create each, got ws=%d sess=%d", fake.workspaceCalls, fake.sessionCalls)
	}

	if _, err := r.SessionStart(context.Background(), Input{CWD: cwd}); err != nil {
		t.Fatalf("second SessionStart failed: %v", err)
	}
	if fake.workspaceCalls != 1 || fake.peerCalls != 2 || fake.sessionCalls != 1 {
		t.Errorf("cached ids should prevent repeat resolution: ws=%d peer=%d sess=%d",
			fake.workspaceCalls, fake.peerCalls, fake.sessionCalls)
	}
}

func TestSessionStartDegradesWhenRemoteDown(t *testing.T) {
	fake := &fakeRemote{failAll: true}
	r := newTestRunner(t, config.DefaultConfig(), fake)

	out, err := r.SessionStart(context.Background(), Input{CWD: t.TempDir()})
	if err != nil {
		t.Fatalf("remote failure must not fail the hook: %v", err)
	}
	if !strings.Contains(out, "[honcho-memory]") {
		t.Errorf("markers must be emitted even with no remote context: %q", out)
	}
}

func TestSessionStartFlushesQueueForCwd(t *testing.T) {
	fake := &fakeRemote{}
	r := newTestRunner(t, config.DefaultConfig(), fake)
	cwd := t.TempDir()

	if err := r.queue.Enqueue("pending one", "", cwd, "inst"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := r.queue.Enqueue("other dir", "", "/elsewhere", "inst"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, err := r.SessionStart(context.Background(), Input{CWD: cwd}); err != nil {
		t.Fatalf("SessionStart failed: %v", err)
	}

	if len(fake.added) != 1 || fake.added[0].Content != "pending one" {
		t.Fatalf("expected exactly the cwd-scoped message uploaded, got %v", fake.added)
	}
	if fake.added[0].PeerID == "" {
		t.Error("uploaded message should carry the resolved peer id")
	}
	if got := r.queue.Pending(cwd); len(got) != 0 {
		t.Errorf("flushed messages must be removed, still pending: %v", got)
	}
	if got := r.queue.Pending("/elsewhere"); len(got) != 1 {
		t.Errorf("other directories' messages must survive the flush: %v", got)
	}
}

func TestSessionStartKeepsQueueOnUploadFailure(t *testing.T) {
	fake := &fakeRemote{}
	r := newTestRunner(t, config.DefaultConfig(), fake)
	cwd := t.TempDir()

	// Identity resolves on the first run, then the service goes dark.
	if _, err := r.SessionStart(context.Background(), Input{CWD: cwd}); err != nil {
		t.Fatalf("SessionStart failed: %v", err)
	}
	if err := r.queue.Enqueue("stuck", "", cwd, "inst"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	fake.failAll = true

	if _, err := r.SessionStart(context.Background(), Input{CWD: cwd}); err != nil {
		t.Fatalf("SessionStart failed: %v", err)
	}
	if got := r.queue.Pending(cwd); len(got) != 1 {
		t.Errorf("failed upload must leave the queue intact, got %v", got)
	}
}

func TestUserPromptEnqueuesPrompt(t *testing.T) {
	fake := &fakeRemote{}
	r := newTestRunner(t, config.DefaultConfig(), fake)
	cwd := t.TempDir()

	if _, err := r.UserPrompt(context.Background(), Input{CWD: cwd, Prompt: "add a retry flag"}); err != nil {
		t.Fatalf("UserPrompt failed: %v", err)
	}
	pending := r.queue.Pending(cwd)
	if len(pending) != 1 || pending[0].Content != "add a retry flag" {
		t.Fatalf("prompt should be queued for upload, got %v", pending)
	}
}

func TestUserPromptServesCachedContext(t *testing.T) {
	fake := &fakeRemote{
		userContext: &honcho.PeerContext{Facts: []string{"ships small commits"}},
	}
	r := newTestRunner(t, config.DefaultConfig(), fake)
	cwd := t.TempDir()

	if _, err := r.SessionStart(context.Background(), Input{CWD: cwd}); err != nil {
		t.Fatalf("SessionStart failed: %v", err)
	}
	fetchesAfterStart := fake.contextCalls

	out, err := r.UserPrompt(context.Background(), Input{CWD: cwd, Prompt: "hi"})
	if err != nil {
		t.Fatalf("UserPrompt failed: %v", err)
	}
	if !strings.Contains(out, "ships small commits") {
		t.Errorf("prompt context should serve the cached fact: %q", out)
	}
	if fake.contextCalls != fetchesAfterStart {
		t.Error("below the refresh threshold no fetch should happen")
	}
}

func TestUserPromptDeepRefreshAtThreshold(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cache.RefreshThreshold = 2
	fake := &fakeRemote{
		userContext: &honcho.PeerContext{Facts: []string{"fact"}},
	}
	r := newTestRunner(t, cfg, fake)
	cwd := t.TempDir()

	if _, err := r.SessionStart(context.Background(), Input{CWD: cwd}); err != nil {
		t.Fatalf("SessionStart failed: %v", err)
	}
	base := fake.contextCalls

	for i := 0; i < 2; i++ {
		if _, err := r.UserPrompt(context.Background(), Input{CWD: cwd, Prompt: "p"}); err != nil {
			t.Fatalf("UserPrompt failed: %v", err)
		}
	}
	if fake.contextCalls != base+1 {
		t.Errorf("expected exactly one refresh fetch at the threshold, got %d extra", fake.contextCalls-base)
	}

	// Counter was reset by the refresh; the next prompt stays cached.
	if _, err := r.UserPrompt(context.Background(), Input{CWD: cwd, Prompt: "p"}); err != nil {
		t.Fatalf("UserPrompt failed: %v", err)
	}
	if fake.contextCalls != base+1 {
		t.Error("refresh threshold should re-arm after MarkRefreshed")
	}
}

func TestPreCompactAnchorsCachedMemory(t *testing.T) {
	fake := &fakeRemote{
		userContext: &honcho.PeerContext{Facts: []string{"keeps notes in markdown"}},
	}
	r := newTestRunner(t, config.DefaultConfig(), fake)
	cwd := t.TempDir()

	if _, err := r.SessionStart(context.Background(), Input{CWD: cwd}); err != nil {
		t.Fatalf("SessionStart failed: %v", err)
	}

	out, err := r.PreCompact(context.Background(), Input{CWD: cwd})
	if err != nil {
		t.Fatalf("PreCompact failed: %v", err)
	}
	if !strings.Contains(out, "(PRESERVE)") {
		t.Fatalf("anchor output missing preserve sections: %q", out)
	}
	if !strings.Contains(out, "keeps notes in markdown") {
		t.Errorf("anchor should carry cached facts: %q", out)
	}
}

func TestSessionEndWritesWorkLog(t *testing.T) {
	fake := &fakeRemote{}
	r := newTestRunner(t, config.DefaultConfig(), fake)
	cwd := t.TempDir()

	transcript := filepath.Join(t.TempDir(), "transcript.jsonl")
	lines := strings.Join([]string{
		`{"role":"user","content":"please fix the cache"}`,
		`{"role":"assistant","content":"Fixed the cache TTL boundary. More detail follows."}`,
		`not json at all`,
		`{"role":"assistant","content":[{"type":"text","text":"Updated the queue flush logic."}]}`,
	}, "\n")
	if err := os.WriteFile(transcript, []byte(lines), 0644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}

	if err := r.workLog.AppendEntry("earlier work survives"); err != nil {
		t.Fatalf("seed work log: %v", err)
	}

	if err := r.SessionEnd(context.Background(), Input{CWD: cwd, TranscriptPath: transcript}); err != nil {
		t.Fatalf("SessionEnd failed: %v", err)
	}

	text := r.workLog.Load()
	if !strings.Contains(text, "Fixed the cache TTL boundary") {
		t.Errorf("work log missing extracted action: %q", text)
	}
	if !strings.Contains(text, "Updated the queue flush logic") {
		t.Errorf("work log missing block-content action: %q", text)
	}
	if !strings.Contains(text, "earlier work survives") {
		t.Errorf("prior activity must be re-merged: %q", text)
	}

	// The generated summary was enqueued and then flushed remotely.
	found := false
	for _, m := range fake.added {
		if strings.Contains(m.Content, "Fixed the cache TTL boundary") {
			found = true
		}
	}
	if !found {
		t.Error("session summary should be uploaded")
	}
}
