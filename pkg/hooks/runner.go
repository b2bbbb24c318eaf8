// Package hooks orchestrates the per-event pipelines behind the hook
// commands: resolving identities, refreshing caches, flushing the
// message queue, and rendering context for the host to inject. Each
// hook process is short-lived; everything that must survive it lives in
// the caches and logs under the data directory.
package hooks

import (
	"context"
	"encoding/json"

	"github.com/odvcencio/recall/pkg/cache"
	"github.com/odvcencio/recall/pkg/config"
	"github.com/odvcencio/recall/pkg/contextfmt"
	"github.com/odvcencio/recall/pkg/gitstate"
	"github.com/odvcencio/recall/pkg/honcho"
	"github.com/odvcencio/recall/pkg/logging"
	"github.com/odvcencio/recall/pkg/paths"
	"github.com/odvcencio/recall/pkg/queue"
	"github.com/odvcencio/recall/pkg/session"
	"github.com/odvcencio/recall/pkg/worklog"
)

const (
	defaultUserPeerName  = "user"
	defaultAgentPeerName = "assistant"
)

// observationLimits bounds how far back the remote derives a context
// snapshot, per tier.
var observationLimits = map[contextfmt.Tier]int{
	contextfmt.TierEssential: 10,
	contextfmt.TierExtended:  25,
	contextfmt.TierDeep:      50,
}

// Input is the payload the host writes to a hook's stdin.
type Input struct {
	CWD            string `json:"cwd"`
	SessionID      string `json:"session_id"`
	HookEventName  string `json:"hook_event_name"`
	Prompt         string `json:"prompt,omitempty"`
	Source         string `json:"source,omitempty"`
	TranscriptPath string `json:"transcript_path,omitempty"`
}

// remote is the subset of the knowledge-service client the pipelines
// call. Satisfied by *honcho.Client.
type remote interface {
	GetOrCreateWorkspace(ctx context.Context, name string) (string, error)
	GetOrCreatePeer(ctx context.Context, workspaceID, name string) (string, error)
	GetOrCreateSession(ctx context.Context, workspaceID, name string, metadata map[string]any) (string, error)
	SetSessionPeerFlags(ctx context.Context, workspaceID, sessionID, peerID string, observeMe, observeOthers bool) error
	AddMessages(ctx context.Context, workspaceID, sessionID string, msgs []honcho.MessageInput) error
	PeerContextSnapshot(ctx context.Context, workspaceID, peerID string, opts honcho.ContextOptions) (*honcho.PeerContext, error)
	SessionSummaries(ctx context.Context, workspaceID, sessionID string) ([]string, error)
	DialecticQuery(ctx context.Context, workspaceID, peerID, query string) (string, error)
}

// Runner executes hook pipelines against the shared local state.
type Runner struct {
	cfg      *config.Config
	logger   *logging.Logger
	identity *cache.IdentityCache
	ctxCache *cache.ContextCache
	queue    *queue.Queue
	workLog  *worklog.Log
	client   remote
}

// New wires a Runner against the well-known data-directory paths.
func New(cfg *config.Config, logger *logging.Logger) *Runner {
	identity := cache.NewIdentityCache(paths.IdentityCachePath())
	client := honcho.NewClient(honcho.Options{
		BaseURL: cfg.Service.BaseURL,
		APIKey:  cfg.Service.APIKey,
		Timeout: cfg.ServiceTimeout(),
	})
	return newRunner(cfg, logger, identity,
		cache.NewContextCache(paths.ContextCachePath(), cfg.ContextTTL(), cfg.Cache.RefreshThreshold),
		queue.New(paths.QueuePath(), identity),
		worklog.New(paths.WorkLogPath(), cfg.WorkLog.MaxEntries),
		client,
	)
}

func newRunner(cfg *config.Config, logger *logging.Logger, identity *cache.IdentityCache, ctxCache *cache.ContextCache, q *queue.Queue, workLog *worklog.Log, client remote) *Runner {
	return &Runner{
		cfg:      cfg,
		logger:   logger,
		identity: identity,
		ctxCache: ctxCache,
		queue:    q,
		workLog:  workLog,
		client:   client,
	}
}

// resolvedIDs carries the identity set one pipeline run works with.
// Remote-assigned id fields stay empty when resolution fails; the
// pipelines then skip the remote sections and fall back to local state.
type resolvedIDs struct {
	workspaceName string
	peerName      string
	agentName     string
	sessionName   string

	workspaceID string
	peerID      string
	agentPeerID string
	sessionID   string
	instanceID  string
}

func (ids *resolvedIDs) remoteReady() bool {
	return ids.workspaceID != "" && ids.peerID != ""
}

// localNames fills in the name-side of the identity set without any
// remote traffic.
func (r *Runner) localNames(cwd string) *resolvedIDs {
	ids := &resolvedIDs{
		workspaceName: r.cfg.Service.WorkspaceName,
		peerName:      r.cfg.Service.PeerName,
		agentName:     defaultAgentPeerName,
		sessionName:   session.DetermineSessionName(cwd),
	}
	if ids.workspaceName == "" {
		ids.workspaceName = session.DetermineWorkspaceName(cwd)
	}
	if ids.peerName == "" {
		ids.peerName = defaultUserPeerName
	}

	if id, ok := r.identity.InstanceID(); ok {
		ids.instanceID = id
	} else {
		ids.instanceID = session.NewInstanceID()
		if err := r.identity.SetInstanceID(ids.instanceID); err != nil {
			r.logger.Warn(logging.CategoryCache, "instance_id_persist_failed", err.Error(), nil)
		}
	}
	return ids
}

// resolveCached fills remote-assigned ids from the identity cache only.
func (r *Runner) resolveCached(cwd string, ids *resolvedIDs) {
	if id, ok := r.identity.WorkspaceID(ids.workspaceName); ok {
		ids.workspaceID = id
	}
	if id, ok := r.identity.PeerID(ids.peerName); ok {
		ids.peerID = id
	}
	if id, ok := r.identity.PeerID(ids.agentName); ok {
		ids.agentPeerID = id
	}
	if id, ok := r.identity.SessionID(cwd); ok {
		ids.sessionID = id
	}
}

// resolveRemote performs the get-or-create calls for ids still missing
// after the cache pass. Any failure is logged and leaves the id empty;
// the caller degrades to local-only context.
func (r *Runner) resolveRemote(ctx context.Context, cwd string, ids *resolvedIDs) {
	if ids.workspaceID == "" {
		id, err := r.client.GetOrCreateWorkspace(ctx, ids.workspaceName)
		if err != nil {
			r.logger.Warn(logging.CategoryNetwork, "workspace_resolve_failed", err.Error(), nil)
			return
		}
		ids.workspaceID = id
		if err := r.identity.SetWorkspaceID(ids.workspaceName, id); err != nil {
			r.logger.Warn(logging.CategoryCache, "workspace_id_persist_failed", err.Error(), nil)
		}
	}

	if ids.peerID == "" {
		id, err := r.client.GetOrCreatePeer(ctx, ids.workspaceID, ids.peerName)
		if err != nil {
			r.logger.Warn(logging.CategoryNetwork, "peer_resolve_failed", err.Error(), nil)
		} else {
			ids.peerID = id
			if err := r.identity.SetPeerID(ids.peerName, id); err != nil {
				r.logger.Warn(logging.CategoryCache, "peer_id_persist_failed", err.Error(), nil)
			}
		}
	}

	if ids.agentPeerID == "" {
		id, err := r.client.GetOrCreatePeer(ctx, ids.workspaceID, ids.agentName)
		if err != nil {
			r.logger.Warn(logging.CategoryNetwork, "agent_peer_resolve_failed", err.Error(), nil)
		} else {
			ids.agentPeerID = id
			if err := r.identity.SetPeerID(ids.agentName, id); err != nil {
				r.logger.Warn(logging.CategoryCache, "agent_peer_id_persist_failed", err.Error(), nil)
			}
		}
	}

	if ids.sessionID == "" {
		id, err := r.client.GetOrCreateSession(ctx, ids.workspaceID, ids.sessionName, map[string]any{
			"cwd":         cwd,
			"instance_id": ids.instanceID,
		})
		if err != nil {
			r.logger.Warn(logging.CategoryNetwork, "session_resolve_failed", err.Error(), nil)
			return
		}
		ids.sessionID = id
		if err := r.identity.SetSessionID(cwd, ids.sessionName, id); err != nil {
			r.logger.Warn(logging.CategoryCache, "session_id_persist_failed", err.Error(), nil)
		}
		if ids.peerID != "" {
			if err := r.client.SetSessionPeerFlags(ctx, ids.workspaceID, id, ids.peerID, true, false); err != nil {
				r.logger.Warn(logging.CategoryNetwork, "session_flags_failed", err.Error(), nil)
			}
		}
	}
}

// formatOptions builds the formatter options from config.
func (r *Runner) formatOptions() contextfmt.Options {
	return contextfmt.Options{
		Tier:             contextfmt.ParseTier(r.cfg.Context.Tier),
		MaxTokens:        r.cfg.Context.MaxTokens,
		IncludeDialectic: r.cfg.Context.IncludeDialectic,
		Compressed:       r.cfg.Context.Compressed,
	}
}

// entityFromRaw decodes a cached context section into formatter input.
// Undecodable cache payloads are treated as absent.
func entityFromRaw(raw json.RawMessage) *contextfmt.EntityContext {
	if len(raw) == 0 {
		return nil
	}
	var pc honcho.PeerContext
	if err := json.Unmarshal(raw, &pc); err != nil {
		return nil
	}
	return &contextfmt.EntityContext{
		Facts:    contextfmt.DedupFacts(pc.Facts),
		Insights: pc.Insights,
		Profile:  pc.Profile,
	}
}

func summariesFromRaw(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// cachedEntities pulls whatever fresh sections the context cache holds.
func (r *Runner) cachedEntities() (user, agent *contextfmt.EntityContext, summaries []string) {
	if raw, ok := r.ctxCache.UserContext(); ok {
		user = entityFromRaw(raw)
	}
	if raw, ok := r.ctxCache.AgentContext(); ok {
		agent = entityFromRaw(raw)
	}
	if raw, ok := r.ctxCache.Summaries(); ok {
		summaries = summariesFromRaw(raw)
	}
	return user, agent, summaries
}

// captureGit reads git context for cwd and diffs it against the stored
// previous capture. Non-repo directories yield all-nil results.
func (r *Runner) captureGit(cwd string) (*gitstate.State, *gitstate.FeatureContext, []gitstate.Change) {
	cur, err := gitstate.Capture(cwd)
	if err != nil {
		return nil, nil, nil
	}
	prev := gitstate.LoadPrevious(cwd)
	changes := gitstate.Diff(prev, cur)

	commits, err := gitstate.RecentCommits(cwd, 5)
	if err != nil {
		r.logger.Debug(logging.CategoryGit, "recent_commits_failed", err.Error(), nil)
	}
	feature := gitstate.InferFeature(cur, commits)

	if err := gitstate.SavePrevious(cwd, cur); err != nil {
		r.logger.Warn(logging.CategoryGit, "git_state_persist_failed", err.Error(), nil)
	}
	return cur, feature, changes
}
