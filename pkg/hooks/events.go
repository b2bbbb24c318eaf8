package hooks

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/recall/pkg/contextfmt"
	"github.com/odvcencio/recall/pkg/gitstate"
	"github.com/odvcencio/recall/pkg/honcho"
	"github.com/odvcencio/recall/pkg/logging"
)

const dialecticQuery = "What should the assistant keep in mind about this user's current work and preferences?"

// SessionStart runs the full pipeline for a new host session and
// returns the context block to inject. Remote failures degrade to
// whatever local state provides; only local write failures are errors.
func (r *Runner) SessionStart(ctx context.Context, in Input) (string, error) {
	if err := r.ctxCache.ResetMessageCount(); err != nil {
		return "", fmt.Errorf("reset message count: %w", err)
	}

	ids := r.localNames(in.CWD)
	r.resolveCached(in.CWD, ids)
	r.resolveRemote(ctx, in.CWD, ids)

	user, agent, summaries := r.cachedEntities()
	opts := r.formatOptions()

	var dialectic string
	if ids.remoteReady() {
		limit := observationLimits[opts.Tier]
		var userPC, agentPC *honcho.PeerContext
		var freshSummaries []string

		g, gctx := errgroup.WithContext(ctx)
		if user == nil {
			g.Go(func() error {
				pc, err := r.client.PeerContextSnapshot(gctx, ids.workspaceID, ids.peerID, honcho.ContextOptions{
					ObservationLimit: limit,
					MostDerivedFirst: true,
				})
				if err != nil {
					r.logger.Warn(logging.CategoryNetwork, "user_context_fetch_failed", err.Error(), nil)
					return nil
				}
				userPC = pc
				return nil
			})
		}
		if agent == nil && ids.agentPeerID != "" {
			g.Go(func() error {
				pc, err := r.client.PeerContextSnapshot(gctx, ids.workspaceID, ids.agentPeerID, honcho.ContextOptions{
					ObservationLimit: limit,
				})
				if err != nil {
					r.logger.Warn(logging.CategoryNetwork, "agent_context_fetch_failed", err.Error(), nil)
					return nil
				}
				agentPC = pc
				return nil
			})
		}
		if summaries == nil && ids.sessionID != "" {
			g.Go(func() error {
				s, err := r.client.SessionSummaries(gctx, ids.workspaceID, ids.sessionID)
				if err != nil {
					r.logger.Warn(logging.CategoryNetwork, "summaries_fetch_failed", err.Error(), nil)
					return nil
				}
				freshSummaries = s
				return nil
			})
		}
		if opts.Tier == contextfmt.TierDeep && opts.IncludeDialectic {
			g.Go(func() error {
				answer, err := r.client.DialecticQuery(gctx, ids.workspaceID, ids.peerID, dialecticQuery)
				if err != nil {
					r.logger.Warn(logging.CategoryNetwork, "dialectic_failed", err.Error(), nil)
					return nil
				}
				dialectic = answer
				return nil
			})
		}
		g.Wait()

		// Persist after the fan-out so a single writer updates the
		// cache document.
		if userPC != nil {
			user = r.storeUserContext(userPC)
		}
		if agentPC != nil {
			agent = r.storeAgentContext(agentPC)
		}
		if freshSummaries != nil {
			summaries = freshSummaries
			if raw, err := json.Marshal(freshSummaries); err == nil {
				if err := r.ctxCache.SetSummaries(raw); err != nil {
					r.logger.Warn(logging.CategoryCache, "summaries_persist_failed", err.Error(), nil)
				}
			}
		}
	}

	r.flushQueue(ctx, in.CWD, ids)

	git, feature, changes := r.captureGit(in.CWD)

	// Detected repo changes go into the activity log too, so the next
	// session sees them even when the remote is unreachable.
	for _, c := range changes {
		if err := r.workLog.AppendEntry(c.Description); err != nil {
			r.logger.Warn(logging.CategoryGit, "work_log_append_failed", err.Error(), nil)
			break
		}
	}

	full := &contextfmt.FullContext{
		UserName:  ids.peerName,
		AgentName: ids.agentName,
		User:      user,
		Agent:     agent,
		Session: &contextfmt.SessionContext{
			Name:      ids.sessionName,
			ID:        ids.sessionID,
			Summaries: summaries,
		},
		Git:     git,
		Feature: feature,
		Changes: changes,
		WorkLog: r.workLog.Load(),
	}
	if dialectic != "" && full.User != nil {
		full.User.Dialectic = dialectic
	}

	r.logger.Info(logging.CategoryHook, "session_start", "", map[string]any{
		"cwd":          in.CWD,
		"session_name": ids.sessionName,
		"remote":       ids.remoteReady(),
		"tier":         string(opts.Tier),
	})

	out := contextfmt.FormatContext(full, opts)
	r.logger.Debug(logging.CategoryFormat, "context_rendered", "", map[string]any{
		"estimated_tokens": contextfmt.EstimateTokens(out),
		"exact_tokens":     contextfmt.CountTokens(out),
	})
	return out, nil
}

// UserPrompt counts the message, refreshes deep context when the
// threshold is hit, queues the prompt for upload, and returns the
// lightweight per-prompt context line.
func (r *Runner) UserPrompt(ctx context.Context, in Input) (string, error) {
	count, err := r.ctxCache.IncrementMessageCount()
	if err != nil {
		return "", fmt.Errorf("increment message count: %w", err)
	}

	ids := r.localNames(in.CWD)
	r.resolveCached(in.CWD, ids)

	if r.ctxCache.ShouldRefreshDeepContext() && ids.remoteReady() {
		pc, err := r.client.PeerContextSnapshot(ctx, ids.workspaceID, ids.peerID, honcho.ContextOptions{
			ObservationLimit: observationLimits[contextfmt.ParseTier(r.cfg.Context.Tier)],
			MostDerivedFirst: true,
		})
		if err != nil {
			r.logger.Warn(logging.CategoryNetwork, "deep_refresh_failed", err.Error(), nil)
		} else {
			r.storeUserContext(pc)
			if err := r.ctxCache.MarkRefreshed(); err != nil {
				r.logger.Warn(logging.CategoryCache, "mark_refreshed_failed", err.Error(), nil)
			}
			r.logger.Info(logging.CategoryCache, "deep_refresh", "", map[string]any{"message_count": count})
		}
	}

	if in.Prompt != "" {
		if err := r.queue.Enqueue(in.Prompt, ids.peerID, in.CWD, ids.instanceID); err != nil {
			return "", fmt.Errorf("enqueue prompt: %w", err)
		}
	}

	var user *contextfmt.EntityContext
	if raw, ok := r.ctxCache.UserContext(); ok {
		user = entityFromRaw(raw)
	}
	return contextfmt.FormatPromptContext(ids.peerName, user), nil
}

// PreCompact renders the memory anchor so marked content survives the
// host's summarization pass. Purely local.
func (r *Runner) PreCompact(ctx context.Context, in Input) (string, error) {
	ids := r.localNames(in.CWD)
	r.resolveCached(in.CWD, ids)

	user, agent, summaries := r.cachedEntities()
	git, feature, changes := r.captureGit(in.CWD)

	full := &contextfmt.FullContext{
		UserName:  ids.peerName,
		AgentName: ids.agentName,
		User:      user,
		Agent:     agent,
		Session: &contextfmt.SessionContext{
			Name:      ids.sessionName,
			ID:        ids.sessionID,
			Summaries: summaries,
		},
		Git:     git,
		Feature: feature,
		Changes: changes,
		WorkLog: r.workLog.Load(),
	}
	r.logger.Info(logging.CategoryHook, "pre_compact", "", map[string]any{"cwd": in.CWD})
	return contextfmt.FormatMemoryAnchor(full), nil
}

// SessionEnd regenerates the work log from the session transcript,
// re-merging prior activity, and makes a best-effort attempt to upload
// everything still queued.
func (r *Runner) SessionEnd(ctx context.Context, in Input) error {
	ids := r.localNames(in.CWD)
	r.resolveCached(in.CWD, ids)

	assistantMessages := readAssistantMessages(in.TranscriptPath)

	var workItems []string
	if commits, err := gitstate.RecentCommits(in.CWD, 5); err == nil {
		for _, c := range commits {
			workItems = append(workItems, c.Subject)
		}
	}

	prior := r.workLog.Load()
	fresh := r.workLog.GenerateSummary(ids.sessionName, workItems, assistantMessages)
	if err := r.workLog.Save(r.workLog.MergeRecentActivity(prior, fresh)); err != nil {
		return fmt.Errorf("save work log: %w", err)
	}

	if err := r.queue.Enqueue(fresh, ids.peerID, in.CWD, ids.instanceID); err != nil {
		r.logger.Warn(logging.CategoryQueue, "summary_enqueue_failed", err.Error(), nil)
	}

	// Upload is opportunistic here; whatever stays queued is flushed by
	// the next session-start.
	r.resolveRemote(ctx, in.CWD, ids)
	r.flushQueue(ctx, in.CWD, ids)

	r.logger.Info(logging.CategoryHook, "session_end", "", map[string]any{
		"cwd":        in.CWD,
		"assistants": len(assistantMessages),
	})
	return nil
}

// storeUserContext caches a fetched snapshot and returns its formatter
// view. Persist failures are logged; the fetched data still serves the
// current invocation.
func (r *Runner) storeUserContext(pc *honcho.PeerContext) *contextfmt.EntityContext {
	if raw, err := json.Marshal(pc); err == nil {
		if err := r.ctxCache.SetUserContext(raw); err != nil {
			r.logger.Warn(logging.CategoryCache, "user_context_persist_failed", err.Error(), nil)
		}
	}
	return &contextfmt.EntityContext{
		Facts:    contextfmt.DedupFacts(pc.Facts),
		Insights: pc.Insights,
		Profile:  pc.Profile,
	}
}

func (r *Runner) storeAgentContext(pc *honcho.PeerContext) *contextfmt.EntityContext {
	if raw, err := json.Marshal(pc); err == nil {
		if err := r.ctxCache.SetAgentContext(raw); err != nil {
			r.logger.Warn(logging.CategoryCache, "agent_context_persist_failed", err.Error(), nil)
		}
	}
	return &contextfmt.EntityContext{
		Facts:    contextfmt.DedupFacts(pc.Facts),
		Insights: pc.Insights,
		Profile:  pc.Profile,
	}
}

// flushQueue uploads the pending messages for cwd and physically
// removes them on confirmation. Failures leave the queue untouched.
func (r *Runner) flushQueue(ctx context.Context, cwd string, ids *resolvedIDs) {
	if ids.workspaceID == "" || ids.sessionID == "" {
		return
	}
	pending := r.queue.Pending(cwd)
	if len(pending) == 0 {
		return
	}

	msgs := make([]honcho.MessageInput, 0, len(pending))
	for _, m := range pending {
		peerID := m.PeerID
		if peerID == "" {
			peerID = ids.peerID
		}
		msgs = append(msgs, honcho.MessageInput{
			PeerID:    peerID,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}
	if err := r.client.AddMessages(ctx, ids.workspaceID, ids.sessionID, msgs); err != nil {
		r.logger.Warn(logging.CategoryQueue, "flush_failed", err.Error(), map[string]any{"pending": len(pending)})
		return
	}
	r.queue.MarkUploaded(cwd)
	r.logger.Info(logging.CategoryQueue, "flushed", "", map[string]any{"uploaded": len(pending)})
}
