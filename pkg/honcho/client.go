// Package honcho is the client for the remote knowledge service that
// stores facts and insights extracted from conversation. Every call can
// fail independently; callers treat a failure as "that section of
// context is unavailable this invocation", never as fatal.
package honcho

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the knowledge service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the service at opts.BaseURL.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// MessageInput is one message appended to a session.
type MessageInput struct {
	PeerID    string    `json:"peer_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// PeerContext is the structured knowledge snapshot for one peer.
type PeerContext struct {
	Facts    []string `json:"facts,omitempty"`
	Insights []string `json:"insights,omitempty"`
	Profile  []string `json:"profile,omitempty"`
}

// ContextOptions bounds a peer-context fetch.
type ContextOptions struct {
	// ObservationLimit caps how many observations back the service
	// derives the snapshot from.
	ObservationLimit int
	// MostDerivedFirst orders insights by derivation depth.
	MostDerivedFirst bool
}

// GetOrCreateWorkspace resolves a workspace name to its id, creating it
// on first use.
func (c *Client) GetOrCreateWorkspace(ctx context.Context, name string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := c.post(ctx, "/v1/workspaces", map[string]any{"name": name}, &resp)
	if err != nil {
		return "", fmt.Errorf("get-or-create workspace %q: %w", name, err)
	}
	return resp.ID, nil
}

// GetOrCreatePeer resolves a peer name within a workspace to its id.
func (c *Client) GetOrCreatePeer(ctx context.Context, workspaceID, name string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	path := fmt.Sprintf("/v1/workspaces/%s/peers", workspaceID)
	if err := c.post(ctx, path, map[string]any{"name": name}, &resp); err != nil {
		return "", fmt.Errorf("get-or-create peer %q: %w", name, err)
	}
	return resp.ID, nil
}

// GetOrCreateSession resolves a session name within a workspace to its
// id, attaching metadata on creation.
func (c *Client) GetOrCreateSession(ctx context.Context, workspaceID, name string, metadata map[string]any) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	path := fmt.Sprintf("/v1/workspaces/%s/sessions", workspaceID)
	body := map[string]any{"name": name}
	if len(metadata) > 0 {
		body["metadata"] = metadata
	}
	if err := c.post(ctx, path, body, &resp); err != nil {
		return "", fmt.Errorf("get-or-create session %q: %w", name, err)
	}
	return resp.ID, nil
}

// SetSessionPeerFlags sets per-peer observation flags on a session.
func (c *Client) SetSessionPeerFlags(ctx context.Context, workspaceID, sessionID, peerID string, observeMe, observeOthers bool) error {
	path := fmt.Sprintf("/v1/workspaces/%s/sessions/%s/peers/%s", workspaceID, sessionID, peerID)
	body := map[string]any{
		"observe_me":     observeMe,
		"observe_others": observeOthers,
	}
	if err := c.post(ctx, path, body, nil); err != nil {
		return fmt.Errorf("set session peer flags: %w", err)
	}
	return nil
}

// AddMessages appends messages to a session.
func (c *Client) AddMessages(ctx context.Context, workspaceID, sessionID string, msgs []MessageInput) error {
	if len(msgs) == 0 {
		return nil
	}
	path := fmt.Sprintf("/v1/workspaces/%s/sessions/%s/messages", workspaceID, sessionID)
	if err := c.post(ctx, path, map[string]any{"messages": msgs}, nil); err != nil {
		return fmt.Errorf("add messages: %w", err)
	}
	return nil
}

// PeerContextSnapshot fetches the structured knowledge snapshot for a
// peer.
func (c *Client) PeerContextSnapshot(ctx context.Context, workspaceID, peerID string, opts ContextOptions) (*PeerContext, error) {
	var resp PeerContext
	path := fmt.Sprintf("/v1/workspaces/%s/peers/%s/context", workspaceID, peerID)
	body := map[string]any{}
	if opts.ObservationLimit > 0 {
		body["observation_limit"] = opts.ObservationLimit
	}
	if opts.MostDerivedFirst {
		body["most_derived_first"] = true
	}
	if err := c.post(ctx, path, body, &resp); err != nil {
		return nil, fmt.Errorf("fetch peer context: %w", err)
	}
	return &resp, nil
}

// SessionSummaries fetches summaries for a session.
func (c *Client) SessionSummaries(ctx context.Context, workspaceID, sessionID string) ([]string, error) {
	var resp struct {
		Summaries []string `json:"summaries"`
	}
	path := fmt.Sprintf("/v1/workspaces/%s/sessions/%s/summaries", workspaceID, sessionID)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("fetch session summaries: %w", err)
	}
	return resp.Summaries, nil
}

// DialecticQuery poses a free-text question against a peer's
// accumulated knowledge and returns the synthesized answer. This is
// expensive relative to structured retrieval.
func (c *Client) DialecticQuery(ctx context.Context, workspaceID, peerID, query string) (string, error) {
	var resp struct {
		Content string `json:"content"`
	}
	path := fmt.Sprintf("/v1/workspaces/%s/peers/%s/chat", workspaceID, peerID)
	if err := c.post(ctx, path, map[string]any{"query": query}, &resp); err != nil {
		return "", fmt.Errorf("dialectic query: %w", err)
	}
	return resp.Content, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
