package contextfmt

import (
	"strings"
	"testing"

	"github.com/odvcencio/recall/pkg/gitstate"
)

func sampleContext() *FullContext {
	return &FullContext{
		UserName:  "alice",
		AgentName: "claude",
		User: &EntityContext{
			Facts:     []string{"prefers table tests", "works in Go", "ships on fridays", "reviews queue code", "likes explicit errors", "sixth fact"},
			Insights:  []string{"values durability", "optimizes for reviewability", "third insight"},
			Profile:   []string{"backend engineer", "works on agent tooling", "third profile line"},
			Dialectic: "alice consistently trades cleverness for operability",
		},
		Agent: &EntityContext{
			Facts: []string{"completed the queue rewrite", "owns the cache layer"},
		},
		Session: &SessionContext{
			Name:      "recall-main",
			ID:        "sess-1",
			Summaries: []string{"implemented selective delete", "debugged TTL boundary"},
		},
		Git: &gitstate.State{
			Branch:     "feature/tier-budgets",
			Commit:     "abcdef0123456789",
			DirtyFiles: []string{"format.go"},
		},
		Feature: &gitstate.FeatureContext{Type: "feature", Description: "tier budgets", Confidence: 0.8},
		Changes: []gitstate.Change{{Type: gitstate.ChangeNewCommits, Description: "new commits since last run"}},
		WorkLog: "- [2026-03-01 10:00] rewrote the queue\n- [2026-03-01 11:00] fixed boundary check",
	}
}

func TestCompressedEmitsMarkers(t *testing.T) {
	out := FormatContext(sampleContext(), Options{Tier: TierExtended, Compressed: true})

	if !strings.HasPrefix(out, "[honcho-memory]") {
		t.Fatalf("missing open marker: %q", out)
	}
	if !strings.HasSuffix(out, "[end-memory]") {
		t.Fatalf("missing close marker: %q", out)
	}
	if !strings.Contains(out, "[user alice]") {
		t.Errorf("user section missing: %q", out)
	}
	if !strings.Contains(out, "[git] branch=feature/tier-budgets") {
		t.Errorf("git section missing: %q", out)
	}
}

func TestCompressedOmitsEmptySections(t *testing.T) {
	ctx := &FullContext{
		UserName: "alice",
		User:     &EntityContext{},
	}
	out := FormatContext(ctx, Options{Tier: TierExtended, Compressed: true})

	if strings.Contains(out, "[user") {
		t.Errorf("empty user section should be omitted: %q", out)
	}
	if !strings.Contains(out, "[honcho-memory]") || !strings.Contains(out, "[end-memory]") {
		t.Errorf("markers must still be emitted: %q", out)
	}
}

func TestTierMonotonicity(t *testing.T) {
	ctx := sampleContext()

	essential := FormatContext(ctx, Options{Tier: TierEssential, Compressed: true})
	deep := FormatContext(ctx, Options{Tier: TierDeep, Compressed: true})

	if EstimateTokens(essential) > EstimateTokens(deep) {
		t.Fatalf("essential (%d tokens) must not exceed deep (%d tokens)",
			EstimateTokens(essential), EstimateTokens(deep))
	}
}

func TestEssentialCapsUserFacts(t *testing.T) {
	out := FormatContext(sampleContext(), Options{Tier: TierEssential, Compressed: true})

	if strings.Contains(out, "sixth fact") {
		t.Errorf("essential tier should cap facts at 5: %q", out)
	}
	if !strings.Contains(out, "prefers table tests") {
		t.Errorf("earliest facts should be kept: %q", out)
	}
}

func TestDialecticOnlyAtDeepWhenRequested(t *testing.T) {
	ctx := sampleContext()

	cases := []struct {
		opts Options
		want bool
	}{
		{Options{Tier: TierDeep, IncludeDialectic: true, Compressed: true}, true},
		{Options{Tier: TierDeep, IncludeDialectic: false, Compressed: true}, false},
		{Options{Tier: TierExtended, IncludeDialectic: true, Compressed: true}, false},
		{Options{Tier: TierDeep, IncludeDialectic: true, Compressed: false}, true},
	}
	for _, tc := range cases {
		out := FormatContext(ctx, tc.opts)
		got := strings.Contains(out, "trades cleverness")
		if got != tc.want {
			t.Errorf("tier=%s dialectic=%v compressed=%v: included=%v, want %v",
				tc.opts.Tier, tc.opts.IncludeDialectic, tc.opts.Compressed, got, tc.want)
		}
	}
}

func TestVerboseSummariesSkipEssential(t *testing.T) {
	ctx := sampleContext()

	essential := FormatContext(ctx, Options{Tier: TierEssential, Compressed: false})
	extended := FormatContext(ctx, Options{Tier: TierExtended, Compressed: false})

	if strings.Contains(essential, "selective delete") {
		t.Error("essential tier should not render summaries")
	}
	if !strings.Contains(extended, "selective delete") {
		t.Error("extended tier should render summaries")
	}
}

func TestVerboseMirrorsCompressedSections(t *testing.T) {
	out := FormatContext(sampleContext(), Options{Tier: TierDeep, Compressed: false})

	for _, want := range []string{
		"# Memory Context",
		"## User Context (alice)",
		"## Agent Context (claude)",
		"## Session",
		"## Git",
		"## Current Feature",
		"## Detected Changes",
		"## Recent Work",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("verbose output missing %q", want)
		}
	}
}

func TestMaxTokensOverrideTruncates(t *testing.T) {
	out := FormatContext(sampleContext(), Options{Tier: TierDeep, Compressed: false, MaxTokens: 10})

	if len(out) > 10*4+len("...") {
		t.Fatalf("output not truncated to override: %d chars", len(out))
	}
	if !strings.HasSuffix(out, "...") {
		t.Fatalf("truncated output should end with ellipsis: %q", out)
	}
}

func TestFormatContextNil(t *testing.T) {
	if out := FormatContext(nil, Options{Tier: TierDeep}); out != "" {
		t.Fatalf("nil context should render empty, got %q", out)
	}
}
