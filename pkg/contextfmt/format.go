package contextfmt

import (
	"fmt"
	"strings"
)

// Markers bracketing the compressed memory block, recognized by the
// host's prompt assembly.
const (
	memoryOpenMarker  = "[honcho-memory]"
	memoryCloseMarker = "[end-memory]"
)

// Options configures one formatting call.
type Options struct {
	Tier Tier
	// MaxTokens optionally overrides the tier's total target; applied
	// as a final truncation of the rendered block.
	MaxTokens int
	// IncludeDialectic allows dialectic text at the deep tier.
	IncludeDialectic bool
	// Compressed selects the dense bracketed mode over markdown.
	Compressed bool
}

// FormatContext renders a FullContext into one text block. Both modes
// draw from the same budget table and section-inclusion rules; they
// differ only in markup density.
func FormatContext(ctx *FullContext, opts Options) string {
	if ctx == nil {
		return ""
	}
	budget := opts.Tier.Budget()

	var out string
	if opts.Compressed {
		out = formatCompressed(ctx, opts, budget)
	} else {
		out = formatVerbose(ctx, opts, budget)
	}
	if opts.MaxTokens > 0 {
		out = TruncateToTokens(out, opts.MaxTokens)
	}
	return out
}

func firstN(items []string, n int) []string {
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}

// formatCompressed emits dense key=value and semicolon-joined lines
// inside the bracketed markers. Sections with no content are omitted
// entirely; the open and close markers are always emitted.
func formatCompressed(ctx *FullContext, opts Options, budget Budget) string {
	var lines []string
	lines = append(lines, memoryOpenMarker)

	if line := compressedEntityLine("user", ctx.UserName, ctx.User, budget.MaxUserFacts, budget.MaxUserInsights, budget.MaxProfileLines); line != "" {
		lines = append(lines, line)
	}
	if line := compressedEntityLine("agent", ctx.AgentName, ctx.Agent, budget.MaxAgentFacts, budget.MaxUserInsights, budget.MaxProfileLines); line != "" {
		lines = append(lines, line)
	}

	if ctx.Session != nil {
		var pairs []string
		if ctx.Session.Name != "" {
			pairs = append(pairs, "name="+ctx.Session.Name)
		}
		if budget.SummaryTokens > 0 && len(ctx.Session.Summaries) > 0 {
			var capped []string
			for _, s := range ctx.Session.Summaries {
				capped = append(capped, TruncateToTokens(s, budget.SummaryTokens))
			}
			pairs = append(pairs, "summaries="+strings.Join(capped, ";"))
		}
		if len(pairs) > 0 {
			lines = append(lines, "[session] "+strings.Join(pairs, " "))
		}
	}

	if ctx.Git != nil {
		pairs := []string{"branch=" + ctx.Git.Branch, fmt.Sprintf("commit=%.8s", ctx.Git.Commit)}
		if n := len(ctx.Git.DirtyFiles); n > 0 {
			pairs = append(pairs, fmt.Sprintf("dirty=%d", n))
		}
		lines = append(lines, "[git] "+strings.Join(pairs, " "))
	}

	if ctx.Feature != nil {
		lines = append(lines, fmt.Sprintf("[feature] type=%s desc=%s conf=%.1f",
			ctx.Feature.Type, ctx.Feature.Description, ctx.Feature.Confidence))
	}

	if len(ctx.Changes) > 0 {
		var descs []string
		for _, c := range ctx.Changes {
			descs = append(descs, string(c.Type)+":"+c.Description)
		}
		lines = append(lines, "[changes] "+strings.Join(descs, ";"))
	}

	if wl := strings.TrimSpace(ctx.WorkLog); wl != "" && budget.WorkLogChars > 0 {
		lines = append(lines, "[worklog] "+truncateChars(oneLine(wl), budget.WorkLogChars))
	}

	// Dialectic text is expensive context: deepest tier only, and only
	// when explicitly requested.
	if opts.Tier == TierDeep && opts.IncludeDialectic && ctx.User != nil {
		if d := strings.TrimSpace(ctx.User.Dialectic); d != "" {
			lines = append(lines, "[dialectic] "+oneLine(d))
		}
	}

	lines = append(lines, memoryCloseMarker)
	return strings.Join(lines, "\n")
}

func compressedEntityLine(label, name string, entity *EntityContext, maxFacts, maxInsights, maxProfile int) string {
	if entity == nil {
		return ""
	}
	var pairs []string
	if facts := firstN(entity.Facts, maxFacts); len(facts) > 0 {
		pairs = append(pairs, "facts="+strings.Join(facts, ";"))
	}
	if insights := firstN(entity.Insights, maxInsights); len(insights) > 0 {
		pairs = append(pairs, "insights="+strings.Join(insights, ";"))
	}
	if profile := firstN(entity.Profile, maxProfile); len(profile) > 0 {
		pairs = append(pairs, "profile="+strings.Join(profile, ";"))
	}
	if len(pairs) == 0 {
		return ""
	}
	if name != "" {
		label = label + " " + name
	}
	return "[" + label + "] " + strings.Join(pairs, " ")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// formatVerbose emits markdown headers and bullet lists over the same
// section set and ordering as the compressed mode.
func formatVerbose(ctx *FullContext, opts Options, budget Budget) string {
	var b strings.Builder
	b.WriteString("# Memory Context\n")

	writeEntitySection(&b, "User", ctx.UserName, ctx.User, budget.MaxUserFacts, budget.MaxUserInsights, budget.MaxProfileLines)
	writeEntitySection(&b, "Agent", ctx.AgentName, ctx.Agent, budget.MaxAgentFacts, budget.MaxUserInsights, budget.MaxProfileLines)

	if ctx.Session != nil && ctx.Session.Name != "" {
		fmt.Fprintf(&b, "\n## Session\n\nName: %s\n", ctx.Session.Name)
		// Session summaries are rendered for every tier except the
		// shallowest.
		if opts.Tier != TierEssential && len(ctx.Session.Summaries) > 0 {
			b.WriteString("\n### Summaries\n\n")
			for _, s := range ctx.Session.Summaries {
				fmt.Fprintf(&b, "- %s\n", TruncateToTokens(s, budget.SummaryTokens))
			}
		}
	}

	if ctx.Git != nil {
		fmt.Fprintf(&b, "\n## Git\n\nBranch: %s\nCommit: %.8s\n", ctx.Git.Branch, ctx.Git.Commit)
		if n := len(ctx.Git.DirtyFiles); n > 0 {
			fmt.Fprintf(&b, "Dirty files: %d\n", n)
		}
	}

	if ctx.Feature != nil {
		fmt.Fprintf(&b, "\n## Current Feature\n\n%s: %s (confidence %.1f)\n",
			ctx.Feature.Type, ctx.Feature.Description, ctx.Feature.Confidence)
	}

	if len(ctx.Changes) > 0 {
		b.WriteString("\n## Detected Changes\n\n")
		for _, c := range ctx.Changes {
			fmt.Fprintf(&b, "- %s: %s\n", c.Type, c.Description)
		}
	}

	if wl := strings.TrimSpace(ctx.WorkLog); wl != "" && budget.WorkLogChars > 0 {
		b.WriteString("\n## Recent Work\n\n")
		b.WriteString(truncateChars(wl, budget.WorkLogChars))
		b.WriteString("\n")
	}

	if opts.Tier == TierDeep && opts.IncludeDialectic && ctx.User != nil {
		if d := strings.TrimSpace(ctx.User.Dialectic); d != "" {
			b.WriteString("\n## Synthesis\n\n")
			b.WriteString(d)
			b.WriteString("\n")
		}
	}

	return b.String()
}

func writeEntitySection(b *strings.Builder, label, name string, entity *EntityContext, maxFacts, maxInsights, maxProfile int) {
	if entity == nil {
		return
	}
	facts := firstN(entity.Facts, maxFacts)
	insights := firstN(entity.Insights, maxInsights)
	profile := firstN(entity.Profile, maxProfile)
	if len(facts) == 0 && len(insights) == 0 && len(profile) == 0 {
		return
	}

	if name != "" {
		fmt.Fprintf(b, "\n## %s Context (%s)\n", label, name)
	} else {
		fmt.Fprintf(b, "\n## %s Context\n", label)
	}
	writeBullets(b, "Profile", profile)
	writeBullets(b, "Facts", facts)
	writeBullets(b, "Insights", insights)
}

func writeBullets(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n**%s:**\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
