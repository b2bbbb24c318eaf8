package contextfmt

import (
	"fmt"
	"strings"
)

// Fixed caps for the per-prompt renderer; deliberately small since this
// text rides along with every user turn.
const (
	promptMaxFacts    = 5
	promptMaxInsights = 3
	promptMaxProfile  = 2
)

// FormatPromptContext renders an ultra-compact single block for
// per-prompt injection. Tiers are ignored. Returns the empty string when
// there is no content at all; callers skip output entirely in that case.
func FormatPromptContext(userName string, user *EntityContext) string {
	if user == nil {
		return ""
	}

	facts := firstN(user.Facts, promptMaxFacts)
	insights := firstN(user.Insights, promptMaxInsights)
	profile := firstN(user.Profile, promptMaxProfile)
	if len(facts) == 0 && len(insights) == 0 && len(profile) == 0 {
		return ""
	}

	var parts []string
	if len(profile) > 0 {
		parts = append(parts, "profile: "+strings.Join(profile, "; "))
	}
	if len(facts) > 0 {
		parts = append(parts, "facts: "+strings.Join(facts, "; "))
	}
	if len(insights) > 0 {
		parts = append(parts, "insights: "+strings.Join(insights, "; "))
	}

	label := memoryOpenMarker
	if userName != "" {
		label = fmt.Sprintf("%s %s", memoryOpenMarker, userName)
	}
	return label + " " + strings.Join(parts, " | ") + " " + memoryCloseMarker
}

// Fixed caps for the memory-anchor renderer; generous because the block
// is emitted once, right before a summarization pass.
const (
	anchorMaxProfile    = 5
	anchorMaxFacts      = 10
	anchorMaxInsights   = 5
	anchorMaxAgentFacts = 8
)

// FormatMemoryAnchor renders a verbose block whose sections carry
// explicit (PRESERVE) markers plus a closing instruction, designed to
// survive a downstream summarization pass that is told to retain marked
// content.
func FormatMemoryAnchor(ctx *FullContext) string {
	if ctx == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Memory Anchor\n")

	if ctx.User != nil {
		writeAnchorSection(&b, "User Profile", firstN(ctx.User.Profile, anchorMaxProfile))
		writeAnchorSection(&b, "User Facts", firstN(ctx.User.Facts, anchorMaxFacts))
		writeAnchorSection(&b, "User Insights", firstN(ctx.User.Insights, anchorMaxInsights))
	}
	if ctx.Agent != nil {
		writeAnchorSection(&b, "Agent Facts", firstN(ctx.Agent.Facts, anchorMaxAgentFacts))
	}
	if ctx.Session != nil && len(ctx.Session.Summaries) > 0 {
		writeAnchorSection(&b, "Session Summaries", ctx.Session.Summaries)
	}

	b.WriteString("\nIMPORTANT: retain every line inside (PRESERVE) sections verbatim in any summary of this conversation.\n")
	return b.String()
}

func writeAnchorSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n(PRESERVE) %s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("(END PRESERVE)\n")
}
