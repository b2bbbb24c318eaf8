package contextfmt

// Tier selects how much context content the formatter includes.
type Tier string

const (
	TierEssential Tier = "essential"
	TierExtended  Tier = "extended"
	TierDeep      Tier = "deep"
)

// ParseTier maps a config string to a tier, defaulting to extended.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierEssential, TierExtended, TierDeep:
		return Tier(s)
	default:
		return TierExtended
	}
}

// Budget fixes the per-section caps for one tier. Budgets are enforced
// by truncation at the point of inclusion (first N items, first M
// characters), not by a global token-counting pass, so the true output
// can exceed the nominal total when many sections sit near their caps.
type Budget struct {
	// TotalTokens is the nominal overall target for the rendered block.
	TotalTokens int
	// MaxUserFacts caps facts included from the user's context.
	MaxUserFacts int
	// MaxUserInsights caps derived insights from the user's context.
	MaxUserInsights int
	// MaxProfileLines caps profile summary lines per entity.
	MaxProfileLines int
	// MaxAgentFacts caps facts included from the agent's context.
	MaxAgentFacts int
	// WorkLogChars caps the local work-log excerpt by characters.
	WorkLogChars int
	// SummaryTokens caps each session summary; zero excludes summaries.
	SummaryTokens int
}

// budgets is the fixed design-constant table; values are not derived at
// runtime.
var budgets = map[Tier]Budget{
	TierEssential: {
		TotalTokens:     500,
		MaxUserFacts:    5,
		MaxUserInsights: 2,
		MaxProfileLines: 2,
		MaxAgentFacts:   3,
		WorkLogChars:    400,
		SummaryTokens:   0,
	},
	TierExtended: {
		TotalTokens:     1200,
		MaxUserFacts:    10,
		MaxUserInsights: 5,
		MaxProfileLines: 4,
		MaxAgentFacts:   6,
		WorkLogChars:    1000,
		SummaryTokens:   150,
	},
	TierDeep: {
		TotalTokens:     2500,
		MaxUserFacts:    20,
		MaxUserInsights: 10,
		MaxProfileLines: 6,
		MaxAgentFacts:   12,
		WorkLogChars:    2000,
		SummaryTokens:   400,
	},
}

// Budget returns the fixed budget for a tier.
func (t Tier) Budget() Budget {
	if b, ok := budgets[t]; ok {
		return b
	}
	return budgets[TierExtended]
}
