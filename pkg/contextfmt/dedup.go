package contextfmt

import "strings"

// dedupOverlapThreshold drops a fact once half its keywords were already
// seen in earlier facts.
const dedupOverlapThreshold = 0.5

// DedupFacts removes near-duplicate facts using lexical keyword overlap.
// Facts are processed in input order against a running set of all
// keywords seen so far, so an earlier fact establishes the canonical
// phrasing: a later fact with enough overlap is dropped even if it is
// more specific. Lists of length <= 1 are returned unchanged.
func DedupFacts(facts []string) []string {
	if len(facts) <= 1 {
		return facts
	}

	seen := make(map[string]bool)
	out := make([]string, 0, len(facts))
	for _, fact := range facts {
		kws := factKeywords(fact)
		overlap := 0
		for _, kw := range kws {
			if seen[kw] {
				overlap++
			}
		}
		denom := len(kws)
		if denom < 1 {
			denom = 1
		}
		if float64(overlap)/float64(denom) >= dedupOverlapThreshold {
			continue
		}
		out = append(out, fact)
		for _, kw := range kws {
			seen[kw] = true
		}
	}
	return out
}

// factKeywords tokenizes a fact into lowercase whitespace-separated
// words longer than 3 characters.
func factKeywords(fact string) []string {
	var kws []string
	for _, w := range strings.Fields(strings.ToLower(fact)) {
		if len(w) > 3 {
			kws = append(kws, w)
		}
	}
	return kws
}
