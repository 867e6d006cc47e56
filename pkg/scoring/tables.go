package scoring

import "github.com/asoforge/asoforge/modules/ruleset/domain/types"

// Global fallback tables. Every lookup in this package is total: when a
// merged ruleset carries no override for a key, these tables answer, so
// the engine behaves identically with no ruleset at all.

// globalRelevance maps lowercase tokens to a relevance level 0..3.
// Level 3: high-intent domain nouns; 2: domain nouns; 1: language names
// and broad qualifiers; 0: filler (also the default for unknown tokens
// that are not stopword-like).
var globalRelevance = map[string]int{
	// language names
	"english":    1,
	"spanish":    1,
	"french":     1,
	"german":     1,
	"italian":    1,
	"portuguese": 1,
	"japanese":   1,
	"korean":     1,
	"chinese":    1,

	// domain nouns
	"learn":      2,
	"language":   2,
	"lesson":     2,
	"course":     2,
	"budget":     2,
	"invest":     2,
	"savings":    2,
	"workout":    2,
	"fitness":    2,
	"meditation": 2,
	"sleep":      2,
	"photo":      2,
	"editor":     2,

	// high-intent
	"vocabulary":    3,
	"grammar":       3,
	"pronunciation": 3,
	"investing":     3,
	"portfolio":     3,
	"calories":      3,

	// generic fillers
	"free":     1,
	"best":     1,
	"top":      1,
	"new":      0,
	"great":    0,
	"awesome":  0,
	"amazing":  0,
	"ultimate": 0,
}

// globalHookPatterns is the category table used when a ruleset carries no
// hook overrides.
var globalHookPatterns = map[string]types.HookPattern{
	"learning": {
		Keywords: []string{"learn", "master", "improve", "practice"},
		Weight:   1.2,
	},
	"trust": {
		Keywords: []string{"secure", "private", "trusted", "verified"},
		Weight:   1.3,
	},
	"social_proof": {
		Keywords: []string{"millions", "award", "#1", "featured"},
		Weight:   1.1,
	},
	"urgency": {
		Keywords: []string{"now", "today", "instantly"},
		Weight:   1.0,
	},
	"outcome": {
		Keywords: []string{"results", "progress", "achieve"},
		Weight:   1.15,
	},
}

// baseStopwords is the fixed base stopword set. Ruleset layers may only
// add to it, never remove from it.
var baseStopwords = map[string]struct{}{
	"the":  {},
	"a":    {},
	"an":   {},
	"and":  {},
	"or":   {},
	"of":   {},
	"to":   {},
	"in":   {},
	"on":   {},
	"for":  {},
	"with": {},
	"your": {},
	"you":  {},
	"is":   {},
	"it":   {},
	"app":  {},
}

// BaseStopwords returns a copy of the fixed base stopword set.
func BaseStopwords() map[string]struct{} {
	out := make(map[string]struct{}, len(baseStopwords))
	for w := range baseStopwords {
		out[w] = struct{}{}
	}
	return out
}
