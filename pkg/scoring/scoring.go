// Package scoring applies a merged ruleset to metadata elements. Every
// operation accepts a nil ruleset and falls back to fixed global tables,
// so the engine is usable with no overrides loaded at all. No operation
// fails for business-data reasons; the only failure class is a caller
// bug, which panics.
package scoring

import (
	"math"
	"strings"

	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
)

// Relevance returns the relevance level of a token, 0..3. Ruleset
// overrides win over the global table; unknown tokens are level 0.
// Total: every string maps to exactly one level.
func Relevance(token string, rs *types.MergedRuleSet) int {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return 0
	}
	if rs != nil {
		if level, ok := rs.TokenRelevance[token]; ok {
			return level
		}
	}
	if level, ok := globalRelevance[token]; ok {
		return level
	}
	return 0
}

// HookScore scores text against hook categories, 0..100. Each category
// whose keywords appear in the text (case-insensitive substring)
// contributes 100 times its weight; the result is the average over
// matched categories, clamped to 100 so a handful of heavy categories
// cannot push past the scale.
func HookScore(text string, rs *types.MergedRuleSet) float64 {
	patterns := globalHookPatterns
	if rs != nil && len(rs.HookPatterns) > 0 {
		patterns = rs.HookPatterns
	}

	lower := strings.ToLower(text)
	total := 0.0
	matched := 0
	for _, hp := range patterns {
		for _, kw := range hp.Keywords {
			if kw != "" && strings.Contains(lower, kw) {
				total += 100 * hp.Weight
				matched++
				break
			}
		}
	}
	if matched == 0 {
		return 0
	}
	score := total / float64(matched)
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// NormalizeFamilyWeights applies ruleset multipliers to a KPI family's
// base weights and renormalizes so the outputs sum to 1.0. Multipliers
// default to 1.0; the clamp-then-normalize sequence keeps the invariant
// regardless of how extreme the stored overrides were.
//
// Panics on a family whose effective weights sum to zero or below: base
// weights are compiled-in and must be positive, so that is a caller bug.
func NormalizeFamilyWeights(baseWeights map[string]float64, rs *types.MergedRuleSet) map[string]float64 {
	if len(baseWeights) == 0 {
		return map[string]float64{}
	}

	effective := make(map[string]float64, len(baseWeights))
	sum := 0.0
	for id, base := range baseWeights {
		multiplier := 1.0
		if rs != nil {
			if m, ok := rs.KPIWeights[id]; ok {
				multiplier = m
			}
		}
		w := base * multiplier
		effective[id] = w
		sum += w
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		panic("scoring: KPI family weights must sum to a positive finite value")
	}

	out := make(map[string]float64, len(effective))
	for id, w := range effective {
		out[id] = w / sum
	}
	return out
}

// MergedStopwords returns the base stopword set unioned with any
// ruleset-contributed stopwords. Base words are never removed.
func MergedStopwords(rs *types.MergedRuleSet) map[string]struct{} {
	out := BaseStopwords()
	if rs == nil {
		return out
	}
	for w := range rs.Stopwords {
		out[w] = struct{}{}
	}
	return out
}

// Message returns the ruleset template for id, or fallback unchanged.
func Message(id string, fallback string, rs *types.MergedRuleSet) string {
	if rs != nil {
		if msg, ok := rs.Recommendations[id]; ok && msg != "" {
			return msg
		}
	}
	return fallback
}

// FormulaMultiplier returns the ruleset multiplier for a formula id, or
// 1.0 when no override applies.
func FormulaMultiplier(id string, rs *types.MergedRuleSet) float64 {
	if rs != nil {
		if f, ok := rs.Formulas[id]; ok {
			return f.Multiplier
		}
	}
	return 1.0
}

// ComponentWeight returns the overridden weight for one component of a
// formula, or the given default when no override applies.
func ComponentWeight(formulaID string, component string, def float64, rs *types.MergedRuleSet) float64 {
	if rs != nil {
		if f, ok := rs.Formulas[formulaID]; ok {
			if w, ok := f.ComponentWeights[component]; ok {
				return w
			}
		}
	}
	return def
}
