package services

import (
	"fmt"
	"sort"

	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
)

// LayerInputs carries the normalized layers handed to Merge. Nil layers
// contribute nothing. CodeBase is the compiled-in baseline and applies
// before every persisted layer. DetectionConfidence is accepted but not
// acted on: overrides always apply until a concrete confidence policy
// exists.
type LayerInputs struct {
	CodeBase *types.RuleSet
	Base     *types.RuleSet
	Vertical *types.RuleSet
	Market   *types.RuleSet
	Client   *types.RuleSet

	DetectionConfidence float64
}

// Merge combines up to four normalized layers into one effective ruleset.
// Precedence is client > market > vertical > base, realized as ordered
// last-wins overwrites; stopwords union across all layers regardless of
// order; formula component weights deep-merge key-by-key.
func Merge(in LayerInputs, scope types.Scope, versions types.VersionBlock) types.MergedRuleSet {
	merged := types.MergedRuleSet{
		RuleSet:        types.NewRuleSet(),
		Vertical:       scope.Vertical,
		Market:         scope.Market,
		OrganizationID: scope.OrganizationID,
		AppID:          scope.AppID,
		Versions:       versions,
	}

	persisted := 0
	codeContributed := false
	var leaks []string

	apply := func(layer *types.RuleSet, fromCode bool) {
		if layer == nil || layer.Empty() {
			return
		}
		if fromCode {
			codeContributed = true
		} else {
			persisted++
		}

		for token, level := range layer.TokenRelevance {
			merged.TokenRelevance[token] = level
		}
		leaks = append(leaks, hookLeaks(merged.HookPatterns, layer.HookPatterns)...)
		for category, hp := range layer.HookPatterns {
			merged.HookPatterns[category] = types.HookPattern{
				Keywords: append([]string(nil), hp.Keywords...),
				Weight:   hp.Weight,
			}
		}
		for word := range layer.Stopwords {
			merged.Stopwords[word] = struct{}{}
		}
		for id, w := range layer.KPIWeights {
			merged.KPIWeights[id] = w
		}
		for id, f := range layer.Formulas {
			existing, ok := merged.Formulas[id]
			if !ok {
				existing = types.FormulaOverride{ComponentWeights: map[string]float64{}}
			}
			existing.Multiplier = f.Multiplier
			for component, w := range f.ComponentWeights {
				existing.ComponentWeights[component] = w
			}
			merged.Formulas[id] = existing
		}
		for id, msg := range layer.Recommendations {
			merged.Recommendations[id] = msg
		}
	}

	apply(in.CodeBase, true)
	apply(in.Base, false)
	apply(in.Vertical, false)
	apply(in.Market, false)
	apply(in.Client, false)

	switch {
	case persisted == 0:
		merged.Source = types.SourceCode
	case codeContributed:
		merged.Source = types.SourceHybrid
	default:
		merged.Source = types.SourceDatabase
	}

	sort.Strings(leaks)
	merged.LeakWarnings = leaks
	return merged
}

// hookLeaks flags keywords an incoming layer attaches to a category while
// an already-applied layer carries the same keyword under a different
// category. Contamination is reported, never blocking.
func hookLeaks(applied map[string]types.HookPattern, incoming map[string]types.HookPattern) []string {
	if len(applied) == 0 || len(incoming) == 0 {
		return nil
	}

	owner := map[string]string{}
	for category, hp := range applied {
		for _, kw := range hp.Keywords {
			owner[kw] = category
		}
	}

	var leaks []string
	for category, hp := range incoming {
		for _, kw := range hp.Keywords {
			if prev, ok := owner[kw]; ok && prev != category {
				leaks = append(leaks, fmt.Sprintf("keyword %q appears in both %q and %q", kw, prev, category))
			}
		}
	}
	return leaks
}
