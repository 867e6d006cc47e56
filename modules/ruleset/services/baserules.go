package services

import (
	_ "embed"
	"errors"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
)

//go:embed baserules.yaml
var baseRulesYAML []byte

type baseRulesFile struct {
	Version        int            `yaml:"version"`
	TokenRelevance map[string]int `yaml:"token_relevance"`
	HookPatterns   map[string]struct {
		Keywords []string `yaml:"keywords"`
		Weight   float64  `yaml:"weight"`
	} `yaml:"hook_patterns"`
	Stopwords  []string           `yaml:"stopwords"`
	KPIWeights map[string]float64 `yaml:"kpi_weights"`
	Formulas   map[string]struct {
		Multiplier       float64            `yaml:"multiplier"`
		ComponentWeights map[string]float64 `yaml:"component_weights"`
	} `yaml:"formulas"`
	Recommendations map[string]string `yaml:"recommendations"`
}

var (
	baseRulesOnce sync.Once
	baseRules     types.RuleSet
	baseRulesErr  error
)

// BaseRuleSet returns the code-defined base layer shipped with the
// binary. It is the fallback for every load failure and the baseline the
// backward-compatibility guarantee is measured against.
func BaseRuleSet() (types.RuleSet, error) {
	baseRulesOnce.Do(func() {
		baseRules, baseRulesErr = parseBaseRules(baseRulesYAML)
	})
	return baseRules, baseRulesErr
}

func parseBaseRules(b []byte) (types.RuleSet, error) {
	var f baseRulesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return types.RuleSet{}, err
	}
	if f.Version != 1 {
		return types.RuleSet{}, errors.New("baserules: unsupported version")
	}

	rs := types.NewRuleSet()
	for token, level := range f.TokenRelevance {
		rs.TokenRelevance[token] = clampInt(level, types.RelevanceMin, types.RelevanceMax)
	}
	for category, hp := range f.HookPatterns {
		keywords := dedupeLower(hp.Keywords)
		if len(keywords) == 0 {
			continue
		}
		rs.HookPatterns[category] = types.HookPattern{
			Keywords: keywords,
			Weight:   clampFloat(hp.Weight, types.WeightMin, types.WeightMax),
		}
	}
	for _, w := range dedupeLower(f.Stopwords) {
		rs.Stopwords[w] = struct{}{}
	}
	for id, w := range f.KPIWeights {
		rs.KPIWeights[id] = clampFloat(w, types.WeightMin, types.WeightMax)
	}
	for id, fo := range f.Formulas {
		components := map[string]float64{}
		for component, w := range fo.ComponentWeights {
			components[component] = clampFloat(w, types.WeightMin, types.WeightMax)
		}
		rs.Formulas[id] = types.FormulaOverride{
			Multiplier:       clampFloat(fo.Multiplier, types.WeightMin, types.WeightMax),
			ComponentWeights: components,
		}
	}
	for id, msg := range f.Recommendations {
		if id == "" || msg == "" {
			continue
		}
		rs.Recommendations[id] = msg
	}
	return rs, nil
}
