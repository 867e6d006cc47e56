package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
	"github.com/asoforge/asoforge/pkg/catalog"
)

const (
	reasonBadPayload       = "PAYLOAD_INVALID"
	reasonEmptyToken       = "TOKEN_EMPTY"
	reasonRelevanceClamped = "RELEVANCE_CLAMPED"
	reasonRelevanceRounded = "RELEVANCE_ROUNDED"
	reasonNoKeywords       = "HOOK_KEYWORDS_EMPTY"
	reasonWeightClamped    = "WEIGHT_CLAMPED"
	reasonEmptyStopword    = "STOPWORD_EMPTY"
	reasonUnknownKPI       = "KPI_ID_UNKNOWN"
	reasonUnknownFormula   = "FORMULA_ID_UNKNOWN"
	reasonMissingID        = "IDENTIFIER_MISSING"
	reasonEmptyMessage     = "MESSAGE_EMPTY"
	reasonUnknownKind      = "KIND_UNKNOWN"
)

type tokenRelevancePayload struct {
	Token     string   `json:"token"`
	Relevance *float64 `json:"relevance"`
}

type hookPatternPayload struct {
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
	Weight   *float64 `json:"weight"`
}

type stopwordPayload struct {
	Words []string `json:"words"`
	// Word predates the list shape; still accepted.
	Word string `json:"word"`
}

type kpiWeightPayload struct {
	KPIID  string   `json:"kpi_id"`
	Weight *float64 `json:"weight"`
}

type formulaPayload struct {
	FormulaID        string             `json:"formula_id"`
	Multiplier       *float64           `json:"multiplier"`
	ComponentWeights map[string]float64 `json:"component_weights"`
}

type recommendationPayload struct {
	RecommendationID string `json:"recommendation_id"`
	Message          string `json:"message"`
}

// Normalize converts the raw records of one layer into a validated
// ruleset. It never fails the batch: malformed records are skipped and
// reported as diagnostics, out-of-range values are clamped.
func Normalize(records []types.OverrideRecord) (types.RuleSet, []types.Diagnostic) {
	rs := types.NewRuleSet()
	var diags []types.Diagnostic

	report := func(kind types.Kind, key string, reason string) {
		diags = append(diags, types.Diagnostic{Kind: kind, Key: key, Reason: reason})
	}

	for _, rec := range records {
		switch rec.Kind {
		case types.KindTokenRelevance:
			normalizeTokenRelevance(rec, &rs, report)
		case types.KindHookPattern:
			normalizeHookPattern(rec, &rs, report)
		case types.KindStopword:
			normalizeStopword(rec, &rs, report)
		case types.KindKPIWeight:
			normalizeKPIWeight(rec, &rs, report)
		case types.KindFormula:
			normalizeFormula(rec, &rs, report)
		case types.KindRecommendation:
			normalizeRecommendation(rec, &rs, report)
		default:
			// Unknown kinds pass through silently except for the
			// diagnostic; a future writer may know more kinds than
			// this binary.
			report(rec.Kind, rec.RecordUUID, reasonUnknownKind)
		}
	}

	return rs, diags
}

func normalizeTokenRelevance(rec types.OverrideRecord, rs *types.RuleSet, report func(types.Kind, string, string)) {
	var p tokenRelevancePayload
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		report(rec.Kind, rec.RecordUUID, reasonBadPayload)
		return
	}
	token := strings.ToLower(strings.TrimSpace(p.Token))
	if token == "" {
		report(rec.Kind, rec.RecordUUID, reasonEmptyToken)
		return
	}
	if p.Relevance == nil {
		report(rec.Kind, token, reasonBadPayload)
		return
	}

	raw := *p.Relevance
	rounded := math.Round(raw)
	if rounded != raw {
		report(rec.Kind, token, reasonRelevanceRounded)
	}
	level := int(rounded)
	if level < types.RelevanceMin || level > types.RelevanceMax {
		report(rec.Kind, token, reasonRelevanceClamped)
		level = clampInt(level, types.RelevanceMin, types.RelevanceMax)
	}
	rs.TokenRelevance[token] = level
}

func normalizeHookPattern(rec types.OverrideRecord, rs *types.RuleSet, report func(types.Kind, string, string)) {
	var p hookPatternPayload
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		report(rec.Kind, rec.RecordUUID, reasonBadPayload)
		return
	}
	category := strings.ToLower(strings.TrimSpace(p.Category))
	if category == "" {
		report(rec.Kind, rec.RecordUUID, reasonMissingID)
		return
	}

	keywords := dedupeLower(p.Keywords)
	if len(keywords) == 0 {
		report(rec.Kind, category, reasonNoKeywords)
		return
	}

	weight := 1.0
	if p.Weight != nil {
		weight = *p.Weight
	}
	if weight < types.WeightMin || weight > types.WeightMax {
		report(rec.Kind, category, reasonWeightClamped)
		weight = clampFloat(weight, types.WeightMin, types.WeightMax)
	}

	rs.HookPatterns[category] = types.HookPattern{Keywords: keywords, Weight: weight}
}

func normalizeStopword(rec types.OverrideRecord, rs *types.RuleSet, report func(types.Kind, string, string)) {
	var p stopwordPayload
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		report(rec.Kind, rec.RecordUUID, reasonBadPayload)
		return
	}
	words := p.Words
	if len(words) == 0 && strings.TrimSpace(p.Word) != "" {
		words = []string{p.Word}
	}

	added := 0
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			report(rec.Kind, rec.RecordUUID, reasonEmptyStopword)
			continue
		}
		rs.Stopwords[w] = struct{}{}
		added++
	}
	if added == 0 && len(words) == 0 {
		report(rec.Kind, rec.RecordUUID, reasonEmptyStopword)
	}
}

func normalizeKPIWeight(rec types.OverrideRecord, rs *types.RuleSet, report func(types.Kind, string, string)) {
	var p kpiWeightPayload
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		report(rec.Kind, rec.RecordUUID, reasonBadPayload)
		return
	}
	id := strings.TrimSpace(p.KPIID)
	if id == "" {
		report(rec.Kind, rec.RecordUUID, reasonMissingID)
		return
	}
	if p.Weight == nil {
		report(rec.Kind, id, reasonBadPayload)
		return
	}

	weight := *p.Weight
	if weight < types.WeightMin || weight > types.WeightMax {
		report(rec.Kind, id, reasonWeightClamped)
		weight = clampFloat(weight, types.WeightMin, types.WeightMax)
	}
	// Unknown ids are kept, only flagged: newer catalogs may feed older
	// binaries.
	if !catalog.KnownKPI(id) {
		report(rec.Kind, id, reasonUnknownKPI)
	}
	rs.KPIWeights[id] = weight
}

func normalizeFormula(rec types.OverrideRecord, rs *types.RuleSet, report func(types.Kind, string, string)) {
	var p formulaPayload
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		report(rec.Kind, rec.RecordUUID, reasonBadPayload)
		return
	}
	id := strings.TrimSpace(p.FormulaID)
	if id == "" {
		report(rec.Kind, rec.RecordUUID, reasonMissingID)
		return
	}

	multiplier := 1.0
	if p.Multiplier != nil {
		multiplier = *p.Multiplier
	}
	if multiplier < types.WeightMin || multiplier > types.WeightMax {
		report(rec.Kind, id, reasonWeightClamped)
		multiplier = clampFloat(multiplier, types.WeightMin, types.WeightMax)
	}

	components := map[string]float64{}
	for component, w := range p.ComponentWeights {
		component = strings.TrimSpace(component)
		if component == "" {
			report(rec.Kind, id, fmt.Sprintf("%s: empty component", reasonBadPayload))
			continue
		}
		if w < types.WeightMin || w > types.WeightMax {
			report(rec.Kind, id+"."+component, reasonWeightClamped)
			w = clampFloat(w, types.WeightMin, types.WeightMax)
		}
		components[component] = w
	}

	if !catalog.KnownFormula(id) {
		report(rec.Kind, id, reasonUnknownFormula)
	}
	rs.Formulas[id] = types.FormulaOverride{Multiplier: multiplier, ComponentWeights: components}
}

func normalizeRecommendation(rec types.OverrideRecord, rs *types.RuleSet, report func(types.Kind, string, string)) {
	var p recommendationPayload
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		report(rec.Kind, rec.RecordUUID, reasonBadPayload)
		return
	}
	id := strings.TrimSpace(p.RecommendationID)
	if id == "" {
		report(rec.Kind, rec.RecordUUID, reasonMissingID)
		return
	}
	msg := strings.TrimSpace(p.Message)
	if msg == "" {
		report(rec.Kind, id, reasonEmptyMessage)
		return
	}
	rs.Recommendations[id] = msg
}

func dedupeLower(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
