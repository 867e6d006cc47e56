package scoring

import (
	"strings"

	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
)

// Element audit: combines the lookup primitives into a 0..100 quality
// score per metadata element. One ElementScore is computed per element
// (title, subtitle, description) during an audit run.

type Element string

const (
	ElementTitle       Element = "title"
	ElementSubtitle    Element = "subtitle"
	ElementDescription Element = "description"
)

// Base KPI weights per element family. Ruleset multipliers adjust these
// before normalization; the normalized weights always sum to 1.0.
var elementKPIWeights = map[Element]map[string]float64{
	ElementTitle: {
		"title_keyword_coverage": 0.5,
		"title_length_fit":       0.2,
		"title_hook_strength":    0.3,
	},
	ElementSubtitle: {
		"subtitle_keyword_coverage": 0.6,
		"subtitle_complement":       0.4,
	},
	ElementDescription: {
		"description_readability":     0.25,
		"description_keyword_density": 0.3,
		"description_hook_strength":   0.3,
		"description_cta_presence":    0.15,
	},
}

var elementFormulaIDs = map[Element]string{
	ElementTitle:       "title_score",
	ElementSubtitle:    "subtitle_score",
	ElementDescription: "description_score",
}

// Character budgets per element, per the major storefronts.
var elementLengthBudget = map[Element]int{
	ElementTitle:       30,
	ElementSubtitle:    30,
	ElementDescription: 4000,
}

type ElementScore struct {
	Element    Element            `json:"element"`
	Score      float64            `json:"score"`
	KPIScores  map[string]float64 `json:"kpi_scores"`
	KPIWeights map[string]float64 `json:"kpi_weights"`
	Messages   []string           `json:"messages,omitempty"`
}

// ScoreElement audits one metadata element against the active ruleset.
// A nil ruleset scores against global tables only.
func ScoreElement(element Element, text string, rs *types.MergedRuleSet) ElementScore {
	baseWeights, ok := elementKPIWeights[element]
	if !ok {
		panic("scoring: unknown element " + string(element))
	}

	kpiScores := map[string]float64{}
	for id := range baseWeights {
		kpiScores[id] = scoreKPI(element, id, text, rs)
	}

	weights := NormalizeFamilyWeights(baseWeights, rs)

	score := 0.0
	for id, w := range weights {
		score += kpiScores[id] * w
	}
	score *= FormulaMultiplier(elementFormulaIDs[element], rs)
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	return ElementScore{
		Element:    element,
		Score:      score,
		KPIScores:  kpiScores,
		KPIWeights: weights,
		Messages:   elementMessages(element, text, kpiScores, rs),
	}
}

func scoreKPI(element Element, id string, text string, rs *types.MergedRuleSet) float64 {
	switch id {
	case "title_keyword_coverage", "subtitle_keyword_coverage", "description_keyword_density":
		return keywordCoverageScore(text, rs)
	case "title_hook_strength", "description_hook_strength":
		return HookScore(text, rs)
	case "title_length_fit":
		return lengthFitScore(text, elementLengthBudget[element])
	case "subtitle_complement":
		// Without the sibling title at hand, complement quality reduces
		// to coverage of non-stopword tokens.
		return keywordCoverageScore(text, rs)
	case "description_readability":
		return readabilityScore(text)
	case "description_cta_presence":
		return ctaScore(text)
	default:
		return 0
	}
}

// keywordCoverageScore averages token relevance over non-stopword
// tokens, scaled so an all-level-3 text scores 100.
func keywordCoverageScore(text string, rs *types.MergedRuleSet) float64 {
	stop := MergedStopwords(rs)

	total := 0
	counted := 0
	for _, token := range Tokenize(text) {
		if _, skip := stop[token]; skip {
			continue
		}
		total += Relevance(token, rs)
		counted++
	}
	if counted == 0 {
		return 0
	}
	return float64(total) / float64(counted) / float64(types.RelevanceMax) * 100
}

func lengthFitScore(text string, budget int) float64 {
	if budget <= 0 {
		return 0
	}
	used := len([]rune(strings.TrimSpace(text)))
	if used == 0 {
		return 0
	}
	if used > budget {
		// Over budget gets truncated by the store; penalize hard.
		return 40
	}
	return float64(used) / float64(budget) * 100
}

func readabilityScore(text string) float64 {
	sentences := 0
	for _, sep := range []string{".", "!", "?", "\n"} {
		sentences += strings.Count(text, sep)
	}
	words := len(Tokenize(text))
	if words == 0 {
		return 0
	}
	if sentences == 0 {
		sentences = 1
	}
	avg := float64(words) / float64(sentences)
	// 8-18 words per sentence reads well on a phone screen.
	switch {
	case avg >= 8 && avg <= 18:
		return 100
	case avg < 8:
		return 60 + avg*5
	default:
		over := avg - 18
		score := 100 - over*4
		if score < 20 {
			return 20
		}
		return score
	}
}

var ctaPhrases = []string{"download", "try it", "get started", "start now", "install", "join"}

func ctaScore(text string) float64 {
	lower := strings.ToLower(text)
	for _, phrase := range ctaPhrases {
		if strings.Contains(lower, phrase) {
			return 100
		}
	}
	return 0
}

func elementMessages(element Element, text string, kpiScores map[string]float64, rs *types.MergedRuleSet) []string {
	var out []string
	switch element {
	case ElementTitle:
		if kpiScores["title_length_fit"] < 60 {
			out = append(out, Message("title_too_short",
				"The title is short; using more of the character budget covers more keywords.", rs))
		}
		if kpiScores["title_hook_strength"] == 0 {
			out = append(out, Message("title_no_hook",
				"The title contains no hook pattern; consider leading with a benefit.", rs))
		}
	case ElementDescription:
		if kpiScores["description_cta_presence"] == 0 {
			out = append(out, Message("description_no_cta",
				"The description never asks the reader to act.", rs))
		}
		if firstParagraph(text) == "" || kpiScores["description_hook_strength"] == 0 {
			out = append(out, Message("description_weak_opening",
				"The opening lines carry no hook; most readers never expand past them.", rs))
		}
	}
	return out
}

func firstParagraph(text string) string {
	parts := strings.SplitN(strings.TrimSpace(text), "\n", 2)
	if len(parts) == 0 {
		return ""
	}
	return strings.TrimSpace(parts[0])
}

// Tokenize lowercases and splits text on non-letter/digit runs.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127)
	})
}
