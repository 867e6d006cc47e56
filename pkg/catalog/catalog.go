package catalog

import "strings"

// Static catalog of scoring identifiers the engine ships with. Override
// records referencing unknown ids are kept but flagged, so a newer data
// plane can feed an older binary without losing records.

var kpiIDs = map[string]struct{}{
	"title_keyword_coverage":      {},
	"title_length_fit":            {},
	"title_hook_strength":         {},
	"subtitle_keyword_coverage":   {},
	"subtitle_complement":         {},
	"description_readability":     {},
	"description_keyword_density": {},
	"description_hook_strength":   {},
	"description_cta_presence":    {},
}

var formulaIDs = map[string]struct{}{
	"title_score":       {},
	"subtitle_score":    {},
	"description_score": {},
	"listing_score":     {},
}

func KnownKPI(id string) bool {
	_, ok := kpiIDs[strings.TrimSpace(id)]
	return ok
}

func KnownFormula(id string) bool {
	_, ok := formulaIDs[strings.TrimSpace(id)]
	return ok
}

func KPIIDs() []string {
	out := make([]string, 0, len(kpiIDs))
	for id := range kpiIDs {
		out = append(out, id)
	}
	return out
}

func FormulaIDs() []string {
	out := make([]string, 0, len(formulaIDs))
	for id := range formulaIDs {
		out = append(out, id)
	}
	return out
}
