package types

import (
	"encoding/json"
	"strings"
	"time"
)

type Layer string

const (
	LayerBase     Layer = "base"
	LayerVertical Layer = "vertical"
	LayerMarket   Layer = "market"
	LayerClient   Layer = "client"
)

type Kind string

const (
	KindTokenRelevance Kind = "token_relevance"
	KindHookPattern    Kind = "hook_pattern"
	KindStopword       Kind = "stopword"
	KindKPIWeight      Kind = "kpi_weight"
	KindFormula        Kind = "formula"
	KindRecommendation Kind = "recommendation"
)

// Kinds lists every override kind the engine currently normalizes.
// Records with a kind outside this list are ignored, not rejected.
var Kinds = []Kind{
	KindTokenRelevance,
	KindHookPattern,
	KindStopword,
	KindKPIWeight,
	KindFormula,
	KindRecommendation,
}

func KnownKind(k Kind) bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

const (
	RelevanceMin = 0
	RelevanceMax = 3

	WeightMin = 0.5
	WeightMax = 2.0
)

// Scope identifies one resolution context. Empty fields resolve to the
// sentinel "none" in cache keys so identical scopes always collide.
type Scope struct {
	Vertical       string
	Market         string
	OrganizationID string
	AppID          string
}

const scopeNone = "none"

func (s Scope) CacheKey() string {
	return strings.Join([]string{
		orNone(s.Vertical),
		orNone(s.Market),
		orNone(s.OrganizationID),
		orNone(s.AppID),
	}, "|")
}

// Covers reports whether a mutation at scope s must invalidate a cache
// entry at scope other. A less-specific scope covers every more-specific
// scope underneath it.
func (s Scope) Covers(other Scope) bool {
	if s.Vertical != "" && s.Vertical != other.Vertical {
		return false
	}
	if s.Market != "" && s.Market != other.Market {
		return false
	}
	if s.OrganizationID != "" && s.OrganizationID != other.OrganizationID {
		return false
	}
	if s.AppID != "" && s.AppID != other.AppID {
		return false
	}
	return true
}

// ScopeForLayer maps a persisted record's (layer, scopeKey) pair to the
// resolution scope it affects. Base-layer mutations return the zero
// scope, which covers every entry. Client scope keys are
// "organization[:app]".
func ScopeForLayer(layer Layer, scopeKey string) Scope {
	scopeKey = strings.TrimSpace(scopeKey)
	switch layer {
	case LayerVertical:
		return Scope{Vertical: scopeKey}
	case LayerMarket:
		return Scope{Market: scopeKey}
	case LayerClient:
		org, app, _ := strings.Cut(scopeKey, ":")
		return Scope{OrganizationID: org, AppID: app}
	default:
		return Scope{}
	}
}

func orNone(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return scopeNone
	}
	return v
}

// OverrideRecord is one raw, unvalidated override row as persisted.
// Records are immutable once normalized; updates append new records and
// bump the owning layer version.
type OverrideRecord struct {
	RecordUUID   string
	ScopeLayer   Layer
	ScopeKey     string
	Kind         Kind
	Payload      json.RawMessage
	LayerVersion int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type HookPattern struct {
	Keywords []string
	Weight   float64
}

type FormulaOverride struct {
	Multiplier       float64
	ComponentWeights map[string]float64
}

// RuleSet holds the normalized overrides of exactly one layer.
type RuleSet struct {
	TokenRelevance  map[string]int
	HookPatterns    map[string]HookPattern
	Stopwords       map[string]struct{}
	KPIWeights      map[string]float64
	Formulas        map[string]FormulaOverride
	Recommendations map[string]string
}

func NewRuleSet() RuleSet {
	return RuleSet{
		TokenRelevance:  map[string]int{},
		HookPatterns:    map[string]HookPattern{},
		Stopwords:       map[string]struct{}{},
		KPIWeights:      map[string]float64{},
		Formulas:        map[string]FormulaOverride{},
		Recommendations: map[string]string{},
	}
}

func (r RuleSet) Empty() bool {
	return len(r.TokenRelevance) == 0 &&
		len(r.HookPatterns) == 0 &&
		len(r.Stopwords) == 0 &&
		len(r.KPIWeights) == 0 &&
		len(r.Formulas) == 0 &&
		len(r.Recommendations) == 0
}

type Source string

const (
	SourceCode     Source = "code"
	SourceDatabase Source = "database"
	SourceHybrid   Source = "hybrid"
)

type VersionBlock struct {
	Base                 int64  `json:"base"`
	Vertical             int64  `json:"vertical"`
	Market               int64  `json:"market"`
	Client               int64  `json:"client"`
	KPISchemaVersion     string `json:"kpi_schema_version"`
	FormulaSchemaVersion string `json:"formula_schema_version"`
}

// MergedRuleSet is the effective ruleset for one request context. It is
// derived data: owned by the cache entry holding it and never mutated
// after construction.
type MergedRuleSet struct {
	RuleSet

	Vertical       string
	Market         string
	OrganizationID string
	AppID          string

	Source       Source
	LeakWarnings []string
	Versions     VersionBlock
}

// Diagnostic describes one skipped or adjusted record during
// normalization. Diagnostics are logged, never surfaced as errors.
type Diagnostic struct {
	Kind   Kind
	Key    string
	Reason string
}
