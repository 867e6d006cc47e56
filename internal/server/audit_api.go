package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/asoforge/asoforge/internal/routing"
	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
	"github.com/asoforge/asoforge/modules/ruleset/services"
	"github.com/asoforge/asoforge/pkg/scoring"
)

type auditScoreRequest struct {
	Vertical            string  `json:"vertical"`
	Market              string  `json:"market"`
	AppID               string  `json:"app_id"`
	DetectionConfidence float64 `json:"detection_confidence"`

	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Description string `json:"description"`
}

type auditScoreResponse struct {
	ListingScore float64                `json:"listing_score"`
	Elements     []scoring.ElementScore `json:"elements"`
	Source       string                 `json:"ruleset_source"`
	LeakWarnings []string               `json:"leak_warnings,omitempty"`
	Versions     types.VersionBlock     `json:"versions"`
}

// handleAuditScoreAPI runs one audit pass: resolve the active ruleset for
// the caller's context, score each metadata element, and report the
// ruleset provenance alongside the scores.
func handleAuditScoreAPI(w http.ResponseWriter, r *http.Request, deps *Dependencies) {
	var req auditScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if strings.TrimSpace(req.Title) == "" &&
		strings.TrimSpace(req.Subtitle) == "" &&
		strings.TrimSpace(req.Description) == "" {
		routing.WriteError(w, r, http.StatusBadRequest, "METADATA_EMPTY", "at least one of title, subtitle, description is required")
		return
	}

	orgID := ""
	if org, ok := currentOrganization(r.Context()); ok {
		orgID = org.ID
	}

	rs := deps.Resolver.ActiveRuleSet(r.Context(), services.ResolveRequest{
		Vertical:            strings.TrimSpace(req.Vertical),
		Market:              strings.TrimSpace(req.Market),
		OrganizationID:      orgID,
		AppID:               strings.TrimSpace(req.AppID),
		DetectionConfidence: req.DetectionConfidence,
	})

	elements := []scoring.ElementScore{
		scoring.ScoreElement(scoring.ElementTitle, req.Title, &rs),
		scoring.ScoreElement(scoring.ElementSubtitle, req.Subtitle, &rs),
		scoring.ScoreElement(scoring.ElementDescription, req.Description, &rs),
	}

	routing.WriteJSON(w, http.StatusOK, auditScoreResponse{
		ListingScore: listingScore(elements, &rs),
		Elements:     elements,
		Source:       string(rs.Source),
		LeakWarnings: rs.LeakWarnings,
		Versions:     rs.Versions,
	})
}

// Base element weights for the overall listing score. The listing_score
// formula override can re-weight components or scale the result.
var listingElementWeights = map[string]float64{
	string(scoring.ElementTitle):       0.4,
	string(scoring.ElementSubtitle):    0.25,
	string(scoring.ElementDescription): 0.35,
}

func listingScore(elements []scoring.ElementScore, rs *types.MergedRuleSet) float64 {
	weights := make(map[string]float64, len(elements))
	sum := 0.0
	for _, e := range elements {
		w := scoring.ComponentWeight("listing_score", string(e.Element), listingElementWeights[string(e.Element)], rs)
		weights[string(e.Element)] = w
		sum += w
	}
	if sum <= 0 {
		sum = 1
	}

	total := 0.0
	for _, e := range elements {
		total += e.Score * weights[string(e.Element)] / sum
	}
	total *= scoring.FormulaMultiplier("listing_score", rs)
	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}
	return total
}
