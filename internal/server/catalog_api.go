package server

import (
	"net/http"
	"sort"

	"github.com/asoforge/asoforge/internal/routing"
	"github.com/asoforge/asoforge/pkg/catalog"
)

type catalogResponse struct {
	KPIs     []string `json:"kpis"`
	Formulas []string `json:"formulas"`
}

// handleCatalogAPI lists the KPI and formula ids this binary knows.
// Override authors use it to avoid KPI_ID_UNKNOWN / FORMULA_ID_UNKNOWN
// diagnostics on submit.
func handleCatalogAPI(w http.ResponseWriter, r *http.Request) {
	kpis := catalog.KPIIDs()
	formulas := catalog.FormulaIDs()
	sort.Strings(kpis)
	sort.Strings(formulas)
	routing.WriteJSON(w, http.StatusOK, catalogResponse{KPIs: kpis, Formulas: formulas})
}
