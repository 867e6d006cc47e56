package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/asoforge/asoforge/internal/routing"
	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
)

type cacheInvalidateRequest struct {
	Vertical       string `json:"vertical"`
	Market         string `json:"market"`
	OrganizationID string `json:"organization_id"`
	AppID          string `json:"app_id"`
}

type cacheInvalidateResponse struct {
	Invalidated int `json:"invalidated_cache_entries"`
}

type cacheStatsResponse struct {
	Size       int    `json:"size"`
	MaxSize    int    `json:"max_size"`
	TTLSeconds int    `json:"ttl_seconds"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Evictions  uint64 `json:"evictions"`
}

// handleCacheInvalidateAPI drops resolution cache entries covered by the
// given scope. An empty body invalidates everything: the zero scope
// covers every entry.
func handleCacheInvalidateAPI(w http.ResponseWriter, r *http.Request, deps *Dependencies) {
	var req cacheInvalidateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			routing.WriteError(w, r, http.StatusBadRequest, "bad_json", "bad json")
			return
		}
	}

	scope := types.Scope{
		Vertical:       strings.TrimSpace(req.Vertical),
		Market:         strings.TrimSpace(req.Market),
		OrganizationID: strings.TrimSpace(req.OrganizationID),
		AppID:          strings.TrimSpace(req.AppID),
	}

	n := deps.Resolver.Invalidate(scope)
	if deps.Bus != nil {
		deps.Bus.PublishInvalidation(scope)
	}

	routing.WriteJSON(w, http.StatusOK, cacheInvalidateResponse{Invalidated: n})
}

func handleCacheStatsAPI(w http.ResponseWriter, r *http.Request, deps *Dependencies) {
	stats := deps.Resolver.CacheStats()
	routing.WriteJSON(w, http.StatusOK, cacheStatsResponse{
		Size:       stats.Size,
		MaxSize:    stats.MaxSize,
		TTLSeconds: int(stats.TTL.Seconds()),
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Evictions:  stats.Evictions,
	})
}
