package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/asoforge/asoforge/internal/routing"
	"github.com/asoforge/asoforge/modules/ruleset/domain/ports"
	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
	"github.com/asoforge/asoforge/modules/ruleset/services"
	"github.com/asoforge/asoforge/pkg/httperr"
	"github.com/asoforge/asoforge/pkg/uuidv7"
)

var newRecordUUID = uuidv7.NewString

type overrideSubmitRequest struct {
	Layer     string          `json:"layer"`
	ScopeKey  string          `json:"scope_key"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id"`
}

type overrideSubmitResponse struct {
	RecordUUID   string `json:"record_uuid"`
	LayerVersion int64  `json:"layer_version"`
	Invalidated  int    `json:"invalidated_cache_entries"`
}

type overrideDisableRequest struct {
	RecordUUID string `json:"record_uuid"`
	RequestID  string `json:"request_id"`
}

type overrideDisableResponse struct {
	RecordUUID   string `json:"record_uuid"`
	LayerVersion int64  `json:"layer_version"`
	Invalidated  int    `json:"invalidated_cache_entries"`
}

type overrideItem struct {
	RecordUUID   string          `json:"record_uuid"`
	Layer        string          `json:"layer"`
	ScopeKey     string          `json:"scope_key"`
	Kind         string          `json:"kind"`
	Payload      json.RawMessage `json:"payload"`
	LayerVersion int64           `json:"layer_version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func validLayer(raw string) (types.Layer, bool) {
	layer := types.Layer(strings.ToLower(strings.TrimSpace(raw)))
	switch layer {
	case types.LayerBase, types.LayerVertical, types.LayerMarket, types.LayerClient:
		return layer, true
	default:
		return "", false
	}
}

func handleOverrideSubmitAPI(w http.ResponseWriter, r *http.Request, deps *Dependencies) {
	if deps.WriteStore == nil {
		routing.WriteError(w, r, http.StatusServiceUnavailable, "OVERRIDES_DISABLED", "persisted overrides are disabled")
		return
	}

	var req overrideSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}

	layer, ok := validLayer(req.Layer)
	if !ok {
		routing.WriteError(w, r, http.StatusBadRequest, "LAYER_INVALID", "layer must be base|vertical|market|client")
		return
	}
	scopeKey := strings.TrimSpace(req.ScopeKey)
	if layer == types.LayerBase {
		scopeKey = services.BaseScopeKey
	}
	if scopeKey == "" {
		routing.WriteError(w, r, http.StatusBadRequest, "SCOPE_KEY_REQUIRED", "scope_key required")
		return
	}
	kind := types.Kind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if !types.KnownKind(kind) {
		routing.WriteError(w, r, http.StatusBadRequest, "KIND_INVALID", "unknown override kind")
		return
	}
	if len(req.Payload) == 0 || !json.Valid(req.Payload) {
		routing.WriteError(w, r, http.StatusBadRequest, "PAYLOAD_INVALID", "payload must be a json object")
		return
	}
	if err := services.ValidateOverridePayload(kind, req.Payload); err != nil {
		if httperr.IsBadRequest(err) {
			routing.WriteError(w, r, http.StatusBadRequest, "PAYLOAD_INVALID", err.Error())
			return
		}
		routing.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	if decision := deps.Guard.Check(layer, scopeKey, kind, string(req.Payload)); !decision.Allowed {
		deps.Log.Warn("override submission denied by guard",
			zap.String("rule_id", decision.RuleID),
			zap.String("layer", string(layer)),
			zap.String("scope_key", scopeKey))
		routing.WriteError(w, r, http.StatusUnprocessableEntity, decision.ReasonCode, "override rejected by guard rule")
		return
	}

	recordUUID, err := newRecordUUID()
	if err != nil {
		routing.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	initiator := ""
	if p, ok := currentPrincipal(r.Context()); ok {
		initiator = p.ID
	}

	version, err := deps.WriteStore.SubmitOverride(r.Context(), recordUUID, layer, scopeKey, kind, req.Payload, strings.TrimSpace(req.RequestID), initiator)
	if err != nil {
		deps.Log.Error("override submit failed", zap.Error(err))
		routing.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	invalidated := invalidateForMutation(deps, layer, scopeKey)

	routing.WriteJSON(w, http.StatusCreated, overrideSubmitResponse{
		RecordUUID:   recordUUID,
		LayerVersion: version,
		Invalidated:  invalidated,
	})
}

func handleOverrideDisableAPI(w http.ResponseWriter, r *http.Request, deps *Dependencies) {
	if deps.WriteStore == nil {
		routing.WriteError(w, r, http.StatusServiceUnavailable, "OVERRIDES_DISABLED", "persisted overrides are disabled")
		return
	}

	var req overrideDisableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	recordUUID := strings.TrimSpace(req.RecordUUID)
	if recordUUID == "" {
		routing.WriteError(w, r, http.StatusBadRequest, "RECORD_UUID_REQUIRED", "record_uuid required")
		return
	}

	initiator := ""
	if p, ok := currentPrincipal(r.Context()); ok {
		initiator = p.ID
	}

	layer, scopeKey, version, err := deps.WriteStore.DisableOverride(r.Context(), recordUUID, strings.TrimSpace(req.RequestID), initiator)
	if errors.Is(err, ports.ErrOverrideNotFound) {
		routing.WriteError(w, r, http.StatusNotFound, "OVERRIDE_NOT_FOUND", "override not found")
		return
	}
	if err != nil {
		deps.Log.Error("override disable failed", zap.Error(err))
		routing.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	invalidated := invalidateForMutation(deps, layer, scopeKey)

	routing.WriteJSON(w, http.StatusOK, overrideDisableResponse{
		RecordUUID:   recordUUID,
		LayerVersion: version,
		Invalidated:  invalidated,
	})
}

func handleOverrideListAPI(w http.ResponseWriter, r *http.Request, deps *Dependencies) {
	if deps.WriteStore == nil {
		routing.WriteError(w, r, http.StatusServiceUnavailable, "OVERRIDES_DISABLED", "persisted overrides are disabled")
		return
	}

	layer, ok := validLayer(r.URL.Query().Get("layer"))
	if !ok {
		routing.WriteError(w, r, http.StatusBadRequest, "LAYER_INVALID", "layer must be base|vertical|market|client")
		return
	}
	scopeKey := strings.TrimSpace(r.URL.Query().Get("scope_key"))
	if layer == types.LayerBase {
		scopeKey = services.BaseScopeKey
	}
	if scopeKey == "" {
		routing.WriteError(w, r, http.StatusBadRequest, "SCOPE_KEY_REQUIRED", "scope_key required")
		return
	}

	kind := types.Kind(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("kind"))))
	if kind != "" && !types.KnownKind(kind) {
		routing.WriteError(w, r, http.StatusBadRequest, "KIND_INVALID", "unknown override kind")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			routing.WriteError(w, r, http.StatusBadRequest, "LIMIT_INVALID", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := deps.WriteStore.ListOverrides(r.Context(), layer, scopeKey, kind, limit)
	if err != nil {
		deps.Log.Error("override list failed", zap.Error(err))
		routing.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	items := make([]overrideItem, 0, len(records))
	for _, rec := range records {
		items = append(items, overrideItem{
			RecordUUID:   rec.RecordUUID,
			Layer:        string(rec.ScopeLayer),
			ScopeKey:     rec.ScopeKey,
			Kind:         string(rec.Kind),
			Payload:      rec.Payload,
			LayerVersion: rec.LayerVersion,
			CreatedAt:    rec.CreatedAt,
			UpdatedAt:    rec.UpdatedAt,
		})
	}
	routing.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// invalidateForMutation drops matching cache entries locally and fans
// the invalidation out to the other instances.
func invalidateForMutation(deps *Dependencies, layer types.Layer, scopeKey string) int {
	scope := types.ScopeForLayer(layer, scopeKey)
	n := deps.Resolver.Invalidate(scope)
	if deps.Bus != nil {
		deps.Bus.PublishInvalidation(scope)
	}
	return n
}
