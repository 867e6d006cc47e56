package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/asoforge/asoforge/internal/routing"
	"github.com/asoforge/asoforge/modules/ruleset/domain/ports"
	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
	"github.com/asoforge/asoforge/modules/ruleset/services"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) routing.ErrorEnvelope {
	t.Helper()
	var env routing.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("err=%v body=%s", err, rec.Body.String())
	}
	return env
}

func TestOverrideSubmit(t *testing.T) {
	store := &fakeWriteStore{}
	deps, bus := newTestDeps(t, store)

	body := `{"layer":"vertical","scope_key":"education","kind":"stopword","payload":{"words":["the"]},"request_id":"req-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/overrides", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handleOverrideSubmitAPI(rec, req, deps)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp overrideSubmitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("err=%v", err)
	}
	if resp.RecordUUID == "" || resp.LayerVersion != 1 {
		t.Fatalf("resp=%+v", resp)
	}
	if len(store.submitted) != 1 || store.submitted[0].layer != types.LayerVertical || store.submitted[0].scopeKey != "education" {
		t.Fatalf("submitted=%+v", store.submitted)
	}
	if len(bus.published) != 1 || bus.published[0] != (types.Scope{Vertical: "education"}) {
		t.Fatalf("published=%+v", bus.published)
	}
}

func TestOverrideSubmit_BaseLayerForcesGlobalScopeKey(t *testing.T) {
	store := &fakeWriteStore{}
	deps, _ := newTestDeps(t, store)

	body := `{"layer":"base","scope_key":"ignored","kind":"stopword","payload":{"words":["the"]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/overrides", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handleOverrideSubmitAPI(rec, req, deps)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if store.submitted[0].scopeKey != services.BaseScopeKey {
		t.Fatalf("scope=%q", store.submitted[0].scopeKey)
	}
}

func TestOverrideSubmit_Validation(t *testing.T) {
	deps, _ := newTestDeps(t, &fakeWriteStore{})

	cases := []struct {
		body string
		code string
	}{
		{`{"layer":"country","scope_key":"de","kind":"stopword","payload":{}}`, "LAYER_INVALID"},
		{`{"layer":"market","kind":"stopword","payload":{"words":["the"]}}`, "SCOPE_KEY_REQUIRED"},
		{`{"layer":"market","scope_key":"de","kind":"sentiment","payload":{}}`, "KIND_INVALID"},
		{`{"layer":"market","scope_key":"de","kind":"stopword"}`, "PAYLOAD_INVALID"},
		{`{"layer":"market","scope_key":"de","kind":"token_relevance","payload":{"token":""}}`, "PAYLOAD_INVALID"},
		{`not json`, "bad_json"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/overrides", strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		handleOverrideSubmitAPI(rec, req, deps)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body=%s status=%d", tc.body, rec.Code)
		}
		if env := decodeError(t, rec); env.Code != tc.code {
			t.Fatalf("body=%s code=%q want=%q", tc.body, env.Code, tc.code)
		}
	}
}

func TestOverrideSubmit_GuardDenial(t *testing.T) {
	deps, _ := newTestDeps(t, &fakeWriteStore{})
	guard, err := services.NewGuard([]services.GuardRule{{
		RuleID:     "no-base-writes",
		Expr:       `record.layer != "base"`,
		ReasonCode: "BASE_LAYER_LOCKED",
	}})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	deps.Guard = guard

	body := `{"layer":"base","kind":"stopword","payload":{"words":["the"]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/overrides", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handleOverrideSubmitAPI(rec, req, deps)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rec.Code)
	}
	if env := decodeError(t, rec); env.Code != "BASE_LAYER_LOCKED" {
		t.Fatalf("code=%q", env.Code)
	}
}

func TestOverrideSubmit_DisabledWithoutStore(t *testing.T) {
	deps, _ := newTestDeps(t, nil)
	deps.WriteStore = nil

	req := httptest.NewRequest(http.MethodPost, "/api/v1/overrides", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handleOverrideSubmitAPI(rec, req, deps)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestOverrideDisable(t *testing.T) {
	store := &fakeWriteStore{disabledLayer: types.LayerMarket, disabledScope: "de"}
	deps, bus := newTestDeps(t, store)

	body := `{"record_uuid":"00000000-0000-7000-8000-000000000001"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/overrides/disable", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handleOverrideDisableAPI(rec, req, deps)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(bus.published) != 1 || bus.published[0] != (types.Scope{Market: "de"}) {
		t.Fatalf("published=%+v", bus.published)
	}
}

func TestOverrideDisable_NotFound(t *testing.T) {
	store := &fakeWriteStore{disableErr: ports.ErrOverrideNotFound}
	deps, _ := newTestDeps(t, store)

	body := `{"record_uuid":"00000000-0000-7000-8000-000000000009"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/overrides/disable", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handleOverrideDisableAPI(rec, req, deps)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestOverrideList(t *testing.T) {
	store := &fakeWriteStore{listRecords: []types.OverrideRecord{{
		RecordUUID: "00000000-0000-7000-8000-000000000001",
		ScopeLayer: types.LayerVertical,
		ScopeKey:   "education",
		Kind:       types.KindStopword,
		Payload:    json.RawMessage(`{"words":["the"]}`),
	}}}
	deps, _ := newTestDeps(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/overrides?layer=vertical&scope_key=education", nil)
	rec := httptest.NewRecorder()
	handleOverrideListAPI(rec, req, deps)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Items []overrideItem `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Kind != "stopword" {
		t.Fatalf("items=%+v", resp.Items)
	}
}

func TestOverrideList_BadLimit(t *testing.T) {
	deps, _ := newTestDeps(t, &fakeWriteStore{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/overrides?layer=vertical&scope_key=education&limit=x", nil)
	rec := httptest.NewRecorder()
	handleOverrideListAPI(rec, req, deps)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
}
