package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAuditScore(t *testing.T) {
	deps, _ := newTestDeps(t, &fakeWriteStore{})

	body := `{
		"vertical": "education",
		"market": "us",
		"title": "Learn Spanish Vocabulary Fast",
		"subtitle": "Daily lessons and grammar practice",
		"description": "Master Spanish with short daily lessons. Track your progress with streaks. Download now and start learning."
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/audit/score", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handleAuditScoreAPI(rec, req, deps)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp auditScoreResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("err=%v", err)
	}
	if resp.ListingScore <= 0 || resp.ListingScore > 100 {
		t.Fatalf("listing=%v", resp.ListingScore)
	}
	if len(resp.Elements) != 3 {
		t.Fatalf("elements=%v", resp.Elements)
	}
	if resp.Source != "code" {
		t.Fatalf("source=%q", resp.Source)
	}
	if resp.Versions.KPISchemaVersion == "" {
		t.Fatalf("versions=%+v", resp.Versions)
	}
}

func TestAuditScore_RequiresSomeMetadata(t *testing.T) {
	deps, _ := newTestDeps(t, &fakeWriteStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/audit/score", strings.NewReader(`{"vertical":"education"}`))
	rec := httptest.NewRecorder()
	handleAuditScoreAPI(rec, req, deps)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
	if env := decodeError(t, rec); env.Code != "METADATA_EMPTY" {
		t.Fatalf("code=%q", env.Code)
	}
}

func TestAuditScore_OrganizationScopesTheResolution(t *testing.T) {
	deps, _ := newTestDeps(t, &fakeWriteStore{})

	body := `{"title":"Learn Spanish"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/audit/score", strings.NewReader(body))
	req = req.WithContext(withOrganization(req.Context(), Organization{ID: "org-acme", Slug: "acme"}))
	rec := httptest.NewRecorder()
	handleAuditScoreAPI(rec, req, deps)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	stats := deps.Resolver.CacheStats()
	if stats.Size != 1 {
		t.Fatalf("cache size=%d", stats.Size)
	}
}
