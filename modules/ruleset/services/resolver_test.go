package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
)

type fakeStore struct {
	records  map[string][]types.OverrideRecord
	versions map[string]int64
	loadErr  error
	loads    int
}

func storeKey(layer types.Layer, scopeKey string) string {
	return string(layer) + "/" + scopeKey
}

func (s *fakeStore) LoadOverrideRecords(_ context.Context, layer types.Layer, scopeKey string, _ ...types.Kind) ([]types.OverrideRecord, error) {
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.records[storeKey(layer, scopeKey)], nil
}

func (s *fakeStore) LayerVersion(_ context.Context, layer types.Layer, scopeKey string) (int64, error) {
	return s.versions[storeKey(layer, scopeKey)], nil
}

func storeWith(layer types.Layer, scopeKey string, version int64, payloads map[types.Kind]string) *fakeStore {
	s := &fakeStore{
		records:  map[string][]types.OverrideRecord{},
		versions: map[string]int64{},
	}
	key := storeKey(layer, scopeKey)
	for kind, payload := range payloads {
		s.records[key] = append(s.records[key], types.OverrideRecord{
			RecordUUID: "00000000-0000-7000-8000-000000000001",
			ScopeLayer: layer,
			ScopeKey:   scopeKey,
			Kind:       kind,
			Payload:    json.RawMessage(payload),
		})
	}
	s.versions[key] = version
	return s
}

func TestResolver_StoreFailureFallsBackAndIsNotCached(t *testing.T) {
	store := &fakeStore{loadErr: errors.New("connection refused")}
	r, err := NewResolver(ResolverOptions{Store: store, OverridesEnabled: true})
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	req := ResolveRequest{Vertical: "education"}
	got := r.ActiveRuleSet(context.Background(), req)
	if got.Source != types.SourceCode {
		t.Fatalf("source=%q", got.Source)
	}
	if store.loads != 1 {
		t.Fatalf("loads=%d", store.loads)
	}

	// The fallback must not stick: the next request retries the store.
	r.ActiveRuleSet(context.Background(), req)
	if store.loads != 2 {
		t.Fatalf("loads=%d", store.loads)
	}
}

func TestResolver_SuccessfulLoadIsCached(t *testing.T) {
	store := storeWith(types.LayerVertical, "education", 7, map[types.Kind]string{
		types.KindTokenRelevance: `{"token":"flashcards","relevance":3}`,
	})
	r, err := NewResolver(ResolverOptions{Store: store, OverridesEnabled: true})
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	req := ResolveRequest{Vertical: "education"}
	first := r.ActiveRuleSet(context.Background(), req)
	if first.TokenRelevance["flashcards"] != 3 {
		t.Fatalf("relevance=%v", first.TokenRelevance)
	}
	if first.Source != types.SourceHybrid {
		t.Fatalf("source=%q", first.Source)
	}
	if first.Versions.Vertical != 7 {
		t.Fatalf("versions=%+v", first.Versions)
	}

	loadsAfterFirst := store.loads
	r.ActiveRuleSet(context.Background(), req)
	if store.loads != loadsAfterFirst {
		t.Fatalf("cache miss on second request: loads=%d", store.loads)
	}
}

func TestResolver_ToggleOffServesCodeBaseWithoutStore(t *testing.T) {
	store := &fakeStore{loadErr: errors.New("must not be called")}
	r, err := NewResolver(ResolverOptions{Store: store, OverridesEnabled: false})
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	got := r.ActiveRuleSet(context.Background(), ResolveRequest{Vertical: "education"})
	if got.Source != types.SourceCode {
		t.Fatalf("source=%q", got.Source)
	}
	if store.loads != 0 {
		t.Fatalf("loads=%d", store.loads)
	}
	if got.Versions.Base != 0 || got.Versions.Vertical != 0 {
		t.Fatalf("versions=%+v", got.Versions)
	}
}

func TestResolver_EnabledRequiresStore(t *testing.T) {
	if _, err := NewResolver(ResolverOptions{OverridesEnabled: true}); err == nil {
		t.Fatal("expected error")
	}
}

func TestResolver_InvalidateForcesReload(t *testing.T) {
	store := storeWith(types.LayerVertical, "education", 1, map[types.Kind]string{
		types.KindStopword: `{"words":["kostenlos"]}`,
	})
	r, err := NewResolver(ResolverOptions{Store: store, OverridesEnabled: true})
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	req := ResolveRequest{Vertical: "education"}
	r.ActiveRuleSet(context.Background(), req)
	loadsAfterFirst := store.loads

	if n := r.Invalidate(types.Scope{Vertical: "education"}); n != 1 {
		t.Fatalf("invalidated=%d", n)
	}
	r.ActiveRuleSet(context.Background(), req)
	if store.loads == loadsAfterFirst {
		t.Fatal("expected reload after invalidation")
	}
}

func TestResolver_ClientScopeKey(t *testing.T) {
	if got := clientScopeKey("org-acme", ""); got != "org-acme" {
		t.Fatalf("key=%q", got)
	}
	if got := clientScopeKey("org-acme", "app-1"); got != "org-acme:app-1" {
		t.Fatalf("key=%q", got)
	}
}

func TestResolver_MalformedRecordsDegradeToDiagnostics(t *testing.T) {
	store := storeWith(types.LayerVertical, "education", 2, map[types.Kind]string{
		types.KindTokenRelevance: `not json at all`,
	})
	r, err := NewResolver(ResolverOptions{Store: store, OverridesEnabled: true})
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	got := r.ActiveRuleSet(context.Background(), ResolveRequest{Vertical: "education"})
	// The bad record contributes nothing but resolution still succeeds
	// and the layer version is still stamped.
	if got.Versions.Vertical != 2 {
		t.Fatalf("versions=%+v", got.Versions)
	}
}
