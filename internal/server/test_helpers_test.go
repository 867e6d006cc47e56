package server

import (
	"context"
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/asoforge/asoforge/modules/ruleset/domain/ports"
	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
	"github.com/asoforge/asoforge/modules/ruleset/services"
)

type submitCall struct {
	recordUUID string
	layer      types.Layer
	scopeKey   string
	kind       types.Kind
}

type fakeWriteStore struct {
	submitted     []submitCall
	submitErr     error
	disableErr    error
	disabledLayer types.Layer
	disabledScope string
	listRecords   []types.OverrideRecord
}

func (s *fakeWriteStore) SubmitOverride(_ context.Context, recordUUID string, layer types.Layer, scopeKey string, kind types.Kind, _ json.RawMessage, _ string, _ string) (int64, error) {
	if s.submitErr != nil {
		return 0, s.submitErr
	}
	s.submitted = append(s.submitted, submitCall{recordUUID: recordUUID, layer: layer, scopeKey: scopeKey, kind: kind})
	return int64(len(s.submitted)), nil
}

func (s *fakeWriteStore) DisableOverride(_ context.Context, _ string, _ string, _ string) (types.Layer, string, int64, error) {
	if s.disableErr != nil {
		return "", "", 0, s.disableErr
	}
	return s.disabledLayer, s.disabledScope, 6, nil
}

func (s *fakeWriteStore) ListOverrides(_ context.Context, _ types.Layer, _ string, _ types.Kind, _ int) ([]types.OverrideRecord, error) {
	return s.listRecords, nil
}

var _ ports.OverrideWriteStore = (*fakeWriteStore)(nil)

type fakeBus struct {
	published []types.Scope
}

func (b *fakeBus) PublishInvalidation(scope types.Scope) {
	b.published = append(b.published, scope)
}

type fakeAuthorizer struct {
	allow    bool
	enforced bool
	calls    int
}

func (a *fakeAuthorizer) Authorize(string, string, string, string) (bool, bool, error) {
	a.calls++
	return a.allow, a.enforced, nil
}

func newTestResolver(t *testing.T) *services.Resolver {
	t.Helper()
	r, err := services.NewResolver(services.ResolverOptions{OverridesEnabled: false})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	return r
}

func newTestDeps(t *testing.T, store *fakeWriteStore) (*Dependencies, *fakeBus) {
	t.Helper()
	guard, err := services.NewGuard(nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	bus := &fakeBus{}
	return &Dependencies{
		Log:        zap.NewNop(),
		Resolver:   newTestResolver(t),
		WriteStore: store,
		Guard:      guard,
		Bus:        bus,
	}, bus
}
