package ports

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
)

var (
	ErrOverrideNotFound = errors.New("override_not_found")
)

// OverrideStore is the persistence collaborator for override records.
// Reads must be idempotent and side-effect-free; "no records" is an empty
// slice, never an error, so the normalizer's contract stays total.
type OverrideStore interface {
	LoadOverrideRecords(ctx context.Context, layer types.Layer, scopeKey string, kinds ...types.Kind) ([]types.OverrideRecord, error)
	LayerVersion(ctx context.Context, layer types.Layer, scopeKey string) (int64, error)
}

// OverrideWriteStore is the admin-side mutation surface. Mutations append
// records and bump the owning layer version; they never rewrite history.
type OverrideWriteStore interface {
	SubmitOverride(ctx context.Context, recordUUID string, layer types.Layer, scopeKey string, kind types.Kind, payload json.RawMessage, requestID string, initiatorUUID string) (int64, error)
	DisableOverride(ctx context.Context, recordUUID string, requestID string, initiatorUUID string) (types.Layer, string, int64, error)
	ListOverrides(ctx context.Context, layer types.Layer, scopeKey string, kind types.Kind, limit int) ([]types.OverrideRecord, error)
}
