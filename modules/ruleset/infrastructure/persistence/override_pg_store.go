package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/asoforge/asoforge/modules/ruleset/domain/ports"
	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OverridePGStore reads and writes override records in the
// ruleset.overrides / ruleset.layer_versions tables. Reads never report
// "not found": an empty scope yields an empty slice.
type OverridePGStore struct {
	pool pgBeginner
}

func NewOverridePGStore(pool pgBeginner) *OverridePGStore {
	return &OverridePGStore{pool: pool}
}

var _ ports.OverrideStore = (*OverridePGStore)(nil)
var _ ports.OverrideWriteStore = (*OverridePGStore)(nil)

func (s *OverridePGStore) LoadOverrideRecords(ctx context.Context, layer types.Layer, scopeKey string, kinds ...types.Kind) ([]types.OverrideRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	kindNames := make([]string, 0, len(kinds))
	for _, k := range kinds {
		kindNames = append(kindNames, string(k))
	}

	rows, err := tx.Query(ctx, `
SELECT record_uuid, scope_layer, scope_key, kind, payload, layer_version, created_at, updated_at
FROM ruleset.overrides
WHERE scope_layer = $1::text
  AND scope_key = $2::text
  AND kind = ANY($3::text[])
  AND status = 'active'
ORDER BY created_at, record_uuid
`, string(layer), scopeKey, kindNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.OverrideRecord
	for rows.Next() {
		var rec types.OverrideRecord
		var recLayer, recKind string
		if err := rows.Scan(&rec.RecordUUID, &recLayer, &rec.ScopeKey, &recKind, &rec.Payload, &rec.LayerVersion, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.ScopeLayer = types.Layer(recLayer)
		rec.Kind = types.Kind(recKind)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *OverridePGStore) LayerVersion(ctx context.Context, layer types.Layer, scopeKey string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var version int64
	err = tx.QueryRow(ctx, `
SELECT version
FROM ruleset.layer_versions
WHERE scope_layer = $1::text AND scope_key = $2::text
`, string(layer), scopeKey).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, tx.Commit(ctx)
	}
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return version, nil
}

func (s *OverridePGStore) SubmitOverride(ctx context.Context, recordUUID string, layer types.Layer, scopeKey string, kind types.Kind, payload json.RawMessage, requestID string, initiatorUUID string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `
INSERT INTO ruleset.overrides (record_uuid, scope_layer, scope_key, kind, payload, layer_version, status, request_id, initiator_uuid, created_at, updated_at)
VALUES ($1::uuid, $2::text, $3::text, $4::text, $5::jsonb, 0, 'active', $6::text, $7::uuid, now(), now())
`, recordUUID, string(layer), scopeKey, string(kind), payload, requestID, initiatorUUID); err != nil {
		return 0, err
	}

	version, err := bumpLayerVersion(ctx, tx, layer, scopeKey)
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx, `
UPDATE ruleset.overrides SET layer_version = $2 WHERE record_uuid = $1::uuid
`, recordUUID, version); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return version, nil
}

func (s *OverridePGStore) DisableOverride(ctx context.Context, recordUUID string, requestID string, initiatorUUID string) (types.Layer, string, int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", "", 0, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var layer, scopeKey string
	err = tx.QueryRow(ctx, `
UPDATE ruleset.overrides
SET status = 'disabled', updated_at = now()
WHERE record_uuid = $1::uuid AND status = 'active'
RETURNING scope_layer, scope_key
`, recordUUID).Scan(&layer, &scopeKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", 0, ports.ErrOverrideNotFound
	}
	if err != nil {
		return "", "", 0, err
	}

	version, err := bumpLayerVersion(ctx, tx, types.Layer(layer), scopeKey)
	if err != nil {
		return "", "", 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", "", 0, err
	}
	return types.Layer(layer), scopeKey, version, nil
}

func (s *OverridePGStore) ListOverrides(ctx context.Context, layer types.Layer, scopeKey string, kind types.Kind, limit int) ([]types.OverrideRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT record_uuid, scope_layer, scope_key, kind, payload, layer_version, created_at, updated_at
FROM ruleset.overrides
WHERE scope_layer = $1::text
  AND scope_key = $2::text
  AND ($3::text = '' OR kind = $3::text)
  AND status = 'active'
ORDER BY created_at DESC, record_uuid
LIMIT $4
`, string(layer), scopeKey, string(kind), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.OverrideRecord
	for rows.Next() {
		var rec types.OverrideRecord
		var recLayer, recKind string
		if err := rows.Scan(&rec.RecordUUID, &recLayer, &rec.ScopeKey, &recKind, &rec.Payload, &rec.LayerVersion, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.ScopeLayer = types.Layer(recLayer)
		rec.Kind = types.Kind(recKind)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func bumpLayerVersion(ctx context.Context, tx pgx.Tx, layer types.Layer, scopeKey string) (int64, error) {
	var version int64
	if err := tx.QueryRow(ctx, `
INSERT INTO ruleset.layer_versions (scope_layer, scope_key, version, updated_at)
VALUES ($1::text, $2::text, 1, now())
ON CONFLICT (scope_layer, scope_key)
DO UPDATE SET version = ruleset.layer_versions.version + 1, updated_at = now()
RETURNING version
`, string(layer), scopeKey).Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}
