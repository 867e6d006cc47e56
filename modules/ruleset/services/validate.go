package services

import (
	"encoding/json"

	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
	"github.com/asoforge/asoforge/pkg/httperr"
)

// ValidateOverridePayload rejects a submission whose payload cannot
// normalize into any effective rule. Resolution-time normalization never
// fails (bad records are skipped with diagnostics), so this is the only
// place a malformed payload is refused outright: at the write, where the
// admin can still fix it.
func ValidateOverridePayload(kind types.Kind, payload json.RawMessage) error {
	if !types.KnownKind(kind) {
		return httperr.NewBadRequest(reasonUnknownKind)
	}

	rules, diags := Normalize([]types.OverrideRecord{{
		ScopeLayer: types.LayerBase,
		Kind:       kind,
		Payload:    payload,
	}})
	if !rules.Empty() {
		return nil
	}
	if len(diags) > 0 {
		return httperr.NewBadRequest(diags[0].Reason)
	}
	return httperr.NewBadRequest(reasonBadPayload)
}
