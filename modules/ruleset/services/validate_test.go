package services

import (
	"encoding/json"
	"testing"

	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
	"github.com/asoforge/asoforge/pkg/httperr"
)

func TestValidateOverridePayload(t *testing.T) {
	err := ValidateOverridePayload(types.KindStopword, json.RawMessage(`{"words":["the"]}`))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
}

func TestValidateOverridePayload_RejectsIneffectivePayload(t *testing.T) {
	err := ValidateOverridePayload(types.KindTokenRelevance, json.RawMessage(`{"token":""}`))
	if err == nil || !httperr.IsBadRequest(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestValidateOverridePayload_RejectsUnknownKind(t *testing.T) {
	err := ValidateOverridePayload(types.Kind("sentiment_table"), json.RawMessage(`{}`))
	if err == nil || !httperr.IsBadRequest(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestValidateOverridePayload_ClampedPayloadStillAccepted(t *testing.T) {
	err := ValidateOverridePayload(types.KindTokenRelevance, json.RawMessage(`{"token":"study","relevance":9}`))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
}
