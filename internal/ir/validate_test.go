package ir

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateActionAccepts(t *testing.T) {
	tests := []struct {
		name   string
		action Action
	}{
		{"context load", NewAction("context/load", IRObject{"context": IRString("react-patterns")})},
		{"context link", NewAction("context/link", IRObject{"parent": IRString("a"), "child": IRString("b")})},
		{"context store any data", NewAction("context/store", IRObject{"context": IRString("a"), "data": IRArray{IRFloat(0.5)}})},
		{"brain boot any payload", NewAction("brain/boot", IRString("focus"))},
		{"brain boost without payload", Action{Type: "brain/boost_focus"}},
		{"bridge restore", NewAction("bridges/restore", IRObject{"bridge_id": IRString("b-1")})},
		{"chroma search full", NewAction("chroma/search", IRObject{
			"query":      IRString("react"),
			"collection": IRString("notes"),
			"n_results":  IRInt(3),
		})},
		{"unknown domain", NewAction("telemetry/ping", IRObject{"anything": IRBool(true)})},
		{"extra fields allowed", NewAction("vault/search", IRObject{"query": IRString("q"), "limit": IRInt(2)})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, ValidateAction(tt.action))
		})
	}
}

func TestValidateActionRejects(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		code   string
		field  string
	}{
		{"empty type", Action{}, ErrTypeMissing, "type"},
		{"padded type", Action{Type: " context/load"}, ErrTypeMalformed, "type"},
		{"control char", Action{Type: "context/\nload"}, ErrTypeMalformed, "type"},
		{"reserved domain", NewAction("middleware/register", IRObject{"name": IRString("x")}), ErrTypeReserved, "type"},
		{"missing required", NewAction("context/load", IRObject{}), ErrPayloadContract, "payload"},
		{"missing payload", Action{Type: "bridges/restore"}, ErrPayloadContract, "payload"},
		{"wrong field type", NewAction("vault/search", IRObject{"query": IRInt(1)}), ErrPayloadContract, "payload"},
		{"empty string", NewAction("bridges/restore", IRObject{"bridge_id": IRString("")}), ErrPayloadContract, "payload"},
		{"payload not object", NewAction("context/load", IRString("react")), ErrPayloadContract, "payload"},
		{"bad n_results", NewAction("chroma/search", IRObject{"query": IRString("q"), "n_results": IRInt(0)}), ErrPayloadContract, "payload"},
		{"non-finite float", NewAction("telemetry/ping", IRObject{"v": IRFloat(math.Inf(1))}), ErrPayloadValue, "payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAction(tt.action)
			require.Error(t, err)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.code, ve.Code)
			assert.Equal(t, tt.field, ve.Field)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestValidatePayloadAllowsReservedDomain(t *testing.T) {
	// The pipeline validates its own middleware/register payloads without
	// the reserved-domain check.
	assert.NoError(t, ValidatePayload(NewAction("middleware/register", IRObject{"name": IRString("r")})))
}

func TestIsValidationErrorWrapped(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", &ValidationError{Field: "type", Message: "type is required", Code: ErrTypeMissing})
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "[V101] type: type is required")
	assert.False(t, IsValidationError(fmt.Errorf("plain")))
}

