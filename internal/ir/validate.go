package ir

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Validation error codes (V100-V199)
const (
	ErrTypeMissing     = "V101" // type is required
	ErrTypeMalformed   = "V102" // type has surrounding whitespace or control characters
	ErrTypeReserved    = "V103" // middleware/* is dispatched by the engine only
	ErrPayloadContract = "V110" // payload violates the type's contract
	ErrPayloadValue    = "V111" // payload contains a value the IR cannot carry
)

// ReservedDomain is the action domain only the dispatch pipeline may emit.
const ReservedDomain = "middleware"

// ValidationError represents a malformed action rejected at the dispatch
// boundary, before any state change.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Unwrap returns the underlying schema error, if any.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// payloadContracts maps action types to the JSON schema their payload must
// satisfy. Types without an entry accept any payload.
var payloadContracts = map[string]*jsonschema.Resolved{
	"context/load":             mustResolve(objectWith(requiredString("context"))),
	"context/unload":           mustResolve(objectWith(requiredString("context"))),
	"context/link":             mustResolve(objectWith(requiredString("parent"), requiredString("child"))),
	"context/store":            mustResolve(objectWith(requiredString("context"))),
	"brain/load":               mustResolve(objectWith(requiredAny("data"))),
	"vault/search":             mustResolve(objectWith(requiredString("query"))),
	"vault/touch":              mustResolve(objectWith(requiredString("file"))),
	"bridges/restore":          mustResolve(objectWith(requiredString("bridge_id"))),
	"bridges/restore_complete": mustResolve(objectWith(requiredString("bridge_id"))),
	"chroma/search": mustResolve(objectWith(
		requiredString("query"),
		optional("collection", &jsonschema.Schema{Type: "string", MinLength: jsonschema.Ptr(1)}),
		optional("n_results", &jsonschema.Schema{Type: "integer", Minimum: jsonschema.Ptr(1.0)}),
	)),
}

type property struct {
	name     string
	schema   *jsonschema.Schema
	required bool
}

func requiredString(name string) property {
	return property{name: name, schema: &jsonschema.Schema{Type: "string", MinLength: jsonschema.Ptr(1)}, required: true}
}

func requiredAny(name string) property {
	return property{name: name, schema: &jsonschema.Schema{}, required: true}
}

func optional(name string, schema *jsonschema.Schema) property {
	return property{name: name, schema: schema}
}

func objectWith(props ...property) *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(props)),
	}
	for _, p := range props {
		s.Properties[p.name] = p.schema
		if p.required {
			s.Required = append(s.Required, p.name)
		}
	}
	return s
}

func mustResolve(s *jsonschema.Schema) *jsonschema.Resolved {
	r, err := s.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("resolve payload contract: %v", err))
	}
	return r
}

// ValidateAction checks an action against the dispatch boundary contract:
// a non-empty type without surrounding whitespace, not in the reserved
// middleware domain, whose payload satisfies the type's schema.
// Returns nil or a *ValidationError.
func ValidateAction(a Action) error {
	if err := validateType(a.Type); err != nil {
		return err
	}
	if a.Domain() == ReservedDomain {
		return &ValidationError{
			Field:   "type",
			Message: fmt.Sprintf("%q is reserved for the dispatch pipeline", a.Type),
			Code:    ErrTypeReserved,
		}
	}
	return ValidatePayload(a)
}

// ValidatePayload checks only the payload contract for a.Type.
func ValidatePayload(a Action) error {
	if _, err := MarshalCanonical(a.Payload); err != nil {
		return &ValidationError{
			Field:   "payload",
			Message: err.Error(),
			Code:    ErrPayloadValue,
			Err:     err,
		}
	}

	contract, ok := payloadContracts[a.Type]
	if !ok {
		return nil
	}
	if err := contract.Validate(ToAny(a.Payload)); err != nil {
		return &ValidationError{
			Field:   "payload",
			Message: fmt.Sprintf("%s: %v", a.Type, err),
			Code:    ErrPayloadContract,
			Err:     err,
		}
	}
	return nil
}

func validateType(t string) error {
	if t == "" {
		return &ValidationError{Field: "type", Message: "type is required", Code: ErrTypeMissing}
	}
	if strings.TrimSpace(t) != t || strings.ContainsFunc(t, isControl) {
		return &ValidationError{
			Field:   "type",
			Message: fmt.Sprintf("type %q must not contain whitespace padding or control characters", t),
			Code:    ErrTypeMalformed,
		}
	}
	return nil
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
