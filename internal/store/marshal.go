package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/float/internal/ir"
)

// marshalPayload converts a payload to canonical JSON TEXT for storage.
// A nil payload is stored as NULL.
func marshalPayload(payload ir.IRValue) (sql.NullString, error) {
	if payload == nil {
		return sql.NullString{}, nil
	}
	data, err := ir.MarshalCanonical(payload)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal payload: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalPayload parses stored payload TEXT. Integers beyond 2^53 keep
// their exact value.
func unmarshalPayload(data sql.NullString) (ir.IRValue, error) {
	if !data.Valid {
		return nil, nil
	}
	v, err := ir.UnmarshalIRValue([]byte(data.String))
	if err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return v, nil
}
