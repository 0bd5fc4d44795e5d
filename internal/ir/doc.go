// Package ir provides the value and action vocabulary shared by every float
// package.
//
// This package contains type definitions, canonical serialization, content
// hashes, and the dispatch-boundary validation contract. All other internal
// packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Values are a sealed set (IRNull, IRString, IRInt, IRFloat, IRBool,
//     IRArray, IRObject); arbitrary Go values enter through FromAny only
//   - Canonical JSON (RFC 8785 key order, NFC strings) is the only encoding
//     used for hashing
//   - Non-finite floats are rejected at every boundary
//   - All JSON tags use snake_case
package ir
