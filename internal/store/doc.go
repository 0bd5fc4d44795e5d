// Package store provides the SQLite-backed dispatch journal.
//
// The journal is append-only:
//   - Steps: every applied reducer step, keyed by its logical clock seq
//   - Diagnostics: isolated failures reported by the engine
//
// # Ordering
//
// Steps are ordered by seq alone. Queries always ORDER BY seq ASC (steps) or
// id ASC (diagnostics), so reads are deterministic and a replay of the
// journal reproduces the engine state exactly.
//
// # Payload Encoding
//
// Action payloads are stored as RFC 8785 canonical JSON via ir.MarshalCanonical
// and decoded with ir.UnmarshalIRValue, which keeps integers exact.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
