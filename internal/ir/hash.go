package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainAction = "float/action/v1"
	DomainState  = "float/state/v1"
	DomainRule   = "float/rule/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ActionSignature computes the content hash of an action (type + payload).
// Two actions with the same type and structurally equal payloads share a
// signature regardless of key order or string normalization form. The
// recursion guard uses it to recognize an action already on a rule's
// ancestor path.
func ActionSignature(a Action) (string, error) {
	canonical, err := MarshalCanonical(a.ToIR())
	if err != nil {
		return "", fmt.Errorf("ActionSignature: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAction, canonical), nil
}

// StateHash computes the content hash of a state snapshot rendered as IR.
// The journal records it after every applied step so replays can be
// checked for determinism.
func StateHash(state IRValue) (string, error) {
	canonical, err := MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("StateHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// RuleHash computes the content hash of a rule definition rendered as IR.
func RuleHash(rule IRValue) (string, error) {
	canonical, err := MarshalCanonical(rule)
	if err != nil {
		return "", fmt.Errorf("RuleHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRule, canonical), nil
}

// MustActionSignature is like ActionSignature but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustActionSignature(a Action) string {
	sig, err := ActionSignature(a)
	if err != nil {
		panic(err)
	}
	return sig
}

// MustStateHash is like StateHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustStateHash(state IRValue) string {
	h, err := StateHash(state)
	if err != nil {
		panic(err)
	}
	return h
}
