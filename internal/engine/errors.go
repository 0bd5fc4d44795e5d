package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEngineStopped is returned for requests submitted after Run returned.
var ErrEngineStopped = errors.New("engine stopped")

// RuntimeError represents a fatal condition detected while processing a
// dispatch chain. Steps applied before the error stay committed.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Reason narrows the code (cycle, depth, quota).
	Reason string

	// Message is a human-readable description.
	Message string

	// DispatchID identifies the affected top-level dispatch.
	DispatchID string

	// Rule is the rule whose action tripped the guard, if any.
	Rule string

	// ActionType is the type of the rejected action.
	ActionType string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeRecursionLimit indicates a rule cascade was cut off.
	ErrCodeRecursionLimit RuntimeErrorCode = "RECURSION_LIMIT_EXCEEDED"
)

// Recursion guard reasons.
const (
	ReasonCycle = "cycle"
	ReasonDepth = "depth"
	ReasonQuota = "quota"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.DispatchID != "" && e.Rule != "" {
		return fmt.Sprintf("%s: %s (dispatch=%s, rule=%s)", e.Code, e.Message, e.DispatchID, e.Rule)
	}
	if e.DispatchID != "" {
		return fmt.Sprintf("%s: %s (dispatch=%s)", e.Code, e.Message, e.DispatchID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRecursionLimit reports whether err is a recursion guard error.
// Uses errors.As to handle wrapped errors.
func IsRecursionLimit(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeRecursionLimit
	}
	return false
}

// IsCycleError reports whether err is a recursion guard error caused by a
// path cycle.
func IsCycleError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeRecursionLimit && re.Reason == ReasonCycle
}

// IsQuotaError reports whether err is a recursion guard error caused by the
// step quota. Matches StepsExceededError too.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeRecursionLimit && re.Reason == ReasonQuota
	}
	var se *StepsExceededError
	return errors.As(err, &se)
}

// NewCycleError creates a RuntimeError for a rule re-firing an action that
// is already on its ancestor path. path lists the firing rules from the
// top-level action down, ending with rule.
func NewCycleError(dispatchID, rule, actionType string, path []string) *RuntimeError {
	return &RuntimeError{
		Code:       ErrCodeRecursionLimit,
		Reason:     ReasonCycle,
		Message:    fmt.Sprintf("rule would re-fire %s already on its dispatch path", actionType),
		DispatchID: dispatchID,
		Rule:       rule,
		ActionType: actionType,
		Details: map[string]string{
			"path": strings.Join(path, " > "),
		},
	}
}

// NewDepthError creates a RuntimeError for nesting beyond maxDepth.
func NewDepthError(dispatchID, rule, actionType string, depth, maxDepth int) *RuntimeError {
	return &RuntimeError{
		Code:       ErrCodeRecursionLimit,
		Reason:     ReasonDepth,
		Message:    fmt.Sprintf("cascade depth exceeded (%d > %d)", depth, maxDepth),
		DispatchID: dispatchID,
		Rule:       rule,
		ActionType: actionType,
		Details: map[string]string{
			"depth":     fmt.Sprintf("%d", depth),
			"max_depth": fmt.Sprintf("%d", maxDepth),
		},
	}
}

// NewQuotaError creates a RuntimeError wrapping a StepsExceededError.
func NewQuotaError(se *StepsExceededError, rule, actionType string) *RuntimeError {
	return &RuntimeError{
		Code:       ErrCodeRecursionLimit,
		Reason:     ReasonQuota,
		Message:    fmt.Sprintf("dispatch exceeded max steps (%d > %d)", se.Steps, se.Limit),
		DispatchID: se.DispatchID,
		Rule:       rule,
		ActionType: actionType,
		Details: map[string]string{
			"steps":     fmt.Sprintf("%d", se.Steps),
			"max_steps": fmt.Sprintf("%d", se.Limit),
		},
	}
}
