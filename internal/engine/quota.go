package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps is the default maximum number of cascade steps per
// top-level dispatch.
const DefaultMaxSteps = 1000

// QuotaEnforcer counts cascade steps for one top-level dispatch.
//
// Not safe for concurrent use; it lives inside a single Run iteration.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates an enforcer allowing maxSteps steps.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check counts one step and fails once the count passes the limit.
func (q *QuotaEnforcer) Check(dispatchID string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			DispatchID: dispatchID,
			Steps:      q.current,
			Limit:      q.maxSteps,
		}
	}
	return nil
}

// StepsExceededError indicates a dispatch ran more cascade steps than
// allowed.
type StepsExceededError struct {
	DispatchID string
	Steps      int
	Limit      int
}

func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("dispatch %s exceeded max steps quota: %d steps > %d limit",
		e.DispatchID, e.Steps, e.Limit)
}

// IsStepsExceededError reports whether err is a *StepsExceededError.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
