package gateway

import (
	"errors"
	"fmt"
)

// ErrProviderUnavailable is returned when a provider is not connected.
var ErrProviderUnavailable = errors.New("provider unavailable")

// GatewayError is a failed or timed-out tool call.
type GatewayError struct {
	Provider string
	Tool     string
	Timeout  bool
	Err      error
}

func (e *GatewayError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("gateway: %s.%s timed out: %v", e.Provider, e.Tool, e.Err)
	}
	return fmt.Sprintf("gateway: %s.%s failed: %v", e.Provider, e.Tool, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsGatewayError reports whether err is a *GatewayError.
func IsGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}

// IsTimeout reports whether err is a timed-out *GatewayError.
func IsTimeout(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Timeout
}
