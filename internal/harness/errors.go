package harness

import (
	"errors"
	"fmt"
)

var (
	errUnknownFault    = errors.New("fault is not defined")
	errNoFaultControl  = errors.New("no fault control configured")
	errSessionNotReady = errors.New("session not started")
)

// ConfigurationError reports a scenario that cannot run as configured.
// It aborts the scenario only; the run continues.
type ConfigurationError struct {
	Fault string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("fault %q: %v", e.Fault, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
