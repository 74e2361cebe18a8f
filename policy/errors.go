package policy

import (
	"errors"
	"fmt"
)

// ErrInvalidAction reports an action string outside the supported set.
// This surfaces as an error rather than a denied Decision because it is an
// integration mistake, not a policy outcome.
var ErrInvalidAction = errors.New("unrecognized action")

// ErrInvalidAmount reports a zero or negative spend amount. Like
// ErrInvalidAction it is a caller bug, not a policy outcome.
var ErrInvalidAmount = errors.New("spend amount must be positive")

// ConfigError reports an unreadable or malformed policy source. The store
// recovers by falling back to the empty, deny-by-default rule set.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("policy configuration error: %v", e.Err)
	}
	return fmt.Sprintf("policy configuration error in %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
