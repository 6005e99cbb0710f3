package analytics

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an invalid analytics configuration, such as
// reachability weights that do not sum to one. Configuration problems are
// rejected up front rather than silently corrected.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid analytics configuration: %s %s", e.Field, e.Reason)
}

func IsConfigurationError(err error) bool {
	var confErr *ConfigurationError
	return errors.As(err, &confErr)
}
