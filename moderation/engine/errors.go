package engine

import "fmt"

// ConfigurationError is fatal to Initialize: the pipeline stays
// uninitialized and the caller must retry initialization explicitly after
// fixing the configuration.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pipeline configuration error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("pipeline configuration error: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
