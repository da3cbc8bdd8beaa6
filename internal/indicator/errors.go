package indicator

import "fmt"

// ConfigurationError reports an invalid registry state: duplicate key,
// missing or forward dependency, unknown provider, arity mismatch. It is
// always raised before any numeric work starts.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("indicator %q: configuration: %s", e.Key, e.Reason)
}

func configErr(key, format string, args ...any) error {
	return &ConfigurationError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// ComputationError reports a provider failure. The run that raised it
// returns no result at all.
type ComputationError struct {
	Key string
	Err error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("indicator %q: computation: %v", e.Key, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }
