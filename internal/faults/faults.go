package faults

import "fmt"

// ResourceError indicates a required resource (template image, persisted
// character record) is missing or unreadable. Fatal at load time.
type ResourceError struct {
	Resource string // what was being loaded, e.g. "template", "character record"
	Path     string // file path or record key
	Err      error
}

func (e *ResourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %q unavailable: %v", e.Resource, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %q unavailable", e.Resource, e.Path)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError wraps err as a load failure for the named resource.
func NewResourceError(resource, path string, err error) *ResourceError {
	return &ResourceError{Resource: resource, Path: path, Err: err}
}

// ValidationError indicates input that violates an invariant: an
// out-of-bounds coordinate or a malformed character record. Raised before
// any side effect, recoverable by skipping the current cycle.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// NewValidationError reports an invariant violation on the named field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ConfigError indicates a configuration defect, such as an event kind with
// no bound action. Detected at startup validation and always fatal.
type ConfigError struct {
	Detail string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Detail
}

// NewConfigError reports a fatal configuration defect.
func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Detail: fmt.Sprintf(format, args...)}
}
