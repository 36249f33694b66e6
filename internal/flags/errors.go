package flags

import (
	"errors"
	"fmt"
)

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeUnknownFlag indicates a flag name the schema does not declare.
	ErrCodeUnknownFlag ConfigErrorCode = "CONFIG_UNKNOWN_FLAG"

	// ErrCodeUndeclaredTarget indicates a propagate or reset edge to an
	// undeclared flag.
	ErrCodeUndeclaredTarget ConfigErrorCode = "CONFIG_UNDECLARED_TARGET"

	// ErrCodeDuplicateFlag indicates a flag declared twice.
	ErrCodeDuplicateFlag ConfigErrorCode = "CONFIG_DUPLICATE_FLAG"

	// ErrCodeEmptyName indicates a schema or flag without a name.
	ErrCodeEmptyName ConfigErrorCode = "CONFIG_EMPTY_NAME"

	// ErrCodeInvalidPriority indicates a schema priority outside the enumeration.
	ErrCodeInvalidPriority ConfigErrorCode = "CONFIG_INVALID_PRIORITY"

	// ErrCodeInvalidKind indicates a flag kind outside the enumeration, or a
	// deprecated flag without a deprecation message.
	ErrCodeInvalidKind ConfigErrorCode = "CONFIG_INVALID_KIND"
)

// ConfigError is an unrecoverable programmer error: a schema that does not
// hold together, or a caller using a flag its owner does not declare.
//
// Config errors are returned immediately at the call site and never
// swallowed by the engine.
type ConfigError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Schema names the schema involved.
	Schema string

	// Flag names the offending flag, if any.
	Flag string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Flag != "" {
		return fmt.Sprintf("%s: %s (schema=%s, flag=%s)", e.Code, e.Message, e.Schema, e.Flag)
	}
	return fmt.Sprintf("%s: %s (schema=%s)", e.Code, e.Message, e.Schema)
}

// IsConfigError returns true if err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsUnknownFlag returns true if err is or wraps an unknown-flag ConfigError.
func IsUnknownFlag(err error) bool {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeUnknownFlag
	}
	return false
}

func unknownFlag(schema, flag string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeUnknownFlag,
		Schema:  schema,
		Flag:    flag,
		Message: "flag is not declared by the schema",
	}
}
