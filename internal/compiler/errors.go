package compiler

import (
	"errors"
	"fmt"
)

// Validation error codes (E200-E299)
const (
	CodeUnknownFilterType     = "E201" // filter type not in the registry
	CodeInvalidFilterParam    = "E202" // parameter missing, forbidden, mistyped or malformed
	CodeNoConnectors          = "E203" // route resolves to zero connectors
	CodeUnsupportedKind       = "E204" // unknown route/interceptor kind or nature
	CodeNatureMismatch        = "E205" // filter cannot apply to the rule's direction
	CodeConnectorTypeMismatch = "E206" // connector type cannot serve the rule's direction
	CodeInvalidRate           = "E207" // negative route rate
	CodeInvalidCredential     = "E208" // unknown credential key or bad value
	CodeInvalidConnector      = "E209" // connector settings out of range
	CodeInvalidEnum           = "E210" // enumeration code outside its lookup table
	CodeDuplicate             = "E211" // natural key already taken
	CodeNotFound              = "E212" // referenced entity does not exist
	CodeReferenced            = "E213" // entity still referenced
	CodeInvalidIdentifier     = "E214" // empty or over-long identifier
	CodeInvalidState          = "E215" // operation not allowed in current state
)

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")

	ErrUnknownFilterType      = errors.New("unknown filter type")
	ErrInvalidFilterParameter = errors.New("invalid filter parameter")
	ErrNoConnectors           = errors.New("no connectors")
	ErrUnsupportedKind        = errors.New("unsupported kind")
	ErrDuplicate              = errors.New("duplicate")
	ErrNotFound               = errors.New("not found")
	ErrReferenced             = errors.New("still referenced")
)

// ValidationError is an input rejected before any remote call.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
	// Err is the sentinel class, when the code has one.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Unwrap returns the sentinel class.
func (e *ValidationError) Unwrap() error { return e.Err }

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// IsValidationError returns true if err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Invalid builds a ValidationError.
func Invalid(code, field string, class error, format string, args ...any) *ValidationError {
	return &ValidationError{
		Code:    code,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Err:     class,
	}
}

// NotFound reports a missing referenced entity.
func NotFound(field string, format string, args ...any) *ValidationError {
	return Invalid(CodeNotFound, field, ErrNotFound, format, args...)
}

// Duplicate reports a taken natural key.
func Duplicate(field string, format string, args ...any) *ValidationError {
	return Invalid(CodeDuplicate, field, ErrDuplicate, format, args...)
}

// Referenced reports an entity that cannot be removed while in use.
func Referenced(field string, format string, args ...any) *ValidationError {
	return Invalid(CodeReferenced, field, ErrReferenced, format, args...)
}
