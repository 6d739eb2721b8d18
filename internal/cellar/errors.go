package cellar

import "fmt"

// ValidationErrorKind classifies why a serialized bottle was rejected.
type ValidationErrorKind string

const (
	KindInvalidJSON  ValidationErrorKind = "invalid-json"
	KindNotObject    ValidationErrorKind = "not-object"
	KindMissingField ValidationErrorKind = "missing-field"
	KindWrongType    ValidationErrorKind = "wrong-type"
	KindInvalidEnum  ValidationErrorKind = "invalid-enum"
	KindNotInteger   ValidationErrorKind = "not-integer"
)

// ValidationError is returned when a bottle fails structural validation.
type ValidationError struct {
	Kind    ValidationErrorKind
	Message string
}

func newValidationError(kind ValidationErrorKind, msg string) *ValidationError {
	return &ValidationError{Kind: kind, Message: msg}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}
