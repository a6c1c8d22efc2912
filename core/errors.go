package core

import "github.com/pkg/errors"

// FieldError reports a request field whose value was well formed but unusable.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a client error. It has no Cause method, so errors.Cause stops at it.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (err *ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return "invalid request"
	}
	return err.Err.Error()
}

// FieldMap returns field -> message, or nil when no field is involved.
func (err *ValidationError) FieldMap() map[string]string {
	if len(err.Fields) == 0 {
		return nil
	}
	m := make(map[string]string, len(err.Fields))
	for _, f := range err.Fields {
		m[f.Field] = f.Error
	}
	return m
}

// shutdown marks a failure the process cannot recover from, such as a closed database pool.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s *shutdown) Error() string {
	return "shutdown: " + s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
