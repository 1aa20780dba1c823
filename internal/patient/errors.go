package patient

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation error")
	// ErrDuplicateEmail is returned when another record already holds the email.
	ErrDuplicateEmail = errors.New("a patient with this email already exists")
	// ErrNotFound is used by callers that turn an absent record into an error.
	ErrNotFound = errors.New("patient not found")
	// ErrCorruptRecord is matched by errors from reconstructing a stored document.
	ErrCorruptRecord = errors.New("stored patient record is malformed")
	// ErrConnection is matched by store connection failures.
	ErrConnection = errors.New("patient store unreachable")
)

// ValidationError collects field-level problems, keyed by the JSON path of the field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets callers test with errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// DecodeError reports a stored document that could not be turned into a Patient.
type DecodeError struct {
	ID     string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %s", ErrCorruptRecord, e.Reason)
	}
	return fmt.Sprintf("%s (%s): %s", ErrCorruptRecord, e.ID, e.Reason)
}

// Is lets callers test with errors.Is(err, ErrCorruptRecord).
func (e *DecodeError) Is(target error) bool {
	return target == ErrCorruptRecord
}

// ConnectionError wraps a failure to reach the backing store.
type ConnectionError struct {
	Store string
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrConnection, e.Store, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is lets callers test with errors.Is(err, ErrConnection).
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}
