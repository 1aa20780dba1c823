// Package identifier converts between the external string form of a patient
// identifier and the store-native ObjectID.
package identifier

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ID is the store-native patient identifier (12 bytes, rendered as 24 hex characters).
type ID = primitive.ObjectID

// Nil is the zero identifier. It never names a stored record.
var Nil = primitive.NilObjectID

// ErrInvalid is matched by every error Parse returns.
var ErrInvalid = errors.New("invalid identifier")

// InvalidError reports a string that is not a well-formed identifier.
type InvalidError struct {
	Value string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid identifier %q: must be a 24-character hex string", e.Value)
}

// Is lets callers test with errors.Is(err, ErrInvalid).
func (e *InvalidError) Is(target error) bool {
	return target == ErrInvalid
}

// Parse validates s and returns the identifier it encodes.
func Parse(s string) (ID, error) {
	if len(s) != 24 {
		return Nil, &InvalidError{Value: s}
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return Nil, &InvalidError{Value: s}
	}
	return id, nil
}

// New generates a fresh identifier.
func New() ID {
	return primitive.NewObjectID()
}
