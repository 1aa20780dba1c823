package patient

import (
	"context"

	"stealthcompany.com/dentalapp/internal/identifier"
)

// Query selects a page of records.
type Query struct {
	// Search is matched case-insensitively as a substring of any of
	// SearchFields. Empty matches everything.
	Search string
	Skip   int
	Limit  int
}

// Index describes a secondary index a store should maintain.
type Index struct {
	Name   string
	Keys   []string
	Unique bool
	// Sparse indexes ignore documents that lack the key.
	Sparse bool
}

// Indexes is the index set for the patients collection.
var Indexes = []Index{
	{Name: "email_1", Keys: []string{FieldEmail}, Unique: true, Sparse: true},
	{Name: "contact_number_1", Keys: []string{FieldContactNumber}},
	{Name: "last_name_1_first_name_1", Keys: []string{FieldLastName, FieldFirstName}},
}

// Store is a document collection keyed by identifier.
//
// Insert and Apply return ErrDuplicateEmail when the email uniqueness rule
// is violated. Lookups report absence with a false flag rather than an error.
type Store interface {
	Insert(ctx context.Context, doc Document) error
	FindByID(ctx context.Context, id identifier.ID) (Document, bool, error)
	Find(ctx context.Context, q Query) ([]Document, error)
	// Apply updates a record atomically and returns the document after the
	// update.
	Apply(ctx context.Context, id identifier.ID, changes Changes) (Document, bool, error)
	Remove(ctx context.Context, id identifier.ID) (bool, error)
	EnsureIndexes(ctx context.Context, indexes []Index) error
	Ping(ctx context.Context) error
}
