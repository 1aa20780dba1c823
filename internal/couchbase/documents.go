package couchbase

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchbase/gocb/v2"

	"stealthcompany.com/dentalapp/internal/patient"
)

// DocumentManager handles patient document key-value operations
type DocumentManager struct {
	collection *gocb.Collection
}

// NewDocumentManager creates a new document manager
func NewDocumentManager(collection *gocb.Collection) *DocumentManager {
	return &DocumentManager{collection: collection}
}

// Insert stores a new document and fails if the key is taken.
func (dm *DocumentManager) Insert(ctx context.Context, key string, doc patient.Document) error {
	_, err := dm.collection.Insert(key, doc, &gocb.InsertOptions{Context: ctx})
	if err != nil {
		return fmt.Errorf("failed to insert document %s: %w", key, err)
	}
	return nil
}

// Get loads a document and its CAS. found is false when the key is absent.
func (dm *DocumentManager) Get(ctx context.Context, key string) (doc patient.Document, cas gocb.Cas, found bool, err error) {
	res, err := dm.collection.Get(key, &gocb.GetOptions{Context: ctx})
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to get document %s: %w", key, err)
	}

	var content map[string]any
	if err := res.Content(&content); err != nil {
		return nil, 0, false, fmt.Errorf("failed to parse document content: %w", err)
	}
	return patient.Document(content), res.Cas(), true, nil
}

// Replace overwrites a document if its CAS still matches.
func (dm *DocumentManager) Replace(ctx context.Context, key string, doc patient.Document, cas gocb.Cas) error {
	_, err := dm.collection.Replace(key, doc, &gocb.ReplaceOptions{Cas: cas, Context: ctx})
	if err != nil {
		return fmt.Errorf("failed to replace document %s: %w", key, err)
	}
	return nil
}

// Remove deletes a document if its CAS still matches. A zero CAS removes
// unconditionally.
func (dm *DocumentManager) Remove(ctx context.Context, key string, cas gocb.Cas) error {
	_, err := dm.collection.Remove(key, &gocb.RemoveOptions{Cas: cas, Context: ctx})
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", key, err)
	}
	return nil
}
