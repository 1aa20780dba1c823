// Package memstore is an in-process patient.Store used by tests and local
// runs without a database.
package memstore

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"stealthcompany.com/dentalapp/internal/identifier"
	"stealthcompany.com/dentalapp/internal/patient"
)

// Store keeps documents in a map guarded by a RWMutex. Uniqueness rules
// apply once EnsureIndexes has registered them, as with a real collection.
type Store struct {
	mu      sync.RWMutex
	docs    map[identifier.ID]patient.Document
	indexes []patient.Index
}

var _ patient.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{docs: make(map[identifier.ID]patient.Document)}
}

func (s *Store) Insert(ctx context.Context, doc patient.Document) error {
	id, ok := doc[patient.FieldID].(identifier.ID)
	if !ok {
		return fmt.Errorf("document has no %s", patient.FieldID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[id]; exists {
		return fmt.Errorf("duplicate %s %s", patient.FieldID, id.Hex())
	}
	if err := s.checkUnique(id, doc); err != nil {
		return err
	}
	s.docs[id] = clone(doc)
	return nil
}

func (s *Store) FindByID(ctx context.Context, id identifier.ID) (patient.Document, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, false, nil
	}
	return clone(doc), true, nil
}

// Find returns matches ordered by id, which follows insertion order for
// generated identifiers.
func (s *Store) Find(ctx context.Context, q patient.Query) ([]patient.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]identifier.ID, 0, len(s.docs))
	for id, doc := range s.docs {
		if matches(doc, q.Search) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})

	if q.Skip >= len(ids) {
		return []patient.Document{}, nil
	}
	ids = ids[q.Skip:]
	if q.Limit > 0 && q.Limit < len(ids) {
		ids = ids[:q.Limit]
	}

	out := make([]patient.Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, clone(s.docs[id]))
	}
	return out, nil
}

func (s *Store) Apply(ctx context.Context, id identifier.ID, changes patient.Changes) (patient.Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.docs[id]
	if !ok {
		return nil, false, nil
	}
	next := clone(current)
	changes.ApplyTo(next)
	if err := s.checkUnique(id, next); err != nil {
		return nil, false, err
	}
	s.docs[id] = next
	return clone(next), true, nil
}

func (s *Store) Remove(ctx context.Context, id identifier.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return false, nil
	}
	delete(s.docs, id)
	return true, nil
}

func (s *Store) EnsureIndexes(ctx context.Context, indexes []patient.Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, idx := range indexes {
		if s.hasIndex(idx.Name) {
			continue
		}
		if idx.Unique {
			if err := s.verifyUnique(idx); err != nil {
				return err
			}
		}
		s.indexes = append(s.indexes, idx)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len reports the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Put stores doc verbatim, bypassing index checks. Tests use it to plant
// legacy or malformed records.
func (s *Store) Put(id identifier.ID, doc patient.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := clone(doc)
	stored[patient.FieldID] = id
	s.docs[id] = stored
}

func (s *Store) hasIndex(name string) bool {
	for _, idx := range s.indexes {
		if idx.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) checkUnique(id identifier.ID, doc patient.Document) error {
	for _, idx := range s.indexes {
		if !idx.Unique {
			continue
		}
		key, ok := indexKey(idx, doc)
		if !ok {
			continue
		}
		for otherID, other := range s.docs {
			if otherID == id {
				continue
			}
			if otherKey, ok := indexKey(idx, other); ok && otherKey == key {
				return uniqueViolation(idx)
			}
		}
	}
	return nil
}

func (s *Store) verifyUnique(idx patient.Index) error {
	seen := make(map[string]struct{}, len(s.docs))
	for _, doc := range s.docs {
		key, ok := indexKey(idx, doc)
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("cannot build index %s: %w", idx.Name, uniqueViolation(idx))
		}
		seen[key] = struct{}{}
	}
	return nil
}

func uniqueViolation(idx patient.Index) error {
	for _, k := range idx.Keys {
		if k == patient.FieldEmail {
			return patient.ErrDuplicateEmail
		}
	}
	return fmt.Errorf("duplicate key for index %s", idx.Name)
}

// indexKey renders the indexed values of doc. Sparse indexes skip documents
// missing any key.
func indexKey(idx patient.Index, doc patient.Document) (string, bool) {
	parts := make([]string, 0, len(idx.Keys))
	for _, k := range idx.Keys {
		v, ok := doc[k]
		if !ok || v == nil {
			if idx.Sparse {
				return "", false
			}
			parts = append(parts, "\x00")
			continue
		}
		parts = append(parts, fmt.Sprintf("%T:%v", v, v))
	}
	return strings.Join(parts, "\x1f"), true
}

func matches(doc patient.Document, search string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	for _, field := range patient.SearchFields {
		if s, ok := doc[field].(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func clone(doc patient.Document) patient.Document {
	out := make(patient.Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case patient.Document:
		return clone(t)
	case map[string]any:
		return map[string]any(clone(t))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case time.Time:
		return t
	default:
		return v
	}
}
