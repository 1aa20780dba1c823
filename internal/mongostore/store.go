// Package mongostore persists patient documents in a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stealthcompany.com/dentalapp/internal/identifier"
	"stealthcompany.com/dentalapp/internal/patient"
)

// Store implements patient.Store on one collection.
type Store struct {
	conn *ConnectionManager
}

var _ patient.Store = (*Store)(nil)

// New returns a Store on the connection's configured collection.
func New(conn *ConnectionManager) *Store {
	return &Store{conn: conn}
}

func (s *Store) Insert(ctx context.Context, doc patient.Document) error {
	coll, err := s.conn.Collection(ctx)
	if err != nil {
		return err
	}
	if _, err := coll.InsertOne(ctx, toBSON(doc)); err != nil {
		return translate(err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id identifier.ID) (patient.Document, bool, error) {
	coll, err := s.conn.Collection(ctx)
	if err != nil {
		return nil, false, err
	}

	var raw bson.M
	err = coll.FindOne(ctx, byID(id)).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, translate(err)
	}
	return fromBSON(raw), true, nil
}

// Find pages through matches in _id order, which follows creation order
// for generated identifiers.
func (s *Store) Find(ctx context.Context, q patient.Query) ([]patient.Document, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: patient.FieldID, Value: 1}}).
		SetSkip(int64(q.Skip))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	coll, err := s.conn.Collection(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, searchFilter(q.Search), opts)
	if err != nil {
		return nil, translate(err)
	}
	defer cursor.Close(ctx)

	out := make([]patient.Document, 0, q.Limit)
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode patient document: %w", err)
		}
		out = append(out, fromBSON(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// Apply runs a single find-and-modify so the returned document reflects
// exactly this update.
func (s *Store) Apply(ctx context.Context, id identifier.ID, changes patient.Changes) (patient.Document, bool, error) {
	coll, err := s.conn.Collection(ctx)
	if err != nil {
		return nil, false, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var raw bson.M
	err = coll.FindOneAndUpdate(ctx, byID(id), updateDocument(changes), opts).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, translate(err)
	}
	return fromBSON(raw), true, nil
}

func (s *Store) Remove(ctx context.Context, id identifier.ID) (bool, error) {
	coll, err := s.conn.Collection(ctx)
	if err != nil {
		return false, err
	}
	res, err := coll.DeleteOne(ctx, byID(id))
	if err != nil {
		return false, translate(err)
	}
	return res.DeletedCount > 0, nil
}

// EnsureIndexes is idempotent: MongoDB accepts re-creating an index with
// identical options.
func (s *Store) EnsureIndexes(ctx context.Context, indexes []patient.Index) error {
	models := make([]mongo.IndexModel, 0, len(indexes))
	for _, idx := range indexes {
		opts := options.Index().SetName(idx.Name)
		if idx.Unique {
			opts.SetUnique(true)
		}
		if idx.Sparse {
			opts.SetSparse(true)
		}
		models = append(models, mongo.IndexModel{Keys: indexKeys(idx.Keys), Options: opts})
	}
	coll, err := s.conn.Collection(ctx)
	if err != nil {
		return err
	}
	if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
		return translate(err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func byID(id identifier.ID) bson.D {
	return bson.D{{Key: patient.FieldID, Value: id}}
}

func translate(err error) error {
	switch {
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", patient.ErrDuplicateEmail, err)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err):
		return &patient.ConnectionError{Store: "mongodb", Err: err}
	default:
		return err
	}
}
