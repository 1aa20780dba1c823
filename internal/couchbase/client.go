// Package couchbase persists patient documents in a Couchbase collection.
// Records are keyed by the hex identifier; email uniqueness is enforced by
// claim documents in the same collection.
package couchbase

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog"

	"stealthcompany.com/dentalapp/internal/identifier"
	"stealthcompany.com/dentalapp/internal/patient"
)

// maxCASRetries bounds optimistic update attempts under contention.
const maxCASRetries = 5

// Client implements patient.Store on Couchbase
type Client struct {
	connManager *ConnectionManager
	docManager  *DocumentManager
	claims      *EmailClaims
}

var _ patient.Store = (*Client)(nil)

// NewClient creates a new Couchbase client
func NewClient(cfg Config) (*Client, error) {
	connManager, err := NewConnectionManager(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		connManager: connManager,
		docManager:  NewDocumentManager(connManager.collection),
		claims:      NewEmailClaims(connManager.collection),
	}, nil
}

// Close closes the Couchbase connection
func (c *Client) Close() error {
	return c.connManager.Close()
}

func (c *Client) Insert(ctx context.Context, doc patient.Document) error {
	id, ok := doc[patient.FieldID].(identifier.ID)
	if !ok {
		return fmt.Errorf("document has no %s", patient.FieldID)
	}
	key := id.Hex()

	email, _ := doc[patient.FieldEmail].(string)
	if email != "" {
		if err := c.claims.Claim(ctx, email, key); err != nil {
			return err
		}
	}

	if err := c.docManager.Insert(ctx, key, doc); err != nil {
		if email != "" {
			c.claims.Release(ctx, email)
		}
		return err
	}
	return nil
}

func (c *Client) FindByID(ctx context.Context, id identifier.ID) (patient.Document, bool, error) {
	doc, _, found, err := c.docManager.Get(ctx, id.Hex())
	if err != nil || !found {
		return nil, found, err
	}
	doc[patient.FieldID] = id
	return doc, true, nil
}

func (c *Client) Find(ctx context.Context, q patient.Query) ([]patient.Document, error) {
	stmt, params := listStatement(c.connManager.Keyspace(), q)

	rows, err := c.connManager.cluster.Query(stmt, &gocb.QueryOptions{
		NamedParameters: params,
		ScanConsistency: gocb.QueryScanConsistencyRequestPlus,
		Context:         ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query patients: %w", err)
	}
	defer rows.Close()

	out := make([]patient.Document, 0, q.Limit)
	for rows.Next() {
		var row struct {
			ID  string         `json:"id"`
			Doc map[string]any `json:"doc"`
		}
		if err := rows.Row(&row); err != nil {
			return nil, fmt.Errorf("failed to read query row: %w", err)
		}
		doc := patient.Document(row.Doc)
		if doc == nil {
			doc = patient.Document{}
		}
		doc[patient.FieldID] = row.ID
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patients: %w", err)
	}
	return out, nil
}

// Apply reads, modifies and replaces under CAS, retrying when a concurrent
// writer wins. Email claims are moved along with the record.
func (c *Client) Apply(ctx context.Context, id identifier.ID, changes patient.Changes) (patient.Document, bool, error) {
	key := id.Hex()

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		doc, cas, found, err := c.docManager.Get(ctx, key)
		if err != nil || !found {
			return nil, false, err
		}

		oldEmail, _ := doc[patient.FieldEmail].(string)
		changes.ApplyTo(doc)
		doc[patient.FieldID] = id
		newEmail, _ := doc[patient.FieldEmail].(string)

		claimed := false
		if newEmail != "" && newEmail != oldEmail {
			if err := c.claims.Claim(ctx, newEmail, key); err != nil {
				return nil, false, err
			}
			claimed = true
		}

		err = c.docManager.Replace(ctx, key, doc, cas)
		if errors.Is(err, gocb.ErrCasMismatch) {
			if claimed {
				c.claims.Release(ctx, newEmail)
			}
			zerolog.Ctx(ctx).Debug().Str("patient_id", key).Int("attempt", attempt+1).Msg("CAS mismatch, retrying update")
			continue
		}
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			if claimed {
				c.claims.Release(ctx, newEmail)
			}
			return nil, false, nil
		}
		if err != nil {
			if claimed {
				c.claims.Release(ctx, newEmail)
			}
			return nil, false, err
		}

		if oldEmail != "" && oldEmail != newEmail {
			c.claims.Release(ctx, oldEmail)
		}
		return doc, true, nil
	}

	return nil, false, fmt.Errorf("failed to update patient %s: too many concurrent modifications", key)
}

func (c *Client) Remove(ctx context.Context, id identifier.ID) (bool, error) {
	key := id.Hex()

	doc, cas, found, err := c.docManager.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}

	err = c.docManager.Remove(ctx, key, cas)
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if email, _ := doc[patient.FieldEmail].(string); email != "" {
		c.claims.Release(ctx, email)
	}
	return true, nil
}

func (c *Client) EnsureIndexes(ctx context.Context, indexes []patient.Index) error {
	for _, stmt := range indexStatements(c.connManager.Keyspace(), indexes) {
		rows, err := c.connManager.cluster.Query(stmt, &gocb.QueryOptions{Context: ctx})
		if err != nil {
			return fmt.Errorf("failed to run %q: %w", stmt, err)
		}
		if err := rows.Close(); err != nil {
			return fmt.Errorf("failed to run %q: %w", stmt, err)
		}
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.connManager.Ping(ctx)
}
