package mongostore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"stealthcompany.com/dentalapp/internal/patient"
)

// Config selects the deployment, database and collection.
type Config struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// ConnectionManager owns the shared MongoDB client. The client is opened on
// first use and reused until Close.
type ConnectionManager struct {
	cfg Config

	mu     sync.Mutex
	client *mongo.Client
}

// NewConnectionManager prepares a manager without dialing.
func NewConnectionManager(cfg Config) *ConnectionManager {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &ConnectionManager{cfg: cfg}
}

// Client returns the shared client, connecting and pinging the primary on
// the first call. Concurrent first callers wait for a single dial.
func (cm *ConnectionManager) Client(ctx context.Context) (*mongo.Client, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.client != nil {
		return cm.client, nil
	}

	opts := options.Client().
		ApplyURI(cm.cfg.URI).
		SetConnectTimeout(cm.cfg.ConnectTimeout).
		SetServerSelectionTimeout(cm.cfg.ConnectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, &patient.ConnectionError{Store: "mongodb", Err: fmt.Errorf("failed to connect: %w", err)}
	}

	pingCtx, cancel := context.WithTimeout(ctx, cm.cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &patient.ConnectionError{Store: "mongodb", Err: fmt.Errorf("failed to ping primary: %w", err)}
	}

	zerolog.Ctx(ctx).Info().
		Str("database", cm.cfg.Database).
		Str("collection", cm.cfg.Collection).
		Msg("Connected to MongoDB")

	cm.client = client
	return client, nil
}

// Collection returns the patients collection handle
func (cm *ConnectionManager) Collection(ctx context.Context) (*mongo.Collection, error) {
	client, err := cm.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(cm.cfg.Database).Collection(cm.cfg.Collection), nil
}

// Ping checks the primary is reachable, connecting first if needed.
func (cm *ConnectionManager) Ping(ctx context.Context) error {
	client, err := cm.Client(ctx)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return &patient.ConnectionError{Store: "mongodb", Err: err}
	}
	return nil
}

// Close disconnects the client if one was opened. It is safe to call more
// than once.
func (cm *ConnectionManager) Close(ctx context.Context) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.client == nil {
		return nil
	}
	err := cm.client.Disconnect(ctx)
	cm.client = nil
	return err
}
