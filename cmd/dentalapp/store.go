package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/dentalapp/internal/config"
	"stealthcompany.com/dentalapp/internal/couchbase"
	"stealthcompany.com/dentalapp/internal/memstore"
	"stealthcompany.com/dentalapp/internal/mongostore"
	"stealthcompany.com/dentalapp/internal/patient"
)

// openedStore is a connected backend and the func that releases it.
type openedStore struct {
	store patient.Store
	close func(ctx context.Context) error
}

// openStore connects the configured backend and verifies it answers.
func openStore(ctx context.Context, cfg *config.Config) (*openedStore, error) {
	log.Info().Str("driver", cfg.Store.Driver).Msg("Opening patient store")

	var opened *openedStore
	switch cfg.Store.Driver {
	case config.DriverMongo:
		conn := mongostore.NewConnectionManager(mongostore.Config{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			Collection:     cfg.Mongo.Collection,
			ConnectTimeout: cfg.Mongo.ConnectTimeout,
		})
		opened = &openedStore{store: mongostore.New(conn), close: conn.Close}

	case config.DriverCouchbase:
		client, err := couchbase.NewClient(couchbase.Config{
			URL:            cfg.Couchbase.URL,
			Username:       cfg.Couchbase.Username,
			Password:       cfg.Couchbase.Password,
			Bucket:         cfg.Couchbase.Bucket,
			Scope:          cfg.Couchbase.Scope,
			Collection:     cfg.Couchbase.Collection,
			ConnectTimeout: cfg.Couchbase.ConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		opened = &openedStore{store: client, close: func(context.Context) error { return client.Close() }}

	case config.DriverMemory:
		log.Warn().Msg("Using the in-memory store; records are lost on exit")
		opened = &openedStore{store: memstore.New(), close: func(context.Context) error { return nil }}

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if err := opened.store.Ping(ctx); err != nil {
		_ = opened.close(ctx)
		return nil, err
	}
	return opened, nil
}
