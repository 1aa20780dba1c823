package couchbase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/couchbase/gocb/v2"

	"stealthcompany.com/dentalapp/internal/patient"
)

// Config locates the cluster and the keyspace holding patient documents.
type Config struct {
	URL            string
	Username       string
	Password       string
	Bucket         string
	Scope          string
	Collection     string
	ConnectTimeout time.Duration
}

// ConnectionManager handles Couchbase cluster and bucket connections
type ConnectionManager struct {
	cluster    *gocb.Cluster
	bucket     *gocb.Bucket
	collection *gocb.Collection
	cfg        Config
}

// NewConnectionManager connects to the cluster and waits for the bucket.
func NewConnectionManager(cfg Config) (*ConnectionManager, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.Scope == "" {
		cfg.Scope = "_default"
	}
	if cfg.Collection == "" {
		cfg.Collection = "_default"
	}

	cluster, err := gocb.Connect(connectionString(cfg.URL), gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, &patient.ConnectionError{Store: "couchbase", Err: fmt.Errorf("failed to connect to cluster: %w", err)}
	}

	if err := cluster.WaitUntilReady(cfg.ConnectTimeout, nil); err != nil {
		_ = cluster.Close(nil)
		return nil, &patient.ConnectionError{Store: "couchbase", Err: fmt.Errorf("failed to wait for cluster: %w", err)}
	}

	// The bucket must already exist.
	bucket := cluster.Bucket(cfg.Bucket)
	if err := bucket.WaitUntilReady(cfg.ConnectTimeout, nil); err != nil {
		_ = cluster.Close(nil)
		return nil, &patient.ConnectionError{Store: "couchbase", Err: fmt.Errorf("bucket '%s' is not accessible: %w", cfg.Bucket, err)}
	}

	return &ConnectionManager{
		cluster:    cluster,
		bucket:     bucket,
		collection: bucket.Scope(cfg.Scope).Collection(cfg.Collection),
		cfg:        cfg,
	}, nil
}

// connectionString accepts bare hosts and http URLs from configuration and
// returns a couchbase:// connection string.
func connectionString(url string) string {
	switch {
	case strings.HasPrefix(url, "couchbase://"), strings.HasPrefix(url, "couchbases://"):
		return url
	case strings.HasPrefix(url, "https://"):
		return "couchbases://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		return "couchbase://" + strings.TrimPrefix(url, "http://")
	default:
		return "couchbase://" + url
	}
}

// Close closes the Couchbase connection
func (cm *ConnectionManager) Close() error {
	return cm.cluster.Close(nil)
}

// Keyspace returns the fully qualified, escaped keyspace for N1QL.
func (cm *ConnectionManager) Keyspace() string {
	return keyspace(cm.cfg.Bucket, cm.cfg.Scope, cm.cfg.Collection)
}

func keyspace(bucket, scope, collection string) string {
	return fmt.Sprintf("`%s`.`%s`.`%s`", bucket, scope, collection)
}

// Ping checks the key-value and query services.
func (cm *ConnectionManager) Ping(ctx context.Context) error {
	report, err := cm.bucket.Ping(&gocb.PingOptions{
		ServiceTypes: []gocb.ServiceType{gocb.ServiceTypeKeyValue, gocb.ServiceTypeQuery},
		Context:      ctx,
	})
	if err != nil {
		return &patient.ConnectionError{Store: "couchbase", Err: err}
	}
	for service, endpoints := range report.Services {
		for _, ep := range endpoints {
			if ep.State != gocb.PingStateOk {
				return &patient.ConnectionError{
					Store: "couchbase",
					Err:   fmt.Errorf("service %v endpoint %s is %v: %s", service, ep.Remote, ep.State, ep.Error),
				}
			}
		}
	}
	return nil
}
