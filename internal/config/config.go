// Package config loads service settings from the environment, an optional
// .env file and an optional YAML file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Store drivers.
const (
	DriverMongo     = "mongo"
	DriverCouchbase = "couchbase"
	DriverMemory    = "memory"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Couchbase CouchbaseConfig `yaml:"couchbase"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `yaml:"port"             env:"SERVER_PORT"             env-default:"8000"`
	APIPrefix       string        `yaml:"api_prefix"       env:"API_PREFIX"              env-default:"/api"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"30s"`
}

// StoreConfig picks the patient store backend.
type StoreConfig struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER" env-default:"mongo"`
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI            string        `yaml:"uri"             env:"MONGO_URI"`
	Database       string        `yaml:"database"        env:"MONGO_DATABASE"        env-default:"dentalApp"`
	Collection     string        `yaml:"collection"      env:"MONGO_COLLECTION"      env-default:"patients"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"MONGO_CONNECT_TIMEOUT" env-default:"10s"`
}

// CouchbaseConfig holds Couchbase connection settings.
type CouchbaseConfig struct {
	URL        string `yaml:"url"        env:"COUCHBASE_URL"`
	Username   string `yaml:"username"   env:"COUCHBASE_USERNAME"`
	Password   string `yaml:"password"   env:"COUCHBASE_PASSWORD"`
	Bucket     string `yaml:"bucket"     env:"COUCHBASE_BUCKET"`
	Scope      string `yaml:"scope"      env:"COUCHBASE_SCOPE"      env-default:"_default"`
	Collection string `yaml:"collection" env:"COUCHBASE_COLLECTION" env-default:"_default"`

	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"COUCHBASE_CONNECT_TIMEOUT" env-default:"30s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level            string `yaml:"level"             env:"LOG_LEVEL"         env-default:"info"`
	ElasticsearchURL string `yaml:"elasticsearch_url" env:"ELASTICSEARCH_URL"`
	Index            string `yaml:"index"             env:"LOG_INDEX"         env-default:"dentalapp"`
}

// MetricsConfig holds host metrics sampling settings.
type MetricsConfig struct {
	SystemMetrics  bool          `yaml:"system_metrics"  env:"ENABLE_SYSTEM_METRICS"   env-default:"false"`
	SystemInterval time.Duration `yaml:"system_interval" env:"SYSTEM_METRICS_INTERVAL" env-default:"15s"`
}

// LoadDotEnv loads a .env file from the parent directory or the working
// directory. Missing files are not an error.
func LoadDotEnv() {
	err := godotenv.Load("../.env")
	if err != nil {
		log.Debug().Msg("Not found .env file in parent directory, trying current directory")
		err = godotenv.Load(".env")
		if err != nil {
			log.Debug().Msg("Not found .env file in current directory, assuming environment variables are set")
		}
	}
}

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults. The YAML file is read only when
// CONFIG_PATH is set.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings required by the selected driver.
func (c *Config) Validate() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))

	switch c.Store.Driver {
	case DriverMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("MONGO_URI is required for the %s driver", DriverMongo)
		}
		if c.Mongo.Database == "" || c.Mongo.Collection == "" {
			return fmt.Errorf("mongo database and collection must not be empty")
		}
	case DriverCouchbase:
		if c.Couchbase.URL == "" {
			return fmt.Errorf("COUCHBASE_URL is required for the %s driver", DriverCouchbase)
		}
		if c.Couchbase.Bucket == "" {
			return fmt.Errorf("COUCHBASE_BUCKET is required for the %s driver", DriverCouchbase)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want %s, %s or %s)", c.Store.Driver, DriverMongo, DriverCouchbase, DriverMemory)
	}

	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT must not be empty")
	}
	if c.Server.APIPrefix != "" && !strings.HasPrefix(c.Server.APIPrefix, "/") {
		return fmt.Errorf("API_PREFIX must start with '/' (got %q)", c.Server.APIPrefix)
	}
	c.Server.APIPrefix = strings.TrimRight(c.Server.APIPrefix, "/")

	if c.Metrics.SystemMetrics && c.Metrics.SystemInterval <= 0 {
		return fmt.Errorf("SYSTEM_METRICS_INTERVAL must be > 0 (got %s)", c.Metrics.SystemInterval)
	}

	return nil
}
