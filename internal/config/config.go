package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"zeno-order-engine"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		// URL takes precedence over the individual fields when set.
		URL      string `envconfig:"DATABASE_URL"`
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"zeno"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}

	// Engine holds the named policy switches of the lifecycle engine.
	Engine struct {
		// AllowEditWhileReserved permits line-item edits on ORDER_GENERATED
		// orders whose stock has not been invoice-posted. Editing such an
		// order releases its reservations first. Off by default: items are
		// editable only in quote states.
		AllowEditWhileReserved bool `envconfig:"ENGINE_ALLOW_EDIT_WHILE_RESERVED" default:"false"`
		// ConflictRetries bounds automatic retries of lifecycle operations
		// that hit lock contention (serialization failure or deadlock).
		ConflictRetries int `envconfig:"ENGINE_CONFLICT_RETRIES" default:"3"`
	}
}

func (c *Config) ConnectionString() string {
	if c.DB.URL != "" {
		return c.DB.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}
