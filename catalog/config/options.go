package config

import (
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/Astemirdum/bookshelf-service/pkg/database"
)

type Option func(*Config)

func WithLogLevel(level zapcore.Level) Option {
	return func(c *Config) {
		c.Log.LogLevel = level
	}
}

func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Server.WriteTimeout = timeout
	}
}

// WithDatabase switches the store; an empty path keeps the configured one.
func WithDatabase(driver database.Driver, path string) Option {
	return func(c *Config) {
		c.Database.Driver = driver
		if path != "" {
			c.Database.Path = path
		}
	}
}

func WithBootstrapCSV(path string) Option {
	return func(c *Config) {
		c.Import.BootstrapCSV = path
	}
}
