package pool

import (
	"fmt"
	"time"
)

// Default pool sizing.
const (
	DefaultMaxSize           = 10
	DefaultMinIdle           = 2
	DefaultAcquireTimeout    = 30 * time.Second
	DefaultIdleTimeout       = 10 * time.Minute
	DefaultMaxLifetime       = 30 * time.Minute
	DefaultValidationTimeout = time.Second
)

// Config holds the pool sizing and aging parameters. A Config is immutable
// once handed to New.
type Config struct {
	// MaxSize bounds the number of open connections (idle + checked out).
	MaxSize int `yaml:"max_size"`
	// MinIdle is the number of idle connections the pool tries to keep warm.
	MinIdle int `yaml:"min_idle"`
	// AcquireTimeout bounds how long Acquire waits for a connection.
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	// IdleTimeout retires connections unused for longer than this.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	// MaxLifetime retires connections older than this.
	MaxLifetime time.Duration `yaml:"max_lifetime"`
	// ValidationTimeout bounds the liveness ping run on every acquisition.
	ValidationTimeout time.Duration `yaml:"validation_timeout"`
}

// DefaultConfig returns a Config populated with the default values.
func DefaultConfig() Config {
	return Config{
		MaxSize:           DefaultMaxSize,
		MinIdle:           DefaultMinIdle,
		AcquireTimeout:    DefaultAcquireTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		MaxLifetime:       DefaultMaxLifetime,
		ValidationTimeout: DefaultValidationTimeout,
	}
}

// withDefaults fills zero fields with their defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxSize == 0 {
		c.MaxSize = d.MaxSize
	}
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = d.AcquireTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.MaxLifetime == 0 {
		c.MaxLifetime = d.MaxLifetime
	}
	if c.ValidationTimeout == 0 {
		c.ValidationTimeout = d.ValidationTimeout
	}
	return c
}

// Validate reports an error for inconsistent sizing.
func (c Config) Validate() error {
	switch {
	case c.MaxSize < 1:
		return fmt.Errorf("pool: max size must be positive, got %d", c.MaxSize)
	case c.MinIdle < 0:
		return fmt.Errorf("pool: min idle must not be negative, got %d", c.MinIdle)
	case c.MinIdle > c.MaxSize:
		return fmt.Errorf("pool: min idle (%d) exceeds max size (%d)", c.MinIdle, c.MaxSize)
	case c.AcquireTimeout < 0 || c.IdleTimeout < 0 || c.MaxLifetime < 0 || c.ValidationTimeout < 0:
		return fmt.Errorf("pool: timeouts must not be negative")
	}
	return nil
}
