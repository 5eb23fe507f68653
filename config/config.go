// Package config loads the vpack command configuration from the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go-simpler.org/env"

	"github.com/holmberd/go-vpack/keyfactory"
)

// C is the command configuration. Flags of individual commands override it.
type C struct {
	RedisAddr         string `env:"VPACK_REDIS_ADDR" default:"localhost:6379" usage:"address of the Redis server used by put and fetch"`
	Namespace         string `env:"VPACK_NAMESPACE" default:"vpack" usage:"key namespace of stored documents"`
	LogFormat         string `env:"VPACK_LOG_FORMAT" default:"text" usage:"log format, text or json"`
	LogLevel          string `env:"VPACK_LOG_LEVEL" default:"info" usage:"minimum log level: debug, info, warn or error"`
	CompressThreshold int    `env:"VPACK_COMPRESS_THRESHOLD" default:"4096" usage:"document size in bytes from which stored documents are compressed, 0 disables"`
}

// Env is a key/value source of environment variables, used in place of the
// process environment.
type Env map[string]string

func (e Env) LookupEnv(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

// Load reads the configuration from src, or from the process environment if
// src is nil, and validates it.
func Load(src env.Source) (*C, error) {
	c := &C{}
	var opts *env.Options
	if src != nil {
		opts = &env.Options{Source: src}
	}
	if err := env.Load(c, opts); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks values that env.Load cannot check by type.
func (c *C) Validate() error {
	if c.Namespace != "" {
		if err := keyfactory.ValidateKeyFragment(c.Namespace); err != nil {
			return fmt.Errorf("config: VPACK_NAMESPACE: %w", err)
		}
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("config: VPACK_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	if c.CompressThreshold < 0 {
		return fmt.Errorf("config: VPACK_COMPRESS_THRESHOLD must not be negative, got %d", c.CompressThreshold)
	}
	return nil
}

func (c *C) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: VPACK_LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

// Logger returns a logger writing to w in the configured format and level.
func (c *C) Logger(w io.Writer) *slog.Logger {
	lvl, err := c.level()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Usage writes the environment variables and their defaults to w.
func Usage(w io.Writer) {
	env.Usage(&C{}, w, nil)
}
