// Package store keeps comparison results.
//
// Three backends implement core.Store:
//
//   - Postgres, for the server, on a pgx connection pool
//   - Bolt, an embedded single-file database for the CLI and single nodes
//   - Memory, for tests and throwaway runs
//
// Results are stored in their JSON form and decoded with
// compare.DecodeResult, so every backend returns equal comparisons.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/csvdiff/internal/core"
)

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
	DriverMemory   = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Driver string

	// Postgres
	DatabaseURL     string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// Bolt
	BoltPath string
}

// Open returns the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (core.Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverPostgres:
		return OpenPostgres(ctx, cfg)
	case DriverBolt:
		return OpenBolt(cfg.BoltPath)
	case DriverMemory, "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
