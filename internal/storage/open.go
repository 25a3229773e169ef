package storage

import (
	"context"
	"errors"
	"strings"

	logx "github.com/saar120/arbox-automation-v2/pkg/logx"
)

// Store is the minimal persistence API used by the booking task. The journal
// is an audit artifact; the daemon never reads it back on startup.
type Store interface {
	AppendAttempt(ctx context.Context, e AttemptEntry) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
