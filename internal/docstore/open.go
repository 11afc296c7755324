package docstore

import (
	"context"
	"fmt"

	"alkalytics/internal/config"
)

// Open returns the database selected by the store configuration.
func Open(ctx context.Context, cfg config.StoreConfig) (Database, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(ctx, cfg.DSN)
	case "postgres":
		pingCtx := ctx
		if cfg.PingTimeout > 0 {
			var cancel context.CancelFunc
			pingCtx, cancel = context.WithTimeout(ctx, cfg.PingTimeout)
			defer cancel()
		}
		return OpenPostgres(pingCtx, cfg.DSN, cfg.MaxOpenConns)
	default:
		return nil, fmt.Errorf("unknown store driver: %q", cfg.Driver)
	}
}
