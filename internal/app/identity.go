package app

import (
	"context"
	"log/slog"

	"github.com/geoapp/geoapp-api/internal/platform/db"
	"github.com/geoapp/geoapp-api/internal/users"
)

// Identity bundles the identity store and the resources backing it.
type Identity struct {
	Store *users.Store
	close func()
}

// Close releases the backing resources.
func (i *Identity) Close() {
	if i != nil && i.close != nil {
		i.close()
	}
}

// OpenIdentity opens the configured identity backend. The PostgreSQL backend
// is migrated before use.
func OpenIdentity(ctx context.Context, cfg *Config, logger *slog.Logger) (*Identity, error) {
	if cfg.IdentityStore == IdentityStoreMemory {
		logger.Warn("using in-memory identity store; identities are lost on restart")
		return &Identity{Store: users.NewStore(users.NewMemoryRepository())}, nil
	}
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return &Identity{Store: users.NewStore(users.NewRepository(pool)), close: pool.Close}, nil
}
