package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/recordmatch/internal/config"
	"github.com/sells-group/recordmatch/internal/store"
)

func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite":
		dsn := sc.DatabaseURL
		if dsn == "" {
			dsn = "recordmatch.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{
			MaxConns: sc.MaxConns,
			MinConns: sc.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

// openStore opens the configured store and applies migrations. Callers
// should defer Close.
func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	st, err := initStore(ctx, sc)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
