package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/appsight/insights-cli/internal/artifact"
)

// initStore opens the configured artifact store backend.
func initStore(ctx context.Context) (artifact.Store, error) {
	switch cfg.Store.Driver {
	case "", "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "insights.db"
		}
		st, err := artifact.NewSQLite(path)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite store")
		}
		return st, nil
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for the postgres driver")
		}
		st, err := artifact.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open postgres store")
		}
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
