// Package backend opens the docstore.Store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/parisxmas/OxiForms/internal/config"
	"github.com/parisxmas/OxiForms/internal/db"
	"github.com/parisxmas/OxiForms/internal/docstore"
	"github.com/parisxmas/OxiForms/internal/docstore/memstore"
	"github.com/parisxmas/OxiForms/internal/docstore/mongostore"
	"github.com/parisxmas/OxiForms/internal/docstore/oxistore"
)

func Open(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (docstore.Store, error) {
	switch cfg.Backend {
	case config.BackendOxiDB:
		pool, err := db.NewPool(ctx, cfg.OxiDBHost, cfg.OxiDBPort, cfg.PoolSize, cfg.OxiDBDialTimeout, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to OxiDB: %w", err)
		}
		log.Infow("connected to OxiDB", "host", cfg.OxiDBHost, "port", cfg.OxiDBPort, "poolSize", cfg.PoolSize)
		return oxistore.New(pool, oxistore.Options{PageSize: cfg.PageSize, MaxBatchOps: cfg.MaxBatchOps}), nil
	case config.BackendMongo:
		store, err := mongostore.Connect(ctx, mongostore.Options{
			URI:         cfg.MongoURI,
			Database:    cfg.MongoDatabase,
			MaxBatchOps: cfg.MaxBatchOps,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		log.Infow("connected to MongoDB", "database", cfg.MongoDatabase)
		return store, nil
	case config.BackendMemory:
		log.Warn("using in-memory store, data is lost on exit")
		return memstore.New(memstore.WithMaxBatchOps(cfg.MaxBatchOps)), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
