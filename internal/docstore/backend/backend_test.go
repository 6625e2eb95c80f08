package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parisxmas/OxiForms/internal/config"
	"github.com/parisxmas/OxiForms/internal/docstore/memstore"
	"github.com/parisxmas/OxiForms/internal/docstore/oxistore"
	"github.com/parisxmas/OxiForms/internal/oxidb/oxidbtest"
)

func TestOpenMemory(t *testing.T) {
	store, err := Open(context.Background(), &config.Config{Backend: config.BackendMemory, MaxBatchOps: 10}, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.IsType(t, &memstore.Store{}, store)
}

func TestOpenOxiDB(t *testing.T) {
	srv, err := oxidbtest.Start()
	require.NoError(t, err)
	defer srv.Close()
	cfg := &config.Config{
		Backend:          config.BackendOxiDB,
		OxiDBHost:        srv.Host(),
		OxiDBPort:        srv.Port(),
		PoolSize:         2,
		OxiDBDialTimeout: time.Second,
		PageSize:         10,
		MaxBatchOps:      10,
	}
	store, err := Open(context.Background(), cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &oxistore.Store{}, store)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Backend: "cosmos"}, zap.NewNop().Sugar())
	assert.ErrorContains(t, err, "unknown store backend")
}
