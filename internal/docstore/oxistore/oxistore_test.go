package oxistore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parisxmas/OxiForms/internal/db"
	"github.com/parisxmas/OxiForms/internal/docstore"
	"github.com/parisxmas/OxiForms/internal/docstore/storetest"
	"github.com/parisxmas/OxiForms/internal/oxidb/oxidbtest"
)

func newStore(t *testing.T, opts Options) (*Store, *oxidbtest.Server) {
	t.Helper()
	srv, err := oxidbtest.Start()
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	pool, err := db.NewPool(context.Background(), srv.Host(), srv.Port(), 2, time.Second, zap.NewNop().Sugar())
	require.NoError(t, err)
	s := New(pool, opts)
	t.Cleanup(func() { s.Close() })
	return s, srv
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store {
		s, _ := newStore(t, Options{PageSize: 2})
		return s
	})
}

func TestScanPages(t *testing.T) {
	s, srv := newStore(t, Options{PageSize: 2})
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, s.Upsert(ctx, "questions", "f1", docstore.Document{"id": id}))
	}
	before := srv.Commands("find")

	docs, err := s.Scan(ctx, "questions", nil)
	require.NoError(t, err)
	assert.Len(t, docs, 5)
	assert.Equal(t, 3, srv.Commands("find")-before)
	for _, d := range docs {
		assert.NotContains(t, d, "_id")
	}
}

func TestBatchServerFailureRollsBack(t *testing.T) {
	s, srv := newStore(t, Options{})
	ctx := context.Background()

	srv.FailNext("commit_tx", "io error")
	err := s.NewBatch("f1").
		Create("questions", docstore.Document{"id": "a"}).
		Create("questions", docstore.Document{"id": "b"}).
		Execute(ctx)
	require.Error(t, err)

	n, err := s.Count(ctx, "questions", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBatchConcurrentWriterConflicts(t *testing.T) {
	s, srv := newStore(t, Options{})
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "questions", "f1", docstore.Document{"id": "q1", "isActive": true}))

	var wg sync.WaitGroup
	wg.Add(1)
	srv.OnCommand("commit_tx", func() {
		defer wg.Done()
		assert.NoError(t, s.Upsert(ctx, "questions", "f1", docstore.Document{"id": "q1", "content": "edited", "isActive": true}))
	})

	err := s.NewBatch("f1").
		Replace("questions", "q1", docstore.Document{"isActive": false}).
		Execute(ctx)
	wg.Wait()
	assert.ErrorIs(t, err, docstore.ErrConflict)

	doc, err := s.Read(ctx, "questions", "q1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "edited", doc["content"])
}

func TestEnsureIndexes(t *testing.T) {
	s, srv := newStore(t, Options{})
	require.NoError(t, s.EnsureIndexes(context.Background(), "questions", "formId", "isActive"))
	assert.Equal(t, []string{"formId", "isActive", "_pk+id"}, srv.Indexes("questions"))
}

func TestPing(t *testing.T) {
	s, _ := newStore(t, Options{})
	assert.NoError(t, s.Ping(context.Background()))
}
