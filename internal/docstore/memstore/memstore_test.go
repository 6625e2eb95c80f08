package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiForms/internal/docstore"
	"github.com/parisxmas/OxiForms/internal/docstore/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store { return New() })
}

func TestWithMaxBatchOps(t *testing.T) {
	s := New(WithMaxBatchOps(2))
	err := s.NewBatch("f1").
		Create("questions", docstore.Document{"id": "a"}).
		Create("questions", docstore.Document{"id": "b"}).
		Create("questions", docstore.Document{"id": "c"}).
		Execute(context.Background())
	assert.ErrorIs(t, err, docstore.ErrBatchTooLarge)
}

func TestReadReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "forms", "f1", docstore.Document{"id": "f1", "title": "v1"}))

	doc, err := s.Read(ctx, "forms", "f1", "f1")
	require.NoError(t, err)
	doc["title"] = "mutated"

	again, err := s.Read(ctx, "forms", "f1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "v1", again["title"])
}

func TestBatchDuplicateCreateInsideBatch(t *testing.T) {
	s := New()
	err := s.NewBatch("f1").
		Create("questions", docstore.Document{"id": "a"}).
		Create("questions", docstore.Document{"id": "a"}).
		Execute(context.Background())
	assert.ErrorIs(t, err, docstore.ErrConflict)

	n, err := s.Count(context.Background(), "questions", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Scan(ctx, "forms", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
