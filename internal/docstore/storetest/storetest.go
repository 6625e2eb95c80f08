// Package storetest holds the behaviour every docstore.Store backend must
// share. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiForms/internal/docstore"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) docstore.Store

func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s docstore.Store)
	}{
		{"ReadMissing", testReadMissing},
		{"UpsertAndRead", testUpsertAndRead},
		{"CreateDuplicate", testCreateDuplicate},
		{"CrossPartitionRead", testCrossPartitionRead},
		{"ScanFilter", testScanFilter},
		{"Delete", testDelete},
		{"BatchCommits", testBatchCommits},
		{"BatchAllOrNothing", testBatchAllOrNothing},
		{"BatchIfMatch", testBatchIfMatch},
		{"BatchTooLarge", testBatchTooLarge},
		{"ReplaceDropsStaleFields", testReplaceDropsStaleFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func testReadMissing(t *testing.T, s docstore.Store) {
	_, err := s.Read(context.Background(), "forms", "nope", "nope")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func testUpsertAndRead(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "forms", "f1", docstore.Document{"id": "f1", "title": "v1"}))
	first, err := s.Read(ctx, "forms", "f1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "v1", first["title"])
	assert.NotEmpty(t, first.ETag())
	assert.NotContains(t, first, docstore.FieldPartitionKey)

	require.NoError(t, s.Upsert(ctx, "forms", "f1", docstore.Document{"id": "f1", "title": "v2"}))
	second, err := s.Read(ctx, "forms", "f1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "v2", second["title"])
	assert.NotEqual(t, first.ETag(), second.ETag())

	all, err := s.Scan(ctx, "forms", nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testCreateDuplicate(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "forms", "f1", docstore.Document{"id": "f1"}))
	err := s.Create(ctx, "forms", "f1", docstore.Document{"id": "f1"})
	assert.ErrorIs(t, err, docstore.ErrConflict)
}

func testCrossPartitionRead(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "questions", "f1", docstore.Document{"id": "q1", "formId": "f1"}))

	doc, err := s.Read(ctx, "questions", "q1", "")
	require.NoError(t, err)
	assert.Equal(t, "f1", doc["formId"])

	_, err = s.Read(ctx, "questions", "q1", "f2")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func testScanFilter(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		doc := docstore.Document{"id": fmt.Sprintf("q%d", i), "formId": "f1", "isActive": i%2 == 0}
		require.NoError(t, s.Upsert(ctx, "questions", "f1", doc))
	}
	require.NoError(t, s.Upsert(ctx, "questions", "f2", docstore.Document{"id": "x", "formId": "f2", "isActive": true}))

	active, err := s.Scan(ctx, "questions", docstore.Filter{"formId": "f1", "isActive": true})
	require.NoError(t, err)
	ids := make([]string, len(active))
	for i, d := range active {
		ids[i] = d.ID()
	}
	assert.Equal(t, []string{"q0", "q2", "q4"}, ids)

	n, err := s.Count(ctx, "questions", docstore.Filter{"isActive": false})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func testDelete(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "questions", "f1", docstore.Document{"id": "q1"}))
	require.NoError(t, s.Delete(ctx, "questions", "q1", ""))
	_, err := s.Read(ctx, "questions", "q1", "f1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "questions", "q1", "f1"), docstore.ErrNotFound)
}

func testBatchCommits(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "questions", "f1", docstore.Document{"id": "old", "isActive": true}))

	err := s.NewBatch("f1").
		Replace("questions", "old", docstore.Document{"isActive": false}).
		Create("questions", docstore.Document{"id": "new", "isActive": true}).
		Execute(ctx)
	require.NoError(t, err)

	old, err := s.Read(ctx, "questions", "old", "f1")
	require.NoError(t, err)
	assert.Equal(t, false, old["isActive"])
	created, err := s.Read(ctx, "questions", "new", "f1")
	require.NoError(t, err)
	assert.Equal(t, true, created["isActive"])
}

func testBatchAllOrNothing(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "questions", "f1", docstore.Document{"id": "old", "isActive": true}))

	err := s.NewBatch("f1").
		Create("questions", docstore.Document{"id": "new", "isActive": true}).
		Replace("questions", "old", docstore.Document{"isActive": false}).
		Replace("questions", "ghost", docstore.Document{"isActive": false}).
		Execute(ctx)
	require.ErrorIs(t, err, docstore.ErrNotFound)

	_, err = s.Read(ctx, "questions", "new", "f1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	old, err := s.Read(ctx, "questions", "old", "f1")
	require.NoError(t, err)
	assert.Equal(t, true, old["isActive"])
}

func testBatchIfMatch(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "forms", "f1", docstore.Document{"id": "f1", "title": "v1"}))
	doc, err := s.Read(ctx, "forms", "f1", "f1")
	require.NoError(t, err)
	etag := doc.ETag()

	require.NoError(t, s.NewBatch("f1").
		Replace("forms", "f1", docstore.Document{"title": "v2"}, docstore.IfMatch(etag)).
		Execute(ctx))

	err = s.NewBatch("f1").
		Replace("forms", "f1", docstore.Document{"title": "v3"}, docstore.IfMatch(etag)).
		Execute(ctx)
	assert.ErrorIs(t, err, docstore.ErrPreconditionFailed)

	doc, err = s.Read(ctx, "forms", "f1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "v2", doc["title"])
}

func testBatchTooLarge(t *testing.T, s docstore.Store) {
	b := s.NewBatch("f1")
	for i := 0; i <= docstore.DefaultMaxBatchOps; i++ {
		b.Create("questions", docstore.Document{"id": fmt.Sprintf("q%d", i)})
	}
	assert.ErrorIs(t, b.Execute(context.Background()), docstore.ErrBatchTooLarge)
	assert.ErrorIs(t, s.NewBatch("f1").Execute(context.Background()), docstore.ErrEmptyBatch)
}

func testReplaceDropsStaleFields(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "questions", "f1", docstore.Document{"id": "q1", "choices": []any{"a"}}))
	require.NoError(t, s.NewBatch("f1").Replace("questions", "q1", docstore.Document{"isActive": false}).Execute(ctx))

	doc, err := s.Read(ctx, "questions", "q1", "f1")
	require.NoError(t, err)
	assert.Nil(t, doc["choices"])
}
