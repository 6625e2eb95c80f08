package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parisxmas/OxiForms/internal/docstore"
	"github.com/parisxmas/OxiForms/internal/docstore/memstore"
	"github.com/parisxmas/OxiForms/internal/models"
)

func TestSeedEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	types := NewQuestionTypeRepo(memstore.New(), zap.NewNop().Sugar())

	n, err := types.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	got, err := types.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultQuestionTypes, got)

	n, err = types.Seed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSeedSkipsFailedEntries(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{Store: memstore.New(), failCreateID: "3"}
	types := NewQuestionTypeRepo(store, zap.NewNop().Sugar())

	n, err := types.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	got, err := types.List(ctx)
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, qt := range got {
		ids[i] = qt.ID
	}
	assert.Equal(t, []string{"1", "2", "4", "5", "6"}, ids)
}

func TestSeedLeavesPartialCatalogAlone(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	doc, err := docstore.Encode(models.QuestionType{ID: "9", TypeName: "Custom"})
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, QuestionTypesCollection, "9", doc))

	types := NewQuestionTypeRepo(store, zap.NewNop().Sugar())
	n, err := types.Seed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := types.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.QuestionType{{ID: "9", TypeName: "Custom"}}, got)
}

func TestLessID(t *testing.T) {
	assert.True(t, lessID("2", "10"))
	assert.True(t, lessID("9", "a"))
	assert.False(t, lessID("b", "a"))
}
