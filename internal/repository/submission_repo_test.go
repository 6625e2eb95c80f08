package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parisxmas/OxiForms/internal/docstore/memstore"
	"github.com/parisxmas/OxiForms/internal/models"
)

func TestSubmitStampsIDAndTime(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	restore := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = restore })

	subs := NewSubmissionRepo(memstore.New(), zap.NewNop().Sugar())
	sub, err := subs.Submit(context.Background(), models.Submission{FormID: "f1", FirstName: "A", LastName: "B", Email: "a@b.c"})
	require.NoError(t, err)

	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, "2024-05-01T12:00:00Z", sub.SubmittedAt)
	assert.NotNil(t, sub.Responses)
}

func TestListByForm(t *testing.T) {
	ctx := context.Background()
	subs := NewSubmissionRepo(memstore.New(), zap.NewNop().Sugar())
	for _, formID := range []string{"f1", "f2", "f1"} {
		_, err := subs.Submit(ctx, models.Submission{FormID: formID, Email: "a@b.c"})
		require.NoError(t, err)
	}

	f1, err := subs.ListByForm(ctx, "f1")
	require.NoError(t, err)
	assert.Len(t, f1, 2)

	all, err := subs.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := subs.CountByForm(ctx, "f2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGetMissingSubmission(t *testing.T) {
	subs := NewSubmissionRepo(memstore.New(), zap.NewNop().Sugar())
	sub, err := subs.Get(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, sub)
}
