package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiForms/internal/apierrors"
	"github.com/parisxmas/OxiForms/internal/models"
)

func submission(formID string) models.SubmissionRequest {
	return models.SubmissionRequest{
		FormID:    formID,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Responses: map[string][]string{"q1": {"yes"}},
	}
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form, err := f.forms.Create(ctx, formRequest("q1"))
	require.NoError(t, err)

	req := submission(form.ID)
	req.DateOfBirth = "1990-04-01T10:00:00Z"
	sub, err := f.subs.Submit(ctx, req)
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID)
	assert.NotEmpty(t, sub.SubmittedAt)
	assert.Equal(t, "1990-04-01", sub.DateOfBirth)

	got, err := f.subs.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub, got)

	byForm, err := f.subs.ListByForm(ctx, form.ID)
	require.NoError(t, err)
	assert.Len(t, byForm, 1)
}

func TestSubmitSurvivesFormUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form, err := f.forms.Create(ctx, formRequest("q1"))
	require.NoError(t, err)
	sub, err := f.subs.Submit(ctx, submission(form.ID))
	require.NoError(t, err)

	_, err = f.forms.Update(ctx, form.ID, formRequest("q2"), "")
	require.NoError(t, err)

	got, err := f.subs.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"yes"}, got.Responses["q1"])

	all, err := f.subs.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form, err := f.forms.Create(ctx, formRequest("q1"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*models.SubmissionRequest)
		msg    string
	}{
		{"missing first name", func(r *models.SubmissionRequest) { r.FirstName = "" }, "firstName is required"},
		{"bad email", func(r *models.SubmissionRequest) { r.Email = "not-an-email" }, "email must be a valid email address"},
		{"bad date of birth", func(r *models.SubmissionRequest) { r.DateOfBirth = "01/04/1990" }, "dateOfBirth must be a date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := submission(form.ID)
			tt.mutate(&req)
			_, err := f.subs.Submit(ctx, req)
			require.ErrorIs(t, err, apierrors.ErrValidation)
			assert.Contains(t, apierrors.Message(err), tt.msg)
		})
	}
}

func TestSubmitToMissingForm(t *testing.T) {
	f := newFixture(t)
	_, err := f.subs.Submit(context.Background(), submission("missing"))
	assert.ErrorIs(t, err, apierrors.ErrFormNotFound)

	all, err := f.subs.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGetMissingSubmission(t *testing.T) {
	_, err := newFixture(t).subs.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, apierrors.ErrSubmissionNotFound)
}
