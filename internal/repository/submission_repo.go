package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/parisxmas/OxiForms/internal/docstore"
	"github.com/parisxmas/OxiForms/internal/models"
)

// SubmissionRepo stores submissions in their form's partition. Submissions
// reference the form only; question changes never touch them.
type SubmissionRepo struct {
	store docstore.Store
	log   *zap.SugaredLogger
}

func NewSubmissionRepo(store docstore.Store, log *zap.SugaredLogger) *SubmissionRepo {
	return &SubmissionRepo{store: store, log: log}
}

func (r *SubmissionRepo) EnsureIndexes(ctx context.Context) error {
	return r.store.EnsureIndexes(ctx, SubmissionsCollection, "id", "formId")
}

// Submit assigns an id and submission time and stores sub.
func (r *SubmissionRepo) Submit(ctx context.Context, sub models.Submission) (*models.Submission, error) {
	sub.ID = newID()
	sub.SubmittedAt = now().Format(timeLayout)
	if sub.Responses == nil {
		sub.Responses = map[string][]string{}
	}

	doc, err := docstore.Encode(sub)
	if err != nil {
		return nil, err
	}
	if err := r.store.Upsert(ctx, SubmissionsCollection, sub.FormID, doc); err != nil {
		return nil, fmt.Errorf("submit to form %s: %w", sub.FormID, err)
	}
	r.log.Infow("submission recorded", "submissionId", sub.ID, "formId", sub.FormID)
	return &sub, nil
}

func (r *SubmissionRepo) List(ctx context.Context) ([]models.Submission, error) {
	return r.scan(ctx, nil)
}

func (r *SubmissionRepo) ListByForm(ctx context.Context, formID string) ([]models.Submission, error) {
	return r.scan(ctx, docstore.Filter{"formId": formID})
}

// Get returns the submission or nil if none has that id.
func (r *SubmissionRepo) Get(ctx context.Context, id string) (*models.Submission, error) {
	doc, err := r.store.Read(ctx, SubmissionsCollection, id, "")
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get submission %s: %w", id, err)
	}
	var s models.Submission
	if err := docstore.Decode(doc, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubmissionRepo) CountByForm(ctx context.Context, formID string) (int, error) {
	n, err := r.store.Count(ctx, SubmissionsCollection, docstore.Filter{"formId": formID})
	if err != nil {
		return 0, fmt.Errorf("count submissions of %s: %w", formID, err)
	}
	return n, nil
}

func (r *SubmissionRepo) scan(ctx context.Context, filter docstore.Filter) ([]models.Submission, error) {
	docs, err := r.store.Scan(ctx, SubmissionsCollection, filter)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return decodeAll[models.Submission](docs)
}
