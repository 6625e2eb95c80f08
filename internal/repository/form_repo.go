package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/parisxmas/OxiForms/internal/docstore"
	"github.com/parisxmas/OxiForms/internal/metrics"
	"github.com/parisxmas/OxiForms/internal/models"
)

// FormRepo owns forms and their questions. A form's questions share its
// partition, so every change to a form's question set is one partition batch.
type FormRepo struct {
	store docstore.Store
	log   *zap.SugaredLogger
}

func NewFormRepo(store docstore.Store, log *zap.SugaredLogger) *FormRepo {
	return &FormRepo{store: store, log: log}
}

func (r *FormRepo) EnsureIndexes(ctx context.Context) error {
	if err := r.store.EnsureIndexes(ctx, FormsCollection, "id"); err != nil {
		return err
	}
	return r.store.EnsureIndexes(ctx, QuestionsCollection, "id", "formId", "isActive")
}

// Create stores a new form with all its questions active. The header and the
// questions are written in one batch, so a failure leaves nothing behind.
func (r *FormRepo) Create(ctx context.Context, header models.FormHeader, questions []models.QuestionInput) (*models.Form, error) {
	header.ID = newID()
	header.CreatedAt = now().Format(timeLayout)

	headerDoc, err := docstore.Encode(header)
	if err != nil {
		return nil, err
	}
	b := r.store.NewBatch(header.ID).Create(FormsCollection, headerDoc)

	qs := newQuestions(header.ID, questions)
	for _, q := range qs {
		doc, err := docstore.Encode(q)
		if err != nil {
			return nil, err
		}
		b.Create(QuestionsCollection, doc)
	}

	err = b.Execute(ctx)
	metrics.ObserveBatch("create_form", err)
	if err != nil {
		return nil, fmt.Errorf("create form: %w", err)
	}
	r.log.Infow("form created", "formId", header.ID, "questions", len(qs))
	return &models.Form{FormHeader: header, Questions: qs}, nil
}

// UpdateOptions carries optional preconditions for Update.
type UpdateOptions struct {
	// IfMatch, when set, must equal the header's current etag. The header is
	// then rewritten unchanged inside the batch, so a concurrent update that
	// won the race fails this one with docstore.ErrPreconditionFailed.
	IfMatch string
}

// Update replaces the form's active question set. In one batch it retires
// every active question and creates the new ones. Questions that are already
// retired are left untouched. The header document is not modified; header
// fields in the request are ignored.
//
// Callers check existence first. Without IfMatch two concurrent updates may
// both read the same active set and both commit, leaving the union of their
// new questions active.
func (r *FormRepo) Update(ctx context.Context, formID string, header models.FormHeader, questions []models.QuestionInput, opts UpdateOptions) ([]models.Question, error) {
	active, err := r.questions(ctx, formID, true)
	if err != nil {
		return nil, fmt.Errorf("update form %s: %w", formID, err)
	}

	b := r.store.NewBatch(formID)
	if opts.IfMatch != "" {
		current, err := r.store.Read(ctx, FormsCollection, formID, formID)
		if err != nil {
			return nil, fmt.Errorf("update form %s: %w", formID, err)
		}
		b.Replace(FormsCollection, formID, current, docstore.IfMatch(opts.IfMatch))
	}

	for _, q := range active {
		q.IsActive = false
		doc, err := docstore.Encode(q)
		if err != nil {
			return nil, err
		}
		b.Replace(QuestionsCollection, q.ID, doc)
	}
	qs := newQuestions(formID, questions)
	for _, q := range qs {
		doc, err := docstore.Encode(q)
		if err != nil {
			return nil, err
		}
		b.Create(QuestionsCollection, doc)
	}

	err = b.Execute(ctx)
	metrics.ObserveBatch("update_form", err)
	if err != nil {
		return nil, fmt.Errorf("update form %s: %w", formID, err)
	}
	r.log.Infow("form updated", "formId", formID, "retired", len(active), "created", len(qs))
	return qs, nil
}

// DeleteQuestion hard-deletes one question by id, active or not. It returns
// an error wrapping docstore.ErrNotFound when no such question exists.
func (r *FormRepo) DeleteQuestion(ctx context.Context, questionID string) error {
	doc, err := r.store.Read(ctx, QuestionsCollection, questionID, "")
	if err != nil {
		return fmt.Errorf("delete question %s: %w", questionID, err)
	}
	var q models.Question
	if err := docstore.Decode(doc, &q); err != nil {
		return err
	}
	if err := r.store.Delete(ctx, QuestionsCollection, questionID, q.FormID); err != nil {
		return fmt.Errorf("delete question %s: %w", questionID, err)
	}
	r.log.Infow("question deleted", "questionId", questionID, "formId", q.FormID)
	return nil
}

// Get returns the form with its active questions, or nil if it does not exist.
func (r *FormRepo) Get(ctx context.Context, formID string) (*models.Form, error) {
	doc, err := r.store.Read(ctx, FormsCollection, formID, formID)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get form %s: %w", formID, err)
	}
	form := &models.Form{ETag: doc.ETag()}
	if err := docstore.Decode(doc, &form.FormHeader); err != nil {
		return nil, err
	}
	form.Questions, err = r.questions(ctx, formID, true)
	if err != nil {
		return nil, fmt.Errorf("get form %s: %w", formID, err)
	}
	return form, nil
}

// Exists reports whether a form header is stored under formID.
func (r *FormRepo) Exists(ctx context.Context, formID string) (bool, error) {
	_, err := r.store.Read(ctx, FormsCollection, formID, formID)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read form %s: %w", formID, err)
	}
	return true, nil
}

// List returns every form with its active questions.
func (r *FormRepo) List(ctx context.Context) ([]models.Form, error) {
	docs, err := r.store.Scan(ctx, FormsCollection, nil)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	qdocs, err := r.store.Scan(ctx, QuestionsCollection, docstore.Filter{"isActive": true})
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	active, err := decodeAll[models.Question](qdocs)
	if err != nil {
		return nil, err
	}
	byForm := map[string][]models.Question{}
	for _, q := range active {
		byForm[q.FormID] = append(byForm[q.FormID], q)
	}

	forms := make([]models.Form, 0, len(docs))
	for _, d := range docs {
		f := models.Form{ETag: d.ETag()}
		if err := docstore.Decode(d, &f.FormHeader); err != nil {
			return nil, err
		}
		f.Questions = byForm[f.ID]
		if f.Questions == nil {
			f.Questions = []models.Question{}
		}
		sortByPosition(f.Questions)
		forms = append(forms, f)
	}
	return forms, nil
}

// ListInactiveQuestions returns retired questions across all forms.
func (r *FormRepo) ListInactiveQuestions(ctx context.Context) ([]models.Question, error) {
	docs, err := r.store.Scan(ctx, QuestionsCollection, docstore.Filter{"isActive": false})
	if err != nil {
		return nil, fmt.Errorf("list inactive questions: %w", err)
	}
	return decodeAll[models.Question](docs)
}

// ListQuestions returns a form's question history: active questions in
// position order, followed by retired ones when includeRetired is set.
func (r *FormRepo) ListQuestions(ctx context.Context, formID string, includeRetired bool) ([]models.Question, error) {
	active, err := r.questions(ctx, formID, true)
	if err != nil {
		return nil, fmt.Errorf("list questions of %s: %w", formID, err)
	}
	if !includeRetired {
		return active, nil
	}
	retired, err := r.questions(ctx, formID, false)
	if err != nil {
		return nil, fmt.Errorf("list questions of %s: %w", formID, err)
	}
	return append(active, retired...), nil
}

func (r *FormRepo) questions(ctx context.Context, formID string, active bool) ([]models.Question, error) {
	docs, err := r.store.Scan(ctx, QuestionsCollection, docstore.Filter{"formId": formID, "isActive": active})
	if err != nil {
		return nil, err
	}
	qs, err := decodeAll[models.Question](docs)
	if err != nil {
		return nil, err
	}
	sortByPosition(qs)
	return qs, nil
}
