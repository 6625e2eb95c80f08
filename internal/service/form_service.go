package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/parisxmas/OxiForms/internal/apierrors"
	"github.com/parisxmas/OxiForms/internal/docstore"
	"github.com/parisxmas/OxiForms/internal/models"
	"github.com/parisxmas/OxiForms/internal/repository"
)

type FormService struct {
	forms    *repository.FormRepo
	types    *repository.QuestionTypeRepo
	validate *RequestValidator
	log      *zap.SugaredLogger
}

func NewFormService(forms *repository.FormRepo, types *repository.QuestionTypeRepo, v *RequestValidator, log *zap.SugaredLogger) *FormService {
	return &FormService{forms: forms, types: types, validate: v, log: log}
}

func (s *FormService) Create(ctx context.Context, req models.CreateUpdateFormRequest) (*models.Form, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, apierrors.Validation(err)
	}
	form, err := s.forms.Create(ctx, req.Header(), req.Questions)
	if err != nil {
		return nil, apierrors.Store("create form", err)
	}
	return form, nil
}

// Update replaces the active questions of formID with req.Questions. Header
// fields in req are not applied. A non-empty ifMatch must equal the form's
// current ETag or the update fails with ErrStaleForm.
func (s *FormService) Update(ctx context.Context, formID string, req models.CreateUpdateFormRequest, ifMatch string) ([]models.Question, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, apierrors.Validation(err)
	}
	ok, err := s.forms.Exists(ctx, formID)
	if err != nil {
		return nil, apierrors.Store("update form", err)
	}
	if !ok {
		return nil, apierrors.ErrFormNotFound
	}

	qs, err := s.forms.Update(ctx, formID, req.Header(), req.Questions, repository.UpdateOptions{IfMatch: ifMatch})
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			// deleted between the existence check and the batch
			return nil, apierrors.ErrFormNotFound.WithCause(err)
		}
		err = apierrors.Store("update form", err)
		if apierrors.KindOf(err) == apierrors.KindConflict {
			s.log.Infow("stale form update rejected", "formId", formID, "ifMatch", ifMatch)
		}
		return nil, err
	}
	return qs, nil
}

func (s *FormService) Get(ctx context.Context, formID string) (*models.Form, error) {
	form, err := s.forms.Get(ctx, formID)
	if err != nil {
		return nil, apierrors.Store("get form", err)
	}
	if form == nil {
		return nil, apierrors.ErrFormNotFound
	}
	return form, nil
}

func (s *FormService) List(ctx context.Context) ([]models.Form, error) {
	forms, err := s.forms.List(ctx)
	if err != nil {
		return nil, apierrors.Store("list forms", err)
	}
	return forms, nil
}

func (s *FormService) ListInactiveQuestions(ctx context.Context) ([]models.Question, error) {
	qs, err := s.forms.ListInactiveQuestions(ctx)
	if err != nil {
		return nil, apierrors.Store("list inactive questions", err)
	}
	return qs, nil
}

// ListQuestions returns a form's active questions, plus its retired ones when
// includeRetired is set.
func (s *FormService) ListQuestions(ctx context.Context, formID string, includeRetired bool) ([]models.Question, error) {
	ok, err := s.forms.Exists(ctx, formID)
	if err != nil {
		return nil, apierrors.Store("list questions", err)
	}
	if !ok {
		return nil, apierrors.ErrFormNotFound
	}
	qs, err := s.forms.ListQuestions(ctx, formID, includeRetired)
	if err != nil {
		return nil, apierrors.Store("list questions", err)
	}
	return qs, nil
}

func (s *FormService) DeleteQuestion(ctx context.Context, questionID string) error {
	err := s.forms.DeleteQuestion(ctx, questionID)
	if errors.Is(err, docstore.ErrNotFound) {
		return apierrors.ErrQuestionNotFound.WithCause(err)
	}
	return apierrors.Store("delete question", err)
}

func (s *FormService) QuestionTypes(ctx context.Context) ([]models.QuestionType, error) {
	types, err := s.types.List(ctx)
	if err != nil {
		return nil, apierrors.Store("list question types", err)
	}
	return types, nil
}
