package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/parisxmas/OxiForms/internal/apierrors"
	"github.com/parisxmas/OxiForms/internal/models"
	"github.com/parisxmas/OxiForms/internal/repository"
)

type SubmissionService struct {
	subs     *repository.SubmissionRepo
	forms    *repository.FormRepo
	validate *RequestValidator
	log      *zap.SugaredLogger
}

func NewSubmissionService(subs *repository.SubmissionRepo, forms *repository.FormRepo, v *RequestValidator, log *zap.SugaredLogger) *SubmissionService {
	return &SubmissionService{subs: subs, forms: forms, validate: v, log: log}
}

// Submit records an applicant's answers against an existing form. Responses
// are stored as given; they are not checked against the form's questions.
func (s *SubmissionService) Submit(ctx context.Context, req models.SubmissionRequest) (*models.Submission, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validate.Validate(req); err != nil {
		return nil, apierrors.Validation(err)
	}
	ok, err := s.forms.Exists(ctx, req.FormID)
	if err != nil {
		return nil, apierrors.Store("submit", err)
	}
	if !ok {
		return nil, apierrors.ErrFormNotFound
	}

	sub := models.Submission{
		FormID:           req.FormID,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		Phone:            req.Phone,
		Nationality:      req.Nationality,
		CurrentResidence: req.CurrentResidence,
		IDNumber:         req.IDNumber,
		Gender:           req.Gender,
		Responses:        req.Responses,
	}
	if req.DateOfBirth != "" {
		dob, _ := parseDate(req.DateOfBirth)
		sub.DateOfBirth = dob.Format(models.DateOfBirthLayout)
	}

	saved, err := s.subs.Submit(ctx, sub)
	if err != nil {
		return nil, apierrors.Store("submit", err)
	}
	return saved, nil
}

func (s *SubmissionService) List(ctx context.Context) ([]models.Submission, error) {
	subs, err := s.subs.List(ctx)
	if err != nil {
		return nil, apierrors.Store("list submissions", err)
	}
	return subs, nil
}

func (s *SubmissionService) ListByForm(ctx context.Context, formID string) ([]models.Submission, error) {
	subs, err := s.subs.ListByForm(ctx, formID)
	if err != nil {
		return nil, apierrors.Store("list submissions", err)
	}
	return subs, nil
}

func (s *SubmissionService) Get(ctx context.Context, id string) (*models.Submission, error) {
	sub, err := s.subs.Get(ctx, id)
	if err != nil {
		return nil, apierrors.Store("get submission", err)
	}
	if sub == nil {
		return nil, apierrors.ErrSubmissionNotFound
	}
	return sub, nil
}
