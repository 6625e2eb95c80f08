package service

import (
	"testing"

	"go.uber.org/zap"

	"github.com/parisxmas/OxiForms/internal/docstore"
	"github.com/parisxmas/OxiForms/internal/docstore/memstore"
	"github.com/parisxmas/OxiForms/internal/repository"
)

type fixture struct {
	store docstore.Store
	forms *FormService
	subs  *SubmissionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	log := zap.NewNop().Sugar()
	v := NewRequestValidator()
	formRepo := repository.NewFormRepo(store, log)
	return &fixture{
		store: store,
		forms: NewFormService(formRepo, repository.NewQuestionTypeRepo(store, log), v, log),
		subs:  NewSubmissionService(repository.NewSubmissionRepo(store, log), formRepo, v, log),
	}
}
