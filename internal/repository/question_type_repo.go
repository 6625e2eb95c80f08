package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/parisxmas/OxiForms/internal/docstore"
	"github.com/parisxmas/OxiForms/internal/metrics"
	"github.com/parisxmas/OxiForms/internal/models"
)

// DefaultQuestionTypes is the catalog inserted into an empty store.
var DefaultQuestionTypes = []models.QuestionType{
	{ID: "1", TypeName: "Paragraph"},
	{ID: "2", TypeName: "YesNo"},
	{ID: "3", TypeName: "Dropdown"},
	{ID: "4", TypeName: "MultipleChoice"},
	{ID: "5", TypeName: "Date"},
	{ID: "6", TypeName: "Number"},
}

type QuestionTypeRepo struct {
	store docstore.Store
	log   *zap.SugaredLogger
}

func NewQuestionTypeRepo(store docstore.Store, log *zap.SugaredLogger) *QuestionTypeRepo {
	return &QuestionTypeRepo{store: store, log: log}
}

// List returns the catalog ordered by id.
func (r *QuestionTypeRepo) List(ctx context.Context) ([]models.QuestionType, error) {
	docs, err := r.store.Scan(ctx, QuestionTypesCollection, nil)
	if err != nil {
		return nil, fmt.Errorf("list question types: %w", err)
	}
	types, err := decodeAll[models.QuestionType](docs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(types, func(i, j int) bool { return lessID(types[i].ID, types[j].ID) })
	return types, nil
}

// Seed inserts DefaultQuestionTypes when the catalog is empty. Entries are
// inserted one at a time; a failed insert is logged and the rest are still
// attempted. A catalog with any entry is left alone. It returns how many
// entries were inserted.
func (r *QuestionTypeRepo) Seed(ctx context.Context) (int, error) {
	n, err := r.store.Count(ctx, QuestionTypesCollection, nil)
	if err != nil {
		return 0, fmt.Errorf("seed question types: %w", err)
	}
	if n > 0 {
		r.log.Debugw("question types already present, skipping seed", "count", n)
		return 0, nil
	}

	inserted := 0
	for _, qt := range DefaultQuestionTypes {
		doc, err := docstore.Encode(qt)
		if err != nil {
			return inserted, err
		}
		if err := r.store.Create(ctx, QuestionTypesCollection, qt.ID, doc); err != nil {
			r.log.Warnw("seed question type failed", "id", qt.ID, "typeName", qt.TypeName, "error", err)
			continue
		}
		inserted++
		metrics.SeededQuestionTypes.Inc()
	}
	r.log.Infow("question types seeded", "inserted", inserted, "total", len(DefaultQuestionTypes))
	return inserted, nil
}

// lessID orders numeric ids numerically and everything else lexically after
// them.
func lessID(a, b string) bool {
	an, aErr := strconv.Atoi(a)
	bn, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		return an < bn
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	}
	return a < b
}
