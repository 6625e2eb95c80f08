package repository

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/parisxmas/OxiForms/internal/docstore"
	"github.com/parisxmas/OxiForms/internal/models"
)

// Collection names.
const (
	FormsCollection         = "forms"
	QuestionsCollection     = "questions"
	QuestionTypesCollection = "questionTypes"
	SubmissionsCollection   = "submissions"
)

// timeLayout formats CreatedAt and SubmittedAt.
const timeLayout = time.RFC3339Nano

// Clock and id generation are swappable for tests.
var (
	now   = func() time.Time { return time.Now().UTC() }
	newID = uuid.NewString
)

func isNotFound(err error) bool {
	return errors.Is(err, docstore.ErrNotFound)
}

// decodeAll decodes docs into a slice of T, skipping none: a document that
// fails to decode fails the whole read.
func decodeAll[T any](docs []docstore.Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := docstore.Decode(d, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// sortByPosition orders questions as they appeared in the request that
// created them.
func sortByPosition(qs []models.Question) {
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Position < qs[j].Position })
}

func newQuestions(formID string, in []models.QuestionInput) []models.Question {
	out := make([]models.Question, len(in))
	for i, q := range in {
		choices := q.Choices
		if choices == nil {
			choices = []string{}
		}
		out[i] = models.Question{
			ID:                 newID(),
			FormID:             formID,
			Type:               q.Type,
			Content:            q.Content,
			Choices:            choices,
			AllowMultiple:      q.AllowMultiple,
			IncludeOtherOption: q.IncludeOtherOption,
			IsActive:           true,
			Position:           i,
		}
	}
	return out
}
