package service

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator"

	"github.com/parisxmas/OxiForms/internal/models"
)

// Question types whose answers are picked from a list.
var choiceTypes = map[string]bool{
	"Dropdown":       true,
	"MultipleChoice": true,
}

type RequestValidator struct {
	validator *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	if err := v.RegisterValidation("isoDate", isoDateValidator); err != nil {
		panic(err)
	}
	v.RegisterStructValidation(questionChoicesValidator, models.QuestionInput{})
	return &RequestValidator{v}
}

// Validate returns validator.ValidationErrors when i breaks a rule.
func (rv *RequestValidator) Validate(i any) error {
	return rv.validator.Struct(i)
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

func isoDateValidator(fl validator.FieldLevel) bool {
	_, ok := parseDate(fl.Field().String())
	return ok
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{models.DateOfBirthLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func questionChoicesValidator(sl validator.StructLevel) {
	q := sl.Current().Interface().(models.QuestionInput)
	if !choiceTypes[q.Type] {
		return
	}
	for _, c := range q.Choices {
		if strings.TrimSpace(c) != "" {
			return
		}
	}
	sl.ReportError(q.Choices, "choices", "Choices", "choices", "")
}
