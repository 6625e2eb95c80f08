// Package apierrors classifies failures for the HTTP layer. Every error a
// service returns is either a DefinedError or is treated as an internal
// failure.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator"

	"github.com/parisxmas/OxiForms/internal/docstore"
)

// Kind groups errors by how a client should react.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
)

type DefinedError struct {
	Code       int    `json:"code"`
	Kind       Kind   `json:"-"`
	StatusCode int    `json:"-"`
	Err        string `json:"error"`
	cause      error
}

func (e DefinedError) Error() string {
	return e.Err
}

func (e DefinedError) Unwrap() error {
	return e.cause
}

// Is matches DefinedErrors by code so wrapped copies compare equal to the
// package variables.
func (e DefinedError) Is(target error) bool {
	t, ok := target.(DefinedError)
	return ok && t.Code == e.Code
}

// WithCause returns a copy of e wrapping cause.
func (e DefinedError) WithCause(cause error) DefinedError {
	// Boxed so DefinedError values stay comparable whatever the cause type.
	e.cause = &boxed{err: cause}
	return e
}

type boxed struct{ err error }

func (b *boxed) Error() string { return b.err.Error() }
func (b *boxed) Unwrap() error { return b.err }

// WithMessage returns a copy of e with a formatted message.
func (e DefinedError) WithMessage(format string, args ...any) DefinedError {
	e.Err = fmt.Sprintf(format, args...)
	return e
}

var (
	// 1** - not found
	ErrFormNotFound       = DefinedError{Code: 101, Kind: KindNotFound, StatusCode: http.StatusNotFound, Err: "Form not found"}
	ErrSubmissionNotFound = DefinedError{Code: 102, Kind: KindNotFound, StatusCode: http.StatusNotFound, Err: "Submission not found"}
	ErrQuestionNotFound   = DefinedError{Code: 103, Kind: KindNotFound, StatusCode: http.StatusNotFound, Err: "Question not found"}

	// 2** - validation
	ErrValidation       = DefinedError{Code: 201, Kind: KindValidation, StatusCode: http.StatusBadRequest, Err: "invalid request"}
	ErrInvalidBody      = DefinedError{Code: 202, Kind: KindValidation, StatusCode: http.StatusBadRequest, Err: "invalid request body"}
	ErrTooManyQuestions = DefinedError{Code: 203, Kind: KindValidation, StatusCode: http.StatusBadRequest, Err: "too many questions for one batch"}

	// 3** - conflict
	ErrStaleForm = DefinedError{Code: 301, Kind: KindConflict, StatusCode: http.StatusPreconditionFailed, Err: "form was modified by another request"}

	// 5** - internal
	ErrInternal = DefinedError{Code: 500, Kind: KindInternal, StatusCode: http.StatusInternalServerError, Err: "internal error"}
)

// Validation builds a 400 error from a validator result or any other
// argument error.
func Validation(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return ErrValidation.WithMessage("%s", strings.Join(msgs, "; ")).WithCause(err)
	}
	return ErrValidation.WithMessage("%s", err.Error()).WithCause(err)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must have at least %s item(s)", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "isoDate":
		return field + " must be a date (yyyy-MM-dd)"
	case "choices":
		return field + " must list at least one choice"
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

// Store wraps a storage failure, mapping docstore sentinels onto their
// client-facing kinds. Unknown failures stay internal.
func Store(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, docstore.ErrPreconditionFailed), errors.Is(err, docstore.ErrConflict):
		return ErrStaleForm.WithCause(err)
	case errors.Is(err, docstore.ErrBatchTooLarge):
		return ErrTooManyQuestions.WithCause(err)
	}
	var de DefinedError
	if errors.As(err, &de) {
		return err
	}
	return ErrInternal.WithMessage("%s failed", op).WithCause(err)
}

// KindOf returns the Kind of err.
func KindOf(err error) Kind {
	var de DefinedError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// StatusCode maps err to an HTTP status.
func StatusCode(err error) int {
	var de DefinedError
	if errors.As(err, &de) && de.StatusCode != 0 {
		return de.StatusCode
	}
	return http.StatusInternalServerError
}

// Message is the client-facing text of err. Internal causes are not exposed.
func Message(err error) string {
	var de DefinedError
	if errors.As(err, &de) {
		return de.Err
	}
	return ErrInternal.Err
}
