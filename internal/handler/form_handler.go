package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/parisxmas/OxiForms/internal/apierrors"
	"github.com/parisxmas/OxiForms/internal/models"
	"github.com/parisxmas/OxiForms/internal/service"
)

type FormHandler struct {
	svc *service.FormService
}

func NewFormHandler(svc *service.FormService) *FormHandler {
	return &FormHandler{svc: svc}
}

func (h *FormHandler) List(w http.ResponseWriter, r *http.Request) {
	forms, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, "Success", forms)
}

func (h *FormHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUpdateFormRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	form, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, "Form created", form)
}

func (h *FormHandler) Get(w http.ResponseWriter, r *http.Request) {
	form, err := h.svc.Get(r.Context(), chi.URLParam(r, "formId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if form.ETag != "" {
		w.Header().Set("ETag", strconv.Quote(form.ETag))
	}
	writeData(w, "Success", form)
}

// Update replaces the form's questions. An If-Match header makes the update
// conditional on the ETag returned by Get.
func (h *FormHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUpdateFormRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	qs, err := h.svc.Update(r.Context(), chi.URLParam(r, "formId"), req, ifMatch(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, "Form updated", qs)
}

func (h *FormHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	includeRetired := false
	if v := r.URL.Query().Get("includeRetired"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, apierrors.ErrValidation.WithMessage("includeRetired must be a boolean"))
			return
		}
		includeRetired = b
	}
	qs, err := h.svc.ListQuestions(r.Context(), chi.URLParam(r, "formId"), includeRetired)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, "Success", qs)
}

func (h *FormHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteQuestion(r.Context(), chi.URLParam(r, "questionId")); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, "Question deleted", nil)
}

func (h *FormHandler) QuestionTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.svc.QuestionTypes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, "Success", types)
}

func (h *FormHandler) InactiveQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := h.svc.ListInactiveQuestions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, "Success", qs)
}

// ifMatch returns the If-Match header without quotes or a weak prefix. "*"
// matches any version and is treated as absent.
func ifMatch(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("If-Match"))
	v = strings.TrimPrefix(v, "W/")
	if v == "*" {
		return ""
	}
	if s, err := strconv.Unquote(v); err == nil {
		return s
	}
	return v
}
