package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parisxmas/OxiForms/internal/models"
	"github.com/parisxmas/OxiForms/internal/service"
)

type SubmissionHandler struct {
	svc *service.SubmissionService
}

func NewSubmissionHandler(svc *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{svc: svc}
}

func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.SubmissionRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, "Form submitted", sub)
}

func (h *SubmissionHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, "Success", subs)
}

func (h *SubmissionHandler) ListByForm(w http.ResponseWriter, r *http.Request) {
	subs, err := h.svc.ListByForm(r.Context(), chi.URLParam(r, "formId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, "Success", subs)
}

func (h *SubmissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.Get(r.Context(), chi.URLParam(r, "submissionId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, "Success", sub)
}
