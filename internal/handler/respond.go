package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/parisxmas/OxiForms/internal/apierrors"
	"github.com/parisxmas/OxiForms/internal/middleware"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type response struct {
	Successful bool   `json:"successful"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
}

type errorResponse struct {
	Status        int    `json:"status"`
	IsSuccess     bool   `json:"isSuccess"`
	ErrorMessages string `json:"errorMessages"`
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apierrors.ErrInvalidBody.WithMessage("request body is empty")
		}
		return apierrors.ErrInvalidBody.WithCause(err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, response{Successful: true, Message: message, Data: data})
}

// writeError renders err in the error envelope. Internal causes are logged
// and replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apierrors.StatusCode(err)
	if apierrors.KindOf(err) == apierrors.KindInternal {
		middleware.Log(r.Context()).Errorw("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{
		Status:        status,
		IsSuccess:     false,
		ErrorMessages: apierrors.Message(err),
	})
}
