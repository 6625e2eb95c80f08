package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiForms/internal/apierrors"
)

func TestIfMatch(t *testing.T) {
	tests := map[string]string{
		"":             "",
		"*":            "",
		`"abc"`:        "abc",
		`W/"abc"`:      "abc",
		"abc":          "abc",
		`  "a-b-c"  `: "a-b-c",
	}
	for header, want := range tests {
		r := httptest.NewRequest(http.MethodPut, "/", nil)
		if header != "" {
			r.Header.Set("If-Match", header)
		}
		assert.Equal(t, want, ifMatch(r), "If-Match %q", header)
	}
}

func TestReadJSONRejectsOversizedBody(t *testing.T) {
	body := `{"title":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var v map[string]any
	err := readJSON(httptest.NewRecorder(), r, &v)
	assert.ErrorIs(t, err, apierrors.ErrInvalidBody)
}

func TestWriteErrorEnvelope(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{apierrors.ErrFormNotFound, http.StatusNotFound, "Form not found"},
		{apierrors.ErrStaleForm, http.StatusPreconditionFailed, apierrors.ErrStaleForm.Err},
		{errors.New("socket closed"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

		require.Equal(t, tt.status, rec.Code)
		var got errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, errorResponse{Status: tt.status, ErrorMessages: tt.msg}, got)
	}
}
