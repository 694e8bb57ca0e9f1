package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func TestRespondErrorWritesProblemDocument(t *testing.T) {
	cases := []struct {
		err    error
		status int
		title  string
	}{
		{shared.NotFound("account", 9), http.StatusNotFound, "Not Found"},
		{&shared.UnbalancedEntryError{}, http.StatusUnprocessableEntity, "Unbalanced Entry"},
		{shared.Invalid("amount", "must be positive"), http.StatusBadRequest, "Validation Failed"},
		{&shared.ConcurrencyConflictError{Resource: "journal entry"}, http.StatusConflict, "Conflict"},
		{errors.New("db down"), http.StatusInternalServerError, "Internal Error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)

		require.Equal(t, tc.status, rec.Code, tc.title)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		var doc ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
		assert.Equal(t, tc.title, doc.Title)
		assert.Equal(t, tc.status, doc.Status)
		assert.Equal(t, "about:blank", doc.Type)
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("password=hunter2"))
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestDecodeJSONSingleDocument(t *testing.T) {
	var target struct {
		Amount string `json:"amount"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"10.00"}`+"\n"))
	require.NoError(t, DecodeJSON(req, &target))
	assert.Equal(t, "10.00", target.Amount)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"1"} {"amount":"2"}`))
	assert.Error(t, DecodeJSON(req, &target))
}

func TestDecodeJSONRejectsOversizedBody(t *testing.T) {
	body := `{"amount":"` + strings.Repeat("9", MaxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var target map[string]string
	err := DecodeJSON(req, &target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}
