package jobs

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJobsRouter() http.Handler {
	r := chi.NewRouter()
	NewHandler(nil, nil, nil).MountRoutes(r)
	return r
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	rec := httptest.NewRecorder()
	newJobsRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}

func TestJobsEnqueueValidatesBeforeQueue(t *testing.T) {
	router := newJobsRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/snapshots-rebuild?as_of=2024-13-01", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/gl-integrity", strings.NewReader(`{"since":"01/01/2024"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/gl-integrity", strings.NewReader(`{not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/snapshots-rebuild?as_of=2024-03-31", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
