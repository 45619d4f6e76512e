package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgelab/jobmill/internal/server/handlers"
	"github.com/forgelab/jobmill/pkg/jobstore"
)

func newTestServer(t *testing.T) (*Server, *jobstore.Store) {
	t.Helper()
	ctx := context.Background()

	db, err := jobstore.Open(ctx, jobstore.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, jobstore.Migrate(ctx, db))

	store := jobstore.NewStore(db)
	return New(Options{Host: "127.0.0.1", Port: 0, Store: store}), store
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handlers.ErrorResponse {
	t.Helper()
	var body handlers.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestUnknownPathReturnsJSONError(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Error.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, rec).Error.Code)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestListJobs(t *testing.T) {
	ctx := context.Background()
	srv, store := newTestServer(t)

	_, err := store.Insert(ctx, &jobstore.Record{
		Name: "one", Project: "default", JobType: "script",
		Status: "finished", RunMode: "modal",
	})
	require.NoError(t, err)
	_, err = store.Insert(ctx, &jobstore.Record{
		Name: "two", Project: "default", JobType: "script",
		Status: "running", RunMode: "modal",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var recs []jobstore.Record
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&recs))
	assert.Len(t, recs, 2)

	// Status filter.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs?status=running", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	recs = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "two", recs[0].Name)
}

func TestGetJob(t *testing.T) {
	ctx := context.Background()
	srv, store := newTestServer(t)

	id, err := store.Insert(ctx, &jobstore.Record{
		Name: "solo", Project: "default", JobType: "script",
		Status: "finished", RunMode: "modal",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/1", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got jobstore.Record
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "solo", got.Name)
}

func TestGetJobErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/999", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Error.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs/abc", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ID", decodeError(t, rec).Error.Code)
}
