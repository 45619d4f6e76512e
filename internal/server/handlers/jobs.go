package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/forgelab/jobmill/pkg/jobstore"
)

// JobsHandler serves job records from the shared store.
type JobsHandler struct {
	Store *jobstore.Store
	Log   *zap.Logger
}

// List returns all job records, newest first. An optional ?status=
// filter restricts the result to one or more comma-free status values
// (repeat the parameter to combine).
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		recs []jobstore.Record
		err  error
	)
	if statuses := r.URL.Query()["status"]; len(statuses) > 0 {
		recs, err = h.Store.ListByStatus(r.Context(), statuses...)
	} else {
		recs, err = h.Store.List(r.Context())
	}
	if err != nil {
		h.Log.Error("list jobs failed", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to list jobs")
		return
	}
	if recs == nil {
		recs = []jobstore.Record{}
	}
	WriteJSON(w, http.StatusOK, recs)
}

// Get returns one job record by id.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_ID", "job id must be an integer")
		return
	}

	rec, err := h.Store.Get(r.Context(), id)
	if errors.Is(err, jobstore.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "no such job")
		return
	}
	if err != nil {
		h.Log.Error("get job failed", zap.Int64("job_id", id), zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to load job")
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}
