// Package handlers implements the HTTP surface of the record backend: the
// fetch/upsert record API the sync engine talks to, plus health and ping.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/finledger/syncengine/internal/models"
	"github.com/finledger/syncengine/internal/storage"
	"github.com/finledger/syncengine/pkg/api"
)

type contextKey string

// ClientIDKey holds the authenticated client id, set by the auth middleware.
const ClientIDKey contextKey = "client_id"

// GetClientID extracts the authenticated client id from the request context.
func GetClientID(ctx context.Context) (string, bool) {
	clientID, ok := ctx.Value(ClientIDKey).(string)
	return clientID, ok
}

// RecordStore is the persistence the handlers need; satisfied by
// storage.Store.
type RecordStore interface {
	LoadAll(ctx context.Context) (models.Snapshot, error)
	Get(ctx context.Context, id string) (*models.SyncableRecord, error)
	Save(ctx context.Context, record *models.SyncableRecord) error
}

// RecordsHandler serves the record synchronization API.
type RecordsHandler struct {
	logger *slog.Logger
	store  RecordStore
}

// NewRecordsHandler creates the records handler.
func NewRecordsHandler(logger *slog.Logger, store RecordStore) *RecordsHandler {
	return &RecordsHandler{
		logger: logger,
		store:  store,
	}
}

// HandleRecords serves GET /api/v1/records: the full record snapshot,
// tombstones included.
func (h *RecordsHandler) HandleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	clientID, _ := GetClientID(ctx)

	snapshot, err := h.store.LoadAll(ctx)
	if err != nil {
		h.logger.Error("failed to load records", "error", err, "client_id", clientID)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load records")
		return
	}

	resp := api.FetchResponse{Records: make([]api.Record, 0, len(snapshot))}
	for _, rec := range snapshot {
		resp.Records = append(resp.Records, recordToWire(rec))
	}

	writeJSON(w, http.StatusOK, resp, h.logger)
	h.logger.Info("records fetched", "client_id", clientID, "count", len(resp.Records))
}

// HandleRecord serves PUT /api/v1/records/{id}. Writes follow last-write-
// wins: an upsert older than the stored version is acknowledged but not
// applied, so retried uploads converge instead of reviving stale state.
func (h *RecordsHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/records/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", "missing record id")
		return
	}

	var req api.UpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode upsert request", "error", err)
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	rec := recordFromWire(req.Record)
	if rec.ID != id {
		writeError(w, http.StatusBadRequest, "bad_request", "record id does not match url")
		return
	}
	if err := rec.Validate(); err != nil {
		h.logger.Warn("rejecting invalid record", "record_id", id, "error", err)
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	ctx := r.Context()
	stored := rec

	existing, err := h.store.Get(ctx, id)
	switch {
	case err == nil && existing.NewerThan(rec):
		// Stale upsert: keep the newer stored version.
		stored = existing
		h.logger.Debug("ignoring stale upsert",
			"record_id", id,
			"incoming", rec.ModifiedAt,
			"stored", existing.ModifiedAt)
	case err == nil, errors.Is(err, storage.ErrRecordNotFound):
		if err := h.store.Save(ctx, rec); err != nil {
			h.logger.Error("failed to save record", "error", err, "record_id", id)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to save record")
			return
		}
	default:
		h.logger.Error("failed to read record", "error", err, "record_id", id)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read record")
		return
	}

	writeJSON(w, http.StatusOK, api.UpsertResponse{
		ID:         stored.ID,
		ModifiedAt: stored.ModifiedAt,
	}, h.logger)
}

// HandlePing serves GET and HEAD /api/v1/ping. Reaching it at all means the
// backend is up and the caller's token passed the auth middleware.
func (h *RecordsHandler) HandlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func recordToWire(rec *models.SyncableRecord) api.Record {
	return api.Record{
		ID:         rec.ID,
		Kind:       rec.Kind,
		Payload:    rec.Payload,
		Deleted:    rec.Deleted,
		CreatedAt:  rec.CreatedAt,
		ModifiedAt: rec.ModifiedAt,
	}
}

func recordFromWire(rec api.Record) *models.SyncableRecord {
	return &models.SyncableRecord{
		ID:         rec.ID,
		Kind:       rec.Kind,
		Payload:    rec.Payload,
		Deleted:    rec.Deleted,
		CreatedAt:  rec.CreatedAt,
		ModifiedAt: rec.ModifiedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{
		Error:   code,
		Message: message,
	})
}
