package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finledger/syncengine/internal/models"
	"github.com/finledger/syncengine/internal/storage"
	"github.com/finledger/syncengine/pkg/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRecord(id string, modified time.Time) *models.SyncableRecord {
	return &models.SyncableRecord{
		ID:         id,
		Kind:       models.KindCalculation,
		Payload:    []byte(`{"total":100}`),
		CreatedAt:  modified.Add(-time.Hour),
		ModifiedAt: modified,
	}
}

func TestHandleRecordsReturnsSnapshot(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &storage.StoreMock{
		LoadAllFunc: func(ctx context.Context) (models.Snapshot, error) {
			return models.Snapshot{
				testRecord("rec-a", base),
				testRecord("rec-b", base.Add(time.Minute)),
			}, nil
		},
	}

	h := NewRecordsHandler(testLogger(), store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/records", nil)
	w := httptest.NewRecorder()
	h.HandleRecords(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp api.FetchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 2)
	assert.Equal(t, "rec-a", resp.Records[0].ID)
	assert.JSONEq(t, `{"total":100}`, string(resp.Records[0].Payload))
}

func TestHandleRecordsMethodNotAllowed(t *testing.T) {
	h := NewRecordsHandler(testLogger(), &storage.StoreMock{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", nil)
	w := httptest.NewRecorder()
	h.HandleRecords(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleRecordsStorageFailure(t *testing.T) {
	store := &storage.StoreMock{
		LoadAllFunc: func(ctx context.Context) (models.Snapshot, error) {
			return nil, assert.AnError
		},
	}
	h := NewRecordsHandler(testLogger(), store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/records", nil)
	w := httptest.NewRecorder()
	h.HandleRecords(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var errResp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "internal_error", errResp.Error)
}

func upsertRequest(t *testing.T, rec *models.SyncableRecord) *http.Request {
	t.Helper()

	body, err := json.Marshal(api.UpsertRequest{Record: api.Record{
		ID:         rec.ID,
		Kind:       rec.Kind,
		Payload:    rec.Payload,
		Deleted:    rec.Deleted,
		CreatedAt:  rec.CreatedAt,
		ModifiedAt: rec.ModifiedAt,
	}})
	require.NoError(t, err)

	return httptest.NewRequest(http.MethodPut, "/api/v1/records/"+rec.ID, bytes.NewReader(body))
}

func TestHandleRecordSavesNewRecord(t *testing.T) {
	rec := testRecord(uuid.NewString(), time.Now())

	store := &storage.StoreMock{
		GetFunc: func(ctx context.Context, id string) (*models.SyncableRecord, error) {
			return nil, storage.ErrRecordNotFound
		},
		SaveFunc: func(ctx context.Context, record *models.SyncableRecord) error {
			return nil
		},
	}
	h := NewRecordsHandler(testLogger(), store)

	w := httptest.NewRecorder()
	h.HandleRecord(w, upsertRequest(t, rec))

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, store.SaveCalls(), 1)
	assert.Equal(t, rec.ID, store.SaveCalls()[0].Record.ID)

	var resp api.UpsertResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, rec.ID, resp.ID)
	assert.True(t, resp.ModifiedAt.Equal(rec.ModifiedAt))
}

func TestHandleRecordIgnoresStaleUpsert(t *testing.T) {
	id := uuid.NewString()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	stale := testRecord(id, base)
	newer := testRecord(id, base.Add(time.Minute))

	store := &storage.StoreMock{
		GetFunc: func(ctx context.Context, reqID string) (*models.SyncableRecord, error) {
			return newer, nil
		},
	}
	h := NewRecordsHandler(testLogger(), store)

	w := httptest.NewRecorder()
	h.HandleRecord(w, upsertRequest(t, stale))

	// Acknowledged but not applied; response carries the stored version.
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, store.SaveCalls())

	var resp api.UpsertResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.ModifiedAt.Equal(newer.ModifiedAt))
}

func TestHandleRecordOverwritesOlderRecord(t *testing.T) {
	id := uuid.NewString()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	existing := testRecord(id, base)
	incoming := testRecord(id, base.Add(time.Minute))

	store := &storage.StoreMock{
		GetFunc: func(ctx context.Context, reqID string) (*models.SyncableRecord, error) {
			return existing, nil
		},
		SaveFunc: func(ctx context.Context, record *models.SyncableRecord) error {
			return nil
		},
	}
	h := NewRecordsHandler(testLogger(), store)

	w := httptest.NewRecorder()
	h.HandleRecord(w, upsertRequest(t, incoming))

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, store.SaveCalls(), 1)
}

func TestHandleRecordValidation(t *testing.T) {
	tests := []struct {
		name    string
		request func(t *testing.T) *http.Request
	}{
		{
			name: "id mismatch between url and body",
			request: func(t *testing.T) *http.Request {
				rec := testRecord(uuid.NewString(), time.Now())
				req := upsertRequest(t, rec)
				req.URL.Path = "/api/v1/records/" + uuid.NewString()
				return req
			},
		},
		{
			name: "invalid record id",
			request: func(t *testing.T) *http.Request {
				return upsertRequest(t, testRecord("not-a-uuid", time.Now()))
			},
		},
		{
			name: "malformed body",
			request: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPut, "/api/v1/records/"+uuid.NewString(),
					bytes.NewReader([]byte("{broken")))
			},
		},
		{
			name: "missing id in url",
			request: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPut, "/api/v1/records/", nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &storage.StoreMock{}
			h := NewRecordsHandler(testLogger(), store)

			w := httptest.NewRecorder()
			h.HandleRecord(w, tt.request(t))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, store.SaveCalls())
		})
	}
}

func TestHandlePing(t *testing.T) {
	h := NewRecordsHandler(testLogger(), &storage.StoreMock{})

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		req := httptest.NewRequest(method, "/api/v1/ping", nil)
		w := httptest.NewRecorder()
		h.HandlePing(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ping", nil)
	w := httptest.NewRecorder()
	h.HandlePing(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestGetClientID(t *testing.T) {
	ctx := context.WithValue(context.Background(), ClientIDKey, "client-1")

	id, ok := GetClientID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "client-1", id)

	_, ok = GetClientID(context.Background())
	assert.False(t, ok)
}
