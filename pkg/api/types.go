// Package api defines the wire types exchanged with the remote
// synchronization backend.
package api

import (
	"encoding/json"
	"time"
)

// Record is the wire envelope for one synchronized record.
type Record struct {
	CreatedAt  time.Time       `json:"created_at"`
	ModifiedAt time.Time       `json:"modified_at"`
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Deleted    bool            `json:"deleted"`
}

// FetchResponse is the backend's answer to a full fetch.
type FetchResponse struct {
	Records []Record `json:"records"`
}

// UpsertRequest carries one record to create or replace on the backend.
type UpsertRequest struct {
	Record Record `json:"record"`
}

// UpsertResponse acknowledges an upsert.
type UpsertResponse struct {
	ID         string    `json:"id"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ErrorResponse is the backend's error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
