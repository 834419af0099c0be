package models

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// SyncableRecord is the unit of synchronization. Two records with the same ID
// represent the same logical entity across the local and remote stores; IDs
// are never reused after deletion.
type SyncableRecord struct {
	CreatedAt  time.Time       `json:"created_at"`  // CreatedAt is set once when the record is first written
	ModifiedAt time.Time       `json:"modified_at"` // ModifiedAt is bumped on every local or remote write
	ID         string          `json:"id"`          // ID is a stable UUID, immutable for the record's lifetime
	Kind       string          `json:"kind"`        // Kind of domain entity: "calculation", "project"
	Payload    json.RawMessage `json:"payload"`     // Payload is the opaque serialized domain entity
	Deleted    bool            `json:"deleted"`     // Deleted marks a tombstone (soft delete)
}

// Record kinds carried by the payload.
const (
	KindCalculation = "calculation"
	KindProject     = "project"
)

// Validate checks the structural invariants every record must satisfy before
// it is stored or sent over the wire.
func (r *SyncableRecord) Validate() error {
	if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("invalid record id %q: %w", r.ID, err)
	}
	if r.ModifiedAt.IsZero() {
		return fmt.Errorf("record %s has zero modified_at", r.ID)
	}
	return nil
}

// NewerThan reports whether r was modified strictly after other.
func (r *SyncableRecord) NewerThan(other *SyncableRecord) bool {
	return r.ModifiedAt.After(other.ModifiedAt)
}

// PayloadEqual reports whether two records carry byte-identical payloads and
// the same tombstone flag.
func (r *SyncableRecord) PayloadEqual(other *SyncableRecord) bool {
	return r.Deleted == other.Deleted && bytes.Equal(r.Payload, other.Payload)
}

// Checksum returns a short hex digest of the payload, used for logging and
// for cheap equality checks on already-fetched snapshots.
func (r *SyncableRecord) Checksum() string {
	sum := blake2b.Sum256(r.Payload)
	return hex.EncodeToString(sum[:8])
}

// Clone creates a deep copy of the record.
func (r *SyncableRecord) Clone() *SyncableRecord {
	payload := make(json.RawMessage, len(r.Payload))
	copy(payload, r.Payload)

	return &SyncableRecord{
		ID:         r.ID,
		Kind:       r.Kind,
		Payload:    payload,
		Deleted:    r.Deleted,
		CreatedAt:  r.CreatedAt,
		ModifiedAt: r.ModifiedAt,
	}
}

// Fields decodes the payload as a JSON object. Records whose payload is not
// an object (or is empty) yield an empty map; field-level merging falls back
// to whole-record semantics for those.
func (r *SyncableRecord) Fields() map[string]json.RawMessage {
	fields := make(map[string]json.RawMessage)
	if len(r.Payload) == 0 {
		return fields
	}
	if err := json.Unmarshal(r.Payload, &fields); err != nil {
		return map[string]json.RawMessage{}
	}
	return fields
}

// Snapshot is a point-in-time read of all records from one store. Order is
// irrelevant; it exists only for the duration of one sync cycle.
type Snapshot []*SyncableRecord

// ByID indexes the snapshot by record ID. Later duplicates of the same ID
// (which a well-behaved store never produces) keep the newest entry so the
// index stays deterministic.
func (s Snapshot) ByID() map[string]*SyncableRecord {
	index := make(map[string]*SyncableRecord, len(s))
	for _, rec := range s {
		if existing, ok := index[rec.ID]; ok && !rec.NewerThan(existing) {
			continue
		}
		index[rec.ID] = rec
	}
	return index
}

// ConflictKind classifies why two records could not be ordered by recency.
type ConflictKind string

const (
	// ConflictModificationTie means both sides carry exactly equal
	// modification timestamps with differing payloads; the field-level
	// origin of the divergence is unknown.
	ConflictModificationTie ConflictKind = "modification_tie"

	// ConflictFields means the timestamps differ but are too close to
	// trust for ordering, and specific payload fields disagree.
	ConflictFields ConflictKind = "field_conflict"
)

// Conflict pairs the two irreconcilable versions of one record. Conflicts
// live for a single sync cycle: they are recomputed fresh from current state
// each time, resolved or deferred, then discarded.
type Conflict struct {
	Local  *SyncableRecord `json:"local"`
	Remote *SyncableRecord `json:"remote"`
	Kind   ConflictKind    `json:"kind"`
	Fields []string        `json:"fields,omitempty"` // disagreeing fields, set for ConflictFields
}

// ID returns the id of the conflicted record.
func (c *Conflict) ID() string {
	return c.Local.ID
}
