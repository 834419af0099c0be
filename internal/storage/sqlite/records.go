package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/finledger/syncengine/internal/models"
	"github.com/finledger/syncengine/internal/storage"
)

// Timestamps are stored as unix nanoseconds so they round-trip without the
// precision loss of SQLite's datetime text formats.

// LoadAll returns every stored record, tombstones included.
func (s *Storage) LoadAll(ctx context.Context) (models.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, payload, deleted, created_at, modified_at FROM records`)
	if err != nil {
		return nil, &storage.StorageError{Op: "load_all", Err: err}
	}
	defer rows.Close()

	var snapshot models.Snapshot
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, &storage.StorageError{Op: "load_all", Err: err}
		}
		snapshot = append(snapshot, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &storage.StorageError{Op: "load_all", Err: err}
	}

	return snapshot, nil
}

// Get retrieves a record by ID.
func (s *Storage) Get(ctx context.Context, id string) (*models.SyncableRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, payload, deleted, created_at, modified_at FROM records WHERE id = ?`, id)

	rec, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, &storage.StorageError{Op: "get", ID: id, Err: err}
	}
	return rec, nil
}

// Save stores or replaces a record.
func (s *Storage) Save(ctx context.Context, record *models.SyncableRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (id, kind, payload, deleted, created_at, modified_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     kind = excluded.kind,
		     payload = excluded.payload,
		     deleted = excluded.deleted,
		     created_at = excluded.created_at,
		     modified_at = excluded.modified_at`,
		record.ID, record.Kind, []byte(record.Payload), record.Deleted,
		record.CreatedAt.UnixNano(), record.ModifiedAt.UnixNano())
	if err != nil {
		return &storage.StorageError{Op: "save", ID: record.ID, Err: err}
	}

	return nil
}

// Delete removes a record physically.
func (s *Storage) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return &storage.StorageError{Op: "delete", ID: id, Err: err}
	}
	return nil
}

func scanRecord(scan func(dest ...any) error) (*models.SyncableRecord, error) {
	var (
		rec        models.SyncableRecord
		payload    []byte
		createdAt  int64
		modifiedAt int64
	)

	if err := scan(&rec.ID, &rec.Kind, &payload, &rec.Deleted, &createdAt, &modifiedAt); err != nil {
		return nil, err
	}

	rec.Payload = json.RawMessage(payload)
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.ModifiedAt = time.Unix(0, modifiedAt).UTC()

	return &rec, nil
}
