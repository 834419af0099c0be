package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(modifiedAt time.Time, payload string) *SyncableRecord {
	return &SyncableRecord{
		ID:         uuid.New().String(),
		Kind:       KindCalculation,
		Payload:    json.RawMessage(payload),
		CreatedAt:  modifiedAt.Add(-time.Hour),
		ModifiedAt: modifiedAt,
	}
}

func TestValidate(t *testing.T) {
	now := time.Now()

	rec := testRecord(now, `{"rate":4.5}`)
	require.NoError(t, rec.Validate())

	bad := testRecord(now, `{}`)
	bad.ID = "not-a-uuid"
	assert.Error(t, bad.Validate())

	zero := testRecord(now, `{}`)
	zero.ModifiedAt = time.Time{}
	assert.Error(t, zero.Validate())
}

func TestNewerThan(t *testing.T) {
	now := time.Now()
	older := testRecord(now, `{}`)
	newer := testRecord(now.Add(time.Minute), `{}`)

	assert.True(t, newer.NewerThan(older))
	assert.False(t, older.NewerThan(newer))
	assert.False(t, older.NewerThan(older))
}

func TestPayloadEqual(t *testing.T) {
	now := time.Now()

	a := testRecord(now, `{"amount":100}`)
	b := a.Clone()
	assert.True(t, a.PayloadEqual(b))

	b.Payload = json.RawMessage(`{"amount":200}`)
	assert.False(t, a.PayloadEqual(b))

	// A tombstone differs from a live record even with identical payloads.
	c := a.Clone()
	c.Deleted = true
	assert.False(t, a.PayloadEqual(c))
}

func TestChecksum(t *testing.T) {
	now := time.Now()

	a := testRecord(now, `{"amount":100}`)
	b := testRecord(now, `{"amount":100}`)
	c := testRecord(now, `{"amount":200}`)

	assert.Equal(t, a.Checksum(), b.Checksum())
	assert.NotEqual(t, a.Checksum(), c.Checksum())
}

func TestClone_Independent(t *testing.T) {
	rec := testRecord(time.Now(), `{"notes":"original"}`)
	clone := rec.Clone()

	require.Equal(t, rec, clone)

	clone.Payload[2] = 'X'
	assert.NotEqual(t, rec.Payload, clone.Payload)
}

func TestFields(t *testing.T) {
	rec := testRecord(time.Now(), `{"amount":100,"notes":"hello"}`)
	fields := rec.Fields()

	require.Len(t, fields, 2)
	assert.JSONEq(t, `100`, string(fields["amount"]))
	assert.JSONEq(t, `"hello"`, string(fields["notes"]))

	// Non-object payloads degrade to no fields instead of failing.
	scalar := testRecord(time.Now(), `42`)
	assert.Empty(t, scalar.Fields())

	empty := testRecord(time.Now(), ``)
	assert.Empty(t, empty.Fields())
}

func TestSnapshotByID(t *testing.T) {
	now := time.Now()
	a := testRecord(now, `{}`)
	b := testRecord(now, `{}`)

	snap := Snapshot{a, b}
	index := snap.ByID()

	require.Len(t, index, 2)
	assert.Same(t, a, index[a.ID])
	assert.Same(t, b, index[b.ID])

	// Duplicate IDs keep the newest entry regardless of snapshot order.
	newer := a.Clone()
	newer.ModifiedAt = now.Add(time.Minute)

	assert.Same(t, newer, Snapshot{a, newer}.ByID()[a.ID])
	assert.Same(t, newer, Snapshot{newer, a}.ByID()[a.ID])
}
