package diff

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finledger/syncengine/internal/models"
)

var base = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func record(id string, modifiedAt time.Time, payload string) *models.SyncableRecord {
	return &models.SyncableRecord{
		ID:         id,
		Kind:       models.KindCalculation,
		Payload:    json.RawMessage(payload),
		CreatedAt:  base.Add(-24 * time.Hour),
		ModifiedAt: modifiedAt,
	}
}

func ids(recs []*models.SyncableRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func TestDiff_LocalNewerUploads(t *testing.T) {
	id := uuid.New().String()
	local := models.Snapshot{record(id, base.Add(time.Hour), `{"v":2}`)}
	remote := models.Snapshot{record(id, base, `{"v":1}`)}

	res := Diff(local, remote, Options{})

	require.Len(t, res.ToUpload, 1)
	assert.Equal(t, id, res.ToUpload[0].ID)
	assert.JSONEq(t, `{"v":2}`, string(res.ToUpload[0].Payload))
	assert.Empty(t, res.ToDownload)
	assert.Empty(t, res.Conflicts)
}

func TestDiff_RemoteNewerDownloads(t *testing.T) {
	id := uuid.New().String()
	local := models.Snapshot{record(id, base, `{"v":1}`)}
	remote := models.Snapshot{record(id, base.Add(time.Hour), `{"v":2}`)}

	res := Diff(local, remote, Options{})

	require.Len(t, res.ToDownload, 1)
	assert.JSONEq(t, `{"v":2}`, string(res.ToDownload[0].Payload))
	assert.Empty(t, res.ToUpload)
}

func TestDiff_EqualTimestampDifferingPayloadConflicts(t *testing.T) {
	id := uuid.New().String()
	local := models.Snapshot{record(id, base, `{"v":1}`)}
	remote := models.Snapshot{record(id, base, `{"v":2}`)}

	res := Diff(local, remote, Options{})

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, models.ConflictModificationTie, res.Conflicts[0].Kind)
	assert.Empty(t, res.Conflicts[0].Fields)
	assert.Empty(t, res.ToUpload)
	assert.Empty(t, res.ToDownload)
}

func TestDiff_NearTieYieldsFieldConflict(t *testing.T) {
	id := uuid.New().String()
	local := models.Snapshot{record(id, base.Add(time.Second), `{"amount":100,"notes":"a"}`)}
	remote := models.Snapshot{record(id, base, `{"amount":100,"notes":"b","tag":"x"}`)}

	res := Diff(local, remote, Options{TieTolerance: DefaultTieTolerance})

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, models.ConflictFields, res.Conflicts[0].Kind)
	assert.Equal(t, []string{"notes", "tag"}, res.Conflicts[0].Fields)
}

func TestDiff_IdenticalRecordsAreNoop(t *testing.T) {
	id := uuid.New().String()
	local := models.Snapshot{record(id, base, `{"v":1}`)}
	remote := models.Snapshot{record(id, base, `{"v":1}`)}

	res := Diff(local, remote, Options{})

	assert.Empty(t, res.ToUpload)
	assert.Empty(t, res.ToDownload)
	assert.Empty(t, res.Conflicts)
}

func TestDiff_OneSidedRecords(t *testing.T) {
	localOnly := record(uuid.New().String(), base, `{"v":1}`)
	remoteOnly := record(uuid.New().String(), base, `{"v":2}`)

	res := Diff(models.Snapshot{localOnly}, models.Snapshot{remoteOnly}, Options{})

	require.Len(t, res.ToUpload, 1)
	require.Len(t, res.ToDownload, 1)
	assert.Equal(t, localOnly.ID, res.ToUpload[0].ID)
	assert.Equal(t, remoteOnly.ID, res.ToDownload[0].ID)
}

func TestDiff_TombstonePropagates(t *testing.T) {
	id := uuid.New().String()
	dead := record(id, base.Add(time.Hour), `{"v":1}`)
	dead.Deleted = true

	res := Diff(models.Snapshot{dead}, models.Snapshot{record(id, base, `{"v":1}`)}, Options{})

	require.Len(t, res.ToUpload, 1)
	assert.True(t, res.ToUpload[0].Deleted)
}

// Every id in the union of both snapshots lands in exactly one of
// {upload, download, conflict, neither}.
func TestDiff_Completeness(t *testing.T) {
	var local, remote models.Snapshot
	union := make(map[string]struct{})

	add := func(snap *models.Snapshot, rec *models.SyncableRecord) {
		*snap = append(*snap, rec)
		union[rec.ID] = struct{}{}
	}

	for i := 0; i < 20; i++ {
		id := uuid.New().String()
		switch i % 5 {
		case 0: // local newer
			add(&local, record(id, base.Add(time.Hour), `{"v":2}`))
			add(&remote, record(id, base, `{"v":1}`))
		case 1: // remote newer
			add(&local, record(id, base, `{"v":1}`))
			add(&remote, record(id, base.Add(time.Hour), `{"v":2}`))
		case 2: // tie
			add(&local, record(id, base, `{"v":1}`))
			add(&remote, record(id, base, `{"v":2}`))
		case 3: // identical
			add(&local, record(id, base, `{"v":1}`))
			add(&remote, record(id, base, `{"v":1}`))
		case 4: // one-sided
			add(&local, record(id, base, `{"v":1}`))
		}
	}

	res := Diff(local, remote, Options{})

	classified := make(map[string]int)
	for _, r := range res.ToUpload {
		classified[r.ID]++
	}
	for _, r := range res.ToDownload {
		classified[r.ID]++
	}
	for _, c := range res.Conflicts {
		classified[c.ID()]++
	}

	for id, n := range classified {
		assert.Equal(t, 1, n, "id %s classified %d times", id, n)
	}
	for id := range classified {
		assert.Contains(t, union, id)
	}
	// 4 of every 5 ids are classified, the identical fifth is a no-op.
	assert.Len(t, classified, 16)
}

// The result must not depend on snapshot ordering.
func TestDiff_Deterministic(t *testing.T) {
	var local, remote models.Snapshot
	for i := 0; i < 10; i++ {
		id := uuid.New().String()
		local = append(local, record(id, base.Add(time.Duration(i)*time.Minute), `{"v":1}`))
		remote = append(remote, record(id, base.Add(time.Duration(9-i)*time.Minute), `{"v":2}`))
	}

	forward := Diff(local, remote, Options{})

	reversedLocal := make(models.Snapshot, len(local))
	reversedRemote := make(models.Snapshot, len(remote))
	for i := range local {
		reversedLocal[len(local)-1-i] = local[i]
		reversedRemote[len(remote)-1-i] = remote[i]
	}

	backward := Diff(reversedLocal, reversedRemote, Options{})

	assert.Equal(t, ids(forward.ToUpload), ids(backward.ToUpload))
	assert.Equal(t, ids(forward.ToDownload), ids(backward.ToDownload))
	assert.Equal(t, forward.Conflicts, backward.Conflicts)
}
