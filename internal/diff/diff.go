// Package diff computes the difference between a local and a remote snapshot
// of the same record collection. It is a pure function over already-fetched
// data: fetch failures are the caller's concern.
package diff

import (
	"sort"
	"time"

	"github.com/finledger/syncengine/internal/models"
)

// DefaultTieTolerance is how far apart two modification timestamps may lie
// and still be considered indistinguishable. Remote backends commonly round
// timestamps to coarse resolutions, so near-ties cannot be ordered safely.
const DefaultTieTolerance = 2 * time.Second

// Options tune the classification.
type Options struct {
	// TieTolerance is the maximum timestamp distance treated as a tie.
	// Zero means only exactly equal timestamps tie.
	TieTolerance time.Duration
}

// Result partitions the union of both snapshots into three disjoint sets.
// Records that are byte-identical on both sides appear in none of them.
type Result struct {
	ToUpload   []*models.SyncableRecord // local-only or local-newer, local version
	ToDownload []*models.SyncableRecord // remote-only or remote-newer, remote version
	Conflicts  []models.Conflict
}

// Diff classifies every record id present in either snapshot.
//
// For ids on both sides the modification timestamps decide: strictly newer
// local wins an upload, strictly newer remote wins a download, and
// indistinguishable ordering with differing payloads is a conflict. Ids on
// one side only are uploads (new local record) or downloads (created
// elsewhere). Tombstones flow through the same classification, so deletions
// propagate as regular writes.
//
// Output is sorted by record id, making the result independent of snapshot
// ordering.
func Diff(local, remote models.Snapshot, opts Options) Result {
	localIdx := local.ByID()
	remoteIdx := remote.ByID()

	var res Result

	for id, lr := range localIdx {
		rr, ok := remoteIdx[id]
		if !ok {
			res.ToUpload = append(res.ToUpload, lr)
			continue
		}

		switch {
		case lr.PayloadEqual(rr) && lr.ModifiedAt.Equal(rr.ModifiedAt):
			// Converged on both sides, nothing to do.
		case tied(lr, rr, opts.TieTolerance):
			if lr.PayloadEqual(rr) {
				// Same content, timestamps within tolerance: treat as
				// converged rather than manufacturing a conflict.
				continue
			}
			res.Conflicts = append(res.Conflicts, makeConflict(lr, rr))
		case lr.NewerThan(rr):
			res.ToUpload = append(res.ToUpload, lr)
		default:
			res.ToDownload = append(res.ToDownload, rr)
		}
	}

	for id, rr := range remoteIdx {
		if _, ok := localIdx[id]; !ok {
			res.ToDownload = append(res.ToDownload, rr)
		}
	}

	sortRecords(res.ToUpload)
	sortRecords(res.ToDownload)
	sort.Slice(res.Conflicts, func(i, j int) bool {
		return res.Conflicts[i].ID() < res.Conflicts[j].ID()
	})

	return res
}

// tied reports whether the two timestamps are too close to order safely.
func tied(l, r *models.SyncableRecord, tolerance time.Duration) bool {
	d := l.ModifiedAt.Sub(r.ModifiedAt)
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

// makeConflict builds the conflict descriptor for two unorderable records.
// Exactly equal timestamps give a modification tie; near-ties allow a
// field-by-field comparison naming the disagreeing fields.
func makeConflict(lr, rr *models.SyncableRecord) models.Conflict {
	c := models.Conflict{
		Local:  lr,
		Remote: rr,
		Kind:   models.ConflictModificationTie,
	}
	if !lr.ModifiedAt.Equal(rr.ModifiedAt) {
		c.Kind = models.ConflictFields
		c.Fields = disagreeingFields(lr, rr)
	}
	return c
}

// disagreeingFields returns the sorted names of top-level payload fields
// whose values differ between the two records.
func disagreeingFields(lr, rr *models.SyncableRecord) []string {
	lf := lr.Fields()
	rf := rr.Fields()

	seen := make(map[string]struct{})
	var fields []string

	for name, lv := range lf {
		rv, ok := rf[name]
		if !ok || string(lv) != string(rv) {
			fields = append(fields, name)
			seen[name] = struct{}{}
		}
	}
	for name := range rf {
		if _, ok := lf[name]; !ok {
			if _, dup := seen[name]; !dup {
				fields = append(fields, name)
			}
		}
	}

	sort.Strings(fields)
	return fields
}

func sortRecords(recs []*models.SyncableRecord) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}
