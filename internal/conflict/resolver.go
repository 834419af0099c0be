// Package conflict applies a resolution strategy to a conflict detected by
// the difference resolver and produces the record plus the store writes
// needed to converge both sides.
package conflict

import (
	"encoding/json"
	"fmt"

	"github.com/finledger/syncengine/internal/models"
)

// Strategy selects how a conflict is resolved.
type Strategy string

const (
	// UseLocal keeps the local version and schedules a remote write.
	UseLocal Strategy = "use_local"

	// UseRemote keeps the remote version and schedules a local write.
	UseRemote Strategy = "use_remote"

	// Merge reconciles field by field and writes the result to both
	// stores. Merge is not idempotent without the write-back.
	Merge Strategy = "merge"

	// Defer produces no result; the conflict is surfaced for a human
	// decision and re-enters the conflict set on the next cycle.
	Defer Strategy = "defer"
)

// ParseStrategy maps a configuration string onto a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case UseLocal, UseRemote, Merge, Defer:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown conflict strategy %q", s)
}

// Resolution is the outcome of resolving one conflict. Deferred resolutions
// carry no record and no writes.
type Resolution struct {
	Record      *models.SyncableRecord
	WriteLocal  bool
	WriteRemote bool
	Deferred    bool
}

// Resolve applies the strategy to the conflict. Resolution is deterministic
// given the same strategy and the same two input records, so re-applying a
// resolution after a failed write converges to the same state.
func Resolve(c models.Conflict, strategy Strategy) (Resolution, error) {
	switch strategy {
	case UseLocal:
		return Resolution{Record: c.Local.Clone(), WriteRemote: true}, nil
	case UseRemote:
		return Resolution{Record: c.Remote.Clone(), WriteLocal: true}, nil
	case Merge:
		merged, err := mergeRecords(c.Local, c.Remote)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Record: merged, WriteLocal: true, WriteRemote: true}, nil
	case Defer:
		return Resolution{Deferred: true}, nil
	}
	return Resolution{}, fmt.Errorf("unknown conflict strategy %q", strategy)
}

// mergeRecords reconciles two versions of one record field by field. Each
// field takes the value from whichever side was modified later; on a
// timestamp tie the non-null, non-empty value wins, and when both sides are
// non-null the local value wins (documented, arbitrary, stable tie-break).
// The merged ModifiedAt is the max of both sides, CreatedAt the min.
func mergeRecords(local, remote *models.SyncableRecord) (*models.SyncableRecord, error) {
	if local.ID != remote.ID {
		return nil, fmt.Errorf("cannot merge records with different ids: %s vs %s", local.ID, remote.ID)
	}

	// On a timestamp tie newer stays local, which gives ties the
	// documented local preference further down.
	newer, older := local, remote
	if remote.NewerThan(local) {
		newer, older = remote, local
	}

	// newer.ModifiedAt is already max(local, remote) by construction.
	merged := newer.Clone()
	if !older.CreatedAt.IsZero() && (merged.CreatedAt.IsZero() || older.CreatedAt.Before(merged.CreatedAt)) {
		merged.CreatedAt = older.CreatedAt
	}

	// A tombstone on either side survives the merge; resurrecting a
	// deleted record requires an explicit new write, not a merge.
	merged.Deleted = local.Deleted || remote.Deleted

	payload, err := mergePayloads(newer, older)
	if err != nil {
		return nil, err
	}
	merged.Payload = payload

	return merged, nil
}

// mergePayloads merges two JSON object payloads. newer's fields win unless
// the timestamps tie, in which case empty values lose and the newer (local,
// by construction of mergeRecords) side wins when both are set.
func mergePayloads(newer, older *models.SyncableRecord) (json.RawMessage, error) {
	nf := newer.Fields()
	of := older.Fields()

	if len(nf) == 0 && len(of) == 0 {
		// Non-object payloads cannot be merged field-wise; the newer
		// side wins wholesale.
		return append(json.RawMessage(nil), newer.Payload...), nil
	}

	tie := newer.ModifiedAt.Equal(older.ModifiedAt)
	merged := make(map[string]json.RawMessage, len(nf)+len(of))

	for name, v := range of {
		merged[name] = v
	}
	for name, nv := range nf {
		ov, present := of[name]
		if !tie || !present {
			// Distinguishable ordering: the later write wins the
			// field, including an explicit clear.
			merged[name] = nv
			continue
		}

		// Tie on this field: prefer the non-empty value; both set
		// prefers local (newer is local on ties).
		if emptyValue(nv) && !emptyValue(ov) {
			merged[name] = ov
		} else {
			merged[name] = nv
		}
	}

	// encoding/json sorts map keys, so the merged payload bytes are
	// deterministic for a given field set.
	payload, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged payload: %w", err)
	}
	return payload, nil
}

// emptyValue reports whether a JSON value is null, an empty string, or an
// empty container.
func emptyValue(v json.RawMessage) bool {
	switch string(v) {
	case "", "null", `""`, "{}", "[]":
		return true
	}
	return false
}
