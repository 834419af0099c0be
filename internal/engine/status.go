package engine

import (
	"time"

	"github.com/finledger/syncengine/internal/models"
)

// State is the coarse phase of the engine.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Status is the process-wide sync state. It is owned exclusively by the
// Coordinator; every other component reports outcomes to the Coordinator
// and never mutates it directly.
type Status struct {
	State       State
	LastSuccess time.Time // set while State == StateSuccess
	Err         error     // set while State == StateError
}

// Observer receives state published by the Coordinator. Unset callbacks are
// skipped. Callbacks run on engine goroutines and should hand off long
// work.
type Observer struct {
	OnStatus    func(Status)
	OnProgress  func(progress float64)
	OnConflicts func(pending []models.Conflict)
}
