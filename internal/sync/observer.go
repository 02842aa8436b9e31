package sync

import (
	"context"
	"time"
)

// Scope says what an Event is about.
type Scope string

const (
	ScopeRun    Scope = "run"
	ScopeFolder Scope = "folder"
	ScopeItem   Scope = "item"
)

// Run phases reported as ScopeRun events.
const (
	PhaseNormalize = "normalize"
	PhaseDirectory = "directory"
	PhaseReconcile = "reconcile"
	PhaseImport    = "import"
	PhaseDone      = "done"
)

// Event describes one step of a migration pass.
type Event struct {
	RunID string
	Scope Scope
	Kind  Kind
	// Folder is the source folder the event belongs to.
	Folder string
	// Name identifies the folder or item; for ScopeRun it is the phase.
	Name    string
	Outcome Outcome
	Err     error
	At      time.Time
}

// Observer receives events as a pass progresses. Observers are called
// synchronously from the pass and must not fail it.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// Observers fans an event out to several observers in order.
type Observers []Observer

func (obs Observers) Observe(ctx context.Context, ev Event) {
	for _, o := range obs {
		if o != nil {
			o.Observe(ctx, ev)
		}
	}
}

type nopObserver struct{}

func (nopObserver) Observe(context.Context, Event) {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
