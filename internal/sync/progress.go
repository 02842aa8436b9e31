package sync

import (
	"context"
	gosync "sync"
	"time"
)

// Snapshot is a point-in-time view of a pass.
type Snapshot struct {
	RunID     string     `json:"run_id,omitempty"`
	Phase     string     `json:"phase,omitempty"`
	Running   bool       `json:"running"`
	Folders   Statistics `json:"folders"`
	Items     Statistics `json:"items"`
	Current   string     `json:"current_folder,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	StartedAt time.Time  `json:"started_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at,omitempty"`
}

// Progress accumulates events into a Snapshot. It is safe for concurrent use
// so the status endpoint can read while a pass runs.
type Progress struct {
	mu   gosync.RWMutex
	snap Snapshot
}

// NewProgress creates an idle tracker.
func NewProgress() *Progress {
	return &Progress{}
}

// Observe implements Observer.
func (p *Progress) Observe(_ context.Context, ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.RunID != p.snap.RunID {
		p.snap = Snapshot{RunID: ev.RunID, StartedAt: ev.At}
	}
	p.snap.UpdatedAt = ev.At
	if ev.Err != nil {
		p.snap.LastError = ev.Err.Error()
	}

	switch ev.Scope {
	case ScopeRun:
		p.snap.Phase = ev.Name
		p.snap.Running = ev.Name != PhaseDone
	case ScopeFolder:
		p.snap.Folders.Record(ev.Kind, ev.Outcome)
	case ScopeItem:
		p.snap.Current = ev.Folder
		p.snap.Items.Record(ev.Kind, ev.Outcome)
	}
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}
