package natsjs

import (
	"context"
	"errors"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Martian-dev/pst-migrate/internal/eventstore/sqlite"
	"github.com/Martian-dev/pst-migrate/internal/sync"
)

type recordingSender struct {
	mu   gosync.Mutex
	sent []string
	fail map[string]bool
}

func (r *recordingSender) Publish(subject string, payload []byte, msgID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[msgID] {
		return errors.New("nats: no responders available for request")
	}
	r.sent = append(r.sent, subject)
	return nil
}

func (r *recordingSender) subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func journalWithEvents(t *testing.T, n int) *sqlite.Store {
	t.Helper()
	ctx := context.Background()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "j.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	s.Outbox = Address

	require.NoError(t, s.BeginRun(ctx, "r", "src", "mbx"))
	for i := 0; i < n; i++ {
		s.Observe(ctx, sync.Event{RunID: "r", Scope: sync.ScopeItem, Kind: sync.KindMail, Name: "m", Outcome: sync.OutcomeCreated})
	}
	return s
}

func TestFlushPublishesEverything(t *testing.T) {
	ctx := context.Background()
	store := journalWithEvents(t, 5)
	sender := &recordingSender{}

	d := NewDispatcher(store, sender)
	d.BatchSize = 2
	require.NoError(t, d.Flush(ctx))

	assert.Len(t, sender.subjects(), 5)
	n, err := store.PendingOutbox(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFlushDefersFailedMessages(t *testing.T) {
	ctx := context.Background()
	store := journalWithEvents(t, 3)
	sender := &recordingSender{fail: map[string]bool{"r|2": true}}

	d := NewDispatcher(store, sender)
	require.NoError(t, d.Flush(ctx))

	assert.Len(t, sender.subjects(), 2)
	n, err := store.PendingOutbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunStopsOnCancel(t *testing.T) {
	store := journalWithEvents(t, 1)
	sender := &recordingSender{}

	d := NewDispatcher(store, sender)
	d.Idle = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(sender.subjects()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
