package natsjs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Martian-dev/pst-migrate/internal/eventstore/sqlite"
	"github.com/Martian-dev/pst-migrate/internal/sync"
)

func TestEventSubject(t *testing.T) {
	tests := []struct {
		name string
		rec  sqlite.EventRecord
		want string
	}{
		{
			name: "run phase",
			rec:  sqlite.EventRecord{RunID: "run-1", Scope: "run", Name: "reconcile"},
			want: "migration.run-1.run.reconcile",
		},
		{
			name: "item outcome",
			rec:  sqlite.EventRecord{RunID: "run-1", Scope: "item", Name: "Quarterly numbers", Outcome: "created"},
			want: "migration.run-1.item.created",
		},
		{
			name: "folder without outcome",
			rec:  sqlite.EventRecord{RunID: "run-1", Scope: "folder", Name: "Inbox"},
			want: "migration.run-1.folder._",
		},
		{
			name: "wildcards in run id",
			rec:  sqlite.EventRecord{RunID: "a.b*c>", Scope: "item", Outcome: "errored"},
			want: "migration.a_b_c_.item.errored",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EventSubject(tt.rec))
		})
	}
}

func TestEventMsgID(t *testing.T) {
	assert.Equal(t, "run-1|42", EventMsgID(sqlite.EventRecord{RunID: "run-1", Seq: 42}))
}

func TestStreamCoversEventSubjects(t *testing.T) {
	cfg := streamConfig()
	assert.Equal(t, StreamName, cfg.Name)
	assert.Equal(t, []string{"migration.>"}, cfg.Subjects)
	assert.Equal(t, 10*time.Minute, cfg.Duplicates)
}

func TestJournalQueuesAddressedEvents(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "j.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	s.Outbox = Address

	require.NoError(t, s.BeginRun(ctx, "run-1", "src", "mbx"))
	s.Observe(ctx, sync.Event{RunID: "run-1", Scope: sync.ScopeRun, Name: sync.PhaseReconcile})
	s.Observe(ctx, sync.Event{RunID: "run-1", Scope: sync.ScopeItem, Kind: sync.KindCalendar, Folder: "Calendar", Name: "Standup", Outcome: sync.OutcomeCreated})

	msgs, err := s.DequeueOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "migration.run-1.run.reconcile", msgs[0].Subject)
	assert.Equal(t, "run-1|1", msgs[0].MsgID)
	assert.Equal(t, "migration.run-1.item.created", msgs[1].Subject)
	assert.Equal(t, "run-1|2", msgs[1].MsgID)
}
