package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatisticsMergeKeepsBalance(t *testing.T) {
	var a, b Statistics
	a.Record(KindMail, OutcomeCreated)
	a.Record(KindMail, OutcomeErrored)
	b.Record(KindMail, OutcomeExisting)
	b.Record(KindCalendar, OutcomeCreated)

	a.Merge(b)
	assert.Equal(t, Counters{Total: 3, Created: 1, SkippedExisting: 1, ErroredOut: 1}, a.Mail)
	assert.Equal(t, Counters{Total: 1, Created: 1}, a.Calendar)
	assert.True(t, a.Balanced())

	a.Contact.Total++
	assert.False(t, a.Balanced())
}

func TestStatisticsSummary(t *testing.T) {
	var s Statistics
	s.Record(KindContact, OutcomeExisting)

	out := s.Summary("Folder statistics")
	assert.Contains(t, out, "Folder statistics:\n  Total:\n    mail     0\n    contact  1\n")
	assert.Contains(t, out, "  Skipped (already exist):\n    mail     0\n    contact  1\n    calendar 0\n")
}

func TestOptionsDefaults(t *testing.T) {
	opts := DefaultOptions()
	assert.True(t, opts.Excluded("Deleted Items"))
	assert.True(t, opts.Excluded("{6F2B1A3C-1111-2222-3333-444455556666}"))
	assert.False(t, opts.Excluded("Inbox"))
	assert.True(t, opts.SupportsItem("IPM.Note.SMIME"))
	assert.False(t, opts.SupportsItem("IPM.Task"))
	assert.True(t, opts.IsDefaultContainer(KindContact, "kontakte"))
	assert.False(t, opts.IsDefaultContainer(KindMail, "Inbox"))
}
