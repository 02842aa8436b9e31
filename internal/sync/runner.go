package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Martian-dev/pst-migrate/internal/archive"
)

// Runner orchestrates one full migration pass of an archive into a destination mailbox.
type Runner struct {
	// RunID identifies the pass in events. A random one is assigned when empty.
	RunID       string
	Archive     archive.Archive
	Destination Destination
	Options     Options
	Observer    Observer
}

// Report summarizes a finished pass.
type Report struct {
	RunID      string     `json:"run_id"`
	Folders    Statistics `json:"folders"`
	Items      Statistics `json:"items"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// Run normalizes the source tree, loads the destination directory, creates
// missing folders and imports every item. Failing to read the source tree or
// to enumerate the destination aborts the pass; everything else is counted
// and the pass continues.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	observer := observerOrNop(r.Observer)
	report := &Report{RunID: r.RunID, StartedAt: time.Now()}
	logger := log.WithField("run", r.RunID)

	phase := func(name string, err error) {
		observer.Observe(ctx, Event{RunID: r.RunID, Scope: ScopeRun, Name: name, Err: err, At: time.Now()})
	}
	fail := func(err error) (*Report, error) {
		report.FinishedAt = time.Now()
		phase(PhaseDone, err)
		return report, err
	}

	phase(PhaseNormalize, nil)
	root := r.Archive.Root()
	folders, err := Normalize(root, r.Options)
	if err != nil {
		return fail(fmt.Errorf("read source folders: %w", err))
	}
	logger.WithField("folders", len(folders)).Info("normalized source tree")

	phase(PhaseDirectory, nil)
	dir, err := LoadDirectory(ctx, r.Destination)
	if err != nil {
		return fail(fmt.Errorf("load destination folders: %w", err))
	}
	logger.WithFields(log.Fields{
		"mail_folders":    len(dir.MailFolders),
		"contact_folders": len(dir.ContactFolders),
		"calendars":       len(dir.Calendars),
	}).Info("loaded destination directory")

	phase(PhaseReconcile, nil)
	reconciler := NewReconciler(r.Destination, dir, r.Options, observer)
	reconciler.runID = r.RunID
	report.Folders = reconciler.Reconcile(ctx, folders)
	logger.Info(report.Folders.Summary("Folder statistics"))

	phase(PhaseImport, nil)
	walker := NewWalker(NewChecker(r.Destination, r.Options), dir, r.Options, observer)
	walker.runID = r.RunID
	report.Items, err = walker.Walk(ctx, root)
	if err != nil {
		return fail(fmt.Errorf("import items: %w", err))
	}
	logger.Info(report.Items.Summary("Item statistics"))

	report.FinishedAt = time.Now()
	phase(PhaseDone, nil)
	return report, nil
}
