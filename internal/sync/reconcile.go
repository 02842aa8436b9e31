package sync

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Martian-dev/pst-migrate/internal/odata"
)

// Reconciler creates the source folders that are missing in the destination.
// It owns the Directory for the duration of a pass and adds every container it
// creates or adopts, so later folders can resolve them as parents.
type Reconciler struct {
	dest     Destination
	dir      *Directory
	opts     Options
	observer Observer
	runID    string
}

// NewReconciler creates a Reconciler working on dir.
func NewReconciler(dest Destination, dir *Directory, opts Options, observer Observer) *Reconciler {
	return &Reconciler{
		dest:     dest,
		dir:      dir,
		opts:     opts,
		observer: observerOrNop(observer),
	}
}

// Reconcile processes folders in order. Creation failures are counted and do
// not stop the pass.
func (r *Reconciler) Reconcile(ctx context.Context, folders []SourceFolder) Statistics {
	var stats Statistics
	excludedDepth := -1
	for _, f := range folders {
		if excludedDepth >= 0 {
			if f.Depth > excludedDepth {
				continue
			}
			excludedDepth = -1
		}
		if f.Excluded() {
			log.WithFields(log.Fields{"folder": f.Name, "reason": f.SkipReason}).Debug("excluding folder subtree")
			excludedDepth = f.Depth
			continue
		}
		if f.Skip {
			continue
		}
		stats.Merge(r.reconcileFolder(ctx, f))
	}
	return stats
}

func (r *Reconciler) reconcileFolder(ctx context.Context, f SourceFolder) Statistics {
	var stats Statistics
	kind, ok := KindOf(f.ContainerClass)
	if !ok {
		return stats
	}

	outcome, err := r.ensure(ctx, kind, f)
	stats.Record(kind, outcome)

	entry := log.WithFields(log.Fields{"kind": kind, "folder": f.Name, "outcome": outcome})
	if err != nil {
		entry.WithError(err).Error("failed to create folder")
	} else {
		entry.Debug("folder reconciled")
	}
	r.observer.Observe(ctx, Event{
		RunID:   r.runID,
		Scope:   ScopeFolder,
		Kind:    kind,
		Folder:  f.ParentName,
		Name:    f.Name,
		Outcome: outcome,
		Err:     err,
		At:      time.Now(),
	})
	return stats
}

func (r *Reconciler) ensure(ctx context.Context, kind Kind, f SourceFolder) (Outcome, error) {
	if r.opts.IsDefaultContainer(kind, f.Name) {
		log.WithFields(log.Fields{"kind": kind, "folder": f.Name}).Info("mapped to default container")
		return OutcomeExisting, nil
	}
	if kind == KindCalendar {
		return r.ensureCalendar(ctx, f)
	}
	if _, ok := r.dir.Folder(kind, f.Name); ok {
		return OutcomeExisting, nil
	}

	parent := r.resolveParent(kind, f)
	parentID := ""
	if parent != nil {
		parentID = parent.ID
	}

	// Names are not unique remotely, so look in the parent before creating.
	existing, err := r.listFolders(ctx, kind, parentID, odata.Eq("displayName", odata.String(f.Name)))
	if err != nil {
		return OutcomeErrored, err
	}
	if len(existing) > 0 {
		r.dir.addFolder(kind, parent, existing[0])
		return OutcomeExisting, nil
	}

	created, err := r.createFolder(ctx, kind, parentID, f.Name)
	if err != nil {
		return OutcomeErrored, err
	}
	r.dir.addFolder(kind, parent, created)
	log.WithFields(log.Fields{"kind": kind, "folder": f.Name, "parent": parentName(parent)}).Info("created folder")
	return OutcomeCreated, nil
}

func (r *Reconciler) ensureCalendar(ctx context.Context, f SourceFolder) (Outcome, error) {
	if _, ok := r.dir.Calendar(f.Name); ok {
		return OutcomeExisting, nil
	}
	cal, err := r.dest.CreateCalendar(ctx, f.Name)
	if err != nil {
		return OutcomeErrored, err
	}
	r.dir.addCalendar(cal)
	log.WithField("calendar", f.Name).Info("created calendar")
	return OutcomeCreated, nil
}

// resolveParent returns the destination folder for f's parent, or nil when f
// belongs at the mailbox root: top-level folders, and folders whose parent was
// skipped or could not be mapped.
func (r *Reconciler) resolveParent(kind Kind, f SourceFolder) *DestinationFolder {
	if f.Depth == 0 || f.ParentName == "" {
		return nil
	}
	parent, ok := r.dir.Folder(kind, f.ParentName)
	if !ok {
		log.WithFields(log.Fields{"folder": f.Name, "parent": f.ParentName}).Info("parent folder not found, creating in root")
		return nil
	}
	return parent
}

func (r *Reconciler) listFolders(ctx context.Context, kind Kind, parentID string, filter odata.Expr) ([]*DestinationFolder, error) {
	if kind == KindContact {
		return r.dest.ContactFolders(ctx, parentID, filter)
	}
	return r.dest.MailFolders(ctx, parentID, filter)
}

func (r *Reconciler) createFolder(ctx context.Context, kind Kind, parentID, name string) (*DestinationFolder, error) {
	if kind == KindContact {
		return r.dest.CreateContactFolder(ctx, parentID, name)
	}
	return r.dest.CreateMailFolder(ctx, parentID, name)
}

func parentName(f *DestinationFolder) string {
	if f == nil {
		return "root"
	}
	return f.Name
}
