package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Martian-dev/pst-migrate/internal/archive"
)

var (
	// ErrNoDestinationFolder is reported for messages whose source folder has
	// no mail folder counterpart in the destination.
	ErrNoDestinationFolder = errors.New("no matching destination folder")
	// ErrMissingEventTime is reported for appointments without usable times.
	ErrMissingEventTime = errors.New("missing start or end time")
)

// Walker imports the items of every source folder, depth-first, into the
// containers resolved from a Directory.
type Walker struct {
	checker  *Checker
	dir      *Directory
	opts     Options
	observer Observer
	runID    string
}

// NewWalker creates a Walker. dir should be the Directory the Reconciler
// updated so folders created in the same pass are found.
func NewWalker(checker *Checker, dir *Directory, opts Options, observer Observer) *Walker {
	return &Walker{
		checker:  checker,
		dir:      dir,
		opts:     opts,
		observer: observerOrNop(observer),
	}
}

// Walk imports every folder below the "Top of Personal Folders" anchor, or
// below root when the archive has no anchor. Only failures to read the
// folder tree are returned; item failures are counted.
func (w *Walker) Walk(ctx context.Context, root archive.Folder) (Statistics, error) {
	start, ok, err := archive.FindAnchor(root, archive.AnchorName)
	if err != nil {
		return Statistics{}, err
	}
	if !ok {
		log.Warnf("%q not found, importing from the archive root", archive.AnchorName)
		start = root
	}
	return w.walkChildren(ctx, start, 0)
}

func (w *Walker) walkChildren(ctx context.Context, parent archive.Folder, depth int) (Statistics, error) {
	var stats Statistics
	children, err := parent.Subfolders()
	if err != nil {
		return stats, fmt.Errorf("list subfolders of %q: %w", parent.DisplayName(), err)
	}
	for _, child := range children {
		if w.opts.Excluded(child.DisplayName()) {
			log.WithField("folder", child.DisplayName()).Debug("skipping excluded folder")
			continue
		}
		stats.Merge(w.importFolder(ctx, child, depth))
		sub, err := w.walkChildren(ctx, child, depth+1)
		stats.Merge(sub)
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// target is the destination container resolved for one source folder.
type target struct {
	kind Kind
	// id is empty for the default contacts folder or calendar.
	id    string
	found bool
}

func (w *Walker) resolve(folder archive.Folder) target {
	name := folder.DisplayName()
	kind, ok := KindOf(folder.ContainerClass())
	if !ok {
		kind = KindMail
	}
	t := target{kind: kind}
	switch kind {
	case KindCalendar:
		if w.opts.IsDefaultContainer(kind, name) {
			t.found = true
		} else if c, ok := w.dir.Calendar(name); ok {
			t.id, t.found = c.ID, true
		}
	case KindContact:
		if w.opts.IsDefaultContainer(kind, name) {
			t.found = true
		} else if f, ok := w.dir.Folder(kind, name); ok {
			t.id, t.found = f.ID, true
		}
	default:
		if f, ok := w.dir.FindMailFolder(name); ok {
			t.id, t.found = f.ID, true
		}
	}
	return t
}

// containerFor returns the id to import an item of kind into. Items whose kind
// differs from the folder's go to the default container of their kind.
func (t target) containerFor(kind Kind) (string, error) {
	if kind == t.kind && t.found {
		return t.id, nil
	}
	if kind == KindMail {
		return "", ErrNoDestinationFolder
	}
	return "", nil
}

func (w *Walker) importFolder(ctx context.Context, folder archive.Folder, depth int) Statistics {
	var stats Statistics
	name := folder.DisplayName()
	t := w.resolve(folder)
	entry := log.WithFields(log.Fields{"folder": name, "depth": depth})
	entry.WithFields(log.Fields{"kind": t.kind, "destination": t.id, "found": t.found}).Info("processing folder")

	count := folder.ContentCount()
	imported := 0
	for pos := archive.Position(0); int(pos) < count; {
		item, next, err := folder.Next(pos)
		if errors.Is(err, archive.ErrDone) {
			break
		}
		if next <= pos {
			next = pos + 1
		}
		pos = next
		if err != nil {
			entry.WithError(err).Error("failed to read item")
			continue
		}
		if item == nil {
			entry.WithField("position", int(pos)-1).Warn("source returned no item, ending folder early")
			break
		}
		if !w.opts.SupportsItem(item.MessageClass()) {
			continue
		}
		kind, outcome, err := w.importItem(ctx, t, item)
		stats.Record(kind, outcome)
		imported++
		if err != nil {
			entry.WithError(err).WithField("item", ItemLabel(item)).Error("failed to import item")
		}
		w.observer.Observe(ctx, Event{
			RunID:   w.runID,
			Scope:   ScopeItem,
			Kind:    kind,
			Folder:  name,
			Name:    ItemLabel(item),
			Outcome: outcome,
			Err:     err,
			At:      time.Now(),
		})
	}
	entry.Infof("processed %d items", imported)
	return stats
}

func (w *Walker) importItem(ctx context.Context, t target, item archive.Item) (Kind, Outcome, error) {
	switch it := item.(type) {
	case *archive.Contact:
		id, _ := t.containerFor(KindContact)
		outcome, err := w.checker.ImportContact(ctx, id, it)
		return KindContact, outcome, err
	case *archive.Appointment:
		id, _ := t.containerFor(KindCalendar)
		outcome, err := w.checker.ImportEvent(ctx, id, it)
		return KindCalendar, outcome, err
	case *archive.Message:
		id, err := t.containerFor(KindMail)
		if err != nil {
			return KindMail, OutcomeErrored, fmt.Errorf("message %q: %w", it.DisplaySubject(), err)
		}
		outcome, err := w.checker.ImportMessage(ctx, id, it)
		return KindMail, outcome, err
	}
	return KindMail, OutcomeErrored, fmt.Errorf("unexpected item type %T for class %s", item, item.MessageClass())
}

// ItemLabel names an item in logs and events.
func ItemLabel(item archive.Item) string {
	switch it := item.(type) {
	case *archive.Message:
		return it.DisplaySubject()
	case *archive.Contact:
		return contactLabel(it)
	case *archive.Appointment:
		return it.Subject
	}
	return item.MessageClass()
}
