package sync

import (
	"slices"
	"strings"
	"time"

	"github.com/Martian-dev/pst-migrate/internal/archive"
)

// Options are the read-only inputs of one migration pass.
type Options struct {
	// SkipFolders are display names excluded from migration together with
	// everything below them.
	SkipFolders []string
	// SupportedItemClasses are the item message classes that get imported.
	SupportedItemClasses []string
	// SupportedFolderClasses are the container classes that get reconciled.
	SupportedFolderClasses []string
	// DefaultContactFolderNames and DefaultCalendarNames are the localized
	// names of the mailbox's pre-existing default containers, compared
	// case-insensitively.
	DefaultContactFolderNames []string
	DefaultCalendarNames      []string
	// Location is used to decide whether an appointment falls on midnight
	// boundaries. Nil means time.Local.
	Location *time.Location
	// BestEffortCreateOnCheckFailure creates an item even when the existence
	// check failed, accepting a possible duplicate over a missing item.
	BestEffortCreateOnCheckFailure bool
}

// DefaultOptions returns the stock class lists, skip list and locale aliases.
func DefaultOptions() Options {
	return Options{
		SkipFolders: []string{
			"Search Root",
			"SPAM Search Folder",
			"SPAM Search Folder 2",
			"Deleted Items",
			"Conversation Action Settings",
			"Dateien",
			"Files",
			"Einstellungen für QuickSteps",
			"Einstellungen für Unterhaltungsaktionen",
			"ExternalContacts",
			"Journal",
			"GAL Contacts",
			"Recipient Cache",
			"Notizen",
			"Notes",
			"Postausgang",
			"Outbox",
			"RSS-Feeds",
			"Yammer-Stamm",
			"Recoverable Items",
			"Organizational Contacts",
			"PeopleCentricConversation Buddies",
			"RSS-Abonnements",
			"Synchronisierungsprobleme",
		},
		SupportedItemClasses: []string{
			"IPM.Note",
			"IPM.Note.Draft",
			"IPM.Note.SMIME",
			"IPM.Note.SMIME.MultipartSigned",
			"IPM.Appointment",
			"IPM.Contact",
		},
		SupportedFolderClasses: []string{
			archive.ClassNote,
			archive.ClassAppointment,
			archive.ClassContact,
		},
		DefaultContactFolderNames:      []string{"contacts", "kontakte"},
		DefaultCalendarNames:           []string{"calendar", "kalender"},
		BestEffortCreateOnCheckFailure: true,
	}
}

// Excluded reports whether a folder is removed from migration by name: it is
// skip-listed or carries a {GUID}-style system name.
func (o Options) Excluded(name string) bool {
	return slices.Contains(o.SkipFolders, name) || IsSystemName(name)
}

// IsSystemName reports whether name has the {GUID} form of hidden system folders.
func IsSystemName(name string) bool {
	return strings.HasPrefix(name, "{") && strings.HasSuffix(name, "}")
}

// SupportsFolder reports whether containerClass is reconciled.
func (o Options) SupportsFolder(containerClass string) bool {
	return slices.Contains(o.SupportedFolderClasses, containerClass)
}

// SupportsItem reports whether messageClass is imported.
func (o Options) SupportsItem(messageClass string) bool {
	return slices.Contains(o.SupportedItemClasses, messageClass)
}

// IsDefaultContainer reports whether a folder of kind named name stands for
// the mailbox's default contacts folder or calendar.
func (o Options) IsDefaultContainer(kind Kind, name string) bool {
	var aliases []string
	switch kind {
	case KindContact:
		aliases = o.DefaultContactFolderNames
	case KindCalendar:
		aliases = o.DefaultCalendarNames
	default:
		return false
	}
	for _, a := range aliases {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}
