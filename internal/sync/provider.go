package sync

import (
	"context"
	"time"

	"github.com/Martian-dev/pst-migrate/internal/archive"
	"github.com/Martian-dev/pst-migrate/internal/odata"
)

// Kind is the destination container family a folder or item belongs to.
type Kind string

const (
	KindMail     Kind = "mail"
	KindContact  Kind = "contact"
	KindCalendar Kind = "calendar"
)

// Kinds lists every kind in reporting order.
var Kinds = []Kind{KindMail, KindContact, KindCalendar}

// KindOf maps a source container class to its destination kind.
func KindOf(containerClass string) (Kind, bool) {
	switch containerClass {
	case archive.ClassNote:
		return KindMail, true
	case archive.ClassContact:
		return KindContact, true
	case archive.ClassAppointment:
		return KindCalendar, true
	}
	return "", false
}

// DestinationFolder is a mail or contact folder in the target mailbox.
type DestinationFolder struct {
	ID       string
	Name     string
	ParentID string
	Children []*DestinationFolder
}

// DestinationCalendar is a calendar in the target mailbox.
type DestinationCalendar struct {
	ID        string
	Name      string
	IsDefault bool
}

// Destination is the remote mailbox the archive is migrated into.
//
// List and existence calls return every page of the result. An empty parentID
// addresses the mailbox root, an empty folderID or calendarID the mailbox's
// default contacts folder or calendar.
type Destination interface {
	MailFolders(ctx context.Context, parentID string, filter odata.Expr) ([]*DestinationFolder, error)
	CreateMailFolder(ctx context.Context, parentID, name string) (*DestinationFolder, error)

	ContactFolders(ctx context.Context, parentID string, filter odata.Expr) ([]*DestinationFolder, error)
	CreateContactFolder(ctx context.Context, parentID, name string) (*DestinationFolder, error)

	Calendars(ctx context.Context) ([]*DestinationCalendar, error)
	CreateCalendar(ctx context.Context, name string) (*DestinationCalendar, error)

	MessageExists(ctx context.Context, folderID string, filter odata.Expr) (bool, error)
	CreateMessage(ctx context.Context, folderID string, msg *archive.Message) (string, error)

	ContactExists(ctx context.Context, folderID string, filter odata.Expr) (bool, error)
	CreateContact(ctx context.Context, folderID string, contact *archive.Contact) (string, error)

	EventExists(ctx context.Context, calendarID string, filter odata.Expr) (bool, error)
	// CreateEvent creates appt with Start and End interpreted as UTC instants.
	CreateEvent(ctx context.Context, calendarID string, appt *archive.Appointment) (string, error)
}

// EventTimeLayout is the dateTime format of event start and end values.
const EventTimeLayout = "2006-01-02T15:04:05.0000000"

// FormatEventTime renders t in UTC using EventTimeLayout.
func FormatEventTime(t time.Time) string {
	return t.UTC().Format(EventTimeLayout)
}
