// Package archive describes the read-only view of a personal archive that the
// migration engine consumes: a folder tree, a resumable item cursor per folder
// and typed items.
package archive

import (
	"errors"
	"io"
	"time"
)

// ErrDone is returned by Folder.Next when no items remain.
var ErrDone = errors.New("archive: no more items")

// AnchorName is the display name of the container that wraps the user's folders.
const AnchorName = "Top of Personal Folders"

// Container classes.
const (
	ClassNote        = "IPF.Note"
	ClassContact     = "IPF.Contact"
	ClassAppointment = "IPF.Appointment"
)

// Item message classes.
const (
	MessageClassNote        = "IPM.Note"
	MessageClassDraft       = "IPM.Note.Draft"
	MessageClassContact     = "IPM.Contact"
	MessageClassAppointment = "IPM.Appointment"
)

// Position is an index into a folder's items.
type Position int

// Archive is an opened source archive.
type Archive interface {
	Root() Folder
	Close() error
}

// Folder is a container in the archive tree.
type Folder interface {
	DisplayName() string
	// ContainerClass returns the folder's typed role, "" when unset.
	ContainerClass() string
	ContentCount() int
	Subfolders() ([]Folder, error)
	// Next returns the item at pos and the position of the following item.
	// It returns ErrDone once pos is past the last item.
	Next(pos Position) (Item, Position, error)
}

// Item is a single archived object.
type Item interface {
	MessageClass() string
}

// Attachment is a file attached to a message or appointment.
type Attachment struct {
	Name     string
	MIMEType string
	Open     func() (io.ReadCloser, error)
}

// ReadAll reads the attachment content.
func (a Attachment) ReadAll() ([]byte, error) {
	if a.Open == nil {
		return nil, errors.New("attachment has no content stream")
	}
	rc, err := a.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Message is an archived e-mail.
type Message struct {
	Class             string
	InternetMessageID string
	Subject           string
	SenderName        string
	SenderAddress     string
	// DisplayTo, DisplayCC and DisplayBCC are ';' separated recipient lists.
	DisplayTo  string
	DisplayCC  string
	DisplayBCC string

	BodyHTML string
	BodyText string
	BodyRTF  string

	SubmitTime       time.Time
	DeliveryTime     time.Time
	CreationTime     time.Time
	ModificationTime time.Time

	Attachments []Attachment
}

// MessageClass implements Item.
func (m *Message) MessageClass() string {
	if m.Class == "" {
		return MessageClassNote
	}
	return m.Class
}

// NoSubject is used in place of an empty subject.
const NoSubject = "(No subject)"

// DisplaySubject returns the subject, or NoSubject when it is empty.
func (m *Message) DisplaySubject() string {
	if m.Subject == "" {
		return NoSubject
	}
	return m.Subject
}

// IsDraft reports whether the message was never sent.
func (m *Message) IsDraft() bool {
	return m.MessageClass() == MessageClassDraft
}

// Body returns the first non-empty body variant and whether it is HTML.
func (m *Message) Body() (string, bool) {
	switch {
	case m.BodyHTML != "":
		return m.BodyHTML, true
	case m.BodyText != "":
		return m.BodyText, false
	default:
		return m.BodyRTF, false
	}
}

// Contact is an archived address book entry.
type Contact struct {
	DisplayName      string
	GivenName        string
	Surname          string
	Email            string
	EmailDisplayName string
	HomePhone        string
	BusinessPhone    string
	MobilePhone      string
	BusinessHomePage string
	Notes            string
}

// MessageClass implements Item.
func (c *Contact) MessageClass() string { return MessageClassContact }

// Appointment is an archived calendar entry.
type Appointment struct {
	Subject  string
	Body     string
	Location string
	Start    time.Time
	End      time.Time
	// AllDay is set when the source explicitly marks the entry as all-day.
	AllDay      bool
	Attachments []Attachment
}

// MessageClass implements Item.
func (a *Appointment) MessageClass() string { return MessageClassAppointment }

// FindAnchor searches root and its first two levels breadth-first for the
// folder named name. Scanning stops at the first match.
func FindAnchor(root Folder, name string) (Folder, bool, error) {
	level := []Folder{root}
	for depth := 0; depth <= 2 && len(level) > 0; depth++ {
		var next []Folder
		for _, f := range level {
			if f.DisplayName() == name {
				return f, true, nil
			}
			if depth == 2 {
				continue
			}
			children, err := f.Subfolders()
			if err != nil {
				return nil, false, err
			}
			next = append(next, children...)
		}
		level = next
	}
	return nil, false, nil
}
