package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/Martian-dev/pst-migrate/internal/archive"
	"github.com/Martian-dev/pst-migrate/internal/odata"
)

const (
	defaultContactsID = "contacts-default"
	defaultCalendarID = "calendar-default"
)

// fakeDestination is an in-memory mailbox that evaluates filters the same way
// the remote side does.
type fakeDestination struct {
	seq int

	mailFolders    []*fakeFolder
	contactFolders []*fakeFolder
	calendars      []*DestinationCalendar

	items map[string][]odata.Record

	// failures keyed by operation name, e.g. "MessageExists" or "CreateMailFolder:Inbox".
	failures map[string]error

	calls       map[string]int
	lastFilters map[string]string
	events      []*archive.Appointment
}

type fakeFolder struct {
	DestinationFolder
}

func newFakeDestination() *fakeDestination {
	return &fakeDestination{
		calendars:   []*DestinationCalendar{{ID: defaultCalendarID, Name: "Calendar", IsDefault: true}},
		items:       make(map[string][]odata.Record),
		failures:    make(map[string]error),
		calls:       make(map[string]int),
		lastFilters: make(map[string]string),
	}
}

func (f *fakeDestination) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeDestination) fail(op string, keys ...string) error {
	if err, ok := f.failures[op]; ok {
		return err
	}
	for _, k := range keys {
		if err, ok := f.failures[op+":"+k]; ok {
			return err
		}
	}
	return nil
}

func (f *fakeDestination) record(op string, filter odata.Expr) {
	f.calls[op]++
	f.lastFilters[op] = odata.Format(filter)
}

func listFolders(all []*fakeFolder, parentID string, filter odata.Expr) []*DestinationFolder {
	var out []*DestinationFolder
	for _, ff := range all {
		if ff.ParentID != parentID {
			continue
		}
		if filter != nil && !filter.Match(odata.Record{"displayName": ff.Name}) {
			continue
		}
		// Return copies without children, like a single remote page.
		out = append(out, &DestinationFolder{ID: ff.ID, Name: ff.Name, ParentID: ff.ParentID})
	}
	return out
}

func (f *fakeDestination) addMailFolder(parentID, name string) string {
	id := f.nextID("mail")
	f.mailFolders = append(f.mailFolders, &fakeFolder{DestinationFolder{ID: id, Name: name, ParentID: parentID}})
	return id
}

func (f *fakeDestination) MailFolders(_ context.Context, parentID string, filter odata.Expr) ([]*DestinationFolder, error) {
	f.record("MailFolders", filter)
	if err := f.fail("MailFolders"); err != nil {
		return nil, err
	}
	return listFolders(f.mailFolders, parentID, filter), nil
}

func (f *fakeDestination) CreateMailFolder(_ context.Context, parentID, name string) (*DestinationFolder, error) {
	f.record("CreateMailFolder", nil)
	if err := f.fail("CreateMailFolder", name); err != nil {
		return nil, err
	}
	id := f.addMailFolder(parentID, name)
	return &DestinationFolder{ID: id, Name: name, ParentID: parentID}, nil
}

func (f *fakeDestination) ContactFolders(_ context.Context, parentID string, filter odata.Expr) ([]*DestinationFolder, error) {
	f.record("ContactFolders", filter)
	if err := f.fail("ContactFolders"); err != nil {
		return nil, err
	}
	return listFolders(f.contactFolders, parentID, filter), nil
}

func (f *fakeDestination) CreateContactFolder(_ context.Context, parentID, name string) (*DestinationFolder, error) {
	f.record("CreateContactFolder", nil)
	if err := f.fail("CreateContactFolder", name); err != nil {
		return nil, err
	}
	id := f.nextID("contacts")
	f.contactFolders = append(f.contactFolders, &fakeFolder{DestinationFolder{ID: id, Name: name, ParentID: parentID}})
	return &DestinationFolder{ID: id, Name: name, ParentID: parentID}, nil
}

func (f *fakeDestination) Calendars(context.Context) ([]*DestinationCalendar, error) {
	f.record("Calendars", nil)
	if err := f.fail("Calendars"); err != nil {
		return nil, err
	}
	out := make([]*DestinationCalendar, len(f.calendars))
	for i, c := range f.calendars {
		copied := *c
		out[i] = &copied
	}
	return out, nil
}

func (f *fakeDestination) CreateCalendar(_ context.Context, name string) (*DestinationCalendar, error) {
	f.record("CreateCalendar", nil)
	if err := f.fail("CreateCalendar", name); err != nil {
		return nil, err
	}
	c := &DestinationCalendar{ID: f.nextID("calendar"), Name: name}
	f.calendars = append(f.calendars, c)
	copied := *c
	return &copied, nil
}

func (f *fakeDestination) exists(container string, filter odata.Expr) bool {
	for _, rec := range f.items[container] {
		if filter == nil || filter.Match(rec) {
			return true
		}
	}
	return false
}

func (f *fakeDestination) MessageExists(_ context.Context, folderID string, filter odata.Expr) (bool, error) {
	f.record("MessageExists", filter)
	if err := f.fail("MessageExists"); err != nil {
		return false, err
	}
	return f.exists(folderID, filter), nil
}

func (f *fakeDestination) CreateMessage(_ context.Context, folderID string, msg *archive.Message) (string, error) {
	f.record("CreateMessage", nil)
	if err := f.fail("CreateMessage", msg.Subject); err != nil {
		return "", err
	}
	received := msg.DeliveryTime
	if received.IsZero() {
		received = time.Now()
	}
	f.items[folderID] = append(f.items[folderID], odata.Record{
		"subject":                   msg.DisplaySubject(),
		"from/emailAddress/address": msg.SenderAddress,
		"receivedDateTime":          received,
	})
	return f.nextID("message"), nil
}

func contactContainer(folderID string) string {
	if folderID == "" {
		return defaultContactsID
	}
	return folderID
}

func (f *fakeDestination) ContactExists(_ context.Context, folderID string, filter odata.Expr) (bool, error) {
	f.record("ContactExists", filter)
	if err := f.fail("ContactExists"); err != nil {
		return false, err
	}
	return f.exists(contactContainer(folderID), filter), nil
}

func (f *fakeDestination) CreateContact(_ context.Context, folderID string, c *archive.Contact) (string, error) {
	f.record("CreateContact", nil)
	if err := f.fail("CreateContact", c.DisplayName); err != nil {
		return "", err
	}
	rec := odata.Record{"displayName": c.DisplayName}
	if c.Email != "" {
		rec["emailAddresses"] = []odata.Record{{"address": c.Email}}
	}
	key := contactContainer(folderID)
	f.items[key] = append(f.items[key], rec)
	return f.nextID("contact"), nil
}

func calendarContainer(calendarID string) string {
	if calendarID == "" {
		return defaultCalendarID
	}
	return calendarID
}

func (f *fakeDestination) EventExists(_ context.Context, calendarID string, filter odata.Expr) (bool, error) {
	f.record("EventExists", filter)
	if err := f.fail("EventExists"); err != nil {
		return false, err
	}
	return f.exists(calendarContainer(calendarID), filter), nil
}

func (f *fakeDestination) CreateEvent(_ context.Context, calendarID string, appt *archive.Appointment) (string, error) {
	f.record("CreateEvent", nil)
	if err := f.fail("CreateEvent", appt.Subject); err != nil {
		return "", err
	}
	key := calendarContainer(calendarID)
	f.items[key] = append(f.items[key], odata.Record{
		"subject":        appt.Subject,
		"start/dateTime": FormatEventTime(appt.Start),
		"end/dateTime":   FormatEventTime(appt.End),
	})
	f.events = append(f.events, appt)
	return f.nextID("event"), nil
}

var _ Destination = (*fakeDestination)(nil)
