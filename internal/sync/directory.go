package sync

import (
	"context"
	"fmt"
	"strings"
)

// Directory is the in-memory index of the destination's containers for one
// pass. It is loaded once, then updated in place as containers are created so
// later lookups see them without re-querying. A Directory is not safe for
// concurrent use; a pass is strictly sequential.
type Directory struct {
	// MailFolders is the mail folder tree.
	MailFolders []*DestinationFolder
	// ContactFolders is every contact folder, flattened.
	ContactFolders []*DestinationFolder
	Calendars      []*DestinationCalendar

	mailByName     map[string]*DestinationFolder
	contactByName  map[string]*DestinationFolder
	calendarByName map[string]*DestinationCalendar
}

// LoadDirectory enumerates every mail folder, contact folder and calendar of
// the destination. Any remote error is returned as is; there is no partial result.
func LoadDirectory(ctx context.Context, dest Destination) (*Directory, error) {
	mail, err := listMailTree(ctx, dest, "")
	if err != nil {
		return nil, fmt.Errorf("list mail folders: %w", err)
	}
	contacts, err := listContactFolders(ctx, dest, "")
	if err != nil {
		return nil, fmt.Errorf("list contact folders: %w", err)
	}
	calendars, err := dest.Calendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	return NewDirectory(mail, contacts, calendars), nil
}

// NewDirectory indexes already listed containers.
func NewDirectory(mail, contacts []*DestinationFolder, calendars []*DestinationCalendar) *Directory {
	d := &Directory{
		MailFolders:    mail,
		ContactFolders: contacts,
		Calendars:      calendars,
		mailByName:     make(map[string]*DestinationFolder),
		contactByName:  make(map[string]*DestinationFolder),
		calendarByName: make(map[string]*DestinationCalendar),
	}
	var index func([]*DestinationFolder)
	index = func(folders []*DestinationFolder) {
		for _, f := range folders {
			d.mailByName[nameKey(f.Name)] = f
			index(f.Children)
		}
	}
	index(mail)
	for _, f := range contacts {
		d.contactByName[nameKey(f.Name)] = f
	}
	for _, c := range calendars {
		d.calendarByName[nameKey(c.Name)] = c
	}
	return d
}

// listMailTree fetches one level, then each returned folder's children, depth-first.
func listMailTree(ctx context.Context, dest Destination, parentID string) ([]*DestinationFolder, error) {
	folders, err := dest.MailFolders(ctx, parentID, nil)
	if err != nil {
		return nil, err
	}
	for _, f := range folders {
		children, err := listMailTree(ctx, dest, f.ID)
		if err != nil {
			return nil, err
		}
		f.Children = children
	}
	return folders, nil
}

// listContactFolders expands contact folders recursively into one flat list.
func listContactFolders(ctx context.Context, dest Destination, parentID string) ([]*DestinationFolder, error) {
	folders, err := dest.ContactFolders(ctx, parentID, nil)
	if err != nil {
		return nil, err
	}
	out := append([]*DestinationFolder(nil), folders...)
	for _, f := range folders {
		children, err := listContactFolders(ctx, dest, f.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, children...)
	}
	return out, nil
}

func nameKey(name string) string {
	return strings.ToLower(name)
}

// Folder returns the mail or contact folder indexed under name.
func (d *Directory) Folder(kind Kind, name string) (*DestinationFolder, bool) {
	var f *DestinationFolder
	switch kind {
	case KindMail:
		f = d.mailByName[nameKey(name)]
	case KindContact:
		f = d.contactByName[nameKey(name)]
	}
	return f, f != nil
}

// Calendar returns the calendar named name.
func (d *Directory) Calendar(name string) (*DestinationCalendar, bool) {
	c, ok := d.calendarByName[nameKey(name)]
	return c, ok
}

// DefaultCalendar returns the mailbox's default calendar.
func (d *Directory) DefaultCalendar() (*DestinationCalendar, bool) {
	for _, c := range d.Calendars {
		if c.IsDefault {
			return c, true
		}
	}
	return nil, false
}

// FindMailFolder searches the mail folder tree depth-first for the first
// folder named name.
func (d *Directory) FindMailFolder(name string) (*DestinationFolder, bool) {
	var search func([]*DestinationFolder) *DestinationFolder
	search = func(folders []*DestinationFolder) *DestinationFolder {
		for _, f := range folders {
			if strings.EqualFold(f.Name, name) {
				return f
			}
			if found := search(f.Children); found != nil {
				return found
			}
		}
		return nil
	}
	f := search(d.MailFolders)
	return f, f != nil
}

// addFolder records f under parent (nil for the mailbox root).
func (d *Directory) addFolder(kind Kind, parent, f *DestinationFolder) {
	switch kind {
	case KindMail:
		if parent != nil {
			parent.Children = append(parent.Children, f)
		} else {
			d.MailFolders = append(d.MailFolders, f)
		}
		d.mailByName[nameKey(f.Name)] = f
	case KindContact:
		d.ContactFolders = append(d.ContactFolders, f)
		d.contactByName[nameKey(f.Name)] = f
	}
}

func (d *Directory) addCalendar(c *DestinationCalendar) {
	d.Calendars = append(d.Calendars, c)
	d.calendarByName[nameKey(c.Name)] = c
}

// FormatTree renders the mail folder tree, two spaces of indent per level.
func (d *Directory) FormatTree() string {
	var b strings.Builder
	var write func([]*DestinationFolder, int)
	write = func(folders []*DestinationFolder, depth int) {
		for _, f := range folders {
			fmt.Fprintf(&b, "%s%s (ID: %s)\n", strings.Repeat("  ", depth), f.Name, f.ID)
			write(f.Children, depth+1)
		}
	}
	write(d.MailFolders, 0)
	return b.String()
}
