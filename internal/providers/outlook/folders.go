package outlook

import (
	"context"

	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/users"

	"github.com/Martian-dev/pst-migrate/internal/odata"
	"github.com/Martian-dev/pst-migrate/internal/sync"
)

// MailFolders lists the mail folders directly below parentID, or the
// top-level folders when parentID is empty.
func (a *Adapter) MailFolders(ctx context.Context, parentID string, filter odata.Expr) ([]*sync.DestinationFolder, error) {
	var folders []models.MailFolderable
	err := a.call(ctx, "list mail folders", func() error {
		var resp models.MailFolderCollectionResponseable
		var err error
		if parentID == "" {
			resp, err = a.user().MailFolders().Get(ctx, &users.ItemMailFoldersRequestBuilderGetRequestConfiguration{
				QueryParameters: &users.ItemMailFoldersRequestBuilderGetQueryParameters{
					Filter: filterParam(filter),
					Top:    a.top(),
				},
			})
		} else {
			resp, err = a.user().MailFolders().ByMailFolderId(parentID).ChildFolders().Get(ctx, &users.ItemMailFoldersItemChildFoldersRequestBuilderGetRequestConfiguration{
				QueryParameters: &users.ItemMailFoldersItemChildFoldersRequestBuilderGetQueryParameters{
					Filter: filterParam(filter),
					Top:    a.top(),
				},
			})
		}
		if err != nil {
			return err
		}
		folders, err = collect[models.MailFolderable](ctx, a, resp, models.CreateMailFolderCollectionResponseFromDiscriminatorValue)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]*sync.DestinationFolder, 0, len(folders))
	for _, f := range folders {
		out = append(out, &sync.DestinationFolder{
			ID:       deref(f.GetId()),
			Name:     deref(f.GetDisplayName()),
			ParentID: deref(f.GetParentFolderId()),
		})
	}
	return out, nil
}

// CreateMailFolder creates a mail folder below parentID, or at the top level
// when parentID is empty.
func (a *Adapter) CreateMailFolder(ctx context.Context, parentID, name string) (*sync.DestinationFolder, error) {
	body := models.NewMailFolder()
	body.SetDisplayName(&name)

	var created models.MailFolderable
	err := a.create(ctx, "create mail folder", func(ctx context.Context) error {
		var err error
		if parentID == "" {
			created, err = a.user().MailFolders().Post(ctx, body, nil)
		} else {
			created, err = a.user().MailFolders().ByMailFolderId(parentID).ChildFolders().Post(ctx, body, nil)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &sync.DestinationFolder{
		ID:       deref(created.GetId()),
		Name:     name,
		ParentID: deref(created.GetParentFolderId()),
	}, nil
}

// ContactFolders lists the contact folders directly below parentID, or the
// top-level ones when parentID is empty.
func (a *Adapter) ContactFolders(ctx context.Context, parentID string, filter odata.Expr) ([]*sync.DestinationFolder, error) {
	var folders []models.ContactFolderable
	err := a.call(ctx, "list contact folders", func() error {
		var resp models.ContactFolderCollectionResponseable
		var err error
		if parentID == "" {
			resp, err = a.user().ContactFolders().Get(ctx, &users.ItemContactFoldersRequestBuilderGetRequestConfiguration{
				QueryParameters: &users.ItemContactFoldersRequestBuilderGetQueryParameters{
					Filter: filterParam(filter),
					Top:    a.top(),
				},
			})
		} else {
			resp, err = a.user().ContactFolders().ByContactFolderId(parentID).ChildFolders().Get(ctx, &users.ItemContactFoldersItemChildFoldersRequestBuilderGetRequestConfiguration{
				QueryParameters: &users.ItemContactFoldersItemChildFoldersRequestBuilderGetQueryParameters{
					Filter: filterParam(filter),
					Top:    a.top(),
				},
			})
		}
		if err != nil {
			return err
		}
		folders, err = collect[models.ContactFolderable](ctx, a, resp, models.CreateContactFolderCollectionResponseFromDiscriminatorValue)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]*sync.DestinationFolder, 0, len(folders))
	for _, f := range folders {
		out = append(out, &sync.DestinationFolder{
			ID:       deref(f.GetId()),
			Name:     deref(f.GetDisplayName()),
			ParentID: deref(f.GetParentFolderId()),
		})
	}
	return out, nil
}

// CreateContactFolder creates a contact folder below parentID, or at the top
// level when parentID is empty.
func (a *Adapter) CreateContactFolder(ctx context.Context, parentID, name string) (*sync.DestinationFolder, error) {
	body := models.NewContactFolder()
	body.SetDisplayName(&name)

	var created models.ContactFolderable
	err := a.create(ctx, "create contact folder", func(ctx context.Context) error {
		var err error
		if parentID == "" {
			created, err = a.user().ContactFolders().Post(ctx, body, nil)
		} else {
			created, err = a.user().ContactFolders().ByContactFolderId(parentID).ChildFolders().Post(ctx, body, nil)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &sync.DestinationFolder{
		ID:       deref(created.GetId()),
		Name:     name,
		ParentID: deref(created.GetParentFolderId()),
	}, nil
}

// Calendars lists every calendar of the mailbox.
func (a *Adapter) Calendars(ctx context.Context) ([]*sync.DestinationCalendar, error) {
	var calendars []models.Calendarable
	err := a.call(ctx, "list calendars", func() error {
		resp, err := a.user().Calendars().Get(ctx, &users.ItemCalendarsRequestBuilderGetRequestConfiguration{
			QueryParameters: &users.ItemCalendarsRequestBuilderGetQueryParameters{
				Select: []string{"id", "name", "isDefaultCalendar"},
				Top:    a.top(),
			},
		})
		if err != nil {
			return err
		}
		calendars, err = collect[models.Calendarable](ctx, a, resp, models.CreateCalendarCollectionResponseFromDiscriminatorValue)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]*sync.DestinationCalendar, 0, len(calendars))
	for _, c := range calendars {
		isDefault := c.GetIsDefaultCalendar()
		out = append(out, &sync.DestinationCalendar{
			ID:        deref(c.GetId()),
			Name:      deref(c.GetName()),
			IsDefault: isDefault != nil && *isDefault,
		})
	}
	return out, nil
}

// CreateCalendar creates a secondary calendar.
func (a *Adapter) CreateCalendar(ctx context.Context, name string) (*sync.DestinationCalendar, error) {
	body := models.NewCalendar()
	body.SetName(&name)

	var created models.Calendarable
	err := a.create(ctx, "create calendar", func(ctx context.Context) error {
		var err error
		created, err = a.user().Calendars().Post(ctx, body, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &sync.DestinationCalendar{ID: deref(created.GetId()), Name: name}, nil
}
