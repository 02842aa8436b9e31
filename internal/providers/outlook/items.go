package outlook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/users"
	log "github.com/sirupsen/logrus"

	"github.com/Martian-dev/pst-migrate/internal/archive"
	"github.com/Martian-dev/pst-migrate/internal/odata"
	"github.com/Martian-dev/pst-migrate/internal/sync"
)

// MAPI properties stamped on imported messages so the mailbox shows the
// archived dates and treats them as sent.
const (
	propClientSubmitTime   = "SystemTime 0x0039"
	propDeliveryTime       = "SystemTime 0x0E06"
	propCreationTime       = "SystemTime 0x3007"
	propModificationTime   = "SystemTime 0x3008"
	propMessageFlags       = "Integer 0x0E07"
	messageFlagRead        = "1"
	extendedPropertyLayout = time.RFC3339
)

// MessageExists reports whether a message in folderID matches filter.
func (a *Adapter) MessageExists(ctx context.Context, folderID string, filter odata.Expr) (bool, error) {
	var found bool
	err := a.call(ctx, "check message", func() error {
		resp, err := a.user().MailFolders().ByMailFolderId(folderID).Messages().Get(ctx, &users.ItemMailFoldersItemMessagesRequestBuilderGetRequestConfiguration{
			QueryParameters: &users.ItemMailFoldersItemMessagesRequestBuilderGetQueryParameters{
				Filter: filterParam(filter),
				Select: []string{"id", "subject", "receivedDateTime", "from"},
				Top:    Int32Ptr(1),
			},
		})
		if err != nil {
			return err
		}
		found = len(resp.GetValue()) > 0
		return nil
	})
	return found, err
}

// CreateMessage creates msg in folderID and returns its id.
func (a *Adapter) CreateMessage(ctx context.Context, folderID string, msg *archive.Message) (string, error) {
	body := a.buildMessage(msg)
	var created models.Messageable
	err := a.create(ctx, "create message", func(ctx context.Context) error {
		var err error
		created, err = a.user().MailFolders().ByMailFolderId(folderID).Messages().Post(ctx, body, nil)
		return err
	})
	if err != nil {
		return "", err
	}
	return deref(created.GetId()), nil
}

func (a *Adapter) buildMessage(msg *archive.Message) models.Messageable {
	m := models.NewMessage()

	id := msg.InternetMessageID
	if id == "" {
		id = fmt.Sprintf("<%s@%s>", uuid.NewString(), a.opts.MessageIDDomain)
	}
	m.SetInternetMessageId(&id)
	m.SetSubject(ptr(msg.DisplaySubject()))

	content, isHTML := msg.Body()
	m.SetBody(itemBody(content, isHTML))

	m.SetToRecipients(recipients(msg.DisplayTo))
	m.SetCcRecipients(recipients(msg.DisplayCC))
	m.SetBccRecipients(recipients(msg.DisplayBCC))
	if msg.SenderAddress != "" {
		m.SetSender(recipient(msg.SenderName, msg.SenderAddress))
		m.SetFrom(recipient(msg.SenderName, msg.SenderAddress))
	}

	draft := msg.IsDraft()
	m.SetIsDraft(&draft)
	m.SetIsRead(ptr(!draft))

	var props []models.SingleValueLegacyExtendedPropertyable
	if !draft {
		props = append(props, extendedProperty(propMessageFlags, messageFlagRead))
	}
	for _, p := range []struct {
		id string
		t  time.Time
	}{
		{propClientSubmitTime, msg.SubmitTime},
		{propDeliveryTime, msg.DeliveryTime},
		{propCreationTime, msg.CreationTime},
		{propModificationTime, msg.ModificationTime},
	} {
		t := p.t
		if t.IsZero() {
			t = a.now()
		}
		props = append(props, extendedProperty(p.id, t.UTC().Format(extendedPropertyLayout)))
	}
	m.SetSingleValueExtendedProperties(props)

	if attachments := fileAttachments(msg.Attachments); len(attachments) > 0 {
		m.SetAttachments(attachments)
	}
	return m
}

// ContactExists reports whether a contact in folderID matches filter. An
// empty folderID searches the default contacts folder.
func (a *Adapter) ContactExists(ctx context.Context, folderID string, filter odata.Expr) (bool, error) {
	var found bool
	err := a.call(ctx, "check contact", func() error {
		var resp models.ContactCollectionResponseable
		var err error
		if folderID == "" {
			resp, err = a.user().Contacts().Get(ctx, &users.ItemContactsRequestBuilderGetRequestConfiguration{
				QueryParameters: &users.ItemContactsRequestBuilderGetQueryParameters{
					Filter: filterParam(filter),
					Select: []string{"id", "displayName"},
					Top:    Int32Ptr(1),
				},
			})
		} else {
			resp, err = a.user().ContactFolders().ByContactFolderId(folderID).Contacts().Get(ctx, &users.ItemContactFoldersItemContactsRequestBuilderGetRequestConfiguration{
				QueryParameters: &users.ItemContactFoldersItemContactsRequestBuilderGetQueryParameters{
					Filter: filterParam(filter),
					Select: []string{"id", "displayName"},
					Top:    Int32Ptr(1),
				},
			})
		}
		if err != nil {
			return err
		}
		found = len(resp.GetValue()) > 0
		return nil
	})
	return found, err
}

// CreateContact creates c in folderID, or in the default contacts folder.
func (a *Adapter) CreateContact(ctx context.Context, folderID string, c *archive.Contact) (string, error) {
	body := buildContact(c)
	var created models.Contactable
	err := a.create(ctx, "create contact", func(ctx context.Context) error {
		var err error
		if folderID == "" {
			created, err = a.user().Contacts().Post(ctx, body, nil)
		} else {
			created, err = a.user().ContactFolders().ByContactFolderId(folderID).Contacts().Post(ctx, body, nil)
		}
		return err
	})
	if err != nil {
		return "", err
	}
	return deref(created.GetId()), nil
}

// buildContact leaves empty fields unset.
func buildContact(c *archive.Contact) models.Contactable {
	m := models.NewContact()
	setIf := func(v string, set func(*string)) {
		if v != "" {
			set(&v)
		}
	}
	setIf(c.GivenName, m.SetGivenName)
	setIf(c.Surname, m.SetSurname)
	setIf(c.DisplayName, m.SetDisplayName)
	setIf(c.BusinessHomePage, m.SetBusinessHomePage)
	setIf(c.Notes, m.SetPersonalNotes)
	setIf(c.MobilePhone, m.SetMobilePhone)

	if c.Email != "" {
		email := models.NewEmailAddress()
		email.SetAddress(ptr(c.Email))
		name := c.EmailDisplayName
		if name == "" {
			name = c.DisplayName
		}
		if name != "" {
			email.SetName(&name)
		}
		m.SetEmailAddresses([]models.EmailAddressable{email})
	}
	if c.HomePhone != "" {
		m.SetHomePhones([]string{c.HomePhone})
	}
	if c.BusinessPhone != "" {
		m.SetBusinessPhones([]string{c.BusinessPhone})
	}
	return m
}

// EventExists reports whether an event in calendarID matches filter. An
// empty calendarID searches the default calendar.
func (a *Adapter) EventExists(ctx context.Context, calendarID string, filter odata.Expr) (bool, error) {
	var found bool
	err := a.call(ctx, "check event", func() error {
		var resp models.EventCollectionResponseable
		var err error
		if calendarID == "" {
			resp, err = a.user().Events().Get(ctx, &users.ItemEventsRequestBuilderGetRequestConfiguration{
				QueryParameters: &users.ItemEventsRequestBuilderGetQueryParameters{
					Filter: filterParam(filter),
					Select: []string{"id", "subject", "start", "end"},
					Top:    Int32Ptr(1),
				},
			})
		} else {
			resp, err = a.user().Calendars().ByCalendarId(calendarID).Events().Get(ctx, &users.ItemCalendarsItemEventsRequestBuilderGetRequestConfiguration{
				QueryParameters: &users.ItemCalendarsItemEventsRequestBuilderGetQueryParameters{
					Filter: filterParam(filter),
					Select: []string{"id", "subject", "start", "end"},
					Top:    Int32Ptr(1),
				},
			})
		}
		if err != nil {
			return err
		}
		found = len(resp.GetValue()) > 0
		return nil
	})
	return found, err
}

// CreateEvent creates appt in calendarID, or in the default calendar, then
// uploads its attachments. A failed attachment upload is logged; the event
// itself stays.
func (a *Adapter) CreateEvent(ctx context.Context, calendarID string, appt *archive.Appointment) (string, error) {
	body := buildEvent(appt)
	var created models.Eventable
	err := a.create(ctx, "create event", func(ctx context.Context) error {
		var err error
		if calendarID == "" {
			created, err = a.user().Events().Post(ctx, body, nil)
		} else {
			created, err = a.user().Calendars().ByCalendarId(calendarID).Events().Post(ctx, body, nil)
		}
		return err
	})
	if err != nil {
		return "", err
	}

	eventID := deref(created.GetId())
	for _, att := range fileAttachments(appt.Attachments) {
		err := a.create(ctx, "add event attachment", func(ctx context.Context) error {
			_, err := a.user().Events().ByEventId(eventID).Attachments().Post(ctx, att, nil)
			return err
		})
		if err != nil {
			log.WithFields(log.Fields{"event": appt.Subject, "attachment": deref(att.GetName())}).WithError(err).Warn("failed to attach file to event")
		}
	}
	return eventID, nil
}

func buildEvent(appt *archive.Appointment) models.Eventable {
	m := models.NewEvent()
	m.SetSubject(ptr(appt.Subject))
	m.SetBody(itemBody(appt.Body, true))
	if appt.Location != "" {
		loc := models.NewLocation()
		loc.SetDisplayName(ptr(appt.Location))
		m.SetLocation(loc)
	}
	m.SetIsAllDay(ptr(appt.AllDay))
	m.SetStart(dateTimeTimeZone(appt.Start))
	m.SetEnd(dateTimeTimeZone(appt.End))
	return m
}

func dateTimeTimeZone(t time.Time) models.DateTimeTimeZoneable {
	dt := models.NewDateTimeTimeZone()
	dt.SetDateTime(ptr(sync.FormatEventTime(t)))
	dt.SetTimeZone(ptr("UTC"))
	return dt
}

func itemBody(content string, isHTML bool) models.ItemBodyable {
	body := models.NewItemBody()
	contentType := models.TEXT_BODYTYPE
	if isHTML {
		contentType = models.HTML_BODYTYPE
	}
	body.SetContentType(&contentType)
	body.SetContent(&content)
	return body
}

// recipients splits a ';' separated display list into recipients.
func recipients(list string) []models.Recipientable {
	var out []models.Recipientable
	for _, addr := range strings.Split(list, ";") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		out = append(out, recipient("", addr))
	}
	return out
}

func recipient(name, address string) models.Recipientable {
	email := models.NewEmailAddress()
	email.SetAddress(&address)
	if name != "" {
		email.SetName(&name)
	}
	r := models.NewRecipient()
	r.SetEmailAddress(email)
	return r
}

func extendedProperty(id, value string) models.SingleValueLegacyExtendedPropertyable {
	p := models.NewSingleValueLegacyExtendedProperty()
	p.SetId(&id)
	p.SetValue(&value)
	return p
}

// fileAttachments reads every attachment into memory. Unreadable ones are
// logged and left out.
func fileAttachments(in []archive.Attachment) []models.Attachmentable {
	var out []models.Attachmentable
	for _, att := range in {
		if att.Name == "" {
			continue
		}
		data, err := att.ReadAll()
		if err != nil {
			log.WithField("attachment", att.Name).WithError(err).Warn("failed to read attachment")
			continue
		}
		fa := models.NewFileAttachment()
		fa.SetName(ptr(att.Name))
		if att.MIMEType != "" {
			fa.SetContentType(ptr(att.MIMEType))
		}
		fa.SetContentBytes(data)
		out = append(out, fa)
	}
	return out
}
