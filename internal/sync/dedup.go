package sync

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Martian-dev/pst-migrate/internal/archive"
	"github.com/Martian-dev/pst-migrate/internal/odata"
)

// DeliveryWindow is how far a destination message's receivedDateTime may be
// from the archived delivery time and still count as the same message.
const DeliveryWindow = 60 * time.Second

// Checker imports items at most once: it queries the destination for an
// equivalent item and creates one only when nothing matches.
type Checker struct {
	dest Destination
	opts Options
}

// NewChecker creates a Checker.
func NewChecker(dest Destination, opts Options) *Checker {
	return &Checker{dest: dest, opts: opts}
}

// MessageFilter matches on subject, sender address when known, and a
// receivedDateTime window around the delivery time when known.
func MessageFilter(msg *archive.Message) odata.Expr {
	parts := []odata.Expr{odata.Eq("subject", odata.String(msg.DisplaySubject()))}
	if msg.SenderAddress != "" {
		parts = append(parts, odata.Eq("from/emailAddress/address", odata.String(msg.SenderAddress)))
	}
	if !msg.DeliveryTime.IsZero() {
		parts = append(parts,
			odata.Ge("receivedDateTime", odata.DateTime(msg.DeliveryTime.Add(-DeliveryWindow))),
			odata.Le("receivedDateTime", odata.DateTime(msg.DeliveryTime.Add(DeliveryWindow))),
		)
	}
	return odata.And(parts...)
}

// ContactFilter matches on the primary e-mail address, falling back to the
// display name. It returns nil when the contact has neither.
func ContactFilter(c *archive.Contact) odata.Expr {
	switch {
	case c.Email != "":
		return odata.Any("emailAddresses", "e", odata.Eq("address", odata.String(c.Email)))
	case c.DisplayName != "":
		return odata.Eq("displayName", odata.String(c.DisplayName))
	}
	return nil
}

// EventFilter matches on subject and exact start and end. appt must already
// be normalized with NormalizeAllDay.
func EventFilter(appt *archive.Appointment) odata.Expr {
	return odata.And(
		odata.Eq("subject", odata.String(appt.Subject)),
		odata.Eq("start/dateTime", odata.String(FormatEventTime(appt.Start))),
		odata.Eq("end/dateTime", odata.String(FormatEventTime(appt.End))),
	)
}

// IsAllDay reports whether appt spans whole days: it is flagged as such, or
// both start and end sit on midnight in loc.
func IsAllDay(appt *archive.Appointment, loc *time.Location) bool {
	if appt.AllDay {
		return true
	}
	if appt.Start.IsZero() || appt.End.IsZero() {
		return false
	}
	return isMidnight(appt.Start.In(loc)) && isMidnight(appt.End.In(loc))
}

func isMidnight(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}

// NormalizeAllDay returns a copy of appt with all-day semantics made explicit:
// start becomes UTC midnight of the local start day and end the following
// midnight. Other appointments are returned unchanged.
func NormalizeAllDay(appt *archive.Appointment, loc *time.Location) *archive.Appointment {
	if !IsAllDay(appt, loc) {
		return appt
	}
	out := *appt
	y, m, d := appt.Start.In(loc).Date()
	out.Start = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	out.End = out.Start.AddDate(0, 0, 1)
	out.AllDay = true
	return &out
}

// ImportMessage imports msg into the mail folder folderID.
func (c *Checker) ImportMessage(ctx context.Context, folderID string, msg *archive.Message) (Outcome, error) {
	return c.importItem(ctx, KindMail, msg.DisplaySubject(), MessageFilter(msg),
		func(ctx context.Context, filter odata.Expr) (bool, error) {
			return c.dest.MessageExists(ctx, folderID, filter)
		},
		func(ctx context.Context) (string, error) {
			return c.dest.CreateMessage(ctx, folderID, msg)
		},
	)
}

// ImportContact imports contact into folderID, or into the default contacts
// folder when folderID is empty.
func (c *Checker) ImportContact(ctx context.Context, folderID string, contact *archive.Contact) (Outcome, error) {
	return c.importItem(ctx, KindContact, contactLabel(contact), ContactFilter(contact),
		func(ctx context.Context, filter odata.Expr) (bool, error) {
			return c.dest.ContactExists(ctx, folderID, filter)
		},
		func(ctx context.Context) (string, error) {
			return c.dest.CreateContact(ctx, folderID, contact)
		},
	)
}

// ImportEvent imports appt into calendarID, or into the default calendar when
// calendarID is empty. Appointments without a start, or without an end when
// not all-day, are rejected.
func (c *Checker) ImportEvent(ctx context.Context, calendarID string, appt *archive.Appointment) (Outcome, error) {
	if appt.Start.IsZero() || (appt.End.IsZero() && !appt.AllDay) {
		return OutcomeErrored, fmt.Errorf("event %q: %w", appt.Subject, ErrMissingEventTime)
	}
	normalized := NormalizeAllDay(appt, c.opts.location())
	return c.importItem(ctx, KindCalendar, normalized.Subject, EventFilter(normalized),
		func(ctx context.Context, filter odata.Expr) (bool, error) {
			return c.dest.EventExists(ctx, calendarID, filter)
		},
		func(ctx context.Context) (string, error) {
			return c.dest.CreateEvent(ctx, calendarID, normalized)
		},
	)
}

type existsFunc func(ctx context.Context, filter odata.Expr) (bool, error)
type createFunc func(ctx context.Context) (string, error)

func (c *Checker) importItem(ctx context.Context, kind Kind, label string, filter odata.Expr, exists existsFunc, create createFunc) (Outcome, error) {
	entry := log.WithFields(log.Fields{"kind": kind, "item": label})

	switch {
	case filter == nil:
		entry.Warn("importing unidentified item")
	default:
		found, err := exists(ctx, filter)
		switch {
		case err != nil && !c.opts.BestEffortCreateOnCheckFailure:
			return OutcomeErrored, fmt.Errorf("check %s %q: %w", kind, label, err)
		case err != nil:
			entry.WithError(err).Warn("importing after check error")
		case found:
			entry.Info("skipped existing")
			return OutcomeExisting, nil
		default:
			entry.Info("importing")
		}
	}

	if _, err := create(ctx); err != nil {
		return OutcomeErrored, fmt.Errorf("create %s %q: %w", kind, label, err)
	}
	return OutcomeCreated, nil
}

func contactLabel(c *archive.Contact) string {
	switch {
	case c.DisplayName != "":
		return c.DisplayName
	case c.Email != "":
		return c.Email
	}
	return "Unknown"
}
