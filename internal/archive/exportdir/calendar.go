package exportdir

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/emersion/go-ical"

	"github.com/Martian-dev/pst-migrate/internal/archive"
)

// readICS parses the events of an iCalendar file. DATE and floating values
// are read in loc.
func readICS(path string, loc *time.Location) ([]archive.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var items []archive.Item
	dec := ical.NewDecoder(f)
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode calendar: %w", err)
		}
		for _, ev := range cal.Events() {
			appt, err := eventToAppointment(ev, loc)
			if err != nil {
				return nil, err
			}
			items = append(items, appt)
		}
	}
	return items, nil
}

func eventToAppointment(ev ical.Event, loc *time.Location) (*archive.Appointment, error) {
	appt := &archive.Appointment{}
	appt.Subject, _ = ev.Props.Text(ical.PropSummary)
	appt.Body, _ = ev.Props.Text(ical.PropDescription)
	appt.Location, _ = ev.Props.Text(ical.PropLocation)

	if p := ev.Props.Get(ical.PropDateTimeStart); p != nil {
		start, err := ev.DateTimeStart(loc)
		if err != nil {
			return nil, fmt.Errorf("event %q start: %w", appt.Subject, err)
		}
		appt.Start = start
		appt.AllDay = p.ValueType() == ical.ValueDate
	}

	if end, err := ev.DateTimeEnd(loc); err == nil {
		appt.End = end
	} else if appt.AllDay {
		appt.End = appt.Start.AddDate(0, 0, 1)
	}
	return appt, nil
}
