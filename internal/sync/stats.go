package sync

import (
	"fmt"
	"strings"
)

// Outcome is the result of processing one folder or item.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeExisting
	OutcomeErrored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeExisting:
		return "skipped_existing"
	case OutcomeErrored:
		return "errored"
	}
	return "unknown"
}

// Counters tracks outcomes for one kind. Total always equals
// Created + SkippedExisting + ErroredOut because Add is the only way to count.
type Counters struct {
	Total           int `json:"total"`
	Created         int `json:"created"`
	SkippedExisting int `json:"skipped_existing"`
	ErroredOut      int `json:"errored_out"`
}

// Add counts one outcome.
func (c *Counters) Add(o Outcome) {
	c.Total++
	switch o {
	case OutcomeCreated:
		c.Created++
	case OutcomeExisting:
		c.SkippedExisting++
	default:
		c.ErroredOut++
	}
}

// Merge adds other into c.
func (c *Counters) Merge(other Counters) {
	c.Total += other.Total
	c.Created += other.Created
	c.SkippedExisting += other.SkippedExisting
	c.ErroredOut += other.ErroredOut
}

// Balanced reports whether the totals add up.
func (c Counters) Balanced() bool {
	return c.Total == c.Created+c.SkippedExisting+c.ErroredOut
}

// Statistics holds per-kind counters. The same shape is used for folders and
// for items, where mail counts messages, contact counts contacts and calendar
// counts events.
type Statistics struct {
	Mail     Counters `json:"mail"`
	Contact  Counters `json:"contact"`
	Calendar Counters `json:"calendar"`
}

func (s *Statistics) counters(kind Kind) *Counters {
	switch kind {
	case KindContact:
		return &s.Contact
	case KindCalendar:
		return &s.Calendar
	default:
		return &s.Mail
	}
}

// Record counts one outcome for kind.
func (s *Statistics) Record(kind Kind, o Outcome) {
	s.counters(kind).Add(o)
}

// For returns the counters of kind.
func (s Statistics) For(kind Kind) Counters {
	return *s.counters(kind)
}

// Merge adds other into s.
func (s *Statistics) Merge(other Statistics) {
	s.Mail.Merge(other.Mail)
	s.Contact.Merge(other.Contact)
	s.Calendar.Merge(other.Calendar)
}

// Balanced reports whether every kind's totals add up.
func (s Statistics) Balanced() bool {
	return s.Mail.Balanced() && s.Contact.Balanced() && s.Calendar.Balanced()
}

// Summary renders the statistics as an indented block, one line per kind and counter.
func (s Statistics) Summary(title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", title)
	rows := []struct {
		label string
		get   func(Counters) int
	}{
		{"Total", func(c Counters) int { return c.Total }},
		{"Created", func(c Counters) int { return c.Created }},
		{"Skipped (already exist)", func(c Counters) int { return c.SkippedExisting }},
		{"Skipped (due to errors)", func(c Counters) int { return c.ErroredOut }},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "  %s:\n", row.label)
		for _, k := range Kinds {
			fmt.Fprintf(&b, "    %-8s %d\n", k, row.get(s.For(k)))
		}
	}
	return b.String()
}
