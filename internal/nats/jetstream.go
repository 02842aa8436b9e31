// Package natsjs publishes journaled migration events to NATS JetStream.
//
// Every event lands on migration.<run>.<scope>.<last>, where last is the
// phase for run events and the outcome for folder and item events, so a
// consumer can follow one run with migration.<run>.> or watch failures
// across runs with migration.*.*.errored.
package natsjs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Martian-dev/pst-migrate/internal/eventstore/sqlite"
	"github.com/Martian-dev/pst-migrate/internal/sync"
)

const (
	// StreamName is the JetStream stream holding migration events.
	StreamName = "MIGRATION_EVENTS"
	// SubjectPrefix roots every migration event subject.
	SubjectPrefix = "migration"

	// dedupWindow bounds how long JetStream remembers a message id. It only
	// needs to cover a dispatcher retrying after a lost acknowledgement.
	dedupWindow = 10 * time.Minute
	retention   = 30 * 24 * time.Hour
)

// Address implements sqlite.Addresser for migration events.
func Address(rec sqlite.EventRecord) (subject, msgID string) {
	return EventSubject(rec), EventMsgID(rec)
}

// EventSubject returns the subject rec is published on.
func EventSubject(rec sqlite.EventRecord) string {
	last := rec.Outcome
	if rec.Scope == string(sync.ScopeRun) {
		last = rec.Name
	}
	return strings.Join([]string{SubjectPrefix, token(rec.RunID), token(rec.Scope), token(last)}, ".")
}

// EventMsgID identifies rec for JetStream deduplication. Sequence numbers
// are unique within a run.
func EventMsgID(rec sqlite.EventRecord) string {
	return rec.RunID + "|" + strconv.FormatInt(rec.Seq, 10)
}

// token makes s usable as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// Publisher wraps NATS JetStream for publishing events
type Publisher struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// NewPublisher connects to the NATS server at url.
func NewPublisher(url string) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("pst-migrate"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	return &Publisher{nc: nc, js: js}, nil
}

// streamConfig covers every migration event subject.
func streamConfig() *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{SubjectPrefix + ".>"},
		Storage:    nats.FileStorage,
		Retention:  nats.LimitsPolicy,
		Duplicates: dedupWindow,
		MaxAge:     retention,
	}
}

// EnsureStream creates the migration event stream unless it already exists.
func (p *Publisher) EnsureStream(ctx context.Context) error {
	streamInfo, err := p.js.StreamInfo(StreamName, nats.Context(ctx))
	if err == nil && streamInfo != nil {
		return nil
	}

	_, err = p.js.AddStream(streamConfig(), nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil
		}
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// Publish sends one outbox message. JetStream drops it if msgID was seen
// within the dedup window, so republishing after a lost ack is safe.
func (p *Publisher) Publish(subject string, payload []byte, msgID string) error {
	ack, err := p.js.Publish(subject, payload, nats.MsgId(msgID))
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	if ack != nil && ack.Stream != StreamName {
		return fmt.Errorf("published %s to stream %s, want %s", subject, ack.Stream, StreamName)
	}
	return nil
}

// Close drains and closes the NATS connection
func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}
