package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Martian-dev/pst-migrate/internal/sync"
)

// Run status values.
const (
	StatusRunning = "RUNNING"
	StatusDone    = "DONE"
	StatusFailed  = "FAILED"
)

// Run is one journaled pass.
type Run struct {
	ID         string
	SourcePath string
	Mailbox    string
	Phase      string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Folders    sync.Statistics
	Items      sync.Statistics
	LastError  string
}

// OutcomeRecord is a journaled folder or item outcome.
type OutcomeRecord struct {
	Seq     int64
	At      time.Time
	Scope   string
	Kind    string
	Folder  string
	Name    string
	Outcome string
	Error   string
}

// EventRecord is the published form of a sync.Event.
type EventRecord struct {
	RunID   string    `json:"run_id"`
	Seq     int64     `json:"seq"`
	Scope   string    `json:"scope"`
	Kind    string    `json:"kind,omitempty"`
	Folder  string    `json:"folder,omitempty"`
	Name    string    `json:"name"`
	Outcome string    `json:"outcome,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// BeginRun records the start of a pass.
func (s *Store) BeginRun(ctx context.Context, runID, sourcePath, mailbox string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO runs (run_id, source_path, mailbox, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, runID, sourcePath, mailbox, StatusRunning, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final statistics. runErr marks the run failed.
func (s *Store) FinishRun(ctx context.Context, report *sync.Report, runErr error) error {
	foldersJSON, err := json.Marshal(report.Folders)
	if err != nil {
		return fmt.Errorf("failed to encode folder statistics: %w", err)
	}
	itemsJSON, err := json.Marshal(report.Items)
	if err != nil {
		return fmt.Errorf("failed to encode item statistics: %w", err)
	}

	status, lastError := StatusDone, sql.NullString{}
	if runErr != nil {
		status = StatusFailed
		lastError = sql.NullString{String: runErr.Error(), Valid: true}
	}
	finished := report.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	_, err = s.DB.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, finished_at = ?, folders_json = ?, items_json = ?,
		    last_error = COALESCE(?, last_error)
		WHERE run_id = ?
	`, status, finished.Unix(), string(foldersJSON), string(itemsJSON), lastError, report.RunID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// Observe implements sync.Observer. Journal failures are logged and never
// interrupt the pass.
func (s *Store) Observe(ctx context.Context, ev sync.Event) {
	if err := s.observe(ctx, ev); err != nil {
		log.WithError(err).WithField("run", ev.RunID).Warn("failed to journal event")
	}
}

func (s *Store) observe(ctx context.Context, ev sync.Event) error {
	rec := EventRecord{
		RunID:  ev.RunID,
		Seq:    s.nextSeq(ev.RunID),
		Scope:  string(ev.Scope),
		Kind:   string(ev.Kind),
		Folder: ev.Folder,
		Name:   ev.Name,
		At:     ev.At,
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	if ev.Scope != sync.ScopeRun {
		rec.Outcome = ev.Outcome.String()
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if ev.Scope == sync.ScopeRun {
		_, err = tx.ExecContext(ctx, `
			UPDATE runs SET phase = ?, last_error = COALESCE(?, last_error) WHERE run_id = ?
		`, rec.Name, nullString(rec.Error), rec.RunID)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO outcomes (run_id, seq, ts, scope, kind, folder, name, outcome, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.RunID, rec.Seq, rec.At.Unix(), rec.Scope, rec.Kind, rec.Folder, rec.Name, rec.Outcome, nullString(rec.Error))
	}
	if err != nil {
		return fmt.Errorf("failed to record %s event: %w", rec.Scope, err)
	}

	if s.Outbox != nil {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		subject, msgID := s.Outbox(rec)
		if err := appendOutboxTx(ctx, tx, subject, rec.Scope, payload, msgID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RecentRuns lists the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT run_id, source_path, mailbox, phase, status, started_at, finished_at,
		       folders_json, items_json, last_error
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                      Run
			started                int64
			finished               sql.NullInt64
			foldersJSON, itemsJSON sql.NullString
			lastError              sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.SourcePath, &r.Mailbox, &r.Phase, &r.Status, &started, &finished,
			&foldersJSON, &itemsJSON, &lastError); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.StartedAt = time.Unix(started, 0)
		if finished.Valid {
			t := time.Unix(finished.Int64, 0)
			r.FinishedAt = &t
		}
		if foldersJSON.Valid {
			if err := json.Unmarshal([]byte(foldersJSON.String), &r.Folders); err != nil {
				return nil, fmt.Errorf("failed to decode folder statistics of %s: %w", r.ID, err)
			}
		}
		if itemsJSON.Valid {
			if err := json.Unmarshal([]byte(itemsJSON.String), &r.Items); err != nil {
				return nil, fmt.Errorf("failed to decode item statistics of %s: %w", r.ID, err)
			}
		}
		r.LastError = lastError.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Outcomes lists a run's outcomes in order, optionally only those equal to outcome.
func (s *Store) Outcomes(ctx context.Context, runID, outcome string) ([]OutcomeRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT seq, ts, scope, kind, folder, name, outcome, error
		FROM outcomes
		WHERE run_id = ? AND (? = '' OR outcome = ?)
		ORDER BY seq
	`, runID, outcome, outcome)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var out []OutcomeRecord
	for rows.Next() {
		var (
			rec    OutcomeRecord
			ts     int64
			errMsg sql.NullString
		)
		if err := rows.Scan(&rec.Seq, &ts, &rec.Scope, &rec.Kind, &rec.Folder, &rec.Name, &rec.Outcome, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan outcome row: %w", err)
		}
		rec.At = time.Unix(ts, 0)
		rec.Error = errMsg.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
