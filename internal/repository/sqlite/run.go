package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/jsmemes/internal/apperror"
	"github.com/sakif/jsmemes/internal/executor"
	"github.com/sakif/jsmemes/internal/model"
	"github.com/sakif/jsmemes/internal/repository"
)

var _ repository.RunRepository = (*DB)(nil)

const runColumns = `id, session_id, snippet_id, code, succeeded, events, result, error, duration_ms, created_at`

// CreateRun appends an execution record, filling in ID and CreatedAt.
func (db *DB) CreateRun(ctx context.Context, run *model.Run) error {
	events := run.Events
	if events == nil {
		events = []executor.CapturedEvent{}
	}
	encoded, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("sqlite: encoding run events: %w", err)
	}

	run.ID = xid.New().String()
	run.CreatedAt = time.Now().UTC()

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SessionID, run.SnippetID, run.Code, run.Succeeded,
		string(encoded), run.Result, run.Error, run.DurationMS, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating run: %w", err)
	}
	return nil
}

// GetRun returns apperror.ErrNotFound when no run has the ID.
func (db *DB) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("run", id)
		}
		return nil, fmt.Errorf("sqlite: getting run %s: %w", id, err)
	}
	return run, nil
}

// ListRunsBySession returns a session's runs, newest first.
func (db *DB) ListRunsBySession(ctx context.Context, sessionID string, opts repository.ListOptions) ([]model.Run, error) {
	limit, offset := clampPage(opts)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+runColumns+`
		 FROM runs
		 WHERE session_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		sessionID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning run row: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating runs: %w", err)
	}
	return runs, nil
}

func scanRun(row interface{ Scan(...any) error }) (*model.Run, error) {
	var (
		run    model.Run
		events string
	)
	err := row.Scan(&run.ID, &run.SessionID, &run.SnippetID, &run.Code, &run.Succeeded,
		&events, &run.Result, &run.Error, &run.DurationMS, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(events), &run.Events); err != nil {
		return nil, fmt.Errorf("decoding events of run %s: %w", run.ID, err)
	}
	if run.Events == nil {
		run.Events = []executor.CapturedEvent{}
	}
	return &run, nil
}
