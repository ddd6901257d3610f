package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/jsmemes/internal/apperror"
	"github.com/sakif/jsmemes/internal/model"
	"github.com/sakif/jsmemes/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK
var _ repository.SnippetRepository = (*DB)(nil)

const snippetColumns = `id, name, code, description, created_at, updated_at`

func scanSnippet(row interface{ Scan(...any) error }, s *model.Snippet) error {
	return row.Scan(&s.ID, &s.Name, &s.Code, &s.Description, &s.CreatedAt, &s.UpdatedAt)
}

// Create inserts a snippet, filling in its ID (an xid: 20 URL-safe chars,
// sortable by creation time) and timestamps.
func (db *DB) Create(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = xid.New().String()
	now := time.Now().UTC()
	snippet.CreatedAt = now
	snippet.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO snippets (`+snippetColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		snippet.ID, snippet.Name, snippet.Code, snippet.Description,
		snippet.CreatedAt, snippet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}
	return nil
}

// GetByID returns apperror.ErrNotFound when no snippet has the ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	var snippet model.Snippet
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE id = ?`, id)
	if err := scanSnippet(row, &snippet); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %s: %w", id, err)
	}
	return &snippet, nil
}

// List returns snippets newest first. The page size defaults to 20 and is
// capped at 100.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	limit, offset := clampPage(opts)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+snippetColumns+`
		 FROM snippets
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	defer rows.Close()

	snippets := make([]model.Snippet, 0, limit)
	for rows.Next() {
		var s model.Snippet
		if err := scanSnippet(rows, &s); err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		snippets = append(snippets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}
	return snippets, nil
}

// Update overwrites name, code and description. id and created_at never
// change.
func (db *DB) Update(ctx context.Context, snippet *model.Snippet) error {
	snippet.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE snippets
		 SET name = ?, code = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		snippet.Name, snippet.Code, snippet.Description, snippet.UpdatedAt, snippet.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating snippet %s: %w", snippet.ID, err)
	}
	return expectOneRow(result, "snippet", snippet.ID)
}

// Delete removes a snippet. Runs that referenced it keep their copy of the
// code.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting snippet %s: %w", id, err)
	}
	return expectOneRow(result, "snippet", id)
}

// expectOneRow turns "zero rows affected" into apperror.ErrNotFound.
func expectOneRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
