package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
)

const messageColumns = `id, project_id, sender_role, sender_name, content, created_at, is_read`

func scanMessage(row rowScanner) (*domain.Message, error) {
	var m domain.Message
	var role string
	if err := row.Scan(&m.ID, &m.ProjectID, &role, &m.SenderName, &m.Content, &m.CreatedAt, &m.IsRead); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	m.SenderRole = domain.Role(role)
	return &m, nil
}

// InsertMessage appends m. Replaying the same id returns the stored row.
func (s *PostgresStore) InsertMessage(ctx context.Context, m *domain.Message) (*domain.Message, bool, error) {
	row := s.db.QueryRowContext(ctx, `
INSERT INTO project_messages (id, project_id, sender_role, sender_name, content, created_at, is_read)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING
RETURNING `+messageColumns,
		m.ID, m.ProjectID, string(m.SenderRole), m.SenderName, m.Content, m.CreatedAt, m.IsRead)

	stored, err := scanMessage(row)
	if err == nil {
		return stored, true, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return nil, false, domain.ErrNotFound
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("insert message: %w", err)
	}

	// conflict on id: the message was already recorded by an earlier attempt
	existing, err := scanMessage(s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM project_messages WHERE id = $1`, m.ID))
	if err != nil {
		return nil, false, fmt.Errorf("load existing message: %w", err)
	}
	if existing.ProjectID != m.ProjectID {
		return nil, false, domain.Invalid("message id %s belongs to another project", m.ID)
	}
	return existing, false, nil
}

// ListMessages returns the project's log in (created_at, id) order,
// optionally only the part strictly after the cursor.
func (s *PostgresStore) ListMessages(ctx context.Context, projectID string, after *domain.Cursor) ([]domain.Message, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if after == nil {
		rows, err = s.db.QueryContext(ctx, `
SELECT `+messageColumns+`
FROM project_messages
WHERE project_id = $1
ORDER BY created_at, id`, projectID)
	} else {
		rows, err = s.db.QueryContext(ctx, `
SELECT `+messageColumns+`
FROM project_messages
WHERE project_id = $1 AND (created_at, id) > ($2, $3)
ORDER BY created_at, id`, projectID, after.CreatedAt, after.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Message, 0, 32)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead flags every unread message sent by the other side as read.
func (s *PostgresStore) MarkRead(ctx context.Context, projectID string, viewer domain.Role) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE project_messages
SET is_read = true
WHERE project_id = $1 AND sender_role <> $2 AND NOT is_read`,
		projectID, string(viewer.ChannelSide()))
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return res.RowsAffected()
}

// CountUnread counts the other side's unread messages straight from the rows.
func (s *PostgresStore) CountUnread(ctx context.Context, projectID string, viewer domain.Role) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
SELECT count(*)
FROM project_messages
WHERE project_id = $1 AND sender_role <> $2 AND NOT is_read`,
		projectID, string(viewer.ChannelSide())).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}
