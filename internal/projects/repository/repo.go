package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/utils"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore is the durable project store used by authenticated sessions.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a durable store on top of db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

const projectColumns = `id, owner_id, designer_id, name, type, description, deadline, status, hours_used, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*domain.Project, error) {
	var p domain.Project
	var designerID sql.NullString
	var deadline sql.NullTime
	var status string

	err := row.Scan(&p.ID, &p.OwnerID, &designerID, &p.Name, &p.Type, &p.Description,
		&deadline, &status, &p.HoursUsed, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if designerID.Valid {
		p.DesignerID = &designerID.String
	}
	if deadline.Valid {
		p.Deadline = &deadline.Time
	}
	p.Status = domain.Status(status)
	return &p, nil
}

// CreateProject inserts p, generating a public id when p.ID is empty.
func (s *PostgresStore) CreateProject(ctx context.Context, p *domain.Project) error {
	if strings.TrimSpace(p.OwnerID) == "" {
		return fmt.Errorf("owner id required")
	}
	generate := p.ID == ""

	for i := 0; i < 5; i++ {
		if generate {
			id, err := utils.NewTextID("proj")
			if err != nil {
				return err
			}
			p.ID = id
		}

		const q = `
INSERT INTO projects (id, owner_id, designer_id, name, type, description, deadline, status, hours_used, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`
		_, err := s.db.ExecContext(ctx, q,
			p.ID, p.OwnerID, p.DesignerID, p.Name, p.Type, p.Description,
			p.Deadline, string(p.Status), p.HoursUsed, p.CreatedAt, p.UpdatedAt)
		if err == nil {
			return nil
		}

		// unique violation on id → retry with a fresh one
		var pgErr *pgconn.PgError
		if generate && errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			continue
		}
		return fmt.Errorf("insert project: %w", err)
	}

	return fmt.Errorf("failed to generate unique project id")
}

// GetProject returns the project or domain.ErrNotFound.
func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	return getProject(ctx, s.db, projectID)
}

func getProject(ctx context.Context, q DBTX, projectID string) (*domain.Project, error) {
	row := q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, projectID)
	return scanProject(row)
}

// ListProjects returns the projects visible in scope, newest first.
func (s *PostgresStore) ListProjects(ctx context.Context, scope domain.ProjectScope) ([]domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE 1 = 1`
	args := []any{}
	argIndex := 1

	if scope.OwnerID != "" {
		query += fmt.Sprintf(" AND owner_id = $%d", argIndex)
		args = append(args, scope.OwnerID)
		argIndex++
	}
	if scope.DesignerID != "" {
		query += fmt.Sprintf(" AND designer_id = $%d", argIndex)
		args = append(args, scope.DesignerID)
		argIndex++
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Project, 0, 16)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus locks the project row, applies the no-op guard and the check,
// then writes the new status.
func (s *PostgresStore) UpdateStatus(ctx context.Context, projectID string, next domain.Status, at time.Time, check StatusCheck) (*domain.StatusChange, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM projects WHERE id = $1 FOR UPDATE`, projectID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("lock project: %w", err)
	}
	prev := domain.Status(current)

	if prev == next {
		p, err := getProject(ctx, tx, projectID)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return &domain.StatusChange{Project: p, Previous: prev, Changed: false}, nil
	}

	if check != nil {
		if err := check(prev); err != nil {
			return nil, err
		}
	}

	p, err := scanProject(tx.QueryRowContext(ctx, `
UPDATE projects
SET status = $2, updated_at = $3
WHERE id = $1
RETURNING `+projectColumns, projectID, string(next), at))
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status: %w", err)
	}
	return &domain.StatusChange{Project: p, Previous: prev, Changed: true}, nil
}

// AssignDesigner sets the designer of a project.
func (s *PostgresStore) AssignDesigner(ctx context.Context, projectID, designerID string, at time.Time) (*domain.Project, error) {
	return scanProject(s.db.QueryRowContext(ctx, `
UPDATE projects
SET designer_id = $2, updated_at = $3
WHERE id = $1
RETURNING `+projectColumns, projectID, designerID, at))
}

// AddHours increments hours_used. Negative deltas are rejected by the caller.
func (s *PostgresStore) AddHours(ctx context.Context, projectID string, delta float64, at time.Time) (*domain.Project, error) {
	return scanProject(s.db.QueryRowContext(ctx, `
UPDATE projects
SET hours_used = hours_used + $2, updated_at = $3
WHERE id = $1
RETURNING `+projectColumns, projectID, delta, at))
}
