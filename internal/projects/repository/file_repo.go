package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
)

// InsertFile records file metadata for a project.
func (s *PostgresStore) InsertFile(ctx context.Context, f *domain.ProjectFile) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO project_files (id, project_id, file_name, file_size_bytes, file_url, uploaded_by_role, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.ID, f.ProjectID, f.FileName, f.FileSizeBytes, f.FileURL, string(f.UploadedByRole), f.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return domain.ErrNotFound
		}
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// DeleteFile removes the file row if it is still there.
func (s *PostgresStore) DeleteFile(ctx context.Context, projectID, fileID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM project_files WHERE id = $1 AND project_id = $2`, fileID, projectID)
	if err != nil {
		return false, fmt.Errorf("delete file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListFiles returns the project's files, most recent first.
func (s *PostgresStore) ListFiles(ctx context.Context, projectID string) ([]domain.ProjectFile, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, project_id, file_name, file_size_bytes, file_url, uploaded_by_role, created_at
FROM project_files
WHERE project_id = $1
ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ProjectFile, 0, 8)
	for rows.Next() {
		var f domain.ProjectFile
		var size sql.NullInt64
		var url sql.NullString
		var role string
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.FileName, &size, &url, &role, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		if size.Valid {
			f.FileSizeBytes = &size.Int64
		}
		if url.Valid {
			f.FileURL = &url.String
		}
		f.UploadedByRole = domain.Role(role)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
