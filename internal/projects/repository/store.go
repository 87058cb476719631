package repository

import (
	"context"
	"time"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
)

// StatusCheck is evaluated against the status found under the store's lock,
// after the no-op guard. Returning an error aborts the write.
type StatusCheck func(current domain.Status) error

// Store is the persistence contract shared by the durable (Postgres) store
// and the per-device local (SQLite) shadow store.
type Store interface {
	CreateProject(ctx context.Context, p *domain.Project) error
	GetProject(ctx context.Context, projectID string) (*domain.Project, error)
	ListProjects(ctx context.Context, scope domain.ProjectScope) ([]domain.Project, error)

	// UpdateStatus atomically reads the current status, returns it unchanged
	// when it already equals next, otherwise runs check and writes next with
	// updated_at = at.
	UpdateStatus(ctx context.Context, projectID string, next domain.Status, at time.Time, check StatusCheck) (*domain.StatusChange, error)
	AssignDesigner(ctx context.Context, projectID, designerID string, at time.Time) (*domain.Project, error)
	AddHours(ctx context.Context, projectID string, delta float64, at time.Time) (*domain.Project, error)

	// InsertMessage appends m. If a message with the same id already exists in
	// the same project, the stored row is returned and inserted is false.
	InsertMessage(ctx context.Context, m *domain.Message) (stored *domain.Message, inserted bool, err error)
	ListMessages(ctx context.Context, projectID string, after *domain.Cursor) ([]domain.Message, error)
	MarkRead(ctx context.Context, projectID string, viewer domain.Role) (int64, error)
	CountUnread(ctx context.Context, projectID string, viewer domain.Role) (int, error)

	InsertFile(ctx context.Context, f *domain.ProjectFile) error
	// DeleteFile reports whether a row was removed; a missing id is not an error.
	DeleteFile(ctx context.Context, projectID, fileID string) (bool, error)
	ListFiles(ctx context.Context, projectID string) ([]domain.ProjectFile, error)
}
