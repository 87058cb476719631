package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/utils"
)

// localRecord is the persisted layout of one project in local mode:
// the project row with its messages and files embedded inline.
type localRecord struct {
	Project  domain.Project       `json:"project"`
	Messages []domain.Message     `json:"messages"`
	Files    []domain.ProjectFile `json:"files"`
}

// LocalStore is the single-device shadow store used when no session exists.
// All writes go through one connection and one mutex.
type LocalStore struct {
	db *sql.DB
	mu sync.Mutex
}

var _ Store = (*LocalStore)(nil)

// OpenLocalStore opens (or creates) the SQLite file at path.
func OpenLocalStore(ctx context.Context, path string) (*LocalStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty local store path")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create local store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	const schema = `
CREATE TABLE IF NOT EXISTS local_projects (
    id         TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    record     TEXT NOT NULL
)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate local store: %w", err)
	}

	return &LocalStore{db: db}, nil
}

// Close releases the database handle.
func (s *LocalStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *LocalStore) load(ctx context.Context, q DBTX, projectID string) (*localRecord, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT record FROM local_projects WHERE id = ?`, projectID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load local project: %w", err)
	}
	var rec localRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode local project %s: %w", projectID, err)
	}
	return &rec, nil
}

func (s *LocalStore) save(ctx context.Context, q DBTX, rec *localRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode local project: %w", err)
	}
	_, err = q.ExecContext(ctx, `
INSERT INTO local_projects (id, created_at, record) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET record = excluded.record`,
		rec.Project.ID, rec.Project.CreatedAt.UTC().Format(time.RFC3339Nano), string(raw))
	if err != nil {
		return fmt.Errorf("save local project: %w", err)
	}
	return nil
}

// mutate runs fn against the project's record inside one transaction and
// persists the result when fn succeeds.
func (s *LocalStore) mutate(ctx context.Context, projectID string, fn func(rec *localRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin local transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := s.load(ctx, tx, projectID)
	if err != nil {
		return err
	}
	if err := fn(rec); err != nil {
		return err
	}
	if err := s.save(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *LocalStore) read(ctx context.Context, projectID string) (*localRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, s.db, projectID)
}

func (s *LocalStore) CreateProject(ctx context.Context, p *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		for i := 0; i < 5 && p.ID == ""; i++ {
			id, err := utils.NewTextID("proj")
			if err != nil {
				return err
			}
			if _, err := s.load(ctx, s.db, id); errors.Is(err, domain.ErrNotFound) {
				p.ID = id
			}
		}
		if p.ID == "" {
			return fmt.Errorf("failed to generate unique project id")
		}
	} else if _, err := s.load(ctx, s.db, p.ID); err == nil {
		return domain.Invalid("project %s already exists", p.ID)
	}

	rec := &localRecord{Project: *p, Messages: []domain.Message{}, Files: []domain.ProjectFile{}}
	return s.save(ctx, s.db, rec)
}

func (s *LocalStore) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	rec, err := s.read(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &rec.Project, nil
}

func (s *LocalStore) ListProjects(ctx context.Context, scope domain.ProjectScope) ([]domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT record FROM local_projects ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list local projects: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Project, 0, 16)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec localRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode local project: %w", err)
		}
		p := rec.Project
		if scope.OwnerID != "" && p.OwnerID != scope.OwnerID {
			continue
		}
		if scope.DesignerID != "" && (p.DesignerID == nil || *p.DesignerID != scope.DesignerID) {
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *LocalStore) UpdateStatus(ctx context.Context, projectID string, next domain.Status, at time.Time, check StatusCheck) (*domain.StatusChange, error) {
	var change domain.StatusChange
	errUnchanged := errors.New("unchanged")

	err := s.mutate(ctx, projectID, func(rec *localRecord) error {
		change.Previous = rec.Project.Status
		if rec.Project.Status == next {
			p := rec.Project
			change.Project = &p
			return errUnchanged
		}
		if check != nil {
			if err := check(rec.Project.Status); err != nil {
				return err
			}
		}
		rec.Project.Status = next
		rec.Project.UpdatedAt = at
		p := rec.Project
		change.Project = &p
		change.Changed = true
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return &change, nil
	}
	if err != nil {
		return nil, err
	}
	return &change, nil
}

func (s *LocalStore) AssignDesigner(ctx context.Context, projectID, designerID string, at time.Time) (*domain.Project, error) {
	var out domain.Project
	err := s.mutate(ctx, projectID, func(rec *localRecord) error {
		id := designerID
		rec.Project.DesignerID = &id
		rec.Project.UpdatedAt = at
		out = rec.Project
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *LocalStore) AddHours(ctx context.Context, projectID string, delta float64, at time.Time) (*domain.Project, error) {
	var out domain.Project
	err := s.mutate(ctx, projectID, func(rec *localRecord) error {
		rec.Project.HoursUsed += delta
		rec.Project.UpdatedAt = at
		out = rec.Project
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *LocalStore) InsertMessage(ctx context.Context, m *domain.Message) (*domain.Message, bool, error) {
	var stored domain.Message
	inserted := true
	err := s.mutate(ctx, m.ProjectID, func(rec *localRecord) error {
		for _, existing := range rec.Messages {
			if existing.ID == m.ID {
				stored = existing
				inserted = false
				return nil
			}
		}
		rec.Messages = append(rec.Messages, *m)
		stored = *m
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &stored, inserted, nil
}

func (s *LocalStore) ListMessages(ctx context.Context, projectID string, after *domain.Cursor) ([]domain.Message, error) {
	rec, err := s.read(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return domain.MessagesAfter(rec.Messages, after), nil
}

func (s *LocalStore) MarkRead(ctx context.Context, projectID string, viewer domain.Role) (int64, error) {
	side := viewer.ChannelSide()
	var n int64
	err := s.mutate(ctx, projectID, func(rec *localRecord) error {
		for i := range rec.Messages {
			if rec.Messages[i].SenderRole != side && !rec.Messages[i].IsRead {
				rec.Messages[i].IsRead = true
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *LocalStore) CountUnread(ctx context.Context, projectID string, viewer domain.Role) (int, error) {
	rec, err := s.read(ctx, projectID)
	if err != nil {
		return 0, err
	}
	return domain.CountUnread(rec.Messages, viewer), nil
}

func (s *LocalStore) InsertFile(ctx context.Context, f *domain.ProjectFile) error {
	return s.mutate(ctx, f.ProjectID, func(rec *localRecord) error {
		rec.Files = append(rec.Files, *f)
		return nil
	})
}

func (s *LocalStore) DeleteFile(ctx context.Context, projectID, fileID string) (bool, error) {
	removed := false
	err := s.mutate(ctx, projectID, func(rec *localRecord) error {
		kept := rec.Files[:0]
		for _, f := range rec.Files {
			if f.ID == fileID {
				removed = true
				continue
			}
			kept = append(kept, f)
		}
		rec.Files = kept
		return nil
	})
	return removed, err
}

func (s *LocalStore) ListFiles(ctx context.Context, projectID string) ([]domain.ProjectFile, error) {
	rec, err := s.read(ctx, projectID)
	if err != nil {
		return nil, err
	}
	files := make([]domain.ProjectFile, len(rec.Files))
	copy(files, rec.Files)
	domain.SortFilesNewestFirst(files)
	return files, nil
}
