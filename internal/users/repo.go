package users

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
)

// Repo is the Postgres-backed profile directory.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

type UpsertUser struct {
	FirebaseUID string
	Email       string
	DisplayName string
	PhotoURL    string
	Role        domain.Role
}

// EnsureUser records the identity behind a verified session so that other
// viewers can resolve its display name, and returns the stored role. Empty
// fields, the role included, never overwrite stored ones.
func (r *Repo) EnsureUser(ctx context.Context, u UpsertUser) (domain.Role, error) {
	if u.FirebaseUID == "" {
		return "", fmt.Errorf("firebase_uid required")
	}

	const q = `
insert into users (firebase_uid, email, display_name, photo_url, role, updated_at)
values ($1, nullif($2,''), nullif($3,''), nullif($4,''), coalesce(nullif($5,''), 'client'), now())
on conflict (firebase_uid) do update
set
  email = coalesce(excluded.email, users.email),
  display_name = coalesce(excluded.display_name, users.display_name),
  photo_url = coalesce(excluded.photo_url, users.photo_url),
  role = case when nullif($5,'') is null then users.role else excluded.role end,
  updated_at = now()
returning role;
`
	var role string
	if err := r.db.QueryRowContext(ctx, q, u.FirebaseUID, u.Email, u.DisplayName, u.PhotoURL, string(u.Role)).Scan(&role); err != nil {
		return "", fmt.Errorf("ensure user: %w", err)
	}
	return domain.Role(role), nil
}

// GetProfiles resolves ids in one round trip. Unknown ids are absent from
// the result.
func (r *Repo) GetProfiles(ctx context.Context, ids []string) (map[string]Profile, error) {
	out := make(map[string]Profile, len(ids))
	ids = dedupe(ids)
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `
select firebase_uid, coalesce(display_name, ''), coalesce(email, ''), role
from users
where firebase_uid = any($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name, email, role string
		if err := rows.Scan(&id, &name, &email, &role); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out[id] = Normalize(map[string]any{
			"id":           id,
			"display_name": name,
			"email":        email,
			"role":         role,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
