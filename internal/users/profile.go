package users

import (
	"fmt"
	"strings"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
)

// Profile is the read-only projection of a user shown next to projects and
// messages.
type Profile struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Email       string      `json:"email"`
	Role        domain.Role `json:"role"`
}

var (
	idKeys    = []string{"id", "uid", "user_id", "firebase_uid", "sub"}
	nameKeys  = []string{"display_name", "displayName", "name", "full_name", "fullName"}
	emailKeys = []string{"email", "email_address"}
	roleKeys  = []string{"role", "user_role", "userRole"}
)

// Normalize turns a loosely shaped payload (token claims, a third-party
// profile document) into a Profile. Missing names fall back to the local
// part of the email, unknown roles to client.
func Normalize(raw map[string]any) Profile {
	p := Profile{
		ID:    firstString(raw, idKeys),
		Email: strings.ToLower(firstString(raw, emailKeys)),
	}

	p.DisplayName = firstString(raw, nameKeys)
	if p.DisplayName == "" && p.Email != "" {
		p.DisplayName, _, _ = strings.Cut(p.Email, "@")
	}
	if p.DisplayName == "" {
		p.DisplayName = "Unknown"
	}

	role, ok := RoleClaim(raw)
	if !ok {
		role = domain.RoleClient
	}
	p.Role = role
	return p
}

// RoleClaim returns the role carried by raw, if it names a known one.
func RoleClaim(raw map[string]any) (domain.Role, bool) {
	role, err := domain.ParseRole(firstString(raw, roleKeys))
	if err != nil {
		return "", false
	}
	return role, true
}

func firstString(raw map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case fmt.Stringer:
			s = t.String()
		case float64, int, int64:
			s = fmt.Sprint(t)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
