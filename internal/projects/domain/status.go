package domain

import "strings"

// Status is a project's lifecycle state.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusCompleted  Status = "completed"
	StatusOnHold     Status = "on_hold"
	StatusArchived   Status = "archived"
)

// statusPriority is the overview sort order. Archived projects sink to the bottom.
var statusPriority = map[Status]int{
	StatusInProgress: 0,
	StatusReview:     1,
	StatusCompleted:  2,
	StatusOnHold:     3,
	StatusArchived:   4,
}

// Valid reports whether s is one of the five lifecycle states.
func (s Status) Valid() bool {
	_, ok := statusPriority[s]
	return ok
}

// Priority returns the sort rank used by the "status" listing order.
func (s Status) Priority() int {
	if p, ok := statusPriority[s]; ok {
		return p
	}
	return len(statusPriority)
}

// ParseStatus accepts the canonical snake_case form as well as the
// dashboard's display labels ("In Progress", "On Hold", ...).
func ParseStatus(raw string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(raw))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch norm {
	case "inprogress":
		norm = string(StatusInProgress)
	case "onhold":
		norm = string(StatusOnHold)
	}
	s := Status(norm)
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// Role is the part a participant plays in a project.
type Role string

const (
	RoleClient   Role = "client"
	RoleDesigner Role = "designer"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleDesigner || r == RoleAdmin
}

// ChannelSide maps a role onto one of the two sides of the conversation.
// Admins speak and read on the designer side.
func (r Role) ChannelSide() Role {
	if r == RoleClient {
		return RoleClient
	}
	return RoleDesigner
}

// ParseRole normalizes a role string. Unknown values are rejected.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !r.Valid() {
		return "", Invalid("unknown role %q", raw)
	}
	return r, nil
}

// CheckTransition enforces the role gate for moving a project from one
// status to another. Callers handle the from == to no-op before calling it.
//
// Designers and admins may perform any transition. A client may only approve
// a project under review (Review -> Completed). Archived is terminal for
// everyone but admins.
func CheckTransition(role Role, from, to Status) error {
	if !to.Valid() {
		return ErrInvalidStatus
	}
	if from == StatusArchived && role != RoleAdmin {
		return ErrUnauthorized
	}
	switch role {
	case RoleDesigner, RoleAdmin:
		return nil
	case RoleClient:
		if from == StatusReview && to == StatusCompleted {
			return nil
		}
		return ErrUnauthorized
	default:
		return ErrUnauthorized
	}
}
