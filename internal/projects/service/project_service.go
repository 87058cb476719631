package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/fanout"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/users"
)

const (
	maxNameLen        = 200
	maxDescriptionLen = 5000
)

// ProjectService handles project creation, overview listing and the
// non-status project updates.
type ProjectService struct {
	resolver *Resolver
	profiles users.Directory
	log      zerolog.Logger
	now      func() time.Time
}

// NewProjectService creates a project service. profiles may be nil, in which
// case client names fall back to owner ids.
func NewProjectService(resolver *Resolver, profiles users.Directory, log zerolog.Logger) *ProjectService {
	return &ProjectService{
		resolver: resolver,
		profiles: profiles,
		log:      log.With().Str("service", "projects").Logger(),
		now:      time.Now,
	}
}

// Create opens a new project owned by the calling client.
func (s *ProjectService) Create(ctx context.Context, a domain.Actor, in domain.CreateProjectInput) (*domain.Project, error) {
	if a.Role == domain.RoleDesigner {
		return nil, domain.ErrUnauthorized
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.Invalid("name is required")
	}
	if len(name) > maxNameLen {
		return nil, domain.Invalid("name longer than %d characters", maxNameLen)
	}
	if len(in.Description) > maxDescriptionLen {
		return nil, domain.Invalid("description longer than %d characters", maxDescriptionLen)
	}

	b, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	now := stamp(s.now())
	p := &domain.Project{
		OwnerID:     a.ID,
		Name:        name,
		Type:        strings.TrimSpace(in.Type),
		Description: strings.TrimSpace(in.Description),
		Deadline:    in.Deadline,
		Status:      domain.StatusInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := b.Store.CreateProject(ctx, p); err != nil {
		return nil, err
	}

	s.log.Info().Str("project_id", p.ID).Bool("durable", b.Durable).Msg("project created")
	return p, nil
}

// Get returns one project card with the caller's unread count.
func (s *ProjectService) Get(ctx context.Context, a domain.Actor, projectID string) (*domain.ProjectSummary, error) {
	b, p, err := s.resolver.open(ctx, a, projectID)
	if err != nil {
		return nil, err
	}
	unread, err := b.Store.CountUnread(ctx, p.ID, a.Role)
	if err != nil {
		return nil, err
	}
	names := s.clientNames(ctx, b, a, []domain.Project{*p})
	return &domain.ProjectSummary{Project: *p, ClientName: names[p.OwnerID], Unread: unread}, nil
}

// List returns the caller's project overview, filtered and sorted.
func (s *ProjectService) List(ctx context.Context, a domain.Actor, f domain.ProjectFilter) ([]domain.ProjectSummary, error) {
	b, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	projects, err := b.Store.ListProjects(ctx, scopeFor(b, a))
	if err != nil {
		return nil, err
	}

	names := s.clientNames(ctx, b, a, projects)
	items := make([]domain.ProjectSummary, 0, len(projects))
	for _, p := range projects {
		unread, err := b.Store.CountUnread(ctx, p.ID, a.Role)
		if err != nil {
			return nil, err
		}
		items = append(items, domain.ProjectSummary{Project: p, ClientName: names[p.OwnerID], Unread: unread})
	}

	return domain.FilterProjects(items, f), nil
}

// AssignDesigner attaches a designer to a project. Admin only.
func (s *ProjectService) AssignDesigner(ctx context.Context, a domain.Actor, projectID, designerID string) (*domain.Project, error) {
	if a.Role != domain.RoleAdmin {
		return nil, domain.ErrUnauthorized
	}
	designerID = strings.TrimSpace(designerID)
	if designerID == "" {
		return nil, domain.Invalid("designer_id is required")
	}

	b, _, err := s.resolver.open(ctx, a, projectID)
	if err != nil {
		return nil, err
	}
	p, err := b.Store.AssignDesigner(ctx, projectID, designerID, stamp(s.now()))
	if err != nil {
		return nil, err
	}

	publishProject(ctx, s.log, b, p)
	return p, nil
}

// LogHours adds worked hours to a project. hoursUsed never decreases.
func (s *ProjectService) LogHours(ctx context.Context, a domain.Actor, projectID string, hours float64) (*domain.Project, error) {
	if a.Role != domain.RoleDesigner && a.Role != domain.RoleAdmin {
		return nil, domain.ErrUnauthorized
	}
	if hours < 0 || math.IsNaN(hours) || math.IsInf(hours, 0) {
		return nil, domain.Invalid("hours must be a non-negative number")
	}

	b, _, err := s.resolver.open(ctx, a, projectID)
	if err != nil {
		return nil, err
	}
	return b.Store.AddHours(ctx, projectID, hours, stamp(s.now()))
}

// clientNames resolves owner display names. Lookup failures only degrade the
// names, never the listing.
func (s *ProjectService) clientNames(ctx context.Context, b Backend, a domain.Actor, projects []domain.Project) map[string]string {
	names := make(map[string]string, len(projects))
	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		names[p.OwnerID] = p.OwnerID
		ids = append(ids, p.OwnerID)
	}

	if !b.Durable {
		for id := range names {
			if id == a.ID {
				names[id] = a.Name
			}
		}
		return names
	}
	if s.profiles == nil || len(ids) == 0 {
		return names
	}

	profiles, err := s.profiles.GetProfiles(ctx, ids)
	if err != nil {
		s.log.Warn().Err(err).Int("ids", len(ids)).Msg("profile lookup failed")
		return names
	}
	for id, p := range profiles {
		names[id] = p.DisplayName
	}
	return names
}

// publishProject pushes a project update to live viewers. Viewers that miss
// it pick the change up on their next resync.
func publishProject(ctx context.Context, log zerolog.Logger, b Backend, p *domain.Project) {
	if err := b.Bus.Publish(ctx, fanout.StatusEvent(*p)); err != nil {
		log.Warn().Err(err).Str("project_id", p.ID).Msg("project update not fanned out")
	}
}

// stamp normalizes timestamps to the precision both stores keep.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
