package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
)

// LifecycleService is the only writer of project status.
type LifecycleService struct {
	resolver *Resolver
	log      zerolog.Logger
	now      func() time.Time
}

func NewLifecycleService(resolver *Resolver, log zerolog.Logger) *LifecycleService {
	return &LifecycleService{
		resolver: resolver,
		log:      log.With().Str("service", "lifecycle").Logger(),
		now:      time.Now,
	}
}

// Transition moves a project to next on behalf of a.
//
// Requesting the current status succeeds without a write. The role gate is
// evaluated against the status found under the store's lock. When expected is
// set and that status differs from it, the write still lands and the updated
// project is returned together with a *domain.ConflictError naming the value
// that was overwritten.
func (s *LifecycleService) Transition(ctx context.Context, a domain.Actor, projectID string, next domain.Status, expected *domain.Status) (*domain.Project, error) {
	if !next.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	b, _, err := s.resolver.open(ctx, a, projectID)
	if err != nil {
		return nil, err
	}

	change, err := b.Store.UpdateStatus(ctx, projectID, next, stamp(s.now()), func(current domain.Status) error {
		return domain.CheckTransition(a.Role, current, next)
	})
	if err != nil {
		return nil, err
	}
	if !change.Changed {
		return change.Project, nil
	}

	s.log.Info().
		Str("project_id", projectID).
		Str("from", string(change.Previous)).
		Str("to", string(next)).
		Str("role", string(a.Role)).
		Msg("project status changed")
	publishProject(ctx, s.log, b, change.Project)

	if expected != nil && *expected != change.Previous {
		return change.Project, &domain.ConflictError{Expected: *expected, Overwritten: change.Previous}
	}
	return change.Project, nil
}
