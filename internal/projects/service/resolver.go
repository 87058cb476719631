package service

import (
	"context"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/auth"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/fanout"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/repository"
)

// Backend is the store and fan-out pair serving one request.
type Backend struct {
	Store   repository.Store
	Bus     fanout.Bus
	Durable bool
}

// Resolver picks the active backend from the request context: a verified
// session means durable mode, anything else is the device's local store.
// The two are never merged.
type Resolver struct {
	durable repository.Store
	bus     fanout.Bus
	local   *repository.LocalPool
}

// NewResolver wires the durable store and bus (either may be nil when the
// deployment has no database) with the pool of local device stores.
func NewResolver(durable repository.Store, bus fanout.Bus, local *repository.LocalPool) *Resolver {
	if bus == nil {
		bus = fanout.NoopBus{}
	}
	return &Resolver{durable: durable, bus: bus, local: local}
}

func (r *Resolver) Resolve(ctx context.Context) (Backend, error) {
	if _, ok := auth.SessionFrom(ctx); ok {
		if r.durable == nil {
			return Backend{}, domain.ErrTransportUnavailable
		}
		return Backend{Store: r.durable, Bus: r.bus, Durable: true}, nil
	}

	device := auth.DeviceFrom(ctx)
	if device == "" {
		return Backend{}, domain.Invalid("%s header is required without a session", auth.HeaderDeviceID)
	}
	if r.local == nil {
		return Backend{}, domain.ErrTransportUnavailable
	}
	store, err := r.local.For(ctx, device)
	if err != nil {
		return Backend{}, err
	}
	return Backend{Store: store, Bus: fanout.NoopBus{}}, nil
}

// ActorFor returns the caller identity. In durable mode it comes from the
// session; in local mode the device speaks with the role its UI selected.
func ActorFor(ctx context.Context, localRole domain.Role, localName string) domain.Actor {
	if s, ok := auth.SessionFrom(ctx); ok {
		return domain.Actor{ID: s.UID, Role: s.Role, Name: s.DisplayName}
	}
	if !localRole.Valid() {
		localRole = domain.RoleClient
	}
	if localName == "" {
		localName = "You"
	}
	return domain.Actor{ID: "device:" + auth.DeviceFrom(ctx), Role: localRole, Name: localName}
}

// canAccess limits durable projects to their owner, their designer and admins.
// A local store belongs to one device, so everything in it is visible.
func canAccess(b Backend, a domain.Actor, p *domain.Project) bool {
	if !b.Durable || a.Role == domain.RoleAdmin {
		return true
	}
	switch a.Role {
	case domain.RoleClient:
		return p.OwnerID == a.ID
	case domain.RoleDesigner:
		return p.HasDesigner() && *p.DesignerID == a.ID
	}
	return false
}

func scopeFor(b Backend, a domain.Actor) domain.ProjectScope {
	if !b.Durable {
		return domain.ProjectScope{}
	}
	switch a.Role {
	case domain.RoleClient:
		return domain.ProjectScope{OwnerID: a.ID}
	case domain.RoleDesigner:
		return domain.ProjectScope{DesignerID: a.ID}
	}
	return domain.ProjectScope{}
}

// open resolves the backend and loads a project the actor may see.
func (r *Resolver) open(ctx context.Context, a domain.Actor, projectID string) (Backend, *domain.Project, error) {
	b, err := r.Resolve(ctx)
	if err != nil {
		return Backend{}, nil, err
	}
	p, err := b.Store.GetProject(ctx, projectID)
	if err != nil {
		return Backend{}, nil, err
	}
	if !canAccess(b, a, p) {
		return Backend{}, nil, domain.ErrUnauthorized
	}
	return b, p, nil
}
