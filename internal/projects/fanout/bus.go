// Package fanout delivers project channel events to every viewer attached to
// a project.
//
// Delivery is at-least-once and preserves the publish order of a single
// sender, but not a global order across senders: consumers reconcile with the
// (created_at, id) order of domain.Message. When a bus cannot deliver, it
// calls the subscriber's OnResync so the viewer re-reads the full log from
// the store instead of silently missing updates.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
)

// EventKind distinguishes the payload carried by an Event.
type EventKind string

const (
	KindMessage EventKind = "message"
	KindStatus  EventKind = "status"
)

// Event is one fan-out notification for a project.
type Event struct {
	Kind      EventKind       `json:"kind"`
	ProjectID string          `json:"project_id"`
	Message   *domain.Message `json:"message,omitempty"`
	Project   *domain.Project `json:"project,omitempty"`
}

// MessageEvent wraps an inserted message.
func MessageEvent(m domain.Message) Event {
	return Event{Kind: KindMessage, ProjectID: m.ProjectID, Message: &m}
}

// StatusEvent wraps a project whose status changed.
func StatusEvent(p domain.Project) Event {
	return Event{Kind: KindStatus, ProjectID: p.ID, Project: &p}
}

func (e Event) encode() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	return string(b), nil
}

func decodeEvent(raw string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}

// Handler receives events for one subscription. Callbacks run on the
// subscription's own goroutine, one at a time; nil callbacks are skipped.
type Handler struct {
	OnMessage func(domain.Message)
	OnStatus  func(domain.Project)
	OnResync  func()
}

func (h Handler) dispatch(e Event) {
	switch e.Kind {
	case KindMessage:
		if h.OnMessage != nil && e.Message != nil {
			h.OnMessage(*e.Message)
		}
	case KindStatus:
		if h.OnStatus != nil && e.Project != nil {
			h.OnStatus(*e.Project)
		}
	}
}

func (h Handler) resync() {
	if h.OnResync != nil {
		h.OnResync()
	}
}

// Subscription is a handle to an attached viewer. Close is idempotent and
// safe to call from any goroutine.
type Subscription interface {
	Close() error
}

// Bus is the channel fan-out.
type Bus interface {
	// Publish queues e for every subscriber of e.ProjectID. A nil error means
	// the event is durably queued, not that every subscriber has seen it.
	Publish(ctx context.Context, e Event) error
	// Subscribe attaches h to projectID until the subscription is closed or
	// ctx ends, whichever happens first.
	Subscribe(ctx context.Context, projectID string, h Handler) (Subscription, error)
}
