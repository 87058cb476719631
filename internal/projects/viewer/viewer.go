// Package viewer keeps one viewer's rendering of a project channel: the
// ordered message log, optimistic echoes of its own sends, and a queue of
// updates for whatever pushes them to the screen.
package viewer

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/fanout"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/service"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/utils"
)

// maxQueued bounds the update queue; past it the queue collapses into a
// single resync.
const maxQueued = 256

// Source is the channel API a viewer reads from and writes to.
type Source interface {
	ListMessages(ctx context.Context, a domain.Actor, projectID string, after *domain.Cursor) ([]domain.Message, error)
	MarkRead(ctx context.Context, a domain.Actor, projectID string) (int64, error)
	Send(ctx context.Context, a domain.Actor, projectID string, in domain.SendMessageInput) (*service.SendResult, error)
	Subscribe(ctx context.Context, a domain.Actor, projectID string, h fanout.Handler) (fanout.Subscription, error)
}

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
	UpdateStatus  UpdateKind = "status"
	UpdateResync  UpdateKind = "resync"
)

// Update is one change to push to the screen. A resync carries the full log.
type Update struct {
	Kind     UpdateKind       `json:"kind"`
	Message  *domain.Message  `json:"message,omitempty"`
	Project  *domain.Project  `json:"project,omitempty"`
	Messages []domain.Message `json:"messages,omitempty"`
}

// Entry is a rendered log line. Pending entries are optimistic echoes not
// yet confirmed by the store.
type Entry struct {
	domain.Message
	Pending bool `json:"pending"`
}

// Viewer is safe for concurrent use.
type Viewer struct {
	src       Source
	actor     domain.Actor
	projectID string
	log       zerolog.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	sub    fanout.Subscription

	mu        sync.Mutex
	confirmed []domain.Message
	ids       map[string]struct{}
	pending   map[string]domain.Message
	queue     []Update
	notify    chan struct{}
}

// Open attaches a viewer to a project: it subscribes first, then loads the
// log, so nothing published in between is lost. Messages from the other side
// are marked read on open and as they arrive. The viewer lives until Close
// or until ctx ends.
func Open(ctx context.Context, src Source, a domain.Actor, projectID string, log zerolog.Logger) (*Viewer, error) {
	vctx, cancel := context.WithCancel(ctx)
	v := &Viewer{
		src:       src,
		actor:     a,
		projectID: projectID,
		log:       log.With().Str("project_id", projectID).Str("viewer", a.ID).Logger(),
		now:       time.Now,
		ctx:       vctx,
		cancel:    cancel,
		ids:       make(map[string]struct{}),
		pending:   make(map[string]domain.Message),
		notify:    make(chan struct{}, 1),
	}

	sub, err := src.Subscribe(vctx, a, projectID, fanout.Handler{
		OnMessage: v.onMessage,
		OnStatus:  v.onStatus,
		OnResync:  v.onResync,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	v.sub = sub

	msgs, err := src.ListMessages(vctx, a, projectID, nil)
	if err != nil {
		_ = sub.Close()
		cancel()
		return nil, err
	}

	v.mu.Lock()
	for _, m := range msgs {
		v.insertLocked(m)
	}
	// The snapshot covers every message so far; only status updates stay queued.
	kept := v.queue[:0]
	for _, u := range v.queue {
		if u.Kind != UpdateMessage {
			kept = append(kept, u)
		}
	}
	v.queue = kept
	unread := v.hasUnreadLocked()
	v.mu.Unlock()

	if unread {
		v.markRead()
	}
	return v, nil
}

// Entries returns the log as it should be rendered: confirmed messages and
// pending echoes in (created_at, id) order.
func (v *Viewer) Entries() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]Entry, 0, len(v.confirmed)+len(v.pending))
	for _, m := range v.confirmed {
		out = append(out, Entry{Message: m})
	}
	for _, m := range v.pending {
		out = append(out, Entry{Message: m, Pending: true})
	}
	sort.Slice(out, func(i, j int) bool { return domain.MessageLess(out[i].Message, out[j].Message) })
	return out
}

// Messages returns the confirmed log only.
func (v *Viewer) Messages() []domain.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]domain.Message, len(v.confirmed))
	copy(out, v.confirmed)
	return out
}

// Notify fires after new updates are queued.
func (v *Viewer) Notify() <-chan struct{} {
	return v.notify
}

// Drain returns and clears the queued updates.
func (v *Viewer) Drain() []Update {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := v.queue
	v.queue = nil
	return out
}

// Send shows content immediately as a pending echo and reconciles it with
// the stored message by id. On failure the echo is withdrawn.
func (v *Viewer) Send(ctx context.Context, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.ErrEmptyContent
	}
	id, err := utils.NewOrderedID()
	if err != nil {
		return nil, err
	}

	echo := domain.Message{
		ID:         id,
		ProjectID:  v.projectID,
		SenderRole: v.actor.Role.ChannelSide(),
		SenderName: v.actor.Name,
		Content:    strings.TrimSpace(content),
		CreatedAt:  v.now().UTC(),
	}
	v.mu.Lock()
	v.pending[id] = echo
	v.mu.Unlock()

	res, err := v.src.Send(ctx, v.actor, v.projectID, domain.SendMessageInput{ID: id, Content: content})
	if err != nil {
		v.mu.Lock()
		delete(v.pending, id)
		v.mu.Unlock()
		return nil, err
	}

	v.mu.Lock()
	added := v.insertLocked(*res.Message)
	v.mu.Unlock()
	if added {
		v.signal()
	}

	if res.Resync {
		v.onResync()
	}
	return res.Message, nil
}

// Resync reloads the whole log from the store and queues it as one update.
func (v *Viewer) Resync(ctx context.Context) error {
	msgs, err := v.src.ListMessages(ctx, v.actor, v.projectID, nil)
	if err != nil {
		return err
	}

	fresh := make(map[string]domain.Message, len(msgs))
	for _, m := range msgs {
		fresh[m.ID] = m
	}

	// Messages are never deleted, so the store's log is merged into what the
	// viewer already holds; an event delivered during the reload survives.
	v.mu.Lock()
	for i, m := range v.confirmed {
		if stored, ok := fresh[m.ID]; ok {
			v.confirmed[i] = stored
		}
	}
	for _, m := range msgs {
		v.appendLocked(m)
	}
	domain.SortMessages(v.confirmed)
	snapshot := make([]domain.Message, len(v.confirmed))
	copy(snapshot, v.confirmed)
	v.queue = []Update{{Kind: UpdateResync, Messages: snapshot}}
	unread := v.hasUnreadLocked()
	v.mu.Unlock()

	v.signal()
	if unread {
		v.markRead()
	}
	return nil
}

// Close detaches the viewer. It is safe to call more than once.
func (v *Viewer) Close() error {
	v.cancel()
	if v.sub != nil {
		return v.sub.Close()
	}
	return nil
}

func (v *Viewer) onMessage(m domain.Message) {
	if m.ProjectID != v.projectID {
		return
	}
	v.mu.Lock()
	added := v.insertLocked(m)
	fromOther := m.SenderRole != v.actor.Role.ChannelSide() && !m.IsRead
	v.mu.Unlock()

	if added {
		v.signal()
		if fromOther {
			v.markRead()
		}
	}
}

func (v *Viewer) onStatus(p domain.Project) {
	v.mu.Lock()
	v.enqueueLocked(Update{Kind: UpdateStatus, Project: &p})
	v.mu.Unlock()
	v.signal()
}

func (v *Viewer) onResync() {
	if v.ctx.Err() != nil {
		return
	}
	if err := v.Resync(v.ctx); err != nil {
		v.log.Warn().Err(err).Msg("viewer resync failed")
	}
}

// insertLocked adds m in order unless it is already confirmed, and retires
// the matching echo. It reports whether the log changed.
func (v *Viewer) insertLocked(m domain.Message) bool {
	delete(v.pending, m.ID)
	if _, dup := v.ids[m.ID]; dup {
		return false
	}
	v.ids[m.ID] = struct{}{}

	i := sort.Search(len(v.confirmed), func(i int) bool {
		return domain.MessageLess(m, v.confirmed[i])
	})
	v.confirmed = append(v.confirmed, domain.Message{})
	copy(v.confirmed[i+1:], v.confirmed[i:])
	v.confirmed[i] = m

	msg := m
	v.enqueueLocked(Update{Kind: UpdateMessage, Message: &msg})
	return true
}

func (v *Viewer) appendLocked(m domain.Message) {
	if _, dup := v.ids[m.ID]; dup {
		return
	}
	v.ids[m.ID] = struct{}{}
	delete(v.pending, m.ID)
	v.confirmed = append(v.confirmed, m)
}

func (v *Viewer) enqueueLocked(u Update) {
	if len(v.queue) >= maxQueued {
		snapshot := make([]domain.Message, len(v.confirmed))
		copy(snapshot, v.confirmed)
		v.queue = []Update{{Kind: UpdateResync, Messages: snapshot}}
		return
	}
	v.queue = append(v.queue, u)
}

func (v *Viewer) hasUnreadLocked() bool {
	return domain.CountUnread(v.confirmed, v.actor.Role) > 0
}

func (v *Viewer) markRead() {
	if _, err := v.src.MarkRead(v.ctx, v.actor, v.projectID); err != nil {
		if v.ctx.Err() == nil {
			v.log.Warn().Err(err).Msg("auto mark-read failed")
		}
		return
	}
	side := v.actor.Role.ChannelSide()
	v.mu.Lock()
	for i := range v.confirmed {
		if v.confirmed[i].SenderRole != side {
			v.confirmed[i].IsRead = true
		}
	}
	v.mu.Unlock()
}

func (v *Viewer) signal() {
	select {
	case v.notify <- struct{}{}:
	default:
	}
}
