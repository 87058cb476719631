package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/fanout"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/utils"
)

const maxMessageLen = 10000

// ChatService composes and reads the messages of a project channel.
type ChatService struct {
	resolver *Resolver
	limiter  *SendLimiter
	log      zerolog.Logger
	now      func() time.Time
}

// NewChatService creates a chat service. limiter may be nil.
func NewChatService(resolver *Resolver, limiter *SendLimiter, log zerolog.Logger) *ChatService {
	return &ChatService{
		resolver: resolver,
		limiter:  limiter,
		log:      log.With().Str("service", "chat").Logger(),
		now:      time.Now,
	}
}

// SendResult is the persisted message plus how it reached the channel.
type SendResult struct {
	Message *domain.Message `json:"message"`
	// Duplicate is set when the message id had already been stored; the
	// stored message is returned unchanged.
	Duplicate bool `json:"duplicate"`
	// Resync is set when the message is stored but could not be queued for
	// live viewers. They catch up on their next resync.
	Resync bool `json:"resync"`
}

// Send appends a message from a to the project's log and queues it for live
// viewers before returning.
func (s *ChatService) Send(ctx context.Context, a domain.Actor, projectID string, in domain.SendMessageInput) (*SendResult, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > maxMessageLen {
		return nil, domain.Invalid("message longer than %d characters", maxMessageLen)
	}

	id := strings.TrimSpace(in.ID)
	if id != "" && !utils.ValidID(id) {
		return nil, domain.Invalid("message id %q is not a UUID", id)
	}

	if !s.limiter.Allow(a.ID) {
		return nil, domain.ErrRateLimited
	}

	b, p, err := s.resolver.open(ctx, a, projectID)
	if err != nil {
		return nil, err
	}

	if id == "" {
		if id, err = utils.NewOrderedID(); err != nil {
			return nil, err
		}
	}

	m := &domain.Message{
		ID:         id,
		ProjectID:  p.ID,
		SenderRole: a.Role.ChannelSide(),
		SenderName: a.Name,
		Content:    content,
		CreatedAt:  stamp(s.now()),
	}

	stored, inserted, err := b.Store.InsertMessage(ctx, m)
	if err != nil {
		return nil, err
	}

	res := &SendResult{Message: stored, Duplicate: !inserted}
	if !inserted {
		return res, nil
	}

	if err := b.Bus.Publish(ctx, fanout.MessageEvent(*stored)); err != nil {
		s.log.Error().Err(err).
			Str("project_id", p.ID).
			Str("message_id", stored.ID).
			Msg("message stored but not fanned out")
		res.Resync = true
	}
	return res, nil
}

// MarkRead marks every message from the other side as read and returns how
// many changed.
func (s *ChatService) MarkRead(ctx context.Context, a domain.Actor, projectID string) (int64, error) {
	b, _, err := s.resolver.open(ctx, a, projectID)
	if err != nil {
		return 0, err
	}
	return b.Store.MarkRead(ctx, projectID, a.Role)
}

// UnreadCount counts unread messages from the other side. It is read from
// the store on every call.
func (s *ChatService) UnreadCount(ctx context.Context, a domain.Actor, projectID string) (int, error) {
	b, _, err := s.resolver.open(ctx, a, projectID)
	if err != nil {
		return 0, err
	}
	return b.Store.CountUnread(ctx, projectID, a.Role)
}

// ListMessages returns the log in (created_at, id) order, optionally only
// the part strictly after the cursor.
func (s *ChatService) ListMessages(ctx context.Context, a domain.Actor, projectID string, after *domain.Cursor) ([]domain.Message, error) {
	b, _, err := s.resolver.open(ctx, a, projectID)
	if err != nil {
		return nil, err
	}
	return b.Store.ListMessages(ctx, projectID, after)
}

// Subscribe attaches h to the project's live events until ctx ends or the
// subscription is closed. In local mode the subscription never fires. A bus
// that refuses the subscription degrades it to one that never fires either;
// the caller then relies on its periodic resync.
func (s *ChatService) Subscribe(ctx context.Context, a domain.Actor, projectID string, h fanout.Handler) (fanout.Subscription, error) {
	b, _, err := s.resolver.open(ctx, a, projectID)
	if err != nil {
		return nil, err
	}
	sub, err := b.Bus.Subscribe(ctx, projectID, h)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Warn().Err(err).Str("project_id", projectID).Msg("subscribe failed, falling back to resync polling")
		return fanout.NoopBus{}.Subscribe(ctx, projectID, h)
	}
	return sub, nil
}
