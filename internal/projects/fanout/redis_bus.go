package fanout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	streamKeyPrefix = "collab:project:" // collab:project:{project_id}:events
	streamKeySuffix = ":events"
	eventField      = "event"

	defaultBlock   = 5 * time.Second
	defaultBackoff = time.Second
	maxBackoff     = 30 * time.Second
	readBatch      = 100
)

// RedisBus fans events out through one Redis stream per project. Subscribers
// read with XREAD from the last entry that existed when they attached, so an
// event published while a subscriber is reconnecting is still delivered.
type RedisBus struct {
	client  redis.UniversalClient
	log     zerolog.Logger
	block   time.Duration
	backoff time.Duration
}

// RedisBusOption tunes a RedisBus.
type RedisBusOption func(*RedisBus)

// WithBlock sets how long one XREAD waits before looping.
func WithBlock(d time.Duration) RedisBusOption {
	return func(b *RedisBus) { b.block = d }
}

// WithBackoff sets the first retry delay after a read error.
func WithBackoff(d time.Duration) RedisBusOption {
	return func(b *RedisBus) { b.backoff = d }
}

// NewRedisBus creates a bus on client.
func NewRedisBus(client redis.UniversalClient, log zerolog.Logger, opts ...RedisBusOption) *RedisBus {
	b := &RedisBus{
		client:  client,
		log:     log.With().Str("component", "fanout").Logger(),
		block:   defaultBlock,
		backoff: defaultBackoff,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// StreamKey returns the Redis stream holding a project's events.
func StreamKey(projectID string) string {
	return streamKeyPrefix + projectID + streamKeySuffix
}

func (b *RedisBus) Publish(ctx context.Context, e Event) error {
	if e.ProjectID == "" {
		return fmt.Errorf("publish: empty project id")
	}
	payload, err := e.encode()
	if err != nil {
		return err
	}
	err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey(e.ProjectID),
		Values: map[string]any{eventField: payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish %s event for %s: %w", e.Kind, e.ProjectID, err)
	}
	return nil
}

// Subscribe attaches h even when Redis is unreachable: the subscription keeps
// retrying in the background and calls OnResync once it has a read position,
// so anything published in the meantime is recovered from the store.
func (b *RedisBus) Subscribe(ctx context.Context, projectID string, h Handler) (Subscription, error) {
	key := StreamKey(projectID)

	last, err := b.lastID(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		b.log.Warn().Err(err).Str("stream", key).Msg("fan-out unavailable at subscribe, retrying in background")
		last = ""
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &redisSubscription{cancel: cancel, done: make(chan struct{})}
	go b.run(subCtx, key, last, h, sub.done)
	return sub, nil
}

func (b *RedisBus) lastID(ctx context.Context, key string) (string, error) {
	entries, err := b.client.XRevRangeN(ctx, key, "+", "-", 1).Result()
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "0-0", nil
	}
	return entries[0].ID, nil
}

func (b *RedisBus) run(ctx context.Context, key, last string, h Handler, done chan<- struct{}) {
	defer close(done)

	failing := false
	delay := b.backoff

	if last == "" {
		if last = b.awaitLastID(ctx, key); last == "" {
			return
		}
		h.resync()
	}

	for ctx.Err() == nil {
		streams, err := b.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{key, last},
			Count:   readBatch,
			Block:   b.block,
		}).Result()

		if err != nil && !errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return
			}
			if !failing {
				failing = true
				b.log.Warn().Err(err).Str("stream", key).Msg("fan-out read failed, viewers must resync")
				h.resync()
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxBackoff {
				delay = maxBackoff
			}
			continue
		}

		if failing {
			failing = false
			delay = b.backoff
			b.log.Info().Str("stream", key).Msg("fan-out read recovered")
			h.resync()
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				last = msg.ID
				raw, ok := msg.Values[eventField].(string)
				if !ok {
					continue
				}
				e, err := decodeEvent(raw)
				if err != nil {
					b.log.Warn().Err(err).Str("stream", key).Str("entry", msg.ID).Msg("skipping undecodable event")
					continue
				}
				if ctx.Err() != nil {
					return
				}
				h.dispatch(e)
			}
		}
	}
}

// awaitLastID retries lastID with backoff until it succeeds or ctx ends, in
// which case it returns "".
func (b *RedisBus) awaitLastID(ctx context.Context, key string) string {
	delay := b.backoff
	for {
		select {
		case <-ctx.Done():
			return ""
		case <-time.After(delay):
		}
		last, err := b.lastID(ctx, key)
		if err == nil {
			b.log.Info().Str("stream", key).Msg("fan-out subscribe recovered")
			return last
		}
		delay *= 2
		if delay > maxBackoff {
			delay = maxBackoff
		}
	}
}

// TrimStreams caps every project stream at maxLen entries and returns how many
// streams were visited. Subscribers that fell further behind than maxLen
// recover through the store, not the stream.
func (b *RedisBus) TrimStreams(ctx context.Context, maxLen int64) (int, error) {
	var (
		cursor uint64
		seen   int
	)
	for {
		keys, next, err := b.client.Scan(ctx, cursor, streamKeyPrefix+"*"+streamKeySuffix, 100).Result()
		if err != nil {
			return seen, fmt.Errorf("scan streams: %w", err)
		}
		for _, key := range keys {
			if !strings.HasSuffix(key, streamKeySuffix) {
				continue
			}
			if err := b.client.XTrimMaxLen(ctx, key, maxLen).Err(); err != nil {
				return seen, fmt.Errorf("trim %s: %w", key, err)
			}
			seen++
		}
		cursor = next
		if cursor == 0 {
			return seen, nil
		}
	}
}

type redisSubscription struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

// Close stops delivery. A read already in flight may take up to the bus's
// block interval to return; no new callback starts once Close has returned.
func (s *redisSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}
