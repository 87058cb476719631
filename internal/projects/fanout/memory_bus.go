package fanout

import (
	"context"
	"sync"
)

const defaultBuffer = 64

// MemoryBus is an in-process hub, used in durable mode when Redis is not
// configured. It only reaches viewers attached to the same process. Each
// subscriber owns a buffered queue; a subscriber that lets its queue fill is
// told to resync instead of blocking publishers.
type MemoryBus struct {
	buffer int

	mu   sync.RWMutex
	subs map[string]map[*memorySubscription]struct{}
}

// NewMemoryBus creates a hub whose subscribers queue up to buffer events.
func NewMemoryBus(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &MemoryBus{
		buffer: buffer,
		subs:   make(map[string]map[*memorySubscription]struct{}),
	}
}

func (b *MemoryBus) Publish(_ context.Context, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[e.ProjectID] {
		select {
		case sub.events <- e:
		default:
			sub.markOverflow()
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, projectID string, h Handler) (Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &memorySubscription{
		bus:       b,
		projectID: projectID,
		events:    make(chan Event, b.buffer),
		overflow:  make(chan struct{}, 1),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	b.mu.Lock()
	if b.subs[projectID] == nil {
		b.subs[projectID] = make(map[*memorySubscription]struct{})
	}
	b.subs[projectID][sub] = struct{}{}
	b.mu.Unlock()

	go sub.run(subCtx, h)
	return sub, nil
}

// Subscribers reports how many subscriptions are attached to projectID.
func (b *MemoryBus) Subscribers(projectID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[projectID])
}

func (b *MemoryBus) remove(sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.subs[sub.projectID]
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.projectID)
	}
}

type memorySubscription struct {
	bus       *MemoryBus
	projectID string
	events    chan Event
	overflow  chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}
	once      sync.Once
}

func (s *memorySubscription) markOverflow() {
	select {
	case s.overflow <- struct{}{}:
	default:
	}
}

func (s *memorySubscription) run(ctx context.Context, h Handler) {
	defer close(s.done)
	defer s.bus.remove(s)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.overflow:
			// Whatever is still queued predates the resync read.
			s.drain()
			h.resync()
		case e := <-s.events:
			if ctx.Err() != nil {
				return
			}
			h.dispatch(e)
		}
	}
}

func (s *memorySubscription) drain() {
	for {
		select {
		case <-s.events:
		default:
			return
		}
	}
}

func (s *memorySubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}
