package fanout

import "context"

// NoopBus is the local-mode bus: a single-device session has nobody to fan
// out to, so publishing succeeds and subscriptions never fire.
type NoopBus struct{}

func (NoopBus) Publish(context.Context, Event) error { return nil }

func (NoopBus) Subscribe(context.Context, string, Handler) (Subscription, error) {
	return noopSubscription{}, nil
}

type noopSubscription struct{}

func (noopSubscription) Close() error { return nil }
