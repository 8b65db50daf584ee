package statemachine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// Channel identifies a notification point around the state assignment.
type Channel int

const (
	// PreTransition fires after the target is resolved and before the field changes.
	PreTransition Channel = iota + 1
	// PostTransition fires after the field holds the target.
	PostTransition
)

func (c Channel) String() string {
	switch c {
	case PreTransition:
		return "pre_transition"
	case PostTransition:
		return "post_transition"
	default:
		return fmt.Sprintf("Channel(%d)", int(c))
	}
}

// Event is the payload delivered to observers.
type Event struct {
	ID         string
	EntityType string
	Entity     any
	Operation  Operation
	Source     State
	Target     State
	Actor      Actor
	Args       Args

	// Err is the body's error when the transition follows an OnError route.
	Err error

	Time time.Time
}

// Observer handles an event. A non-nil error stops delivery and is returned
// to the caller of Fire.
type Observer func(ctx context.Context, event Event) error

// SubscribeOption configures a subscription.
type SubscribeOption func(*Subscription)

// ForOperations restricts a subscription to the given operations.
func ForOperations(ops ...Operation) SubscribeOption {
	return func(s *Subscription) {
		s.operations = append(s.operations, ops...)
	}
}

// Subscription is a registered observer.
type Subscription struct {
	bus        *Bus
	id         int64
	channel    Channel
	entityType string
	operations []Operation
	observer   Observer
	active     *atomic.Bool
}

// Unsubscribe removes the observer. It is idempotent and safe to call from
// inside an observer.
func (s *Subscription) Unsubscribe() {
	if !s.active.CompareAndSwap(true, false) {
		return
	}

	s.bus.remove(s)
}

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool {
	return s.active.Load()
}

func (s *Subscription) matches(event Event) bool {
	if s.entityType != "" && s.entityType != event.EntityType {
		return false
	}

	return len(s.operations) == 0 || slices.Contains(s.operations, event.Operation)
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBusMetrics toggles the observer call counter. It is on by default.
func WithBusMetrics(enabled bool) BusOption {
	return func(b *Bus) {
		b.metrics = enabled
	}
}

// Bus delivers transition events to observers synchronously, on the
// publishing goroutine, in subscription order.
type Bus struct {
	mu      sync.RWMutex
	subs    map[Channel][]*Subscription
	nextID  *atomic.Int64
	closed  *atomic.Bool
	metrics bool
}

// NewBus creates an open bus.
func NewBus(opts ...BusOption) *Bus {
	bus := &Bus{
		subs:    make(map[Channel][]*Subscription),
		nextID:  atomic.NewInt64(0),
		closed:  atomic.NewBool(false),
		metrics: true,
	}

	for _, opt := range opts {
		opt(bus)
	}

	return bus
}

// Subscribe registers observer for events of entityType on channel. An empty
// entityType receives events of every entity type.
func (b *Bus) Subscribe(
	channel Channel,
	entityType string,
	observer Observer,
	opts ...SubscribeOption,
) (*Subscription, error) {
	if channel != PreTransition && channel != PostTransition {
		return nil, fmt.Errorf("unknown channel %s", channel)
	}

	if observer == nil {
		return nil, fmt.Errorf("nil observer for %s", channel)
	}

	sub := &Subscription{
		bus:        b,
		channel:    channel,
		entityType: entityType,
		observer:   observer,
		active:     atomic.NewBool(true),
	}

	for _, opt := range opts {
		opt(sub)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return nil, ErrBusClosed
	}

	sub.id = b.nextID.Inc()
	b.subs[channel] = append(b.subs[channel], sub)

	return sub, nil
}

// MustSubscribe is like Subscribe but panics on error.
func (b *Bus) MustSubscribe(
	channel Channel,
	entityType string,
	observer Observer,
	opts ...SubscribeOption,
) *Subscription {
	sub, err := b.Subscribe(channel, entityType, observer, opts...)
	if err != nil {
		panic(err)
	}

	return sub
}

// Publish delivers event to every matching observer on channel. Delivery
// stops at the first observer error, which is returned as an *ObserverError.
// Publishing on a closed bus delivers nothing.
func (b *Bus) Publish(ctx context.Context, channel Channel, event Event) error {
	if b.closed.Load() {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.mu.RLock()
	snapshot := slices.Clone(b.subs[channel])
	b.mu.RUnlock()

	for _, sub := range snapshot {
		if !sub.active.Load() || !sub.matches(event) {
			continue
		}

		err := sub.observer(ctx, event)

		if b.metrics {
			recordObserverCall(event.EntityType, channel, err)
		}

		if err != nil {
			return &ObserverError{
				Channel: channel,
				EventID: event.ID,
				Err:     err,
			}
		}
	}

	return nil
}

// Len returns the number of live subscriptions on channel.
func (b *Bus) Len(channel Channel) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs[channel])
}

// Close drops every subscription. Later Subscribe calls fail with
// ErrBusClosed and Publish becomes a no-op. Close is idempotent.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.active.Store(false)
		}
	}

	clear(b.subs)

	return nil
}

// Closed reports whether Close was called.
func (b *Bus) Closed() bool {
	return b.closed.Load()
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[sub.channel] = slices.DeleteFunc(b.subs[sub.channel], func(s *Subscription) bool {
		return s.id == sub.id
	})
}
