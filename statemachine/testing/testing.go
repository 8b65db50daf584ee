// Package testing provides helpers for asserting on state machine
// notifications and driving machines through scripted scenarios.
//
//nolint:varnamelen // short names idiomatic
package testing

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/stretchr/testify/require"
)

// TraceEntry records a single notification delivery.
type TraceEntry struct {
	Timestamp time.Time
	Channel   statemachine.Channel
	Event     statemachine.Event

	// State is the entity's state observed at delivery time.
	State statemachine.State
}

// Assertion represents a test assertion.
type Assertion struct {
	Name   string
	Passed bool
	Error  error
}

// Recorder subscribes to both channels of a bus and keeps every delivery.
type Recorder struct {
	t          *testing.T
	mu         sync.Mutex
	entries    []TraceEntry
	assertions []Assertion
	subs       []*statemachine.Subscription
	entity     any
}

// RecorderOption configures a Recorder.
type RecorderOption func(*recorderConfig)

type recorderConfig struct {
	subscribe []statemachine.SubscribeOption
	entity    any
}

// Operations restricts recording to the given operations.
func Operations(ops ...statemachine.Operation) RecorderOption {
	return func(c *recorderConfig) {
		c.subscribe = append(c.subscribe, statemachine.ForOperations(ops...))
	}
}

// OnlyEntity restricts recording to events about one entity instance, so
// tests sharing a machine do not see each other's notifications. The
// entity must be comparable, which pointers always are.
func OnlyEntity(entity any) RecorderOption {
	return func(c *recorderConfig) {
		c.entity = entity
	}
}

// NewRecorder records the notifications of entityType published on bus.
// An empty entityType records every entity type. Subscriptions are removed
// when the test ends.
func NewRecorder(t *testing.T, bus *statemachine.Bus, entityType string, opts ...RecorderOption) *Recorder {
	t.Helper()

	var cfg recorderConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Recorder{t: t, entity: cfg.entity}

	for _, channel := range []statemachine.Channel{statemachine.PreTransition, statemachine.PostTransition} {
		sub, err := bus.Subscribe(channel, entityType, r.observer(channel), cfg.subscribe...)
		require.NoError(t, err, "failed to subscribe recorder")

		r.subs = append(r.subs, sub)
	}

	t.Cleanup(r.Stop)

	return r
}

func (r *Recorder) observer(channel statemachine.Channel) statemachine.Observer {
	return func(_ context.Context, event statemachine.Event) error {
		if r.entity != nil && event.Entity != r.entity {
			return nil
		}

		entry := TraceEntry{
			Timestamp: time.Now(),
			Channel:   channel,
			Event:     event,
		}

		if entity, ok := event.Entity.(statemachine.Entity); ok {
			entry.State = entity.CurrentState()
		}

		r.mu.Lock()
		r.entries = append(r.entries, entry)
		r.mu.Unlock()

		return nil
	}
}

// Stop unsubscribes the recorder. Recorded entries are kept.
func (r *Recorder) Stop() {
	for _, sub := range r.subs {
		sub.Unsubscribe()
	}
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = nil
	r.assertions = nil
}

// Entries returns a copy of the recorded deliveries in order.
func (r *Recorder) Entries() []TraceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.entries)
}

// Events returns the recorded events delivered on channel.
func (r *Recorder) Events(channel statemachine.Channel) []statemachine.Event {
	var events []statemachine.Event

	for _, entry := range r.Entries() {
		if entry.Channel == channel {
			events = append(events, entry.Event)
		}
	}

	return events
}

// Completed returns the post-transition events, one per applied transition.
func (r *Recorder) Completed() []statemachine.Event {
	return r.Events(statemachine.PostTransition)
}

// GetAssertions returns all assertions made.
func (r *Recorder) GetAssertions() []Assertion {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.assertions)
}

func (r *Recorder) note(name string, err error) {
	r.mu.Lock()
	r.assertions = append(r.assertions, Assertion{Name: name, Passed: err == nil, Error: err})
	r.mu.Unlock()
}

// Assert requires every matcher to match the recording.
func (r *Recorder) Assert(matchers ...Matcher) {
	r.t.Helper()

	for _, m := range matchers {
		ok, err := m.Match(r)
		if ok && err == nil {
			r.note(m.Description(), nil)

			continue
		}

		if err == nil {
			err = fmt.Errorf("%w: %s", ErrNoMatch, m.Description())
		}

		r.note(m.Description(), err)
		require.NoError(r.t, err, m.Description())
	}
}

// AssertFired checks that op completed from source to target.
func (r *Recorder) AssertFired(op statemachine.Operation, source, target statemachine.State) {
	r.t.Helper()
	r.Assert(FiredFromTo(op, source, target))
}

// AssertNotFired checks that op never completed.
func (r *Recorder) AssertNotFired(op statemachine.Operation) {
	r.t.Helper()
	r.Assert(Not(Fired(op)))
}

// AssertProtocol checks the notification protocol for every recorded
// transition: the pre notification sees the source state, the post
// notification with the same event id follows it and sees the target.
// A pre notification without a post is accepted only as the last delivery
// for its event, which is what a vetoing pre observer produces.
func (r *Recorder) AssertProtocol() {
	r.t.Helper()

	err := checkProtocol(r.Entries())
	r.note("notification protocol", err)
	require.NoError(r.t, err, "notification protocol")
}

func checkProtocol(entries []TraceEntry) error {
	pre := make(map[string]TraceEntry)

	for i, entry := range entries {
		switch entry.Channel {
		case statemachine.PreTransition:
			if entry.State != entry.Event.Source {
				return fmt.Errorf("%w: entry %d: pre %q observed state %q, want source %q",
					ErrProtocolViolation, i, entry.Event.Operation, entry.State, entry.Event.Source)
			}

			pre[entry.Event.ID] = entry
		case statemachine.PostTransition:
			if _, ok := pre[entry.Event.ID]; !ok {
				return fmt.Errorf("%w: entry %d: post %q without pre notification",
					ErrProtocolViolation, i, entry.Event.Operation)
			}

			if entry.State != entry.Event.Target {
				return fmt.Errorf("%w: entry %d: post %q observed state %q, want target %q",
					ErrProtocolViolation, i, entry.Event.Operation, entry.State, entry.Event.Target)
			}

			delete(pre, entry.Event.ID)
		}
	}

	return nil
}
