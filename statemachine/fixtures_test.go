package statemachine

import (
	"context"
	"errors"
	"slices"
)

const (
	stateNew           State = "new"
	stateForModerators State = "for_moderators"
	statePublished     State = "published"
	stateRejected      State = "rejected"
	stateRemoved       State = "removed"
	stateFailed        State = "failed"
)

var errPublishFailed = errors.New("publish failed")

// post is the blog post used across the engine tests.
type post struct {
	StateField

	id       string
	title    string
	approved bool
}

func newPost(id, title string) *post {
	return &post{
		StateField: NewStateField(stateNew),
		id:         id,
		title:      title,
	}
}

func (p *post) LockKey() string {
	return p.id
}

// unkeyedPost has no lock key.
type unkeyedPost struct {
	StateField
}

type roleActor struct {
	id    string
	roles []string
}

func (a roleActor) ID() string {
	return a.id
}

func hasRole(role string) func(context.Context, *post, Actor) bool {
	return func(_ context.Context, _ *post, actor Actor) bool {
		ra, ok := actor.(roleActor)

		return ok && slices.Contains(ra.roles, role)
	}
}

func hasTitle(_ context.Context, p *post, _ Args) bool {
	return p.title != ""
}

// publishBody sends untrusted authors to moderation.
func publishBody(_ context.Context, _ *post, args Args) (any, error) {
	if trusted, _ := args.GetBool("trusted"); trusted {
		return statePublished, nil
	}

	return string(stateForModerators), nil
}

func moderationOutcome(p *post, _ any, args Args) State {
	approved, ok := args.GetBool("approve")
	if !ok {
		approved = p.approved
	}

	if approved {
		return statePublished
	}

	return stateRejected
}

// blogRules declares the publish and moderate workflow.
func blogRules() []Rule[*post] {
	moderator := NewPermission("is_moderator", hasRole("moderator"))

	return []Rule[*post]{
		{
			Operation: "publish",
			Sources:   []State{stateNew},
			Target:    OutcomeMapped[*post](stateForModerators, statePublished),
			Body:      publishBody,
		},
		{
			Operation:  "moderate",
			Sources:    []State{stateForModerators},
			Target:     PredicateComputed[*post](moderationOutcome, statePublished, stateRejected),
			Conditions: []Condition[*post]{NewCondition("has_title", hasTitle)},
			Permission: &moderator,
		},
		{
			Operation: "remove",
			Sources:   []State{AnyState},
			Target:    Fixed[*post](stateRemoved),
		},
	}
}

func blogMachine(entityType string, opts ...Option) *Machine[*post] {
	registry := NewRegistry[*post]().MustRegister(blogRules()...)

	return New(entityType, registry, append([]Option{WithTracing(false)}, opts...)...)
}

func moderatorCtx() context.Context {
	return WithActor(context.Background(), roleActor{id: "mod-1", roles: []string{"moderator"}})
}

// recorded captures one delivery with the entity state observed at that time.
type recorded struct {
	channel Channel
	event   Event
	state   State
}

func record(bus *Bus, entityType string) *[]recorded {
	var out []recorded

	for _, ch := range []Channel{PreTransition, PostTransition} {
		bus.MustSubscribe(ch, entityType, func(_ context.Context, ev Event) error {
			entity, _ := ev.Entity.(Entity)

			var state State
			if entity != nil {
				state = entity.CurrentState()
			}

			out = append(out, recorded{channel: ch, event: ev, state: state})

			return nil
		})
	}

	return &out
}
