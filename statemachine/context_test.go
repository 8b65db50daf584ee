package statemachine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgs_Getters(t *testing.T) {
	t.Parallel()

	args := Args{"name": "doc", "count": 3, "ok": true}

	name, ok := args.GetString("name")
	assert.True(t, ok)
	assert.Equal(t, "doc", name)

	count, ok := args.GetInt("count")
	assert.True(t, ok)
	assert.Equal(t, 3, count)

	flag, ok := args.GetBool("ok")
	assert.True(t, ok)
	assert.True(t, flag)

	_, ok = args.GetString("count")
	assert.False(t, ok)

	var empty Args

	_, ok = empty.Get("anything")
	assert.False(t, ok)
	assert.Nil(t, empty.Clone())

	clone := args.Clone()
	clone["name"] = "changed"
	assert.Equal(t, "doc", args["name"])
}

func TestActorContext(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ActorFrom(context.Background()))

	ctx := WithActor(context.Background(), ActorID("u1"))
	assert.Equal(t, "u1", ActorFrom(ctx).ID())
	assert.Equal(t, "u1", actorID(ActorFrom(ctx)))
	assert.Empty(t, actorID(nil))
}

func TestStateField(t *testing.T) {
	t.Parallel()

	field := NewStateField("draft")
	assert.Equal(t, State("draft"), field.CurrentState())

	field.SetState("done")
	assert.Equal(t, State("done"), field.CurrentState())

	var entity Entity = &field
	assert.Equal(t, "done", entity.CurrentState().String())
}
