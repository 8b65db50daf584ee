package statemachine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMachine_Available(t *testing.T) {
	t.Parallel()

	machine := blogMachine("blog_post")
	p := newPost("p1", "Hello")

	assert.Equal(t, []Operation{"publish", "remove"}, machine.Available(p))

	p.SetState(stateForModerators)
	assert.Equal(t, []Operation{"moderate", "remove"}, machine.Available(p))
}

func TestMachine_Permitted(t *testing.T) {
	t.Parallel()

	machine := blogMachine("blog_post")

	p := newPost("p1", "Hello")
	p.SetState(stateForModerators)

	assert.Equal(t, []Operation{"remove"}, machine.Permitted(context.Background(), p, nil))
	assert.Equal(t, []Operation{"moderate", "remove"}, machine.Permitted(moderatorCtx(), p, nil))

	untitled := newPost("p2", "")
	untitled.SetState(stateForModerators)

	assert.Equal(t, []Operation{"remove"}, machine.Permitted(moderatorCtx(), untitled, nil))
}

func TestMachine_CanFireAndHasPermission(t *testing.T) {
	t.Parallel()

	machine := blogMachine("blog_post")

	p := newPost("p1", "Hello")
	p.SetState(stateForModerators)

	assert.True(t, machine.CanFire(context.Background(), p, "moderate", nil))
	assert.False(t, machine.HasPermission(context.Background(), p, "moderate"))
	assert.True(t, machine.HasPermission(moderatorCtx(), p, "moderate"))

	assert.False(t, machine.CanFire(context.Background(), p, "publish", nil))
	assert.False(t, machine.HasPermission(moderatorCtx(), p, "publish"))

	untitled := newPost("p2", "")
	untitled.SetState(stateForModerators)
	assert.False(t, machine.CanFire(moderatorCtx(), untitled, "moderate", nil))
}

func TestMachine_Targets(t *testing.T) {
	t.Parallel()

	machine := blogMachine("blog_post")
	p := newPost("p1", "Hello")

	assert.Equal(t, []State{stateForModerators, statePublished}, machine.Targets(p, "publish"))
	assert.Empty(t, machine.Targets(p, "moderate"))
}
