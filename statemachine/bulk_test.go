package statemachine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFireAll(t *testing.T) {
	t.Parallel()

	machine := blogMachine("bulk_post")

	posts := []*post{newPost("p1", "A"), newPost("p2", "B"), newPost("p3", "C")}
	posts[1].SetState(statePublished)

	results := FireAll(context.Background(), machine, posts, "publish", Args{"trusted": true}, 2)
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	assert.Equal(t, statePublished, results[0].Result)
	assert.True(t, IsInvalidTransition(results[1].Err))
	require.NoError(t, results[2].Err)

	for _, p := range posts {
		assert.Equal(t, statePublished, p.CurrentState())
	}
}

func TestFireAll_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, FireAll(context.Background(), blogMachine("bulk_post"), nil, "publish", nil, 4))
}

func TestFireAll_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	posts := []*post{newPost("p1", "A"), newPost("p2", "B")}

	results := FireAll(ctx, blogMachine("bulk_post"), posts, "publish", nil, 0)
	for i, res := range results {
		require.ErrorIs(t, res.Err, context.Canceled)
		assert.Equal(t, stateNew, posts[i].CurrentState())
	}
}
