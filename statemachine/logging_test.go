package statemachine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogger_Output(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	log := &DefaultLogger{Base: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	machine := blogMachine("logged_post", WithLogger(log))
	ctx := WithActor(context.Background(), ActorID("author-1"))

	p := newPost("p1", "Hello")

	_, err := machine.Fire(ctx, p, "publish", Args{"trusted": true})
	require.NoError(t, err)

	_, err = machine.Fire(ctx, p, "publish", nil)
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "Transition started")
	assert.Contains(t, out, "actor=author-1")
	assert.Contains(t, out, "Transition completed")
	assert.Contains(t, out, "target=published")
	assert.Contains(t, out, "Transition rejected")
	assert.Contains(t, out, "kind=invalid_transition")
}

func TestDefaultLogger_FailureLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	log := &DefaultLogger{Base: slog.New(slog.NewTextHandler(&buf, nil))}

	log.TransitionFailed(context.Background(), "doc", "publish", "new", 0, &BodyError{Err: errors.New("boom")})
	log.TransitionFailed(context.Background(), "doc", "publish", "new", 0, &TransitionError{Kind: KindNotAllowed})
	log.TransitionFailed(context.Background(), "doc", "publish", "new", 0, &TransitionError{Kind: KindInvalidResult})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "level=ERROR msg=\"Transition failed\"")
	assert.Contains(t, lines[1], "level=WARN msg=\"Transition rejected\"")
	assert.Contains(t, lines[2], "level=ERROR msg=\"Transition failed\"")
	assert.Contains(t, lines[2], "kind=invalid_result")
	assert.Contains(t, lines[2], "entity=doc")
}

func TestDefaultLogger_EntityContext(t *testing.T) { //nolint:paralleltest
	var buf bytes.Buffer

	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	machine := blogMachine("ctx_post", WithLogger(NewDefaultLogger()))

	_, err := machine.Fire(context.Background(), newPost("ctx-1", "Hello"), "remove", nil)
	require.NoError(t, err)

	_, err = machine.Fire(context.Background(), &post{StateField: NewStateField(stateNew)}, "remove", nil)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	var keyed, anonymous map[string]any

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &keyed))
	require.NoError(t, json.Unmarshal([]byte(lines[3]), &anonymous))

	assert.Equal(t, "Transition completed", keyed["msg"])
	assert.Equal(t, "ctx_post", keyed["entity"])
	assert.Equal(t, "ctx-1", keyed["entity_id"])

	assert.Equal(t, "ctx_post", anonymous["entity"])
	assert.NotContains(t, anonymous, "entity_id")
}

func TestDefaultLogger_WithTestLogger(t *testing.T) {
	t.Parallel()

	log := &DefaultLogger{Base: slogt.New(t)}
	machine := blogMachine("slogt_post", WithLogger(log))

	_, err := machine.Fire(context.Background(), newPost("p1", "Hello"), "remove", nil)
	require.NoError(t, err)
}
