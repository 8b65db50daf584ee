//nolint:err113 // test errors
package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"testing"

	"github.com/amp-labs/amp-fsm/envutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}

		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))

		out = append(out, rec)
	}

	return out
}

func TestGet(t *testing.T) { //nolint:paralleltest
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{Subsystem: "fsm", JSON: true, Output: &buf})

	Get().Info("plain")

	ctx := WithEntity(t.Context(), "blog_post", 42)
	ctx = With(ctx, "operation", "publish")
	Get(ctx).Info("scoped")

	Get(WithSubsystem(ctx, "worker")).Info("overridden")
	Get(WithMuted(ctx, true)).Error("never printed")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 3)

	assert.Equal(t, "fsm", recs[0]["subsystem"])
	assert.NotContains(t, recs[0], "entity")

	assert.Equal(t, "blog_post", recs[1]["entity"])
	assert.InDelta(t, 42, recs[1]["entity_id"], 0)
	assert.Equal(t, "publish", recs[1]["operation"])

	assert.Equal(t, "worker", recs[2]["subsystem"])
}

func TestWith_DoesNotAlias(t *testing.T) {
	t.Parallel()

	base := With(t.Context(), "a", 1)
	left := With(base, "b", 2)
	right := With(base, "c", 3)

	assert.Equal(t, []any{"a", 1, "b", 2}, getValues(left))
	assert.Equal(t, []any{"a", 1, "c", 3}, getValues(right))
	assert.Equal(t, base, With(base))
}

func TestLegacyLogRedirected(t *testing.T) { //nolint:paralleltest
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{Subsystem: "fsm", JSON: true, Output: &buf, LegacyLevel: slog.LevelWarn})

	log.Println("from the log package")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "WARN", recs[0]["level"])
	assert.Equal(t, "from the log package", recs[0]["msg"])
}

func TestMinLevel(t *testing.T) { //nolint:paralleltest
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{JSON: true, Output: &buf, MinLevel: slog.LevelWarn})

	Get().Info("dropped")
	Get().Warn("kept")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "kept", recs[0]["msg"])
}

func TestOptionsFromEnv(t *testing.T) { //nolint:paralleltest
	t.Setenv("LOG_JSON", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_OUTPUT", "stderr")

	opts, err := optionsFromEnv(t.Context(), "fsmctl")
	require.NoError(t, err)
	assert.True(t, opts.JSON)
	assert.Equal(t, slog.LevelDebug, opts.MinLevel)
	assert.Equal(t, "fsmctl", opts.Subsystem)
	assert.False(t, opts.OTel)

	t.Setenv("LOG_OUTPUT", "syslog")

	_, err = optionsFromEnv(t.Context(), "fsmctl")
	require.ErrorIs(t, err, ErrInvalidLogOutput)

	ctx := envutil.WithEnvOverride(t.Context(), "LOG_OUTPUT", "stdout")
	ctx = envutil.WithEnvOverride(ctx, "LOG_JSON", "false")

	opts, err = optionsFromEnv(ctx, "fsmctl")
	require.NoError(t, err)
	assert.False(t, opts.JSON)
}

func TestAnnotateError(t *testing.T) { //nolint:paralleltest
	assert.NoError(t, AnnotateError(nil, "k", "v"))

	base := errors.New("lock lost")
	inner := AnnotateError(base, "lock_key", "doc:1")
	outer := AnnotateError(fmt.Errorf("release: %w", inner), "attempt", 2)

	require.ErrorIs(t, outer, base)
	assert.Equal(t, "release: lock lost", outer.Error())

	attrs := ErrorAttrs(outer)
	require.Len(t, attrs, 2)
	assert.Equal(t, "attempt", attrs[0].Key)
	assert.Equal(t, "lock_key", attrs[1].Key)

	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{JSON: true, Output: &buf})
	Get().Error("release failed", "error", outer, "plain", errors.New("other"))

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "doc:1", recs[0]["lock_key"])
	assert.InDelta(t, 2, recs[0]["attempt"], 0)
	assert.Equal(t, "release: lock lost", recs[0]["error"])
	assert.Equal(t, "other", recs[0]["plain"])
}

func TestConfigureLogging_OTelKeepsLocalOutput(t *testing.T) { //nolint:paralleltest
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{Subsystem: "fsm", JSON: true, Output: &buf, OTel: true, MinLevel: slog.LevelDebug})

	Get().Debug("one")
	Get(WithEntity(context.Background(), "doc", "d-1")).Error("two")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "one", recs[0]["msg"])
	assert.Equal(t, "d-1", recs[1]["entity_id"])
}

func TestWithEntity_OmitsEmptyID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []any{"entity", "doc"}, getValues(WithEntity(t.Context(), "doc", "")))
	assert.Equal(t, []any{"entity", "doc"}, getValues(WithEntity(t.Context(), "doc", nil)))
	assert.Equal(t, []any{"entity", "doc", "entity_id", 7}, getValues(WithEntity(t.Context(), "doc", 7)))
}
