package visualizer

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reviewConfig() *statemachine.Config {
	return &statemachine.Config{
		Entity:       "doc",
		InitialState: "draft",
		States:       []string{"draft", "in-review", "published", "failed"},
		Transitions: []statemachine.TransitionConfig{
			{
				Operation: "submit_for_review",
				Sources:   []string{"draft"},
				Target:    statemachine.TargetConfig{Type: statemachine.TargetTypeFixed, State: "in-review"},
				Body:      "submit",
				OnError:   "failed",
			},
			{
				Operation:  "approve",
				Sources:    []string{"in-review"},
				Target:     statemachine.TargetConfig{Type: statemachine.TargetTypeOutcome, Allowed: []string{"published", "draft"}},
				Conditions: []statemachine.RefConfig{{Name: "has_title"}},
				Permission: &statemachine.RefConfig{Name: "is_editor"},
				Custom:     map[string]any{"label": "Editor approval"},
			},
			{
				Operation: "retry",
				Sources:   []string{"failed"},
				Target:    statemachine.TargetConfig{Type: statemachine.TargetTypeFixed, State: "draft"},
			},
		},
	}
}

func TestGenerateMermaid(t *testing.T) {
	t.Parallel()

	result, err := GenerateMermaid(reviewConfig())
	require.NoError(t, err)

	for _, want := range []string{
		"```mermaid",
		"stateDiagram-v2",
		"direction TD",
		"in_review: in-review",
		"[*] --> draft",
		"draft --> in_review: submit_for_review",
		"draft --> failed: submit_for_review (on error)",
		"in_review --> published: approve [has_title, @is_editor]",
		"in_review --> draft: approve [has_title, @is_editor]",
		"failed --> draft: retry",
		"published --> [*]",
		"class published terminal",
	} {
		assert.Contains(t, result, want)
	}

	assert.NotContains(t, result, "draft --> [*]")
	assert.True(t, strings.HasSuffix(result, "```\n"))
}

func TestGenerateMermaidWithOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		opts           Options
		wantContain    []string
		wantNotContain []string
	}{
		{
			name:        "left to right",
			opts:        DefaultOptions().WithDirection("LR"),
			wantContain: []string{"direction LR"},
		},
		{
			name:           "unknown direction falls back",
			opts:           DefaultOptions().WithDirection("sideways"),
			wantContain:    []string{"direction TD"},
			wantNotContain: []string{"sideways"},
		},
		{
			name:           "guards hidden",
			opts:           DefaultOptions().WithShowGuards(false),
			wantContain:    []string{"in_review --> published: approve\n"},
			wantNotContain: []string{"has_title"},
		},
		{
			name:           "error routes hidden",
			opts:           DefaultOptions().WithShowErrorRoutes(false),
			wantNotContain: []string{"(on error)"},
		},
		{
			name: "human labels",
			opts: DefaultOptions().WithHumanLabels(true).WithShowGuards(false),
			wantContain: []string{
				"draft --> in_review: Submit For Review",
				"in_review --> published: Editor approval",
				"failed --> draft: Retry",
			},
		},
		{
			name: "highlight path",
			opts: DefaultOptions().WithHighlightPath([]string{"published", "in-review", "unknown"}),
			wantContain: []string{
				"class in_review,published highlighted",
			},
			wantNotContain: []string{"class published terminal", "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := GenerateMermaidWithOptions(reviewConfig(), tt.opts)
			require.NoError(t, err)

			for _, want := range tt.wantContain {
				assert.Contains(t, result, want)
			}

			for _, notWant := range tt.wantNotContain {
				assert.NotContains(t, result, notWant)
			}
		})
	}
}

func TestGenerateMermaid_Errors(t *testing.T) {
	t.Parallel()

	_, err := GenerateMermaid(nil)
	require.ErrorIs(t, err, ErrConfigNil)

	_, err = GenerateMermaid(&statemachine.Config{Entity: "doc"})
	require.ErrorIs(t, err, ErrNoInitialState)

	_, err = GenerateDOT(nil)
	require.ErrorIs(t, err, ErrConfigNil)
}

func TestGenerateMermaid_Wildcards(t *testing.T) {
	t.Parallel()

	config := &statemachine.Config{
		Entity:       "ticket",
		InitialState: "open",
		States:       []string{"open", "closed", "archived"},
		Transitions: []statemachine.TransitionConfig{
			{Operation: "close", Sources: []string{"+"}, Target: statemachine.TargetConfig{Type: "fixed", State: "closed"}},
			{Operation: "archive", Sources: []string{"*"}, Target: statemachine.TargetConfig{Type: "fixed", State: "archived"}},
		},
	}

	result, err := GenerateMermaid(config)
	require.NoError(t, err)

	assert.Contains(t, result, "open --> closed: close")
	assert.Contains(t, result, "archived --> closed: close")
	assert.NotContains(t, result, "closed --> closed")
	assert.Contains(t, result, "archived --> archived: archive")
	assert.NotContains(t, result, "archived --> [*]")
}

func TestGenerateDOT(t *testing.T) {
	t.Parallel()

	result, err := GenerateDOTWithOptions(reviewConfig(), DefaultOptions().WithDirection("LR").WithHighlightPath([]string{"draft"}))
	require.NoError(t, err)

	for _, want := range []string{
		`digraph "doc" {`,
		"rankdir=LR;",
		`__start -> "draft";`,
		`"draft" [style="rounded,filled", fillcolor="#fff9c4"];`,
		`"published" [peripheries=2];`,
		`"draft" -> "in-review" [label="submit_for_review", color="#455a64"];`,
		`"draft" -> "failed" [label="submit_for_review", style=dashed, color="#c62828"];`,
		`"in-review" -> "published" [label="approve [has_title, @is_editor]"`,
	} {
		assert.Contains(t, result, want)
	}

	assert.True(t, strings.HasSuffix(result, "}\n"))
}

func TestGenerateFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join("..", "testdata", "blog_post.yaml")

	mermaid, err := GenerateMermaidFromFile(path)
	require.NoError(t, err)
	assert.Contains(t, mermaid, "new --> for_moderators: publish")
	assert.Contains(t, mermaid, "for_moderators --> rejected: moderate [has_title, @has_role]")
	assert.Contains(t, mermaid, "new --> failed: publish (on error)")
	assert.Contains(t, mermaid, "removed --> [*]")

	dot, err := GenerateDOTFromFile(path)
	require.NoError(t, err)
	assert.Contains(t, dot, `digraph "blog_post"`)

	_, err = GenerateMermaidFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	assert.True(t, opts.ShowGuards)
	assert.True(t, opts.ShowErrorRoutes)
	assert.False(t, opts.HumanLabels)
	assert.Equal(t, "TD", opts.Direction)
	assert.Equal(t, "default", opts.Theme)

	opts = opts.WithShowGuards(false).
		WithShowErrorRoutes(false).
		WithHumanLabels(true).
		WithDirection("LR").
		WithTheme("dark").
		WithHighlightPath([]string{"state1", "state2"})

	assert.False(t, opts.ShowGuards)
	assert.False(t, opts.ShowErrorRoutes)
	assert.True(t, opts.HumanLabels)
	assert.Equal(t, "LR", opts.Direction)
	assert.Equal(t, "dark", opts.Theme)
	assert.Equal(t, []string{"state1", "state2"}, opts.HighlightPath)
	assert.NotEqual(t, DefaultOptions().palette(), opts.palette())
}

func TestNodeID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "for_moderators", nodeID("for_moderators"))
	assert.Equal(t, "in_review", nodeID("in-review"))
	assert.Equal(t, "on_hold_2", nodeID("on hold.2"))
}
