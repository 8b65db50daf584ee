package testing

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/stretchr/testify/require"
)

// Document is a minimal keyed entity for tests.
type Document struct {
	statemachine.StateField

	ID    string
	Title string
}

// NewDocument creates a document in the given state.
func NewDocument(id string, state statemachine.State) *Document {
	return &Document{StateField: statemachine.NewStateField(state), ID: id}
}

// LockKey implements statemachine.Keyed.
func (d *Document) LockKey() string {
	return d.ID
}

// StaticActor is an actor with a fixed id and role set.
type StaticActor struct {
	Name      string
	RoleNames []string
}

// NewActor creates an actor holding roles.
func NewActor(id string, roles ...string) StaticActor {
	return StaticActor{Name: id, RoleNames: roles}
}

// ID implements statemachine.Actor.
func (a StaticActor) ID() string {
	return a.Name
}

// Roles returns the actor's roles.
func (a StaticActor) Roles() []string {
	return slices.Clone(a.RoleNames)
}

// HasRole reports whether the actor holds role.
func (a StaticActor) HasRole(role string) bool {
	return slices.Contains(a.RoleNames, role)
}

// LoadTestConfig loads a config from the calling package's testdata directory.
func LoadTestConfig(t *testing.T, name string) *statemachine.Config {
	t.Helper()

	config, err := statemachine.LoadConfig(filepath.Join("testdata", name))
	require.NoError(t, err, "failed to load test config %s", name)

	return config
}

// WriteTestConfig marshals a config into a temporary YAML file and returns its path.
func WriteTestConfig(t *testing.T, config *statemachine.Config) string {
	t.Helper()

	data, err := config.Marshal()
	require.NoError(t, err, "failed to marshal config")

	path := filepath.Join(t.TempDir(), config.Entity+".yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600), "failed to write config")

	return path
}

// CommonTestConfigs provides frequently used test configurations.
var CommonTestConfigs = struct {
	Linear    func() *statemachine.Config
	Branching func() *statemachine.Config
	Retry     func() *statemachine.Config
}{
	Linear: func() *statemachine.Config {
		return &statemachine.Config{
			Entity:       "linear",
			InitialState: "start",
			States:       []string{"start", "middle", "end"},
			Transitions: []statemachine.TransitionConfig{
				{Operation: "advance", Sources: []string{"start"}, Target: fixedTarget("middle")},
				{Operation: "finish", Sources: []string{"middle"}, Target: fixedTarget("end")},
			},
		}
	},
	Branching: func() *statemachine.Config {
		return &statemachine.Config{
			Entity:       "branching",
			InitialState: "start",
			States:       []string{"start", "success", "failure"},
			Transitions: []statemachine.TransitionConfig{
				{
					Operation: "decide",
					Sources:   []string{"start"},
					Body:      "decide",
					Target: statemachine.TargetConfig{
						Type:    statemachine.TargetTypeOutcome,
						Allowed: []string{"success", "failure"},
					},
				},
			},
		}
	},
	Retry: func() *statemachine.Config {
		return &statemachine.Config{
			Entity:       "retry",
			InitialState: "pending",
			States:       []string{"pending", "done", "failed"},
			Transitions: []statemachine.TransitionConfig{
				{
					Operation: "process",
					Sources:   []string{"pending"},
					Body:      "process",
					Target:    fixedTarget("done"),
					OnError:   "failed",
				},
				{Operation: "retry", Sources: []string{"failed"}, Target: fixedTarget("pending")},
			},
		}
	},
}

func fixedTarget(state string) statemachine.TargetConfig {
	return statemachine.TargetConfig{Type: statemachine.TargetTypeFixed, State: state}
}
