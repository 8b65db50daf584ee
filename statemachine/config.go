package statemachine

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Target types accepted in TargetConfig.Type.
const (
	TargetTypeFixed    = "fixed"
	TargetTypeOutcome  = "outcome"
	TargetTypeComputed = "computed"
)

// ConfigLoader is an interface for loading configurations by name.
// Applications can implement this to provide embedded or custom config loading.
type ConfigLoader interface {
	LoadByName(name string) ([]byte, error)
	ListAvailable() []string
}

var (
	// defaultConfigLoader is the global config loader used by LoadConfig.
	defaultConfigLoader ConfigLoader
)

// SetConfigLoader sets the default config loader for name-based loading.
func SetConfigLoader(loader ConfigLoader) {
	defaultConfigLoader = loader
}

// Config declares the rule set of one entity type.
type Config struct {
	Entity       string             `json:"entity"       yaml:"entity"`
	InitialState string             `json:"initialState" yaml:"initialState"`
	States       []string           `json:"states"       yaml:"states"`
	Transitions  []TransitionConfig `json:"transitions"  yaml:"transitions"`
}

// TransitionConfig declares one rule.
type TransitionConfig struct {
	Operation  string         `json:"operation"            yaml:"operation"`
	Sources    []string       `json:"sources"              yaml:"sources,flow"`
	Target     TargetConfig   `json:"target"               yaml:"target"`
	Body       string         `json:"body,omitempty"       yaml:"body,omitempty"`
	Conditions []RefConfig    `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Permission *RefConfig     `json:"permission,omitempty" yaml:"permission,omitempty"`
	OnError    string         `json:"onError,omitempty"    yaml:"onError,omitempty"`
	Custom     map[string]any `json:"custom,omitempty"     yaml:"custom,omitempty"`
}

// TargetConfig declares a target. A bare scalar in YAML is a fixed target.
type TargetConfig struct {
	Type    string   `json:"type"              yaml:"type"`
	State   string   `json:"state,omitempty"   yaml:"state,omitempty"`
	Func    string   `json:"func,omitempty"    yaml:"func,omitempty"`
	Allowed []string `json:"allowed,omitempty" yaml:"allowed,omitempty,flow"`
}

// UnmarshalYAML accepts either a state name or a mapping.
func (t *TargetConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		t.Type = TargetTypeFixed
		t.State = node.Value

		return nil
	}

	type plain TargetConfig

	if err := node.Decode((*plain)(t)); err != nil {
		return err
	}

	if t.Type == "" && t.State != "" {
		t.Type = TargetTypeFixed
	}

	return nil
}

// States returns every state the target can resolve to.
func (t TargetConfig) States() []string {
	if t.Type == TargetTypeFixed {
		return []string{t.State}
	}

	return slices.Clone(t.Allowed)
}

// RefConfig names a catalog entry and its parameters.
type RefConfig struct {
	Name   string         `json:"name"             yaml:"name"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// UnmarshalYAML accepts either a bare name or a mapping.
func (r *RefConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.Name = node.Value

		return nil
	}

	type plain RefConfig

	return node.Decode((*plain)(r))
}

// LoadConfig loads a rule set configuration by path or name.
// Supports two modes:
//   - Path mode: a value containing '/', '\', or ending in '.yaml'/'.yml' is read from the filesystem
//   - Name mode: a bare name is loaded through the registered ConfigLoader
func LoadConfig(pathOrName string) (*Config, error) {
	lower := strings.ToLower(pathOrName)

	isPath := strings.Contains(pathOrName, "/") ||
		strings.Contains(pathOrName, `\`) ||
		strings.HasSuffix(lower, ".yaml") ||
		strings.HasSuffix(lower, ".yml")

	if isPath {
		data, err := os.ReadFile(pathOrName) //nolint:gosec // Intentional path-based loading
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", pathOrName, err)
		}

		return LoadConfigFromBytes(data)
	}

	if defaultConfigLoader == nil {
		return nil, ErrNoConfigLoader
	}

	data, err := defaultConfigLoader.LoadByName(pathOrName)
	if err != nil {
		available := defaultConfigLoader.ListAvailable()

		return nil, fmt.Errorf("failed to load config %q (available: %v): %w", pathOrName, available, err)
	}

	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes parses and validates a YAML configuration.
func LoadConfigFromBytes(data []byte) (*Config, error) {
	config, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ParseConfig parses a YAML configuration without validating it.
func ParseConfig(data []byte) (*Config, error) {
	var config Config

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &config, nil
}

// LoadConfigFromFS loads a configuration from an embedded filesystem.
func LoadConfigFromFS(fsys fs.FS, path string) (*Config, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config from FS: %w", err)
	}

	return LoadConfigFromBytes(data)
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks the configuration's shape. Every problem is reported;
// the result unwraps to ErrInvalidConfig and to each specific sentinel.
// Computed functions are resolved later, by BuildRegistry.
func (c *Config) Validate() error {
	errs := c.Problems()
	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Problems returns every structural problem in the config, in declaration order.
func (c *Config) Problems() []error {
	var errs []error

	if c.Entity == "" {
		errs = append(errs, ErrEntityNameRequired)
	}

	if len(c.States) == 0 {
		errs = append(errs, ErrStateRequired)
	}

	seen := make(map[string]bool, len(c.States))

	for _, state := range c.States {
		if seen[state] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateStateName, state))
		}

		seen[state] = true
	}

	switch {
	case c.InitialState == "":
		errs = append(errs, ErrInitialStateRequired)
	case len(c.States) > 0 && !seen[c.InitialState]:
		errs = append(errs, fmt.Errorf("%w: %s", ErrInitialStateNotFound, c.InitialState))
	}

	for i, tr := range c.Transitions {
		for _, err := range tr.validate(seen, len(c.States) > 0) {
			errs = append(errs, fmt.Errorf("transition %d (%s): %w", i, tr.Operation, err))
		}
	}

	return errs
}

func (t TransitionConfig) validate(declared map[string]bool, checkDeclared bool) []error {
	var errs []error

	checkState := func(role, state string) {
		if checkDeclared && !declared[state] {
			errs = append(errs, fmt.Errorf("%w: %s %q", ErrStateNotDeclared, role, state))
		}
	}

	if t.Operation == "" {
		errs = append(errs, ErrOperationRequired)
	}

	if len(t.Sources) == 0 {
		errs = append(errs, ErrSourcesRequired)
	}

	for _, src := range t.Sources {
		if src == string(AnyState) || src == string(AnyOtherState) {
			if len(t.Sources) > 1 {
				errs = append(errs, fmt.Errorf("%w: wildcard %q mixed with other sources", ErrInvalidConfig, src))
			}

			if src == string(AnyOtherState) && t.Target.Type != TargetTypeFixed {
				errs = append(errs, fmt.Errorf("%w: %q requires a fixed target", ErrInvalidConfig, src))
			}

			continue
		}

		checkState("source", src)
	}

	switch t.Target.Type {
	case TargetTypeFixed:
		if t.Target.State == "" {
			errs = append(errs, ErrTargetRequired)
		} else {
			checkState("target", t.Target.State)
		}
	case TargetTypeOutcome, TargetTypeComputed:
		if len(t.Target.Allowed) == 0 {
			errs = append(errs, ErrAllowedRequired)
		}

		for _, state := range t.Target.Allowed {
			checkState("allowed", state)
		}
	case "":
		errs = append(errs, ErrTargetRequired)
	default:
		errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownTargetType, t.Target.Type))
	}

	for i, cond := range t.Conditions {
		if cond.Name == "" {
			errs = append(errs, fmt.Errorf("condition %d: %w", i, ErrNameRequired))
		}
	}

	if t.Permission != nil && t.Permission.Name == "" {
		errs = append(errs, fmt.Errorf("permission: %w", ErrNameRequired))
	}

	if t.OnError != "" {
		checkState("onError", t.OnError)
	}

	return errs
}

// Edge is one possible state change derived from a configuration.
type Edge struct {
	From      string
	To        string
	Operation string

	// Kind is a target type, or "on_error" for an OnError route.
	Kind string

	// Transition is the index of the declaring transition.
	Transition int
}

// EdgeKindOnError marks edges produced by OnError routes.
const EdgeKindOnError = "on_error"

// Edges expands every transition into concrete edges. Wildcard sources are
// expanded over the declared states.
func (c *Config) Edges() []Edge {
	var edges []Edge

	for i, tr := range c.Transitions {
		for _, from := range c.ExpandSources(tr) {
			for _, to := range tr.Target.States() {
				edges = append(edges, Edge{From: from, To: to, Operation: tr.Operation, Kind: tr.Target.Type, Transition: i})
			}

			if tr.OnError != "" {
				edges = append(edges, Edge{From: from, To: tr.OnError, Operation: tr.Operation, Kind: EdgeKindOnError, Transition: i})
			}
		}
	}

	return edges
}

// ExpandSources resolves wildcard sources against the declared states.
func (c *Config) ExpandSources(tr TransitionConfig) []string {
	if len(tr.Sources) == 1 {
		switch State(tr.Sources[0]) {
		case AnyState:
			return slices.Clone(c.States)
		case AnyOtherState:
			return slices.DeleteFunc(slices.Clone(c.States), func(s string) bool {
				return s == tr.Target.State
			})
		}
	}

	return slices.Clone(tr.Sources)
}

// ReachableStates returns the states reachable from the initial state.
func (c *Config) ReachableStates() map[string]bool {
	reachable := map[string]bool{c.InitialState: true}
	edges := c.Edges()

	queue := []string{c.InitialState}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, edge := range edges {
			if edge.From == current && !reachable[edge.To] {
				reachable[edge.To] = true
				queue = append(queue, edge.To)
			}
		}
	}

	return reachable
}

// HasState reports whether name is a declared state.
func (c *Config) HasState(name string) bool {
	return slices.Contains(c.States, name)
}

// Describe renders the registry as a Config so code-declared rule sets can be
// validated and drawn like YAML ones. Names are taken from condition and
// permission names and from the "body" and "func" Custom entries.
func (r *Registry[E]) Describe(entity string, initial State) *Config {
	cfg := &Config{
		Entity:       entity,
		InitialState: string(initial),
	}

	states := r.States()
	if initial != "" && !slices.Contains(states, initial) {
		states = append([]State{initial}, states...)
	}

	for _, s := range states {
		cfg.States = append(cfg.States, string(s))
	}

	for _, rule := range r.Rules() {
		tc := TransitionConfig{
			Operation: string(rule.Operation),
			OnError:   string(rule.OnError),
			Body:      customString(rule.Custom, "body"),
			Custom:    maps.Clone(rule.Custom),
		}

		for _, src := range rule.Sources {
			tc.Sources = append(tc.Sources, string(src))
		}

		tc.Target.Type = rule.Target.Kind().String()

		switch rule.Target.Kind() {
		case TargetFixed:
			tc.Target.State = string(rule.fixedTarget())
		case TargetOutcome, TargetComputed:
			for _, s := range rule.Target.Allowed() {
				tc.Target.Allowed = append(tc.Target.Allowed, string(s))
			}

			tc.Target.Func = customString(rule.Custom, "func")
		}

		for _, cond := range rule.Conditions {
			tc.Conditions = append(tc.Conditions, RefConfig{Name: cond.Name})
		}

		if rule.Permission != nil {
			tc.Permission = &RefConfig{Name: rule.Permission.Name}
		}

		cfg.Transitions = append(cfg.Transitions, tc)
	}

	return cfg
}

func customString(custom map[string]any, key string) string {
	val, _ := custom[key].(string)

	return val
}
