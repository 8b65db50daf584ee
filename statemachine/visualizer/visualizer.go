// Package visualizer renders transition configs as Mermaid and Graphviz diagrams.
//
//nolint:varnamelen // short names idiomatic
package visualizer

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"facette.io/natsort"
	"github.com/amp-labs/amp-fsm/statemachine"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Visualizer errors.
var (
	ErrConfigNil      = errors.New("config cannot be nil")
	ErrNoInitialState = errors.New("config must have an initial state")
)

// edge is one drawn arrow. Several config edges collapse into one when they
// share endpoints and label.
type edge struct {
	from, to string
	label    string
	onError  bool
}

// GenerateMermaid converts a Config to a Mermaid state diagram.
func GenerateMermaid(config *statemachine.Config) (string, error) {
	return GenerateMermaidWithOptions(config, DefaultOptions())
}

// GenerateMermaidFromFile loads a config from a file and generates a Mermaid diagram.
func GenerateMermaidFromFile(path string) (string, error) {
	config, err := statemachine.LoadConfig(path)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	return GenerateMermaid(config)
}

// GenerateMermaidWithOptions generates a Mermaid diagram with custom options.
func GenerateMermaidWithOptions(config *statemachine.Config, opts Options) (string, error) {
	if err := check(config); err != nil {
		return "", err
	}

	var sb strings.Builder

	sb.WriteString("```mermaid\n")
	sb.WriteString("stateDiagram-v2\n")
	fmt.Fprintf(&sb, "    direction %s\n", opts.direction())

	for _, state := range config.States {
		if id := nodeID(state); id != state {
			fmt.Fprintf(&sb, "    %s: %s\n", id, state)
		}
	}

	fmt.Fprintf(&sb, "    [*] --> %s\n", nodeID(config.InitialState))

	for _, e := range collectEdges(config, opts) {
		label := e.label
		if e.onError {
			label += " (on error)"
		}

		fmt.Fprintf(&sb, "    %s --> %s: %s\n", nodeID(e.from), nodeID(e.to), label)
	}

	terminal := terminalStates(config)
	for _, state := range terminal {
		fmt.Fprintf(&sb, "    %s --> [*]\n", nodeID(state))
	}

	colors := opts.palette()

	sb.WriteString("\n")
	fmt.Fprintf(&sb, "    classDef terminal %s,stroke-width:2px\n", colors.terminal)
	fmt.Fprintf(&sb, "    classDef highlighted %s,stroke-width:3px\n", colors.highlighted)

	highlighted := highlightSet(config, opts)

	var plainTerminal []string

	for _, state := range terminal {
		if !slices.Contains(highlighted, state) {
			plainTerminal = append(plainTerminal, nodeID(state))
		}
	}

	if len(plainTerminal) > 0 {
		fmt.Fprintf(&sb, "    class %s terminal\n", strings.Join(plainTerminal, ","))
	}

	if len(highlighted) > 0 {
		ids := make([]string, len(highlighted))
		for i, state := range highlighted {
			ids[i] = nodeID(state)
		}

		fmt.Fprintf(&sb, "    class %s highlighted\n", strings.Join(ids, ","))
	}

	sb.WriteString("```\n")

	return sb.String(), nil
}

// GenerateDOT converts a Config to a Graphviz digraph.
func GenerateDOT(config *statemachine.Config) (string, error) {
	return GenerateDOTWithOptions(config, DefaultOptions())
}

// GenerateDOTFromFile loads a config from a file and generates a Graphviz digraph.
func GenerateDOTFromFile(path string) (string, error) {
	config, err := statemachine.LoadConfig(path)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	return GenerateDOT(config)
}

// GenerateDOTWithOptions generates a Graphviz digraph with custom options.
func GenerateDOTWithOptions(config *statemachine.Config, opts Options) (string, error) {
	if err := check(config); err != nil {
		return "", err
	}

	colors := opts.palette()
	rankdir := "TB"

	if opts.direction() == "LR" {
		rankdir = "LR"
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "digraph %q {\n", config.Entity)
	fmt.Fprintf(&sb, "    rankdir=%s;\n", rankdir)
	sb.WriteString("    node [shape=box, style=rounded];\n")
	sb.WriteString("    __start [shape=point];\n")

	terminal := terminalStates(config)
	highlighted := highlightSet(config, opts)

	for _, state := range config.States {
		var attrs []string

		if slices.Contains(terminal, state) {
			attrs = append(attrs, "peripheries=2")
		}

		if slices.Contains(highlighted, state) {
			attrs = append(attrs, `style="rounded,filled"`, `fillcolor="#fff9c4"`)
		}

		if len(attrs) == 0 {
			fmt.Fprintf(&sb, "    %q;\n", state)
		} else {
			fmt.Fprintf(&sb, "    %q [%s];\n", state, strings.Join(attrs, ", "))
		}
	}

	fmt.Fprintf(&sb, "    __start -> %q;\n", config.InitialState)

	for _, e := range collectEdges(config, opts) {
		if e.onError {
			fmt.Fprintf(&sb, "    %q -> %q [label=%q, style=dashed, color=%q];\n", e.from, e.to, e.label, colors.errorEdge)
		} else {
			fmt.Fprintf(&sb, "    %q -> %q [label=%q, color=%q];\n", e.from, e.to, e.label, colors.edge)
		}
	}

	sb.WriteString("}\n")

	return sb.String(), nil
}

func check(config *statemachine.Config) error {
	if config == nil {
		return ErrConfigNil
	}

	if config.InitialState == "" {
		return ErrNoInitialState
	}

	return nil
}

// collectEdges expands the config into drawable edges grouped by source state
// in declaration order.
func collectEdges(config *statemachine.Config, opts Options) []edge {
	bySource := make(map[string][]edge)

	var order []string

	for _, ce := range config.Edges() {
		onError := ce.Kind == statemachine.EdgeKindOnError
		if onError && !opts.ShowErrorRoutes {
			continue
		}

		e := edge{
			from:    ce.From,
			to:      ce.To,
			label:   edgeLabel(config.Transitions[ce.Transition], opts),
			onError: onError,
		}

		if slices.Contains(bySource[e.from], e) {
			continue
		}

		if _, ok := bySource[e.from]; !ok {
			order = append(order, e.from)
		}

		bySource[e.from] = append(bySource[e.from], e)
	}

	var edges []edge

	for _, state := range config.States {
		edges = append(edges, bySource[state]...)
		delete(bySource, state)
	}

	// Sources outside the declared states only appear in invalid configs.
	for _, state := range order {
		edges = append(edges, bySource[state]...)
	}

	return edges
}

func edgeLabel(tr statemachine.TransitionConfig, opts Options) string {
	label := tr.Operation

	if opts.HumanLabels {
		label = humanize(tr)
	}

	if !opts.ShowGuards {
		return label
	}

	var guards []string

	for _, cond := range tr.Conditions {
		guards = append(guards, cond.Name)
	}

	if tr.Permission != nil {
		guards = append(guards, "@"+tr.Permission.Name)
	}

	if len(guards) == 0 {
		return label
	}

	return fmt.Sprintf("%s [%s]", label, strings.Join(guards, ", "))
}

func humanize(tr statemachine.TransitionConfig) string {
	if custom, ok := tr.Custom["label"].(string); ok && custom != "" {
		return custom
	}

	words := strings.NewReplacer("_", " ", "-", " ").Replace(tr.Operation)

	return cases.Title(language.English).String(words)
}

// terminalStates returns declared states with no edge leading elsewhere.
func terminalStates(config *statemachine.Config) []string {
	exits := make(map[string]bool)

	for _, e := range config.Edges() {
		if e.From != e.To {
			exits[e.From] = true
		}
	}

	var terminal []string

	for _, state := range config.States {
		if !exits[state] {
			terminal = append(terminal, state)
		}
	}

	return terminal
}

// highlightSet returns the declared states in the highlight path, naturally sorted.
func highlightSet(config *statemachine.Config, opts Options) []string {
	var states []string

	for _, state := range opts.HighlightPath {
		if config.HasState(state) && !slices.Contains(states, state) {
			states = append(states, state)
		}
	}

	natsort.Sort(states)

	return states
}

// nodeID makes a state name safe to use as a Mermaid identifier.
func nodeID(state string) string {
	var sb strings.Builder

	for _, r := range state {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}

	return sb.String()
}
