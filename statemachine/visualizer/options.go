package visualizer

// Options configures the visualization output.
type Options struct {
	// ShowGuards appends condition and permission names to edge labels.
	ShowGuards bool

	// HumanLabels renders operations as title-cased phrases, preferring a
	// transition's custom "label" entry when present.
	HumanLabels bool

	// ShowErrorRoutes draws the onError edges of transitions with a body.
	ShowErrorRoutes bool

	// Direction controls diagram flow: "TD" (top-down) or "LR" (left-right).
	Direction string

	// HighlightPath highlights a specific state path through the diagram.
	HighlightPath []string

	// Theme controls the color scheme: "default", "dark", "forest".
	Theme string
}

// DefaultOptions returns sensible defaults for visualization.
func DefaultOptions() Options {
	return Options{
		ShowGuards:      true,
		ShowErrorRoutes: true,
		Direction:       "TD",
		Theme:           "default",
	}
}

// WithShowGuards enables/disables guard names on edges.
func (o Options) WithShowGuards(show bool) Options {
	o.ShowGuards = show

	return o
}

// WithHumanLabels enables/disables human-readable edge labels.
func (o Options) WithHumanLabels(human bool) Options {
	o.HumanLabels = human

	return o
}

// WithShowErrorRoutes enables/disables onError edges.
func (o Options) WithShowErrorRoutes(show bool) Options {
	o.ShowErrorRoutes = show

	return o
}

// WithDirection sets the diagram direction.
func (o Options) WithDirection(direction string) Options {
	o.Direction = direction

	return o
}

// WithHighlightPath sets states to highlight.
func (o Options) WithHighlightPath(path []string) Options {
	o.HighlightPath = path

	return o
}

// WithTheme sets the color theme.
func (o Options) WithTheme(theme string) Options {
	o.Theme = theme

	return o
}

type palette struct {
	terminal    string
	highlighted string
	edge        string
	errorEdge   string
}

func (o Options) palette() palette {
	switch o.Theme {
	case "dark":
		return palette{
			terminal:    "fill:#1b5e20,stroke:#a5d6a7,color:#ffffff",
			highlighted: "fill:#f57f17,stroke:#fff59d,color:#000000",
			edge:        "#e0e0e0",
			errorEdge:   "#ef9a9a",
		}
	case "forest":
		return palette{
			terminal:    "fill:#cdeccd,stroke:#2e7d32",
			highlighted: "fill:#fff3b0,stroke:#827717",
			edge:        "#33691e",
			errorEdge:   "#bf360c",
		}
	default:
		return palette{
			terminal:    "fill:#c8e6c9,stroke:#2e7d32",
			highlighted: "fill:#fff9c4,stroke:#f57f17",
			edge:        "#455a64",
			errorEdge:   "#c62828",
		}
	}
}

func (o Options) direction() string {
	if o.Direction == "LR" {
		return "LR"
	}

	return "TD"
}
