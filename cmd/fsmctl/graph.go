package main

import (
	"fmt"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/amp-labs/amp-fsm/statemachine/visualizer"
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	var (
		format    string
		direction string
		highlight []string
		human     bool
		noGuards  bool
		noErrors  bool
		theme     string
	)

	cmd := &cobra.Command{
		Use:   "graph <config.yaml>",
		Short: "Render a definition as a Mermaid or Graphviz diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := statemachine.LoadConfig(args[0])
			if err != nil {
				return err
			}

			opts := visualizer.DefaultOptions().
				WithDirection(direction).
				WithHighlightPath(highlight).
				WithHumanLabels(human).
				WithShowGuards(!noGuards).
				WithShowErrorRoutes(!noErrors).
				WithTheme(theme)

			var out string

			switch format {
			case "mermaid":
				out, err = visualizer.GenerateMermaidWithOptions(config, opts)
			case "dot":
				out, err = visualizer.GenerateDOTWithOptions(config, opts)
			default:
				return fmt.Errorf("%w: %q (want mermaid or dot)", errUnknownFormat, format)
			}

			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), out)

			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&format, "format", "f", "mermaid", "output format: mermaid or dot")
	flags.StringVarP(&direction, "direction", "d", "TD", "layout direction: TD or LR")
	flags.StringSliceVar(&highlight, "highlight", nil, "states to highlight")
	flags.BoolVar(&human, "human", false, "label edges with readable names")
	flags.BoolVar(&noGuards, "no-guards", false, "omit conditions and permissions from labels")
	flags.BoolVar(&noErrors, "no-error-routes", false, "omit onError edges")
	flags.StringVar(&theme, "theme", "default", "color theme: default, dark or forest")

	return cmd
}
