package main

import (
	"github.com/amp-labs/amp-fsm/logger"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var quiet bool

	root := &cobra.Command{
		Use:   "fsmctl",
		Short: "Inspect and exercise state machine definitions",
		Long: `fsmctl works on YAML state machine definitions: it draws them,
checks them for structural problems and simulates invocations against them.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if quiet {
				cmd.SetContext(logger.WithMuted(cmd.Context(), true))
			}
		},
	}

	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "discard log output")

	root.AddCommand(newGraphCmd(), newValidateCmd(), newSimulateCmd(), newVersionCmd())

	return root
}
