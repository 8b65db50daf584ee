package main

import (
	"encoding/json"
	"fmt"

	"github.com/amp-labs/amp-fsm/build"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := build.Current()

			if !verbose {
				version := info.Version
				if version == "" {
					version = "(devel)"
				}

				_, err := fmt.Fprintf(cmd.OutOrStdout(), "fsmctl %s %s\n", version, info.GoVersion)

				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(info)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print all build details as JSON")

	return cmd
}
