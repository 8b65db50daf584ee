package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/amp-labs/amp-fsm/cli"
	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/amp-labs/amp-fsm/statemachine/validator"
	"github.com/spf13/cobra"
)

var (
	errInvalidDefinition = errors.New("definition is invalid")
	errUnknownFormat     = errors.New("unknown format")
)

// confirmFunc asks a yes/no question before a file is rewritten.
type confirmFunc func(label string) (bool, error)

func newValidateCmd() *cobra.Command {
	return newValidateCmdWith(cli.IO{}.Confirm)
}

func newValidateCmdWith(confirm confirmFunc) *cobra.Command {
	var strict, fix, yes bool

	cmd := &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Check a definition for errors and questionable constructs",
		Long: `Checks structure, reachability, duplicate and shadowed transitions and
naming. Exits non-zero when errors are found; --strict treats warnings as
errors. --fix lists the available automatic fixes and, once confirmed (or
with --yes), rewrites the file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			if fix {
				var fixer fileFixer

				if !yes {
					fixer.confirm = confirm
				}

				if err := fixer.fixFile(cmd, path, strict); err != nil {
					return err
				}
			}

			result, err := validator.ValidateFileWithOptions(path, strict)

			fmt.Fprintln(cmd.OutOrStdout(), result.String())

			if err != nil {
				return err
			}

			if !result.Valid {
				return errInvalidDefinition
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")
	cmd.Flags().BoolVar(&fix, "fix", false, "apply automatic fixes in place")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "rewrite the file without asking")

	return cmd
}

// fileFixer rewrites a definition with the validator's fixes. A nil confirm
// applies them without asking.
type fileFixer struct {
	confirm confirmFunc
}

func (f fileFixer) fixFile(cmd *cobra.Command, path string, strict bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	config, err := statemachine.ParseConfig(data)
	if err != nil {
		return err
	}

	var result validator.ValidationResult
	if strict {
		result = validator.ValidateWithRulesStrict(config, validator.DefaultRules())
	} else {
		result = validator.Validate(config)
	}

	fixes := result.Fixes()
	if len(fixes) == 0 {
		return nil
	}

	if f.confirm != nil {
		for _, fx := range fixes {
			fmt.Fprintf(cmd.OutOrStdout(), "fix: %s\n", fx.Description)
		}

		ok, err := f.confirm(fmt.Sprintf("Rewrite %s with %d fix(es)", path, len(fixes)))
		if err != nil {
			return err
		}

		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "fixes not applied")

			return nil
		}
	}

	if err := validator.ApplyFixes(config, fixes); err != nil {
		return err
	}

	out, err := config.Marshal()
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return err
	}

	for _, fx := range fixes {
		fmt.Fprintf(cmd.OutOrStdout(), "fixed: %s\n", fx.Description)
	}

	return nil
}
