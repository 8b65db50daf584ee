package validator

import (
	"errors"
	"fmt"
	"slices"

	"github.com/amp-labs/amp-fsm/statemachine"
)

var (
	// ErrStateNotFound is returned when a fix targets a state that isn't declared.
	ErrStateNotFound = errors.New("state not found")
	// ErrStateAlreadyExists is returned when renaming to a declared state name.
	ErrStateAlreadyExists = errors.New("state already exists")
	// ErrOperationNotFound is returned when renaming an operation no transition uses.
	ErrOperationNotFound = errors.New("operation not found")
	// ErrDuplicateNotFound is returned when a dedupe fix finds nothing to remove.
	ErrDuplicateNotFound = errors.New("duplicate not found")
)

// Fix represents an automatic fix for a validation issue.
type Fix struct {
	Description string
	Apply       func(config *statemachine.Config) error
}

// RemoveUnreachableState removes a state along with every reference to it.
// Transitions left without sources or targets are dropped, and onError
// routes to the state are cleared.
func RemoveUnreachableState(state string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Remove unreachable state '%s'", state),
		Apply: func(config *statemachine.Config) error {
			if !config.HasState(state) {
				return fmt.Errorf("%w: '%s'", ErrStateNotFound, state)
			}

			config.States = slices.DeleteFunc(config.States, func(s string) bool { return s == state })

			kept := config.Transitions[:0]

			for _, tr := range config.Transitions {
				tr.Sources = slices.DeleteFunc(slices.Clone(tr.Sources), func(s string) bool { return s == state })
				if len(tr.Sources) == 0 {
					continue
				}

				switch tr.Target.Type {
				case statemachine.TargetTypeFixed:
					if tr.Target.State == state {
						continue
					}
				default:
					tr.Target.Allowed = slices.DeleteFunc(slices.Clone(tr.Target.Allowed), func(s string) bool {
						return s == state
					})
					if len(tr.Target.Allowed) == 0 {
						continue
					}
				}

				if tr.OnError == state {
					tr.OnError = ""
				}

				kept = append(kept, tr)
			}

			config.Transitions = kept

			return nil
		},
	}
}

// RenameState renames a state everywhere it is referenced.
func RenameState(oldName, newName string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Rename state from '%s' to '%s'", oldName, newName),
		Apply: func(config *statemachine.Config) error {
			if config.HasState(newName) {
				return fmt.Errorf("%w: '%s'", ErrStateAlreadyExists, newName)
			}

			idx := slices.Index(config.States, oldName)
			if idx < 0 {
				return fmt.Errorf("%w: '%s'", ErrStateNotFound, oldName)
			}

			config.States[idx] = newName

			if config.InitialState == oldName {
				config.InitialState = newName
			}

			rename := func(list []string) {
				for i, s := range list {
					if s == oldName {
						list[i] = newName
					}
				}
			}

			for i := range config.Transitions {
				tr := &config.Transitions[i]

				rename(tr.Sources)
				rename(tr.Target.Allowed)

				if tr.Target.State == oldName {
					tr.Target.State = newName
				}

				if tr.OnError == oldName {
					tr.OnError = newName
				}
			}

			return nil
		},
	}
}

// RenameOperation renames an operation on every transition that declares it.
func RenameOperation(oldName, newName string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Rename operation from '%s' to '%s'", oldName, newName),
		Apply: func(config *statemachine.Config) error {
			found := false

			for i := range config.Transitions {
				if config.Transitions[i].Operation == oldName {
					config.Transitions[i].Operation = newName
					found = true
				}
			}

			if !found {
				return fmt.Errorf("%w: '%s'", ErrOperationNotFound, oldName)
			}

			return nil
		},
	}
}

// RemoveDuplicateTransitions keeps the first transition matching key and drops the rest.
func RemoveDuplicateTransitions(key string) *Fix {
	return &Fix{
		Description: "Remove duplicate transitions",
		Apply: func(config *statemachine.Config) error {
			kept := make([]statemachine.TransitionConfig, 0, len(config.Transitions))
			seen, removed := false, false

			for _, tr := range config.Transitions {
				if transitionKey(tr) == key {
					if seen {
						removed = true

						continue
					}

					seen = true
				}

				kept = append(kept, tr)
			}

			if !removed {
				return ErrDuplicateNotFound
			}

			config.Transitions = kept

			return nil
		},
	}
}

// ApplyFixes applies fixes in order and stops at the first failure.
func ApplyFixes(config *statemachine.Config, fixes []*Fix) error {
	for _, fix := range fixes {
		if fix == nil || fix.Apply == nil {
			continue
		}

		if err := fix.Apply(config); err != nil {
			return fmt.Errorf("failed to apply fix '%s': %w", fix.Description, err)
		}
	}

	return nil
}
