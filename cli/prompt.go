// Package cli holds the terminal prompts used by fsmctl.
package cli

import (
	"errors"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrNoChoices is returned when Select is given nothing to choose from.
var ErrNoChoices = errors.New("no choices to select from")

// IO carries the streams prompts read from and write to. Zero values use the
// terminal.
type IO struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
}

// Select asks the user to pick one of choices and returns it. Typing filters
// the list by prefix.
func (p IO) Select(label string, choices ...string) (string, error) {
	if len(choices) == 0 {
		return "", ErrNoChoices
	}

	sel := &promptui.Select{
		Label: label,
		Items: choices,
		Size:  min(len(choices), 10), //nolint:mnd
		Searcher: func(input string, index int) bool {
			return strings.HasPrefix(choices[index], input)
		},
		Stdin:  p.Stdin,
		Stdout: p.Stdout,
	}

	_, value, err := sel.Run()
	if err != nil {
		return "", err
	}

	return value, nil
}

// Confirm asks a yes/no question. An answer other than yes is false.
func (p IO) Confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdin:     p.Stdin,
		Stdout:    p.Stdout,
	}

	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}
