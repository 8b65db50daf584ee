// Package validator checks transition configs for structural and semantic
// problems that Config.Validate alone cannot see, such as unreachable states
// and rules that can never be selected.
package validator

import (
	"fmt"
	"os"
	"strings"

	"github.com/amp-labs/amp-fsm/statemachine"
)

// ValidationResult contains the results of validating a transition config.
type ValidationResult struct {
	Valid       bool
	Errors      []ValidationError
	Warnings    []ValidationWarning
	Suggestions []Suggestion
}

// ValidationError represents a validation error with an optional fix.
type ValidationError struct {
	Code     string   // Error code like "SHADOWED_TRANSITION"
	Message  string   // Human-readable error message
	Location Location // Where the error occurred
	Fix      *Fix     // Optional auto-fix
}

// ValidationWarning represents a non-critical issue.
type ValidationWarning struct {
	Code     string
	Message  string
	Location Location
	Fix      *Fix
}

// Suggestion provides improvement recommendations.
type Suggestion struct {
	Message string
	Example string
}

// Location identifies where an issue occurred.
type Location struct {
	File       string // Config file path
	State      string // State name if applicable
	Operation  string // Operation name if applicable
	Transition int    // Index into Config.Transitions, -1 when not tied to one
}

func stateLocation(state string) Location {
	return Location{State: state, Transition: -1}
}

func transitionLocation(index int, op string) Location {
	return Location{Operation: op, Transition: index}
}

func (l Location) String() string {
	var parts []string

	if l.File != "" {
		parts = append(parts, l.File)
	}

	if l.Transition >= 0 && l.Operation != "" {
		parts = append(parts, fmt.Sprintf("transition %d: %s", l.Transition, l.Operation))
	} else if l.Operation != "" {
		parts = append(parts, "operation: "+l.Operation)
	}

	if l.State != "" {
		parts = append(parts, "state: "+l.State)
	}

	return strings.Join(parts, ", ")
}

// Validate runs the default rules against a config.
func Validate(config *statemachine.Config) ValidationResult {
	return ValidateWithRules(config, DefaultRules())
}

// ValidateFile loads a config from a file and validates it.
func ValidateFile(path string) (ValidationResult, error) {
	return ValidateFileWithOptions(path, false)
}

// ValidateFileStrict loads a config from a file and validates it in strict mode.
func ValidateFileStrict(path string) (ValidationResult, error) {
	return ValidateFileWithOptions(path, true)
}

// ValidateFileWithOptions loads a config from a file and validates it.
// Structural problems are reported one per issue rather than failing the load.
// Read and parse errors are reported both in the result and as the returned error.
func ValidateFileWithOptions(path string, strict bool) (ValidationResult, error) {
	config, err := readConfig(path)
	if err != nil {
		return ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{
					Code:     CodeConfigLoadFailed,
					Message:  fmt.Sprintf("Failed to load config: %v", err),
					Location: Location{File: path, Transition: -1},
				},
			},
		}, err
	}

	var result ValidationResult
	if strict {
		result = ValidateWithRulesStrict(config, DefaultRules())
	} else {
		result = Validate(config)
	}

	for i := range result.Errors {
		if result.Errors[i].Location.File == "" {
			result.Errors[i].Location.File = path
		}
	}

	for i := range result.Warnings {
		if result.Warnings[i].Location.File == "" {
			result.Warnings[i].Location.File = path
		}
	}

	return result, nil
}

func readConfig(path string) (*statemachine.Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Intentional path-based loading
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	return statemachine.ParseConfig(data)
}

// ValidateWithRules validates using the given rules.
func ValidateWithRules(config *statemachine.Config, rules []Rule) ValidationResult {
	result := ValidationResult{Valid: true}

	if config == nil {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Code:     CodeConfigInvalid,
			Message:  "config is nil",
			Location: Location{Transition: -1},
		})

		return result
	}

	for _, rule := range rules {
		ruleResult := rule.Check(config)
		result.Errors = append(result.Errors, ruleResult.Errors...)
		result.Warnings = append(result.Warnings, ruleResult.Warnings...)
	}

	if len(result.Errors) > 0 {
		result.Valid = false
	}

	result.Suggestions = generateSuggestions(config)

	return result
}

// ValidateWithRulesStrict validates in strict mode, where warnings count as errors.
func ValidateWithRulesStrict(config *statemachine.Config, rules []Rule) ValidationResult {
	result := ValidateWithRules(config, rules)

	for _, warning := range result.Warnings {
		result.Errors = append(result.Errors, ValidationError(warning))
	}

	result.Warnings = nil

	if len(result.Errors) > 0 {
		result.Valid = false
	}

	return result
}

func generateSuggestions(config *statemachine.Config) []Suggestion {
	var suggestions []Suggestion

	hasBody, hasOnError := false, false

	for _, tr := range config.Transitions {
		if tr.Body != "" {
			hasBody = true
		}

		if tr.OnError != "" {
			hasOnError = true
		}
	}

	if hasBody && !hasOnError {
		suggestions = append(suggestions, Suggestion{
			Message: "Consider routing body failures to an error state with onError",
			Example: `transitions:
  - operation: publish
    sources: [new]
    body: publish
    target: published
    onError: failed  # entered when the body returns an error`,
		})
	}

	labelled := false

	for _, tr := range config.Transitions {
		if _, ok := tr.Custom["label"]; ok {
			labelled = true

			break
		}
	}

	if !labelled && len(config.Transitions) > 3 {
		suggestions = append(suggestions, Suggestion{
			Message: "Consider adding custom labels to document transitions in generated diagrams",
			Example: `transitions:
  - operation: moderate
    custom:
      label: "Moderator review"`,
		})
	}

	return suggestions
}

// HasErrors returns true if the result has any errors.
func (r ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if the result has any warnings.
func (r ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Fixes returns every available auto-fix, errors first.
func (r ValidationResult) Fixes() []*Fix {
	var fixes []*Fix

	for _, err := range r.Errors {
		if err.Fix != nil {
			fixes = append(fixes, err.Fix)
		}
	}

	for _, warn := range r.Warnings {
		if warn.Fix != nil {
			fixes = append(fixes, warn.Fix)
		}
	}

	return fixes
}

// String returns a human-readable summary of validation results.
func (r ValidationResult) String() string {
	var sb strings.Builder

	if r.Valid {
		sb.WriteString("✓ Configuration is valid\n")
	} else {
		fmt.Fprintf(&sb, "✗ Configuration has %d error(s)\n", len(r.Errors))

		for _, err := range r.Errors {
			writeIssue(&sb, err.Code, err.Message, err.Location, err.Fix)
		}
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(&sb, "\n⚠ %d warning(s):\n", len(r.Warnings))

		for _, warn := range r.Warnings {
			writeIssue(&sb, warn.Code, warn.Message, warn.Location, warn.Fix)
		}
	}

	if len(r.Suggestions) > 0 {
		fmt.Fprintf(&sb, "\n%d suggestion(s) for improvement:\n", len(r.Suggestions))

		for _, s := range r.Suggestions {
			fmt.Fprintf(&sb, "  - %s\n", s.Message)
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

func writeIssue(sb *strings.Builder, code, message string, loc Location, fix *Fix) {
	fmt.Fprintf(sb, "  [%s] %s", code, message)

	if where := loc.String(); where != "" {
		fmt.Fprintf(sb, " (%s)", where)
	}

	sb.WriteString("\n")

	if fix != nil {
		fmt.Fprintf(sb, "    Fix: %s\n", fix.Description)
	}
}
