package validator

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"facette.io/natsort"
	"github.com/amp-labs/amp-fsm/statemachine"
)

// Issue codes.
const (
	CodeConfigLoadFailed     = "CONFIG_LOAD_FAILED"
	CodeConfigInvalid        = "CONFIG_INVALID"
	CodeUnreachableState     = "UNREACHABLE_STATE"
	CodeDuplicateTransition  = "DUPLICATE_TRANSITION"
	CodeShadowedTransition   = "SHADOWED_TRANSITION"
	CodeOverlappingSources   = "OVERLAPPING_SOURCES"
	CodeNamingConvention     = "NAMING_CONVENTION"
	CodeInitialHasNoExit     = "INITIAL_STATE_NO_TRANSITIONS"
	CodeUnusedOnErrorTargets = "ON_ERROR_WITHOUT_BODY"
)

// Severity defines the severity level of a validation issue.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

// RuleResult contains both errors and warnings from a rule check.
type RuleResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// Rule defines a validation rule that can check a config for specific issues.
type Rule interface {
	Name() string
	Severity() Severity
	Check(config *statemachine.Config) RuleResult
}

var (
	registeredMu    sync.Mutex
	registeredRules []Rule
)

// DefaultRules returns the standard rules followed by any registered ones.
func DefaultRules() []Rule {
	rules := []Rule{
		&structureRule{},
		&unreachableStateRule{},
		&duplicateTransitionRule{},
		&overlapRule{},
		&initialExitRule{},
		&onErrorRule{},
		&namingConventionRule{},
	}

	registeredMu.Lock()
	defer registeredMu.Unlock()

	return append(rules, registeredRules...)
}

// RegisterRule adds a custom rule to DefaultRules.
func RegisterRule(rule Rule) {
	registeredMu.Lock()
	defer registeredMu.Unlock()

	registeredRules = append(registeredRules, rule)
}

// structureRule surfaces the problems Config.Validate reports, one per issue.
type structureRule struct{}

func (r *structureRule) Name() string       { return "Structure" }
func (r *structureRule) Severity() Severity { return SeverityError }

func (r *structureRule) Check(config *statemachine.Config) RuleResult {
	var errs []ValidationError

	for _, problem := range config.Problems() {
		errs = append(errs, ValidationError{
			Code:     CodeConfigInvalid,
			Message:  problem.Error(),
			Location: Location{Transition: -1},
		})
	}

	return RuleResult{Errors: errs}
}

// unreachableStateRule reports declared states no edge leads to from the initial state.
type unreachableStateRule struct{}

func (r *unreachableStateRule) Name() string       { return "UnreachableState" }
func (r *unreachableStateRule) Severity() Severity { return SeverityWarning }

func (r *unreachableStateRule) Check(config *statemachine.Config) RuleResult {
	if !config.HasState(config.InitialState) {
		return RuleResult{}
	}

	reachable := config.ReachableStates()

	var unreachable []string

	for _, state := range config.States {
		if !reachable[state] {
			unreachable = append(unreachable, state)
		}
	}

	natsort.Sort(unreachable)

	warnings := make([]ValidationWarning, 0, len(unreachable))
	for _, state := range unreachable {
		warnings = append(warnings, ValidationWarning{
			Code:     CodeUnreachableState,
			Message:  fmt.Sprintf("State '%s' cannot be reached from initial state '%s'", state, config.InitialState),
			Location: stateLocation(state),
			Fix:      RemoveUnreachableState(state),
		})
	}

	return RuleResult{Warnings: warnings}
}

// duplicateTransitionRule reports transitions identical to an earlier one.
type duplicateTransitionRule struct{}

func (r *duplicateTransitionRule) Name() string       { return "DuplicateTransition" }
func (r *duplicateTransitionRule) Severity() Severity { return SeverityError }

func (r *duplicateTransitionRule) Check(config *statemachine.Config) RuleResult {
	var errs []ValidationError

	first := make(map[string]int)
	reported := make(map[string]bool)

	for i, tr := range config.Transitions {
		key := transitionKey(tr)

		idx, seen := first[key]
		if !seen {
			first[key] = i

			continue
		}

		if reported[key] {
			continue
		}

		reported[key] = true

		errs = append(errs, ValidationError{
			Code:     CodeDuplicateTransition,
			Message:  fmt.Sprintf("Transition %d duplicates transition %d for operation '%s'", i, idx, tr.Operation),
			Location: transitionLocation(i, tr.Operation),
			Fix:      RemoveDuplicateTransitions(key),
		})
	}

	return RuleResult{Errors: errs}
}

// overlapRule reports rules for the same operation whose sources collide with
// an earlier unguarded rule. The earlier rule always wins for those sources,
// so a full overlap makes the later rule dead.
type overlapRule struct{}

func (r *overlapRule) Name() string       { return "Overlap" }
func (r *overlapRule) Severity() Severity { return SeverityError }

func (r *overlapRule) Check(config *statemachine.Config) RuleResult {
	var result RuleResult

	dup := make(map[string]bool)

	for j, later := range config.Transitions {
		key := transitionKey(later)
		if dup[key] {
			continue
		}

		dup[key] = true
		laterSources := config.ExpandSources(later)

		for i := range j {
			earlier := config.Transitions[i]
			if earlier.Operation != later.Operation || isGuarded(earlier) || transitionKey(earlier) == key {
				continue
			}

			shared := intersect(config.ExpandSources(earlier), laterSources)
			if len(shared) == 0 {
				continue
			}

			if len(shared) == len(laterSources) {
				result.Errors = append(result.Errors, ValidationError{
					Code: CodeShadowedTransition,
					Message: fmt.Sprintf("Transition %d for '%s' is never selected: unguarded transition %d covers all its sources",
						j, later.Operation, i),
					Location: transitionLocation(j, later.Operation),
				})

				break
			}

			result.Warnings = append(result.Warnings, ValidationWarning{
				Code: CodeOverlappingSources,
				Message: fmt.Sprintf("Transition %d for '%s' is unreachable from %s: unguarded transition %d takes precedence",
					j, later.Operation, quoteAll(shared), i),
				Location: transitionLocation(j, later.Operation),
			})
		}
	}

	return result
}

// initialExitRule warns when nothing can leave the initial state.
type initialExitRule struct{}

func (r *initialExitRule) Name() string       { return "InitialExit" }
func (r *initialExitRule) Severity() Severity { return SeverityWarning }

func (r *initialExitRule) Check(config *statemachine.Config) RuleResult {
	if !config.HasState(config.InitialState) {
		return RuleResult{}
	}

	for _, edge := range config.Edges() {
		if edge.From == config.InitialState {
			return RuleResult{}
		}
	}

	return RuleResult{Warnings: []ValidationWarning{{
		Code:     CodeInitialHasNoExit,
		Message:  fmt.Sprintf("Initial state '%s' has no outgoing transitions", config.InitialState),
		Location: stateLocation(config.InitialState),
	}}}
}

// onErrorRule warns about onError states on transitions without a body,
// which never fail and so never take the error route.
type onErrorRule struct{}

func (r *onErrorRule) Name() string       { return "OnErrorWithoutBody" }
func (r *onErrorRule) Severity() Severity { return SeverityWarning }

func (r *onErrorRule) Check(config *statemachine.Config) RuleResult {
	var warnings []ValidationWarning

	for i, tr := range config.Transitions {
		if tr.OnError != "" && tr.Body == "" {
			warnings = append(warnings, ValidationWarning{
				Code:     CodeUnusedOnErrorTargets,
				Message:  fmt.Sprintf("Transition %d routes errors to '%s' but has no body that can fail", i, tr.OnError),
				Location: transitionLocation(i, tr.Operation),
			})
		}
	}

	return RuleResult{Warnings: warnings}
}

// namingConventionRule warns about state and operation names that are not snake_case.
type namingConventionRule struct{}

func (r *namingConventionRule) Name() string       { return "NamingConvention" }
func (r *namingConventionRule) Severity() Severity { return SeverityWarning }

func (r *namingConventionRule) Check(config *statemachine.Config) RuleResult {
	var warnings []ValidationWarning

	for _, state := range config.States {
		if !isSnakeCase(state) {
			suggested := toSnakeCase(state)
			warnings = append(warnings, ValidationWarning{
				Code:     CodeNamingConvention,
				Message:  fmt.Sprintf("State '%s' should use snake_case naming (suggested: '%s')", state, suggested),
				Location: stateLocation(state),
				Fix:      RenameState(state, suggested),
			})
		}
	}

	seen := make(map[string]bool)

	for _, tr := range config.Transitions {
		if seen[tr.Operation] || tr.Operation == "" || isSnakeCase(tr.Operation) {
			continue
		}

		seen[tr.Operation] = true
		suggested := toSnakeCase(tr.Operation)

		warnings = append(warnings, ValidationWarning{
			Code:     CodeNamingConvention,
			Message:  fmt.Sprintf("Operation '%s' should use snake_case naming (suggested: '%s')", tr.Operation, suggested),
			Location: Location{Operation: tr.Operation, Transition: -1},
			Fix:      RenameOperation(tr.Operation, suggested),
		})
	}

	return RuleResult{Warnings: warnings}
}

func isGuarded(tr statemachine.TransitionConfig) bool {
	return len(tr.Conditions) > 0 || tr.Permission != nil
}

// transitionKey identifies a transition by everything that affects selection and outcome.
func transitionKey(tr statemachine.TransitionConfig) string {
	sources := slices.Clone(tr.Sources)
	slices.Sort(sources)

	conditions := make([]string, 0, len(tr.Conditions))
	for _, c := range tr.Conditions {
		conditions = append(conditions, c.Name)
	}

	permission := ""
	if tr.Permission != nil {
		permission = tr.Permission.Name
	}

	allowed := slices.Clone(tr.Target.Allowed)
	slices.Sort(allowed)

	return strings.Join([]string{
		tr.Operation,
		strings.Join(sources, ","),
		tr.Target.Type, tr.Target.State, tr.Target.Func, strings.Join(allowed, ","),
		tr.Body,
		strings.Join(conditions, ","),
		permission,
		tr.OnError,
	}, "|")
}

func intersect(a, b []string) []string {
	var out []string

	for _, s := range b {
		if slices.Contains(a, s) && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}

	natsort.Sort(out)

	return out
}

func quoteAll(states []string) string {
	quoted := make([]string, len(states))
	for i, s := range states {
		quoted[i] = "'" + s + "'"
	}

	return strings.Join(quoted, ", ")
}

func isSnakeCase(s string) bool {
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			return false
		}

		if r == '-' || r == ' ' {
			return false
		}
	}

	return true
}

func toSnakeCase(s string) string {
	var result []rune

	for i, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			if i > 0 && result[len(result)-1] != '_' {
				result = append(result, '_')
			}

			result = append(result, r-'A'+'a')
		case r == '-' || r == ' ':
			result = append(result, '_')
		default:
			result = append(result, r)
		}
	}

	return string(result)
}
