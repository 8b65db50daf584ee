package testing

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/amp-labs/amp-fsm/statemachine"
)

// Matcher errors.
var (
	ErrNoMatch            = errors.New("matcher did not match")
	ErrNotFired           = errors.New("operation was not fired")
	ErrUnexpectedFire     = errors.New("operation fired unexpectedly")
	ErrFireCountMismatch  = errors.New("operation fire count mismatch")
	ErrSequenceMismatch   = errors.New("operation sequence mismatch")
	ErrNoMatchersPassed   = errors.New("no matchers passed")
	ErrProtocolViolation  = errors.New("notification protocol violated")
	ErrNoErrorRouteTaken  = errors.New("no error route was taken")
	ErrFinalStateMismatch = errors.New("final state mismatch")
)

// Matcher defines an assertion over a recording.
type Matcher interface {
	Match(r *Recorder) (bool, error)
	Description() string
}

// Fired matches when op completed at least once.
func Fired(op statemachine.Operation) Matcher {
	return &firedMatcher{op: op}
}

// FiredFromTo matches when op completed from source to target.
func FiredFromTo(op statemachine.Operation, source, target statemachine.State) Matcher {
	return &firedMatcher{op: op, source: source, target: target}
}

type firedMatcher struct {
	op             statemachine.Operation
	source, target statemachine.State
}

func (m *firedMatcher) Match(r *Recorder) (bool, error) {
	for _, event := range r.Completed() {
		if event.Operation != m.op {
			continue
		}

		if m.source != "" && event.Source != m.source {
			continue
		}

		if m.target != "" && event.Target != m.target {
			continue
		}

		return true, nil
	}

	return false, fmt.Errorf("%w: %s", ErrNotFired, m.Description())
}

func (m *firedMatcher) Description() string {
	if m.source == "" && m.target == "" {
		return fmt.Sprintf("operation '%s' should fire", m.op)
	}

	return fmt.Sprintf("operation '%s' should fire from '%s' to '%s'", m.op, m.source, m.target)
}

// FiredTimes matches when op completed exactly n times.
func FiredTimes(op statemachine.Operation, n int) Matcher {
	return &firedTimesMatcher{op: op, n: n}
}

type firedTimesMatcher struct {
	op statemachine.Operation
	n  int
}

func (m *firedTimesMatcher) Match(r *Recorder) (bool, error) {
	count := 0

	for _, event := range r.Completed() {
		if event.Operation == m.op {
			count++
		}
	}

	if count != m.n {
		return false, fmt.Errorf("%w: '%s' fired %d time(s), expected %d", ErrFireCountMismatch, m.op, count, m.n)
	}

	return true, nil
}

func (m *firedTimesMatcher) Description() string {
	return fmt.Sprintf("operation '%s' should fire %d time(s)", m.op, m.n)
}

// NothingFired matches when no transition completed.
func NothingFired() Matcher {
	return &nothingFiredMatcher{}
}

type nothingFiredMatcher struct{}

func (m *nothingFiredMatcher) Match(r *Recorder) (bool, error) {
	if completed := r.Completed(); len(completed) > 0 {
		return false, fmt.Errorf("%w: '%s'", ErrUnexpectedFire, completed[0].Operation)
	}

	return true, nil
}

func (m *nothingFiredMatcher) Description() string {
	return "no transition should fire"
}

// Sequence matches when the completed operations are exactly ops, in order.
func Sequence(ops ...statemachine.Operation) Matcher {
	return &sequenceMatcher{ops: ops}
}

type sequenceMatcher struct {
	ops []statemachine.Operation
}

func (m *sequenceMatcher) Match(r *Recorder) (bool, error) {
	var actual []statemachine.Operation

	for _, event := range r.Completed() {
		actual = append(actual, event.Operation)
	}

	if !slices.Equal(actual, m.ops) {
		return false, fmt.Errorf("%w: got [%s], expected [%s]", ErrSequenceMismatch, joinOps(actual), joinOps(m.ops))
	}

	return true, nil
}

func (m *sequenceMatcher) Description() string {
	return fmt.Sprintf("operations should fire in order [%s]", joinOps(m.ops))
}

// RoutedToError matches when op completed through its OnError route.
func RoutedToError(op statemachine.Operation) Matcher {
	return &routedMatcher{op: op}
}

type routedMatcher struct {
	op statemachine.Operation
}

func (m *routedMatcher) Match(r *Recorder) (bool, error) {
	for _, event := range r.Completed() {
		if event.Operation == m.op && event.Err != nil {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: '%s'", ErrNoErrorRouteTaken, m.op)
}

func (m *routedMatcher) Description() string {
	return fmt.Sprintf("operation '%s' should take its error route", m.op)
}

// FinalState matches when the last completed transition ended in state.
func FinalState(state statemachine.State) Matcher {
	return &finalStateMatcher{state: state}
}

type finalStateMatcher struct {
	state statemachine.State
}

func (m *finalStateMatcher) Match(r *Recorder) (bool, error) {
	completed := r.Completed()
	if len(completed) == 0 {
		return false, fmt.Errorf("%w: nothing fired, expected '%s'", ErrFinalStateMismatch, m.state)
	}

	if last := completed[len(completed)-1].Target; last != m.state {
		return false, fmt.Errorf("%w: got '%s', expected '%s'", ErrFinalStateMismatch, last, m.state)
	}

	return true, nil
}

func (m *finalStateMatcher) Description() string {
	return fmt.Sprintf("final state should be '%s'", m.state)
}

// Not inverts a matcher.
func Not(matcher Matcher) Matcher {
	return &notMatcher{matcher: matcher}
}

type notMatcher struct {
	matcher Matcher
}

func (m *notMatcher) Match(r *Recorder) (bool, error) {
	if ok, err := m.matcher.Match(r); ok && err == nil {
		return false, fmt.Errorf("%w: %s", ErrNoMatch, m.Description())
	}

	return true, nil
}

func (m *notMatcher) Description() string {
	return "not: " + m.matcher.Description()
}

// All creates a matcher that requires all sub-matchers to pass.
func All(matchers ...Matcher) Matcher {
	return &allMatcher{matchers: matchers}
}

type allMatcher struct {
	matchers []Matcher
}

func (m *allMatcher) Match(r *Recorder) (bool, error) {
	for _, matcher := range m.matchers {
		matched, err := matcher.Match(r)
		if !matched || err != nil {
			return false, err
		}
	}

	return true, nil
}

func (m *allMatcher) Description() string {
	return "all matchers should pass"
}

// Any creates a matcher that requires at least one sub-matcher to pass.
func Any(matchers ...Matcher) Matcher {
	return &anyMatcher{matchers: matchers}
}

type anyMatcher struct {
	matchers []Matcher
}

func (m *anyMatcher) Match(r *Recorder) (bool, error) {
	for _, matcher := range m.matchers {
		matched, err := matcher.Match(r)
		if matched && err == nil {
			return true, nil
		}
	}

	return false, ErrNoMatchersPassed
}

func (m *anyMatcher) Description() string {
	return "at least one matcher should pass"
}

func joinOps(ops []statemachine.Operation) string {
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = string(op)
	}

	return strings.Join(names, ", ")
}
