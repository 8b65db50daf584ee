package statemachine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/amp-labs/amp-fsm/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Machine.
type Option func(*options)

type options struct {
	bus     *Bus
	logger  Logger
	locker  Locker
	lockTTL time.Duration
	tracing bool
	metrics bool
}

// WithBus publishes notifications on bus instead of a private one.
func WithBus(bus *Bus) Option {
	return func(o *options) {
		o.bus = bus
	}
}

// WithLogger sets the invocation logger. Nil disables logging.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLocker serializes invocations on Keyed entities through locker.
func WithLocker(locker Locker, ttl time.Duration) Option {
	return func(o *options) {
		o.locker = locker
		o.lockTTL = ttl
	}
}

// WithTracing toggles the per-invocation span. It is on by default.
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracing = enabled
	}
}

// WithMetrics toggles the prometheus collectors. They are on by default.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metrics = enabled
	}
}

// Machine executes operations on entities of one type against a frozen
// Registry. It holds no per-entity state and is safe for concurrent use
// across distinct entities.
type Machine[E Entity] struct {
	entityType string
	registry   *Registry[E]
	bus        *Bus
	logger     Logger
	locker     Locker
	lockTTL    time.Duration
	tracing    bool
	metrics    bool
}

// New creates a machine for entityType. The registry is frozen.
func New[E Entity](entityType string, registry *Registry[E], opts ...Option) *Machine[E] {
	cfg := options{
		tracing: true,
		metrics: true,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.bus == nil {
		cfg.bus = NewBus(WithBusMetrics(cfg.metrics))
	}

	if cfg.locker != nil && cfg.lockTTL <= 0 {
		cfg.lockTTL = DefaultLockTTL
	}

	registry.Freeze()

	return &Machine[E]{
		entityType: entityType,
		registry:   registry,
		bus:        cfg.bus,
		logger:     cfg.logger,
		locker:     cfg.locker,
		lockTTL:    cfg.lockTTL,
		tracing:    cfg.tracing,
		metrics:    cfg.metrics,
	}
}

// EntityType returns the entity type label used in events and metrics.
func (m *Machine[E]) EntityType() string {
	return m.entityType
}

// Registry returns the frozen rule registry.
func (m *Machine[E]) Registry() *Registry[E] {
	return m.registry
}

// Bus returns the bus notifications are published on.
func (m *Machine[E]) Bus() *Bus {
	return m.bus
}

// Fire requests op on entity. On success the entity holds the resolved target
// and the body's result is returned. Rejections leave the entity untouched and
// return a *TransitionError. Observer errors come back wrapped in an
// *ObserverError that unwraps to the observer's own error; a post-transition
// observer error does not undo the assignment. A nil entity, including a nil
// pointer, yields ErrNilEntity.
func (m *Machine[E]) Fire(ctx context.Context, entity E, op Operation, args Args) (result any, err error) {
	if isNil(entity) {
		return nil, ErrNilEntity
	}

	ctx = logger.WithEntity(ctx, m.entityType, entityKey(entity))

	if m.locker != nil {
		unlock, lockErr := m.lock(ctx, entity)
		if lockErr != nil {
			if m.metrics {
				transitionFailuresTotal.WithLabelValues(sanitizeEntity(m.entityType), string(op), failureKind(lockErr)).Inc()
			}

			return nil, lockErr
		}

		defer m.unlock(ctx, unlock)
	}

	source := entity.CurrentState()
	actor := ActorFrom(ctx)

	var target State

	if m.tracing {
		var span trace.Span

		ctx, span = startFireSpan(ctx, m.entityType, op, source, actor)

		defer func() {
			endFireSpan(span, target, err)
		}()
	}

	if m.logger != nil {
		m.logger.TransitionStarted(ctx, m.entityType, op, source)
	}

	start := time.Now()

	defer func() {
		m.observe(ctx, op, source, target, time.Since(start), err)
	}()

	result, target, err = m.fire(ctx, entity, op, source, actor, args)

	return result, err
}

// fire runs the matching algorithm. target is non-empty once the field has
// been assigned.
func (m *Machine[E]) fire(
	ctx context.Context,
	entity E,
	op Operation,
	source State,
	actor Actor,
	args Args,
) (any, State, error) {
	candidates := m.candidates(op, source)
	if len(candidates) == 0 {
		return nil, "", m.rejection(KindInvalidTransition, op, source)
	}

	rule, err := m.selectRule(ctx, entity, candidates, op, source, actor, args)
	if err != nil {
		return nil, "", err
	}

	var result any

	if rule.Body != nil {
		var bodyErr error

		result, bodyErr = rule.Body(ctx, entity, args)
		if bodyErr != nil {
			return m.routeBodyError(ctx, entity, rule, op, source, actor, args, bodyErr)
		}
	}

	target, err := rule.Target.resolve(entity, result, args)
	if err != nil {
		terr := m.rejection(KindInvalidResult, op, source)
		terr.Result = result

		var notAllowed *errResultNotAllowed
		if errors.As(err, &notAllowed) {
			terr.Target = notAllowed.resolved
		}

		return nil, "", terr
	}

	event := Event{
		ID:         uuid.NewString(),
		Time:       time.Now(),
		EntityType: m.entityType,
		Entity:     entity,
		Operation:  op,
		Source:     source,
		Target:     target,
		Actor:      actor,
		Args:       args.Clone(),
	}

	if err := m.bus.Publish(ctx, PreTransition, event); err != nil {
		return nil, "", err
	}

	entity.SetState(target)

	if err := m.bus.Publish(ctx, PostTransition, event); err != nil {
		return nil, target, err
	}

	return result, target, nil
}

// routeBodyError handles a failing body. Without OnError the entity is left
// alone; with it the entity moves to OnError under the usual notifications.
func (m *Machine[E]) routeBodyError(
	ctx context.Context,
	entity E,
	rule *Rule[E],
	op Operation,
	source State,
	actor Actor,
	args Args,
	bodyErr error,
) (any, State, error) {
	wrapped := &BodyError{
		EntityType: m.entityType,
		Operation:  op,
		Source:     source,
		Err:        bodyErr,
	}

	if rule.OnError == "" {
		return nil, "", wrapped
	}

	event := Event{
		ID:         uuid.NewString(),
		Time:       time.Now(),
		EntityType: m.entityType,
		Entity:     entity,
		Operation:  op,
		Source:     source,
		Target:     rule.OnError,
		Actor:      actor,
		Args:       args.Clone(),
		Err:        bodyErr,
	}

	if err := m.bus.Publish(ctx, PreTransition, event); err != nil {
		return nil, "", errors.Join(wrapped, err)
	}

	entity.SetState(rule.OnError)

	if err := m.bus.Publish(ctx, PostTransition, event); err != nil {
		return nil, rule.OnError, errors.Join(wrapped, err)
	}

	return nil, rule.OnError, wrapped
}

// candidates returns the rules for op whose sources accept source.
func (m *Machine[E]) candidates(op Operation, source State) []*Rule[E] {
	var out []*Rule[E]

	for _, rule := range m.registry.lookup(op) {
		if rule.accepts(source) {
			out = append(out, rule)
		}
	}

	return out
}

// selectRule returns the first candidate whose permission and conditions
// pass. When none does, a permission failure takes precedence over a
// condition failure, and the earliest of each kind is reported.
func (m *Machine[E]) selectRule(
	ctx context.Context,
	entity E,
	candidates []*Rule[E],
	op Operation,
	source State,
	actor Actor,
	args Args,
) (*Rule[E], error) {
	var permFailure, condFailure *TransitionError

	for _, rule := range candidates {
		if !permits(ctx, rule, entity, actor) {
			if permFailure == nil {
				permFailure = m.rejection(KindNotAllowed, op, source)
				permFailure.Permission = rule.Permission.Name
			}

			continue
		}

		if failed, ok := firstFailedCondition(ctx, rule, entity, args); !ok {
			if condFailure == nil {
				condFailure = m.rejection(KindConditionsNotMet, op, source)
				condFailure.Condition = failed
			}

			continue
		}

		return rule, nil
	}

	if permFailure != nil {
		return nil, permFailure
	}

	return nil, condFailure
}

func permits[E any](ctx context.Context, rule *Rule[E], entity E, actor Actor) bool {
	return rule.Permission == nil || rule.Permission.Allow(ctx, entity, actor)
}

func firstFailedCondition[E any](ctx context.Context, rule *Rule[E], entity E, args Args) (string, bool) {
	for i, cond := range rule.Conditions {
		if !cond.Check(ctx, entity, args) {
			name := cond.Name
			if name == "" {
				name = fmt.Sprintf("condition[%d]", i)
			}

			return name, false
		}
	}

	return "", true
}

func (m *Machine[E]) rejection(kind FailureKind, op Operation, source State) *TransitionError {
	return &TransitionError{
		Kind:       kind,
		EntityType: m.entityType,
		Operation:  op,
		Source:     source,
	}
}

func (m *Machine[E]) lock(ctx context.Context, entity E) (UnlockFunc, error) {
	keyed, ok := any(entity).(Keyed)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotKeyed, m.entityType)
	}

	unlock, err := m.locker.Lock(ctx, m.entityType+":"+keyed.LockKey(), m.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("locking %s %s: %w", m.entityType, keyed.LockKey(), err)
	}

	return unlock, nil
}

func (m *Machine[E]) unlock(ctx context.Context, unlock UnlockFunc) {
	// The invocation outcome stands even if the release fails; the lock ttl
	// bounds the damage.
	if err := unlock(context.WithoutCancel(ctx)); err != nil {
		logger.Get(ctx).WarnContext(ctx, "Releasing entity lock failed",
			"error", err,
		)
	}
}

func (m *Machine[E]) observe(
	ctx context.Context,
	op Operation,
	source, target State,
	duration time.Duration,
	err error,
) {
	if m.logger != nil {
		if err != nil {
			m.logger.TransitionFailed(ctx, m.entityType, op, source, duration, err)
		} else {
			m.logger.TransitionCompleted(ctx, m.entityType, op, source, target, duration)
		}
	}

	if !m.metrics {
		return
	}

	entity := sanitizeEntity(m.entityType)

	outcome := outcomeSuccess

	switch {
	case err != nil && target != "":
		outcome = outcomePartial
	case err != nil:
		outcome = outcomeError
	}

	transitionDuration.WithLabelValues(entity, string(op), outcome).Observe(duration.Seconds())

	if target != "" {
		transitionsTotal.WithLabelValues(entity, string(op), sanitizeState(source), sanitizeState(target)).Inc()
	}

	if err != nil {
		transitionFailuresTotal.WithLabelValues(entity, string(op), failureKind(err)).Inc()
	}
}

// entityKey returns the entity's lock key, or "" when it has none.
func entityKey(entity any) string {
	if keyed, ok := entity.(Keyed); ok {
		return keyed.LockKey()
	}

	return ""
}

// isNil reports whether entity is nil or a nil pointer, map, slice or func.
func isNil(entity any) bool {
	if entity == nil {
		return true
	}

	switch v := reflect.ValueOf(entity); v.Kind() { //nolint:exhaustive
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}
