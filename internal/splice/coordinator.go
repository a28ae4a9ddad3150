package splice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/ledger"
	"github.com/roach88/splice/internal/lock"
	"github.com/roach88/splice/internal/routing"
)

// Lock timing defaults.
const (
	DefaultAttemptTimeout = 20 * time.Second
	DefaultBackoff        = 100 * time.Millisecond
	DefaultMaxBackoff     = 5 * time.Second
)

// State is a coordinator state.
type State int

const (
	StateIdle State = iota
	StateAcquiringLock
	StateSplicing
	StateReleasing
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAcquiringLock:
		return "AcquiringLock"
	case StateSplicing:
		return "Splicing"
	case StateReleasing:
		return "Releasing"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Touched is one destination written by a splice.
type Touched struct {
	Name    string // switch value
	Sheet   string
	Row     int
	Created bool

	// AnalyticsRow is 0 when the destination has no presence column.
	AnalyticsRow int
}

// Result describes one splice invocation. On error it describes the work
// completed before the failure.
type Result struct {
	Token    string
	Identity ir.Identity

	// NewIdentity is true when this invocation moved the counter.
	NewIdentity bool

	Destinations []Touched

	// Unknown holds switch values that named no destination.
	Unknown []string

	LockWait time.Duration
}

// Sheets returns the sheets written, in switch order.
func (r *Result) Sheets() []string {
	out := make([]string, len(r.Destinations))
	for i, d := range r.Destinations {
		out[i] = d.Sheet
	}
	return out
}

// Coordinator runs splices against one book under one lock.
//
// A Coordinator carries no state between invocations besides its
// configuration; everything else lives in the book. Splice is safe to call
// from many goroutines; the lock serializes them.
type Coordinator struct {
	book    ledger.Book
	locker  lock.Locker
	layout  routing.Layout
	metrics *Metrics
	tokens  TokenGenerator

	attemptTimeout time.Duration
	backoff        time.Duration
	maxBackoff     time.Duration

	onState func(token string, s State)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithAttemptTimeout sets how long each lock attempt waits.
//
// Default: 20s (DefaultAttemptTimeout)
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.attemptTimeout = d
	}
}

// WithBackoff sets the pause after a timed-out attempt and its cap. The
// pause doubles per consecutive timeout up to max.
func WithBackoff(initial, max time.Duration) Option {
	return func(c *Coordinator) {
		c.backoff = initial
		c.maxBackoff = max
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithTokenGenerator overrides the trace token source.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(c *Coordinator) {
		c.tokens = g
	}
}

// WithStateHook registers fn to observe every state transition.
func WithStateHook(fn func(token string, s State)) Option {
	return func(c *Coordinator) {
		c.onState = fn
	}
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(book ledger.Book, locker lock.Locker, layout routing.Layout, opts ...Option) *Coordinator {
	c := &Coordinator{
		book:           book,
		locker:         locker,
		layout:         layout,
		tokens:         UUIDv7Generator{},
		attemptTimeout: DefaultAttemptTimeout,
		backoff:        DefaultBackoff,
		maxBackoff:     DefaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	return c
}

// Layout returns the coordinator's layout.
func (c *Coordinator) Layout() routing.Layout {
	return c.layout
}

// Splice routes one submission.
//
// ctx bounds lock acquisition only. Once the lock is held the splice runs
// to completion regardless of ctx, and the lock is always released.
func (c *Coordinator) Splice(ctx context.Context, answers ir.AnswerVector) (res *Result, err error) {
	token := c.tokens.Generate()
	c.enter(token, StateIdle)

	id := c.layout.Fields.IdentityOf(answers)
	res = &Result{Token: token, Identity: id}

	if err := answers.Require(c.layout.Width()); err != nil {
		c.enter(token, StateDone)
		c.metrics.outcome(err)
		return nil, &Error{Code: ErrCodeShortAnswers, Token: token, Identity: id, Err: err}
	}

	slog.Debug("splice requested", "token", token, "identity", id.Short())

	c.enter(token, StateAcquiringLock)
	waited, err := c.acquire(ctx, token, id)
	if err != nil {
		c.enter(token, StateDone)
		c.metrics.outcome(err)
		return nil, &Error{Code: ErrCodeLock, Token: token, Identity: id, Err: err}
	}
	res.LockWait = waited

	// Splicing cannot be cancelled, and releasing must not be skipped
	// because the caller gave up.
	work := context.WithoutCancel(ctx)

	defer func() {
		c.enter(token, StateReleasing)
		if relErr := c.locker.Release(work); relErr != nil {
			slog.Error("lock release failed", "token", token, "identity", id.Short(), "error", relErr)
			err = errors.Join(err, &Error{Code: ErrCodeRelease, Token: token, Identity: id, Err: relErr})
		}
		c.enter(token, StateDone)
		c.metrics.outcome(err)
		slog.Info("splice finished",
			"token", token,
			"identity", id.Short(),
			"destinations", len(res.Destinations),
			"new_identity", res.NewIdentity,
			"lock_wait", res.LockWait,
			"error", err,
		)
	}()

	c.enter(token, StateSplicing)
	err = c.splice(work, token, answers, res)
	return res, err
}

// acquire retries the lock until it is held or ctx ends. It returns the
// total time spent waiting.
func (c *Coordinator) acquire(ctx context.Context, token string, id ir.Identity) (time.Duration, error) {
	start := time.Now()
	pause := c.backoff

	for attempt := 1; ; attempt++ {
		ok, err := c.locker.TryAcquire(ctx, c.attemptTimeout)
		if err != nil {
			return time.Since(start), fmt.Errorf("acquire lock (attempt %d): %w", attempt, err)
		}
		if ok {
			waited := time.Since(start)
			c.metrics.observeLockWait(waited)
			slog.Debug("lock acquired", "token", token, "identity", id.Short(), "attempts", attempt, "wait", waited)
			return waited, nil
		}

		c.metrics.LockTimeouts.Inc()
		slog.Warn("could not obtain lock",
			"token", token,
			"identity", id.Short(),
			"attempt", attempt,
			"attempt_timeout", c.attemptTimeout,
			"total_wait", time.Since(start),
		)

		if pause > 0 {
			timer := time.NewTimer(pause)
			select {
			case <-ctx.Done():
				timer.Stop()
				return time.Since(start), fmt.Errorf("acquire lock (attempt %d): %w", attempt, ctx.Err())
			case <-timer.C:
			}
			pause *= 2
			if pause > c.maxBackoff {
				pause = c.maxBackoff
			}
		}
	}
}

// splice is the Splicing state. Called only with the lock held.
func (c *Coordinator) splice(ctx context.Context, token string, answers ir.AnswerVector, res *Result) error {
	if r, ok := c.book.(ledger.Reloader); ok {
		if err := r.Reload(ctx); err != nil {
			return c.storageError(token, res.Identity, "", fmt.Errorf("reload book: %w", err))
		}
	}

	table := c.layout.Table
	common := table.Common()
	commonValues := answers.Slice(common.Start, common.End)

	applicant := Applicant{
		Identity:    res.Identity,
		DisplayName: c.layout.Fields.DisplayName(answers),
		Contact:     c.layout.Fields.ContactOf(answers),
	}

	analytics, err := c.book.Analytics(ctx)
	if err != nil {
		return c.storageError(token, res.Identity, "", fmt.Errorf("open analytics sheet: %w", err))
	}
	presenceColumns := table.AnalyticsColumns()

	for _, idx := range table.SwitchIndices() {
		value := answers.At(idx)

		if err := c.route(ctx, token, value, commonValues, answers, applicant, analytics, presenceColumns, res); err != nil {
			return err
		}

		if err := c.book.Flush(ctx); err != nil {
			return c.storageError(token, res.Identity, "", fmt.Errorf("flush after switch %d: %w", idx, err))
		}
	}

	return nil
}

// route handles one switch value.
func (c *Coordinator) route(
	ctx context.Context,
	token, value string,
	commonValues []string,
	answers ir.AnswerVector,
	applicant Applicant,
	analytics ledger.CounterSheet,
	presenceColumns []int,
	res *Result,
) error {
	if !c.layout.Selects(value) {
		c.metrics.Skipped.WithLabelValues(skipUnselected).Inc()
		return nil
	}

	span, ok := c.layout.Table.SpanFor(value)
	if !ok {
		c.metrics.Skipped.WithLabelValues(skipUnknown).Inc()
		res.Unknown = append(res.Unknown, value)
		slog.Warn("switch value names no destination, skipping",
			"token", token,
			"identity", applicant.Identity.Short(),
			"value", value,
		)
		return nil
	}

	sheet, err := c.book.Sheet(ctx, span.Sheet)
	if err != nil {
		return c.storageError(token, applicant.Identity, span.Sheet, fmt.Errorf("open sheet: %w", err))
	}

	values := make([]string, 0, len(commonValues)+span.Len())
	values = append(values, commonValues...)
	values = append(values, answers.Slice(span.Start, span.End)...)

	up, err := Upsert(ctx, applicant.Identity, values, sheet)
	if err != nil {
		return c.storageError(token, applicant.Identity, span.Sheet, fmt.Errorf("upsert: %w", err))
	}
	c.metrics.write(span.Sheet, up.Created)

	touched := Touched{Name: span.Name, Sheet: span.Sheet, Row: up.Row, Created: up.Created}

	if span.HasAnalytics() {
		p, err := MarkPresence(ctx, applicant, span.AnalyticsColumn, analytics, presenceColumns)
		if err != nil {
			return c.storageError(token, applicant.Identity, analytics.Name(), fmt.Errorf("mark presence: %w", err))
		}
		touched.AnalyticsRow = p.Row
		if p.New {
			res.NewIdentity = true
			c.metrics.NewIdentities.Inc()
			slog.Info("new applicant", "token", token, "identity", applicant.Identity.Short(), "unique_count", p.Count)
		}
	}

	res.Destinations = append(res.Destinations, touched)
	slog.Info("destination written",
		"token", token,
		"identity", applicant.Identity.Short(),
		"sheet", span.Sheet,
		"row", up.Row,
		"created", up.Created,
	)
	return nil
}

func (c *Coordinator) storageError(token string, id ir.Identity, sheet string, err error) error {
	return &Error{Code: ErrCodeStorage, Token: token, Identity: id, Sheet: sheet, Err: err}
}

func (c *Coordinator) enter(token string, s State) {
	if c.onState != nil {
		c.onState(token, s)
	}
}
