package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/splice/internal/lock"
)

// Lease defaults.
const (
	DefaultLease = 2 * time.Minute
	DefaultPoll  = 50 * time.Millisecond
)

// Lock is a lock.Locker shared by every process that opens the same
// database. Holding it means owning an unexpired row in the locks table.
//
// Each acquisition writes its own holder token, so a Release can only
// delete the lease it took. Goroutines sharing one handle queue on an
// in-process slot before touching the table.
//
// While held, the lease is renewed in the background every third of its
// length. The lease therefore only bounds how long a crashed holder can
// block others; keep it well above the slowest splice anyway, since a
// holder stalled past its lease (a long GC pause, a suspended process)
// loses the lock without noticing until Release.
type Lock struct {
	s     *Store
	name  string
	lease time.Duration
	poll  time.Duration
	renew time.Duration
	now   func() time.Time
	local *lock.Local

	mu        sync.Mutex
	holder    string // token of the current acquisition, "" when not held
	stopRenew func()
}

// LockOption configures a Lock.
type LockOption func(*Lock)

// WithLease sets how long an acquired lock stays valid without renewal.
//
// Default: 2m
func WithLease(d time.Duration) LockOption {
	return func(l *Lock) {
		l.lease = d
	}
}

// WithPollInterval sets how often a waiting TryAcquire retries.
//
// Default: 50ms
func WithPollInterval(d time.Duration) LockOption {
	return func(l *Lock) {
		l.poll = d
	}
}

// WithRenewInterval sets how often a held lease is extended. A negative
// interval disables renewal.
//
// Default: a third of the lease
func WithRenewInterval(d time.Duration) LockOption {
	return func(l *Lock) {
		l.renew = d
	}
}

// WithClock overrides the wall clock used for lease expiry.
func WithClock(now func() time.Time) LockOption {
	return func(l *Lock) {
		l.now = now
	}
}

// Lock returns a handle on the named lock. Two handles never share
// ownership, even inside one process.
func (s *Store) Lock(name string, opts ...LockOption) *Lock {
	l := &Lock{
		s:     s,
		name:  name,
		lease: DefaultLease,
		poll:  DefaultPoll,
		now:   time.Now,
		local: lock.NewLocal(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.renew == 0 {
		l.renew = l.lease / 3
	}
	return l
}

// Holder returns the token of the current acquisition, or "" when this
// handle does not hold the lock.
func (l *Lock) Holder() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder
}

// TryAcquire implements lock.Locker by polling until timeout.
func (l *Lock) TryAcquire(ctx context.Context, timeout time.Duration) (bool, error) {
	began := time.Now()
	ok, err := l.local.TryAcquire(ctx, timeout)
	if err != nil || !ok {
		return false, err
	}

	remaining := max(timeout-time.Since(began), 0)
	token := uuid.Must(uuid.NewV7()).String()
	ok, err = l.acquireLease(ctx, token, remaining)
	if err != nil || !ok {
		_ = l.local.Release(ctx)
		return false, err
	}

	l.mu.Lock()
	l.holder = token
	l.stopRenew = l.startRenewal(token)
	l.mu.Unlock()
	return true, nil
}

func (l *Lock) acquireLease(ctx context.Context, token string, timeout time.Duration) (bool, error) {
	deadline := l.now().Add(timeout)
	for {
		ok, err := l.tryOnce(ctx, token)
		if err != nil || ok {
			return ok, err
		}
		if !l.now().Before(deadline) {
			return false, nil
		}

		timer := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}
}

// tryOnce takes the lock if it is free or its lease has expired.
func (l *Lock) tryOnce(ctx context.Context, token string) (bool, error) {
	now := l.now()
	res, err := l.s.db.ExecContext(ctx, `
		INSERT INTO locks (name, holder, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE
		SET holder = excluded.holder, expires_at = excluded.expires_at
		WHERE locks.expires_at <= ?
	`, l.name, token, now.Add(l.lease).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: rows affected: %w", l.name, err)
	}
	return n == 1, nil
}

// startRenewal extends the lease held under token until the returned stop
// function is called. Stop waits for the loop to exit.
func (l *Lock) startRenewal(token string) func() {
	if l.renew <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.renew)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			err := l.extend(ctx, token)
			switch {
			case err == nil:
			case errors.Is(err, lock.ErrNotHeld):
				slog.Error("lock lease lost before release", "lock", l.name, "lease", l.lease)
				return
			case ctx.Err() != nil:
				return
			default:
				slog.Warn("lock lease renewal failed", "lock", l.name, "error", err)
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// extend pushes the expiry of the lease held under token one lease length
// past now.
func (l *Lock) extend(ctx context.Context, token string) error {
	res, err := l.s.db.ExecContext(ctx, `
		UPDATE locks SET expires_at = ? WHERE name = ? AND holder = ?
	`, l.now().Add(l.lease).UnixMilli(), l.name, token)
	if err != nil {
		return fmt.Errorf("renew lock %s: %w", l.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("renew lock %s: rows affected: %w", l.name, err)
	}
	if n == 0 {
		return fmt.Errorf("renew lock %s: %w", l.name, lock.ErrNotHeld)
	}
	return nil
}

// Release implements lock.Locker. Releasing a lease that has expired and
// been taken over returns lock.ErrNotHeld; the handle is free again either
// way.
func (l *Lock) Release(ctx context.Context) error {
	l.mu.Lock()
	token, stop := l.holder, l.stopRenew
	l.holder, l.stopRenew = "", nil
	l.mu.Unlock()

	if token == "" {
		return fmt.Errorf("release lock %s: %w", l.name, lock.ErrNotHeld)
	}
	stop()
	defer func() { _ = l.local.Release(ctx) }()

	res, err := l.s.db.ExecContext(ctx, `
		DELETE FROM locks WHERE name = ? AND holder = ?
	`, l.name, token)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release lock %s: rows affected: %w", l.name, err)
	}
	if n == 0 {
		return fmt.Errorf("release lock %s: %w", l.name, lock.ErrNotHeld)
	}
	return nil
}
