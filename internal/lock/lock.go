// Package lock provides the named mutual-exclusion resource that serializes
// whole splices.
//
// A single coarse lock covers every destination sheet and the analytics
// sheet together. The no-lost-update property of the analytics counter
// depends on that; do not split it into per-sheet locks.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotHeld is returned by Release when the caller does not hold the lock.
var ErrNotHeld = errors.New("lock: not held")

// Locker is a lock service.
type Locker interface {
	// TryAcquire waits up to timeout for the lock. It returns false, nil
	// when the timeout elapses without acquiring it.
	TryAcquire(ctx context.Context, timeout time.Duration) (bool, error)

	// Release gives up a lock obtained through TryAcquire.
	Release(ctx context.Context) error
}

// Local is an in-process Locker backed by a one-slot channel.
//
// Thread Safety: safe for concurrent use.
type Local struct {
	slot chan struct{}
}

// NewLocal creates an unlocked Local.
func NewLocal() *Local {
	return &Local{slot: make(chan struct{}, 1)}
}

// TryAcquire implements Locker.
func (l *Local) TryAcquire(ctx context.Context, timeout time.Duration) (bool, error) {
	select {
	case l.slot <- struct{}{}:
		return true, nil
	default:
	}
	if timeout <= 0 {
		return false, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case l.slot <- struct{}{}:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Release implements Locker.
func (l *Local) Release(_ context.Context) error {
	select {
	case <-l.slot:
		return nil
	default:
		return ErrNotHeld
	}
}

// Held reports whether the lock is currently taken.
func (l *Local) Held() bool {
	return len(l.slot) == 1
}
