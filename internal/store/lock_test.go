package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/roach88/splice/internal/lock"
	"github.com/roach88/splice/internal/testutil"
)

var _ lock.Locker = (*Lock)(nil)

func TestLock_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	l := s.Lock("splice")

	ok, err := l.TryAcquire(ctx, 0)
	if err != nil || !ok {
		t.Fatalf("TryAcquire() = %v, %v; want true", ok, err)
	}
	if err := l.Release(ctx); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}
	if err := l.Release(ctx); !errors.Is(err, lock.ErrNotHeld) {
		t.Errorf("second Release() error = %v, want ErrNotHeld", err)
	}
}

func TestLock_SecondHolderTimesOut(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	first := s.Lock("splice")
	second := s.Lock("splice", WithPollInterval(time.Millisecond))

	if ok, err := first.TryAcquire(ctx, 0); err != nil || !ok {
		t.Fatalf("first TryAcquire() = %v, %v", ok, err)
	}

	start := time.Now()
	ok, err := second.TryAcquire(ctx, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("second TryAcquire() failed: %v", err)
	}
	if ok {
		t.Fatal("second holder acquired a held lock")
	}
	if waited := time.Since(start); waited < 20*time.Millisecond {
		t.Errorf("second TryAcquire() returned after %v, want >= 20ms", waited)
	}

	if err := second.Release(ctx); !errors.Is(err, lock.ErrNotHeld) {
		t.Errorf("Release() by non-holder error = %v, want ErrNotHeld", err)
	}
}

func TestLock_NamesAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	if ok, _ := s.Lock("a").TryAcquire(ctx, 0); !ok {
		t.Fatal("lock a not acquired")
	}
	if ok, _ := s.Lock("b").TryAcquire(ctx, 0); !ok {
		t.Fatal("lock b not acquired while a is held")
	}
}

func TestLock_WaiterGetsLockAfterRelease(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	first := s.Lock("splice")
	second := s.Lock("splice", WithPollInterval(time.Millisecond))

	if ok, err := first.TryAcquire(ctx, 0); err != nil || !ok {
		t.Fatalf("first TryAcquire() = %v, %v", ok, err)
	}

	var wg sync.WaitGroup
	var got bool
	var gotErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		got, gotErr = second.TryAcquire(ctx, 5*time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	if err := first.Release(ctx); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}
	wg.Wait()

	if gotErr != nil || !got {
		t.Errorf("waiter TryAcquire() = %v, %v; want true", got, gotErr)
	}
}

func TestLock_ExpiredLeaseIsTakenOver(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	clock := testutil.NewManualClock(time.Unix(1_700_000_000, 0))
	crashed := s.Lock("splice", WithLease(time.Minute), WithClock(clock.Now))
	next := s.Lock("splice", WithLease(time.Minute), WithClock(clock.Now))

	if ok, _ := crashed.TryAcquire(ctx, 0); !ok {
		t.Fatal("first holder did not acquire")
	}
	if ok, _ := next.TryAcquire(ctx, 0); ok {
		t.Fatal("lease taken over before expiry")
	}

	clock.Advance(time.Minute)
	if ok, err := next.TryAcquire(ctx, 0); err != nil || !ok {
		t.Fatalf("TryAcquire() after expiry = %v, %v; want true", ok, err)
	}
	if err := crashed.Release(ctx); !errors.Is(err, lock.ErrNotHeld) {
		t.Errorf("stale holder Release() error = %v, want ErrNotHeld", err)
	}
}

func TestLock_ContextCancelled(t *testing.T) {
	s := createTestStore(t)
	if ok, _ := s.Lock("splice").TryAcquire(context.Background(), 0); !ok {
		t.Fatal("setup acquire failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.Lock("splice", WithPollInterval(time.Millisecond)).TryAcquire(ctx, time.Minute)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("TryAcquire() error = %v, want DeadlineExceeded", err)
	}
}

func leaseExpiry(t *testing.T, s *Store, name string) int64 {
	t.Helper()
	var expires int64
	if err := s.db.QueryRow(`SELECT expires_at FROM locks WHERE name = ?`, name).Scan(&expires); err != nil {
		t.Fatalf("read lease of %s: %v", name, err)
	}
	return expires
}

func TestLock_SharedHandleDoesNotStealOwnLease(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	clock := testutil.NewManualClock(time.Unix(1_700_000_000, 0))
	shared := s.Lock("splice", WithLease(time.Minute), WithClock(clock.Now), WithRenewInterval(-1))

	if ok, _ := shared.TryAcquire(ctx, 0); !ok {
		t.Fatal("first acquire failed")
	}
	first := shared.Holder()

	// The table lease has expired, but the acquisition that took it is
	// still running in this process.
	clock.Advance(2 * time.Minute)
	if ok, err := shared.TryAcquire(ctx, 0); err != nil || ok {
		t.Fatalf("second acquire on shared handle = %v, %v; want false", ok, err)
	}

	if err := shared.Release(ctx); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}
	if ok, err := shared.TryAcquire(ctx, 0); err != nil || !ok {
		t.Fatalf("acquire after release = %v, %v; want true", ok, err)
	}
	if shared.Holder() == first || shared.Holder() == "" {
		t.Errorf("Holder() = %q, want a fresh token (first was %q)", shared.Holder(), first)
	}
	if err := shared.Release(ctx); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}
}

func TestLock_StaleReleaseKeepsNewLease(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	clock := testutil.NewManualClock(time.Unix(1_700_000_000, 0))
	stale := s.Lock("splice", WithLease(time.Minute), WithClock(clock.Now), WithRenewInterval(-1))
	next := s.Lock("splice", WithLease(time.Minute), WithClock(clock.Now), WithRenewInterval(-1))

	if ok, _ := stale.TryAcquire(ctx, 0); !ok {
		t.Fatal("first acquire failed")
	}
	clock.Advance(time.Minute)
	if ok, _ := next.TryAcquire(ctx, 0); !ok {
		t.Fatal("takeover after expiry failed")
	}

	if err := stale.Release(ctx); !errors.Is(err, lock.ErrNotHeld) {
		t.Errorf("stale Release() error = %v, want ErrNotHeld", err)
	}
	if ok, _ := s.Lock("splice", WithClock(clock.Now), WithRenewInterval(-1)).TryAcquire(ctx, 0); ok {
		t.Error("stale Release() deleted the new holder's lease")
	}
	if err := next.Release(ctx); err != nil {
		t.Errorf("new holder Release() failed: %v", err)
	}
}

func TestLock_RenewalExtendsLease(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	clock := testutil.NewManualClock(time.Unix(1_700_000_000, 0))
	held := s.Lock("splice", WithLease(time.Minute), WithClock(clock.Now), WithRenewInterval(time.Millisecond))
	other := s.Lock("splice", WithLease(time.Minute), WithClock(clock.Now), WithRenewInterval(-1))

	if ok, _ := held.TryAcquire(ctx, 0); !ok {
		t.Fatal("acquire failed")
	}
	defer held.Release(ctx)

	now := clock.Advance(50 * time.Second)
	want := now.Add(time.Minute).UnixMilli()
	deadline := time.Now().Add(2 * time.Second)
	for leaseExpiry(t, s, "splice") != want {
		if time.Now().After(deadline) {
			t.Fatalf("lease expiry = %d, want renewal to %d", leaseExpiry(t, s, "splice"), want)
		}
		time.Sleep(time.Millisecond)
	}

	// Past the original expiry, inside the renewed one.
	clock.Advance(20 * time.Second)
	if ok, _ := other.TryAcquire(ctx, 0); ok {
		t.Fatal("renewed lease was taken over")
	}
}
