package splice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/ledger"
	"github.com/roach88/splice/internal/lock"
	"github.com/roach88/splice/internal/routing"
)

const testAnalytics = "ID Map & Analytics"

// smallLayout addresses a 9-cell vector:
//
//	0 timestamp, 1 email, 2 first, 3 last,
//	4 switch, 5-6 Alpha, 7 switch, 8 Beta.
func smallLayout(t *testing.T) routing.Layout {
	t.Helper()
	table, err := routing.NewTable(
		routing.Span{Start: 1, End: 4},
		[]routing.Span{
			{Name: "Alpha", Start: 5, End: 7, AnalyticsColumn: 4},
			{Name: "Beta Team", Sheet: "Beta", Start: 8, End: 9, AnalyticsColumn: 5},
		},
		[]int{4, 7},
	)
	require.NoError(t, err)
	layout, err := routing.NewLayout(table, routing.Fields{
		Identity: []int{1, 2},
		Name:     []int{2, 3},
		Contact:  1,
	}, "")
	require.NoError(t, err)
	return layout
}

func submission(email, first, last, sw1, a1, a2, sw2, b1 string) ir.AnswerVector {
	return ir.NewAnswerVector("2024-03-01T10:00:00Z", email, first, last, sw1, a1, a2, sw2, b1)
}

func newTestCoordinator(t *testing.T, book ledger.Book, locker lock.Locker, opts ...Option) *Coordinator {
	t.Helper()
	opts = append([]Option{WithBackoff(time.Millisecond, 2*time.Millisecond)}, opts...)
	return NewCoordinator(book, locker, smallLayout(t), opts...)
}

// failingBook wraps a MemoryBook and fails chosen operations.
type failingBook struct {
	*ledger.MemoryBook

	failSheet     string // Sheet(name) fails for this name
	failFlush     error
	panicOnFlush  bool
	failAnalytics error
}

func (b *failingBook) Sheet(ctx context.Context, name string) (ledger.Sheet, error) {
	if name == b.failSheet {
		return nil, ledger.ErrSheetNotFound
	}
	return b.MemoryBook.Sheet(ctx, name)
}

func (b *failingBook) Analytics(ctx context.Context) (ledger.CounterSheet, error) {
	if b.failAnalytics != nil {
		return nil, b.failAnalytics
	}
	return b.MemoryBook.Analytics(ctx)
}

func (b *failingBook) Flush(ctx context.Context) error {
	if b.panicOnFlush {
		panic("disk on fire")
	}
	if b.failFlush != nil {
		return b.failFlush
	}
	return b.MemoryBook.Flush(ctx)
}

// reloadingBook is a MemoryBook implementing ledger.Reloader. It records
// whether the lock was held at each reload.
type reloadingBook struct {
	*ledger.MemoryBook

	locker       *scriptedLocker
	failReload   error
	heldAtReload []bool
}

func (b *reloadingBook) Reload(_ context.Context) error {
	_, _, held := b.locker.counts()
	b.heldAtReload = append(b.heldAtReload, held)
	return b.failReload
}

// scriptedLocker times out a fixed number of times before granting the
// lock, and records releases.
type scriptedLocker struct {
	mu         sync.Mutex
	timeouts   int
	acquireErr error
	releaseErr error
	attempts   int
	releases   int
	held       bool
}

func (l *scriptedLocker) TryAcquire(ctx context.Context, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts++
	if l.acquireErr != nil {
		return false, l.acquireErr
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if l.timeouts > 0 {
		l.timeouts--
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *scriptedLocker) Release(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releases++
	if !l.held {
		return lock.ErrNotHeld
	}
	l.held = false
	return l.releaseErr
}

func (l *scriptedLocker) counts() (attempts, releases int, held bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts, l.releases, l.held
}

var errDisk = errors.New("disk full")
