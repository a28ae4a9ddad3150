package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/splice/internal/splice"
)

// Subdirectories of the drop directory that receive processed files.
const (
	DoneDir   = "done"
	FailedDir = "failed"
)

// DefaultSettle is how long a file must stay quiet before it is processed.
const DefaultSettle = 250 * time.Millisecond

// FileHandler processes one submission file.
type FileHandler interface {
	HandleFile(ctx context.Context, path string) (*splice.Result, error)
}

// Watcher processes submission files dropped into a directory. Each file is
// one invocation; invocations run concurrently up to a limit and
// serialize on the splice lock.
type Watcher struct {
	dir     string
	handler FileHandler
	limit   int
	settle  time.Duration

	mu       sync.Mutex
	pending  map[string]time.Time // last event per path
	inflight map[string]bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithConcurrency bounds concurrent invocations.
//
// Default: 4
func WithConcurrency(n int) WatcherOption {
	return func(w *Watcher) {
		w.limit = n
	}
}

// WithSettle sets the quiet period before a file is processed.
//
// Default: 250ms
func WithSettle(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.settle = d
	}
}

// NewWatcher creates a Watcher on dir.
func NewWatcher(dir string, h FileHandler, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		dir:      dir,
		handler:  h,
		limit:    4,
		settle:   DefaultSettle,
		pending:  make(map[string]time.Time),
		inflight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.limit < 1 {
		w.limit = 1
	}
	return w
}

// Run watches until ctx is cancelled, then waits for in-flight invocations.
// Files already in the directory when Run starts are processed first.
func (w *Watcher) Run(ctx context.Context) error {
	for _, sub := range []string{DoneDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(w.dir, sub), 0755); err != nil {
			return fmt.Errorf("create %s dir: %w", sub, err)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	if err := w.backlog(); err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(w.limit)

	ticker := time.NewTicker(max(w.settle/2, time.Millisecond))
	defer ticker.Stop()

	slog.Info("watching for submissions", "dir", w.dir, "concurrency", w.limit)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop

		case event, ok := <-fw.Events:
			if !ok {
				break loop
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.touch(event.Name)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				break loop
			}
			slog.Error("watcher error", "dir", w.dir, "error", err)

		case <-ticker.C:
			for _, path := range w.ready() {
				path := path
				g.Go(func() error {
					w.process(ctx, path)
					return nil
				})
			}
		}
	}

	slog.Info("watcher stopping, waiting for in-flight submissions")
	return g.Wait()
}

// backlog queues files present before the watch started.
func (w *Watcher) backlog() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", w.dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.touch(filepath.Join(w.dir, e.Name()))
		}
	}
	return nil
}

func (w *Watcher) touch(path string) {
	if filepath.Dir(path) != filepath.Clean(w.dir) || !Supported(path) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.inflight[path] {
		w.pending[path] = time.Now()
	}
}

// ready returns settled paths and marks them in flight.
func (w *Watcher) ready() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []string
	now := time.Now()
	for path, last := range w.pending {
		if now.Sub(last) >= w.settle {
			delete(w.pending, path)
			w.inflight[path] = true
			out = append(out, path)
		}
	}
	return out
}

func (w *Watcher) process(ctx context.Context, path string) {
	defer func() {
		w.mu.Lock()
		delete(w.inflight, path)
		w.mu.Unlock()
	}()

	dest := DoneDir
	res, err := w.handler.HandleFile(ctx, path)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		// Shut down while waiting for the lock; the file stays for the
		// next run's backlog.
		slog.Warn("submission interrupted, leaving in place", "path", path)
		return
	}
	if err != nil {
		dest = FailedDir
		slog.Error("submission failed", "path", path, "error", err)
	} else {
		slog.Info("submission processed",
			"path", path,
			"token", res.Token,
			"identity", res.Identity.Short(),
			"destinations", res.Sheets(),
		)
	}

	target := filepath.Join(w.dir, dest, filepath.Base(path))
	if err := os.Rename(path, target); err != nil {
		slog.Error("failed to move submission", "path", path, "target", target, "error", err)
	}
}
