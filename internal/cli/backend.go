package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/splice/internal/config"
	"github.com/roach88/splice/internal/intake"
	"github.com/roach88/splice/internal/ledger"
	"github.com/roach88/splice/internal/lock"
	"github.com/roach88/splice/internal/routing"
	"github.com/roach88/splice/internal/splice"
	"github.com/roach88/splice/internal/store"
	"github.com/roach88/splice/internal/xlsx"
)

// backend is everything a command needs to splice: the book, the lock that
// guards it, and the submission log when there is one.
type backend struct {
	cfg    *config.Config
	layout routing.Layout
	book   ledger.Book
	locker lock.Locker
	store  *store.Store // nil for the memory backend

	closers []func() error
}

// errNoStore is returned by commands that need the submission log when the
// memory backend is configured.
var errNoStore = errors.New("memory backend keeps no submission log")

// loadConfig reads the config file and the routing layout it names.
func loadConfig(opts *RootOptions) (*config.Config, routing.Layout, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, routing.Layout{}, err
	}

	layout := routing.Default()
	if cfg.Routing != "" {
		layout, err = routing.LoadFile(cfg.Routing)
		if err != nil {
			return nil, routing.Layout{}, fmt.Errorf("load routing %s: %w", cfg.Routing, err)
		}
	}
	return cfg, layout, nil
}

// openBackend opens the configured backend. Callers must call close.
func openBackend(cfg *config.Config, layout routing.Layout) (*backend, error) {
	b := &backend{cfg: cfg, layout: layout}

	switch cfg.Backend {
	case config.BackendMemory:
		b.book = ledger.NewMemoryBook(cfg.AnalyticsSheet)
		b.locker = lock.NewLocal()
		return b, nil

	case config.BackendXLSX, config.BackendSQLite:
		st, err := store.Open(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
		}
		b.store = st
		b.closers = append(b.closers, st.Close)
		b.locker = st.Lock(cfg.Lock.Name, store.WithLease(cfg.GetLease()))

		if cfg.Backend == config.BackendSQLite {
			b.book = st.Book(cfg.AnalyticsSheet)
			return b, nil
		}

		wb, err := xlsx.Open(cfg.Workbook.Path, cfg.AnalyticsSheet, xlsx.WithCounterCell(cfg.Workbook.CounterCell))
		if err != nil {
			b.close()
			return nil, fmt.Errorf("open workbook %s: %w", cfg.Workbook.Path, err)
		}
		b.book = wb
		b.closers = append(b.closers, wb.Close)
		return b, nil
	}

	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// close releases everything in reverse open order.
func (b *backend) close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// closeLogged is for deferred calls.
func (b *backend) closeLogged() {
	if err := b.close(); err != nil {
		slog.Warn("failed to close backend", "error", err)
	}
}

func (b *backend) coordinator(reg prometheus.Registerer, opts ...splice.Option) *splice.Coordinator {
	base := []splice.Option{
		splice.WithAttemptTimeout(b.cfg.GetAttemptTimeout()),
		splice.WithBackoff(b.cfg.GetBackoff(), b.cfg.GetMaxBackoff()),
		splice.WithMetrics(splice.NewMetrics(reg)),
		splice.WithStateHook(func(token string, s splice.State) {
			slog.Debug("splice state", "token", token, "state", s)
		}),
	}
	return splice.NewCoordinator(b.book, b.locker, b.layout, append(base, opts...)...)
}

func (b *backend) handler(coord *splice.Coordinator) *intake.Handler {
	opts := []intake.HandlerOption{intake.WithResponsesSheet(b.cfg.Intake.ResponsesSheet)}
	if b.store != nil {
		opts = append(opts, intake.WithRecorder(b.store))
	}
	return intake.NewHandler(coord, opts...)
}

// sheetStats reads the counter and the data row count of every destination
// sheet.
func (b *backend) sheetStats(ctx context.Context) (int, map[string]int, error) {
	analytics, err := b.book.Analytics(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("open analytics sheet: %w", err)
	}
	counter, err := analytics.ReadCounter(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("read counter: %w", err)
	}

	rows := make(map[string]int)
	for _, name := range b.layout.Table.Sheets() {
		sh, err := b.book.Sheet(ctx, name)
		if err != nil {
			return 0, nil, fmt.Errorf("open sheet %q: %w", name, err)
		}
		last, err := sh.LastRow(ctx)
		if err != nil {
			return 0, nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		rows[name] = ledger.DataRows(last)
	}
	return counter, rows, nil
}

// configErrCode picks the response code for a loadConfig failure.
func configErrCode(err error) string {
	var le *routing.LoadError
	if errors.As(err, &le) {
		return ErrCodeRouting
	}
	return ErrCodeConfig
}
