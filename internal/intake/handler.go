package intake

import (
	"context"
	"log/slog"

	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/splice"
	"github.com/roach88/splice/internal/store"
)

// Recorder stores the outcome of a processed submission.
type Recorder interface {
	RecordSubmission(ctx context.Context, sub store.Submission) (store.Submission, error)
}

// Handler reads, splices and records submissions.
type Handler struct {
	coord    *splice.Coordinator
	recorder Recorder
	sheet    string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithRecorder logs every processed submission to r.
func WithRecorder(r Recorder) HandlerOption {
	return func(h *Handler) {
		h.recorder = r
	}
}

// WithResponsesSheet sets the sheet read from .xlsx submission files.
func WithResponsesSheet(name string) HandlerOption {
	return func(h *Handler) {
		h.sheet = name
	}
}

// NewHandler creates a Handler around a coordinator.
func NewHandler(coord *splice.Coordinator, opts ...HandlerOption) *Handler {
	h := &Handler{coord: coord, sheet: DefaultResponsesSheet}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleFile splices the submission stored in path.
func (h *Handler) HandleFile(ctx context.Context, path string) (*splice.Result, error) {
	answers, err := ReadFile(path, h.sheet)
	if err != nil {
		return nil, err
	}
	slog.Debug("submission read", "path", path, "cells", len(answers))
	return h.Handle(ctx, answers)
}

// Handle splices one answer vector and records the outcome. A recording
// failure is logged and does not fail the submission: the sheets are
// already written.
func (h *Handler) Handle(ctx context.Context, answers ir.AnswerVector) (*splice.Result, error) {
	res, err := h.coord.Splice(ctx, answers)
	h.record(ctx, answers, res, err)
	return res, err
}

func (h *Handler) record(ctx context.Context, answers ir.AnswerVector, res *splice.Result, spliceErr error) {
	if h.recorder == nil {
		return
	}

	sub := store.Submission{
		Fingerprint: ir.Fingerprint(answers),
		Identity:    string(h.coord.Layout().Fields.IdentityOf(answers)),
		Outcome:     store.OutcomeOK,
	}
	if res != nil {
		sub.Token = res.Token
		sub.Destinations = res.Sheets()
		sub.NewIdentity = res.NewIdentity
	}
	if spliceErr != nil {
		sub.Outcome = store.OutcomeFailed
	}

	stored, err := h.recorder.RecordSubmission(context.WithoutCancel(ctx), sub)
	if err != nil {
		slog.Error("failed to record submission", "fingerprint", sub.Fingerprint, "error", err)
		return
	}
	if stored.Redeliveries > 0 {
		slog.Info("submission redelivered", "seq", stored.Seq, "redeliveries", stored.Redeliveries)
	}
}
