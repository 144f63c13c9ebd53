// Package engine finalizes instance sessions: it feeds transcript lines to
// the session state machine, computes the gap series of every finished
// instance and hands the resulting snapshots to an output.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/crimson-sun/pricelog/internal/engine/gap"
	"github.com/crimson-sun/pricelog/internal/engine/session"
	"github.com/crimson-sun/pricelog/internal/model"
	"github.com/crimson-sun/pricelog/internal/output"
)

// Options is the immutable filter configuration passed to every session.
type Options = session.Options

// AnomalyKind classifies a transcript problem reported through the logger.
type AnomalyKind = session.AnomalyKind

// DefaultLineLimit is the default per-instance diagnostic line cap.
const DefaultLineLimit = session.DefaultLineLimit

// Engine orchestrates the classify → session → gap → output flow for a
// batch of transcripts. It is not safe for concurrent use.
type Engine struct {
	opts    Options
	mode    gap.Mode
	log     *zap.Logger
	out     output.Output
	machine *session.Machine

	pending []model.Snapshot
	written int
}

// New creates an Engine writing to out. A nil logger discards diagnostics.
func New(opts Options, out output.Output, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		opts: opts,
		mode: gap.Instantaneous,
		log:  log,
		out:  out,
	}
	if opts.BestBound {
		e.mode = gap.BestBound
	}
	e.machine = session.New(opts, log, e.collect)
	return e
}

// BeginFile starts a new transcript. Any instance left open by a previous
// file must have been closed with EndFile.
func (e *Engine) BeginFile(name string) {
	e.machine.BeginFile(name)
}

// Feed consumes one transcript line and writes every snapshot it completes.
func (e *Engine) Feed(ctx context.Context, line model.Line) error {
	if err := e.machine.Step(line.Text); err != nil {
		return err
	}
	return e.flush(ctx)
}

// EndFile closes the current transcript. An instance still open is
// finalized as abrupt.
func (e *Engine) EndFile(ctx context.Context) error {
	if err := e.machine.EndFile(); err != nil {
		return err
	}
	return e.flush(ctx)
}

// Written returns the number of snapshots handed to the output so far.
func (e *Engine) Written() int {
	return e.written
}

func (e *Engine) collect(snap model.Snapshot) error {
	e.pending = append(e.pending, snap)
	return nil
}

func (e *Engine) flush(ctx context.Context) error {
	for _, snap := range e.pending {
		if err := e.out.Write(ctx, e.finalize(snap)); err != nil {
			e.pending = e.pending[:0]
			return fmt.Errorf("engine output: %w", err)
		}
		e.written++
	}
	e.pending = e.pending[:0]
	return nil
}

// finalize attaches the gap series to a finished snapshot.
func (e *Engine) finalize(snap model.Snapshot) model.Snapshot {
	fields := []zap.Field{
		zap.String("file", snap.Info.File),
		zap.String("instance", snap.Info.InstanceName),
	}
	if len(snap.RootBounds) == 0 {
		e.log.Debug("no root bounds, gap skipped",
			append(fields, zap.Stringer("kind", session.MissingPrerequisiteData))...)
		snap.Gap = model.GapResult{Status: model.GapNoData}
	} else {
		snap.Gap, snap.RootBounds = gap.Compute(snap.Events, snap.RootBounds, e.mode)
		if e.mode == gap.BestBound && snap.Gap.Direction == model.DirectionAmbiguous {
			e.log.Warn("ambiguous bound direction, using instantaneous gap", fields...)
		}
	}
	e.log.Debug("instance finalized",
		append(fields,
			zap.Stringer("status", snap.Info.Status),
			zap.Int("events", len(snap.Events)))...)
	return snap
}
