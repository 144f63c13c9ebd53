// Package pipeline reads transcripts through a connector and drives the
// engine over them, file by file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/crimson-sun/pricelog/internal/connector"
	"github.com/crimson-sun/pricelog/internal/engine"
	"github.com/crimson-sun/pricelog/internal/model"
	"github.com/crimson-sun/pricelog/internal/output"
)

// DefaultMaxLineBytes bounds a single transcript line unless overridden.
const DefaultMaxLineBytes = 1 << 20

// ctxCheckEvery is how many lines are processed between context checks.
const ctxCheckEvery = 1024

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMaxLineBytes sets the longest accepted transcript line. Longer lines
// are dropped.
func WithMaxLineBytes(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxLine = n
		}
	}
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// Stats counts what a pipeline has processed so far.
type Stats struct {
	Files     int
	Lines     int
	Dropped   int // overlong lines
	Snapshots int
}

// Pipeline connects a connector, engine, and output into a processing pipeline.
type Pipeline struct {
	connector connector.Connector
	cfg       connector.ConnectorConfig
	engine    *engine.Engine
	output    output.Output
	log       *zap.Logger
	maxLine   int
	stats     Stats
}

// New creates a Pipeline from the given components. The engine must write
// to out; the pipeline only closes it.
func New(conn connector.Connector, cfg connector.ConnectorConfig, eng *engine.Engine, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		connector: conn,
		cfg:       cfg,
		engine:    eng,
		output:    out,
		log:       zap.NewNop(),
		maxLine:   DefaultMaxLineBytes,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run parses the named transcripts in order. Snapshots reach the output as
// instances finish. Only source, sink and context errors are returned;
// malformed transcript content is logged and skipped.
func (p *Pipeline) Run(ctx context.Context, names []string) error {
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.runFile(ctx, name); err != nil {
			return err
		}
	}
	p.stats.Snapshots = p.engine.Written()
	p.log.Info("batch complete",
		zap.Int("files", p.stats.Files),
		zap.Int("lines", p.stats.Lines),
		zap.Int("dropped_lines", p.stats.Dropped),
		zap.Int("snapshots", p.stats.Snapshots))
	return nil
}

func (p *Pipeline) runFile(ctx context.Context, name string) error {
	rc, err := p.connector.Open(ctx, p.cfg, name)
	if err != nil {
		return fmt.Errorf("pipeline open %s: %w", name, err)
	}
	defer rc.Close()

	before := p.engine.Written()
	p.engine.BeginFile(name)
	buf := newLineBuffer(rc, p.maxLine)
	for {
		text, overlong, err := buf.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("pipeline read %s: %w", name, err)
		}
		p.stats.Lines++
		if buf.number()%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if overlong {
			p.stats.Dropped++
			p.log.Warn("overlong transcript line dropped",
				zap.String("file", name),
				zap.Int("line", buf.number()),
				zap.Int("limit", p.maxLine))
			continue
		}
		line := model.Line{File: name, Number: buf.number(), Text: text}
		if err := p.engine.Feed(ctx, line); err != nil {
			return fmt.Errorf("pipeline %s:%d: %w", name, line.Number, err)
		}
	}
	if err := p.engine.EndFile(ctx); err != nil {
		return fmt.Errorf("pipeline %s: %w", name, err)
	}
	p.stats.Files++
	p.log.Debug("transcript parsed",
		zap.String("file", name),
		zap.Int("lines", buf.number()),
		zap.Int("snapshots", p.engine.Written()-before))
	return nil
}

// Stats returns the counters accumulated so far.
func (p *Pipeline) Stats() Stats {
	s := p.stats
	s.Snapshots = p.engine.Written()
	return s
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	return p.output.Close()
}
