package pricelog

import (
	"go.uber.org/zap"

	"github.com/crimson-sun/pricelog/internal/engine"
	"github.com/crimson-sun/pricelog/internal/pipeline"
)

type options struct {
	engine  engine.Options
	log     *zap.Logger
	maxLine int
	name    string
}

// Option configures a parse.
type Option func(*options)

// WithRoundRange keeps only records whose pricing round lies in [min, max].
// A max of 0 leaves the range open above.
func WithRoundRange(min, max int) Option {
	return func(o *options) {
		o.engine.MinRound = min
		o.engine.MaxRound = max
	}
}

// WithNodeRange keeps only records whose branch-and-bound node lies in
// [min, max]. A max of 0 leaves the range open above.
func WithNodeRange(min, max int) Option {
	return func(o *options) {
		o.engine.MinNode = min
		o.engine.MaxNode = max
	}
}

// WithInstanceFilter keeps only instances whose name contains one of the
// given substrings.
func WithInstanceFilter(substrings ...string) Option {
	return func(o *options) {
		o.engine.InstanceFilter = append(o.engine.InstanceFilter, substrings...)
	}
}

// WithAggregate merges the subproblem results of each round into one record.
func WithAggregate() Option {
	return func(o *options) { o.engine.Aggregate = true }
}

// WithLineLimit caps the pricing and variable lines accepted per instance.
// Default: 1,000,000.
func WithLineLimit(n int) Option {
	return func(o *options) { o.engine.LineLimit = n }
}

// WithBestBound computes the gap series from the best bounds seen so far
// instead of each row's own bounds.
func WithBestBound() Option {
	return func(o *options) { o.engine.BestBound = true }
}

// WithLogger receives anomaly warnings and debug diagnostics. Default: none.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMaxLineBytes drops transcript lines longer than n bytes. Default: 1MiB.
func WithMaxLineBytes(n int) Option {
	return func(o *options) { o.maxLine = n }
}

// WithName sets the transcript name recorded in Info.File by Parse. It also
// selects decompression by suffix (".gz", ".zst", ".lz4").
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

func defaultOptions() options {
	return options{
		log:     zap.NewNop(),
		maxLine: pipeline.DefaultMaxLineBytes,
		name:    "transcript",
	}
}
