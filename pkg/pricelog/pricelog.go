package pricelog

import (
	"context"
	"fmt"
	"io"

	"github.com/crimson-sun/pricelog/internal/connector"
	"github.com/crimson-sun/pricelog/internal/connector/file"
	"github.com/crimson-sun/pricelog/internal/connector/stdin"
	"github.com/crimson-sun/pricelog/internal/engine"
	"github.com/crimson-sun/pricelog/internal/model"
	"github.com/crimson-sun/pricelog/internal/pipeline"
)

// Parse reads one transcript from r and returns a snapshot per instance.
func Parse(ctx context.Context, r io.Reader, opts ...Option) ([]Snapshot, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return run(ctx, &stdin.Connector{In: r}, o, []string{o.name})
}

// ParseFile reads the transcript at path. Compressed transcripts are
// recognized by their suffix.
func ParseFile(ctx context.Context, path string, opts ...Option) ([]Snapshot, error) {
	return ParseFiles(ctx, []string{path}, opts...)
}

// ParseFiles reads several transcripts and returns their snapshots in file
// order. Nothing carries over from one file to the next.
func ParseFiles(ctx context.Context, paths []string, opts ...Option) ([]Snapshot, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return run(ctx, &file.Connector{}, o, paths)
}

func run(ctx context.Context, conn connector.Connector, o options, names []string) ([]Snapshot, error) {
	out := &collector{}
	eng := engine.New(o.engine, out, o.log)
	p := pipeline.New(conn, connector.ConnectorConfig{}, eng, out,
		pipeline.WithMaxLineBytes(o.maxLine),
		pipeline.WithLogger(o.log))
	if err := p.Run(ctx, names); err != nil {
		return nil, fmt.Errorf("pricelog: %w", err)
	}
	return out.snaps, nil
}

// collector keeps every snapshot in memory.
type collector struct {
	snaps []model.Snapshot
}

func (c *collector) Write(_ context.Context, s model.Snapshot) error {
	c.snaps = append(c.snaps, s)
	return nil
}

func (c *collector) Close() error { return nil }
