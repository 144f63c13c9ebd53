package async

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crimson-sun/pricelog/internal/model"
	"github.com/crimson-sun/pricelog/internal/output"
)

const (
	defaultBufferSize   = 64
	defaultDrainTimeout = 5 * time.Second
)

// Option configures an Async wrapper.
type Option func(*Async)

// WithBufferSize sets the channel buffer capacity. Default: 64.
func WithBufferSize(n int) Option {
	return func(a *Async) { a.bufSize = n }
}

// WithOnError sets the callback invoked when the inner output's Write fails.
// Default: logs a warning.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.errFunc = f }
}

// WithDropOnFull makes Write return immediately (dropping the snapshot) when
// the buffer is full, instead of blocking. Use for outputs where lossiness
// is acceptable (e.g., a non-critical webhook).
func WithDropOnFull() Option {
	return func(a *Async) { a.dropOnFull = true }
}

// WithLogger sets the logger for drop and drain warnings. Default: zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(a *Async) { a.log = l }
}

// WithDrainTimeout bounds how long Close waits for queued snapshots.
func WithDrainTimeout(d time.Duration) Option {
	return func(a *Async) { a.drainTimeout = d }
}

// Async decouples snapshot production from consumption via a buffered
// channel. The engine writes into the channel; a background goroutine drains
// it to the wrapped output. Errors from the inner output are passed to
// errFunc rather than propagated to the caller.
type Async struct {
	inner        output.Output
	ch           chan model.Snapshot
	done         chan struct{}
	errFunc      func(error)
	log          *zap.Logger
	bufSize      int
	drainTimeout time.Duration
	dropOnFull   bool
	closeOnce    sync.Once
}

// New wraps an output.Output in an async channel-based writer.
// The background drain goroutine starts immediately.
func New(inner output.Output, opts ...Option) *Async {
	a := &Async{
		inner:        inner,
		bufSize:      defaultBufferSize,
		drainTimeout: defaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = zap.L()
	}
	if a.errFunc == nil {
		a.errFunc = func(err error) { a.log.Warn("async output write error", zap.Error(err)) }
	}
	a.ch = make(chan model.Snapshot, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Write sends the snapshot into the channel. By default it blocks while the
// channel is full, until ctx is done. With WithDropOnFull, it returns nil
// immediately and the snapshot is lost.
func (a *Async) Write(ctx context.Context, snap model.Snapshot) error {
	if a.dropOnFull {
		select {
		case a.ch <- snap:
		default:
			a.log.Warn("async output buffer full, dropping snapshot",
				zap.String("instance", snap.Info.InstanceName),
				zap.String("file", snap.Info.File))
		}
		return nil
	}
	select {
	case a.ch <- snap:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the channel, waits for the drain goroutine to finish
// (with a timeout), then closes the inner output.
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.ch)
		select {
		case <-a.done:
		case <-time.After(a.drainTimeout):
			a.log.Warn("async output drain timed out", zap.Int("queued", len(a.ch)))
		}
		err = a.inner.Close()
	})
	return err
}

// drain reads snapshots from the channel and writes them to the inner output.
func (a *Async) drain() {
	defer close(a.done)
	for snap := range a.ch {
		if err := a.inner.Write(context.Background(), snap); err != nil {
			a.errFunc(err)
		}
	}
}
