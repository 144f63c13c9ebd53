package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/crimson-sun/pricelog/internal/model"
	"github.com/crimson-sun/pricelog/internal/output"
	"github.com/crimson-sun/pricelog/internal/output/codec"
)

const defaultBufSize = 64 * 1024 // 64KB

// Encoding selects the on-disk snapshot format.
type Encoding int

const (
	// JSON writes one JSON document per line (NDJSON).
	JSON Encoding = iota
	// CBOR writes a CBOR sequence (RFC 8742), one item per snapshot.
	CBOR
)

func (e Encoding) String() string {
	if e == CBOR {
		return "cbor"
	}
	return "json"
}

// ParseEncoding converts "json" or "cbor".
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "json", "":
		return JSON, nil
	case "cbor":
		return CBOR, nil
	default:
		return 0, fmt.Errorf("file output: unknown encoding %q", s)
	}
}

// Option configures a file Output.
type Option func(*Output)

// WithMaxSize sets the file size (bytes) at which rotation triggers.
// 0 (default) disables rotation.
func WithMaxSize(bytes int64) Option {
	return func(o *Output) { o.maxSize = bytes }
}

// WithBufSize sets the bufio.Writer buffer size. Default: 64KB.
func WithBufSize(bytes int) Option {
	return func(o *Output) { o.bufSize = bytes }
}

// WithEncoding sets the snapshot encoding. Default: JSON.
func WithEncoding(e Encoding) Option {
	return func(o *Output) { o.encoding = e }
}

// Output appends snapshots to a file with buffered I/O and optional
// size-based rotation.
type Output struct {
	w         *bufio.Writer
	f         *os.File
	mu        sync.Mutex
	path      string
	verbosity output.Verbosity
	encoding  Encoding
	maxSize   int64 // 0 = no rotation
	written   int64
	bufSize   int
}

// New creates a file output that appends snapshots to the given path.
func New(path string, verbosity output.Verbosity, opts ...Option) (*Output, error) {
	o := &Output{
		path:      path,
		verbosity: verbosity,
		bufSize:   defaultBufSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.openFile(); err != nil {
		return nil, err
	}
	return o, nil
}

// Write encodes the snapshot and appends it to the file.
func (o *Output) Write(_ context.Context, snap model.Snapshot) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	data, err := o.encode(output.FormatSnapshot(snap, o.verbosity))
	if err != nil {
		return fmt.Errorf("file output: marshal: %w", err)
	}

	if o.maxSize > 0 && o.written > 0 && o.written+int64(len(data)) > o.maxSize {
		if err := o.rotate(); err != nil {
			return fmt.Errorf("file output: rotate: %w", err)
		}
	}

	n, err := o.w.Write(data)
	o.written += int64(n)
	if err != nil {
		return fmt.Errorf("file output: write: %w", err)
	}
	return nil
}

func (o *Output) encode(snap model.Snapshot) ([]byte, error) {
	if o.encoding == CBOR {
		return codec.Marshal(snap)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Close flushes the buffer and closes the file.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.w.Flush(); err != nil {
		o.f.Close()
		return fmt.Errorf("file output: flush: %w", err)
	}
	return o.f.Close()
}

// openFile opens (or creates) the output file and wraps it in a bufio.Writer.
func (o *Output) openFile() error {
	f, err := os.OpenFile(o.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("file output: open %s: %w", o.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("file output: stat %s: %w", o.path, err)
	}
	o.f = f
	o.w = bufio.NewWriterSize(f, o.bufSize)
	o.written = info.Size()
	return nil
}

// rotate flushes, closes the current file, renames it to {path}.1
// (shifting existing rotated files), and opens a new file.
func (o *Output) rotate() error {
	if err := o.w.Flush(); err != nil {
		return err
	}
	if err := o.f.Close(); err != nil {
		return err
	}

	// Shift existing rotated files: .2 → .3, .1 → .2, current → .1
	for i := 9; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", o.path, i)
		to := fmt.Sprintf("%s.%d", o.path, i+1)
		os.Rename(from, to) // may not exist yet
	}
	if err := os.Rename(o.path, o.path+".1"); err != nil {
		return err
	}

	o.written = 0
	return o.openFile()
}

// ReadAll reloads every snapshot stored at path, in write order.
func ReadAll(path string, enc Encoding) ([]model.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("file output: open %s: %w", path, err)
	}
	defer f.Close()

	var snaps []model.Snapshot
	if enc == CBOR {
		dec := codec.NewDecoder(bufio.NewReader(f))
		for {
			var s model.Snapshot
			err := dec.Decode(&s)
			if errors.Is(err, io.EOF) {
				return snaps, nil
			}
			if err != nil {
				return nil, fmt.Errorf("file output: decode %s item %d: %w", path, len(snaps), err)
			}
			snaps = append(snaps, s)
		}
	}

	dec := json.NewDecoder(bufio.NewReader(f))
	for {
		var s model.Snapshot
		err := dec.Decode(&s)
		if errors.Is(err, io.EOF) {
			return snaps, nil
		}
		if err != nil {
			return nil, fmt.Errorf("file output: decode %s line %d: %w", path, len(snaps)+1, err)
		}
		snaps = append(snaps, s)
	}
}
