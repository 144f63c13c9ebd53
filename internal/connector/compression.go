package connector

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how a transcript is stored.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
	CompressionLZ4
)

// String returns the human-readable name of a compression.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses a compression from its string representation.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(name) {
	case "none", "":
		return CompressionNone, nil
	case "gzip", "gz":
		return CompressionGzip, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression: %q", name)
	}
}

// DetectCompression picks the compression from a file name suffix.
func DetectCompression(name string) Compression {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		return CompressionGzip
	case strings.HasSuffix(lower, ".zst"), strings.HasSuffix(lower, ".zstd"):
		return CompressionZstd
	case strings.HasSuffix(lower, ".lz4"):
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

// Compression resolves the compression for name, honoring an explicit
// "compression" entry in Extra.
func (cfg ConnectorConfig) Compression(name string) (Compression, error) {
	if v := cfg.Extra["compression"]; v != "" {
		return ParseCompression(v)
	}
	return DetectCompression(name), nil
}

// Decompress wraps rc so that reads yield plain transcript text. Closing the
// result closes rc.
func Decompress(rc io.ReadCloser, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return rc, nil
	case CompressionGzip:
		zr, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{zr, rc}}, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		dec := zr.IOReadCloser()
		return &stackedReader{Reader: dec, closers: []io.Closer{dec, rc}}, nil
	case CompressionLZ4:
		return &stackedReader{Reader: lz4.NewReader(rc), closers: []io.Closer{rc}}, nil
	default:
		rc.Close()
		return nil, fmt.Errorf("unsupported compression: %s", c)
	}
}

// stackedReader closes a decoder before the stream beneath it.
type stackedReader struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedReader) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
