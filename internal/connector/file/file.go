package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/crimson-sun/pricelog/internal/connector"
)

func init() {
	connector.Register("file", func() connector.Connector {
		return &Connector{}
	})
}

// Connector reads transcripts from the local file system. Relative names
// resolve against cfg.Endpoint when it is set.
type Connector struct{}

func (c *Connector) Open(ctx context.Context, cfg connector.ConnectorConfig, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := name
	if cfg.Endpoint != "" && !filepath.IsAbs(path) {
		path = filepath.Join(cfg.Endpoint, path)
	}
	comp, err := cfg.Compression(path)
	if err != nil {
		return nil, fmt.Errorf("file connector: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("file connector: %w", err)
	}
	rc, err := connector.Decompress(f, comp)
	if err != nil {
		return nil, fmt.Errorf("file connector: %s: %w", path, err)
	}
	return rc, nil
}
