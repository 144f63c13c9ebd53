package stdin

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/crimson-sun/pricelog/internal/connector"
)

func init() {
	connector.Register("stdin", func() connector.Connector {
		return &Connector{In: os.Stdin}
	})
}

// Connector reads a single transcript from standard input. The name is only
// used to detect compression.
type Connector struct {
	In io.Reader
}

func (c *Connector) Open(ctx context.Context, cfg connector.ConnectorConfig, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	comp, err := cfg.Compression(name)
	if err != nil {
		return nil, fmt.Errorf("stdin connector: %w", err)
	}
	// Standard input is shared with the process, so closing the transcript
	// must not close it.
	rc, err := connector.Decompress(io.NopCloser(c.In), comp)
	if err != nil {
		return nil, fmt.Errorf("stdin connector: %w", err)
	}
	return rc, nil
}
