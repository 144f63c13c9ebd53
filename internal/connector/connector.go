package connector

import (
	"context"
	"io"
)

// Connector defines the interface all transcript sources must implement.
type Connector interface {
	// Open returns the decompressed transcript identified by name. The
	// caller closes it.
	Open(ctx context.Context, cfg ConnectorConfig, name string) (io.ReadCloser, error)
}

// ConnectorConfig holds provider-specific connection settings.
type ConnectorConfig struct {
	Provider string
	APIKey   string
	Endpoint string
	Extra    map[string]string
}
