// Package remote fetches transcripts from an HTTP server, such as the log
// directory of a compute cluster exposed over HTTPS.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/crimson-sun/pricelog/internal/connector"
	"github.com/crimson-sun/pricelog/internal/connector/httpclient"
)

func init() {
	connector.Register("http", func() connector.Connector {
		return &Connector{}
	})
}

// Connector implements connector.Connector over HTTP GET. cfg.Endpoint is the
// base URL; Extra["path_prefix"] is prepended to every transcript name and
// Extra["timeout"] bounds one download.
type Connector struct {
	// Options are appended to the client options derived from the config.
	Options []httpclient.Option
}

func (c *Connector) Open(ctx context.Context, cfg connector.ConnectorConfig, name string) (io.ReadCloser, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("http connector: missing endpoint")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("http connector: bad endpoint: %w", err)
	}

	var opts []httpclient.Option
	if v := cfg.Extra["timeout"]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("http connector: bad timeout %q: %w", v, err)
		}
		opts = append(opts, httpclient.WithTimeout(d))
	}
	opts = append(opts, c.Options...)
	client := httpclient.New(strings.TrimRight(cfg.Endpoint, "/"), cfg.APIKey, opts...)

	p := path.Join("/", cfg.Extra["path_prefix"], name)
	comp, err := cfg.Compression(name)
	if err != nil {
		return nil, fmt.Errorf("http connector: %w", err)
	}
	body, err := client.Get(ctx, p, nil)
	if err != nil {
		return nil, fmt.Errorf("http connector: get %s: %w", p, err)
	}
	rc, err := connector.Decompress(body, comp)
	if err != nil {
		return nil, fmt.Errorf("http connector: %s: %w", p, err)
	}
	return rc, nil
}
