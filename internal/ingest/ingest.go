// Package ingest resolves trade input sources. A source is either a
// path on the local filesystem or an HTTP(S) URL; Open hides the
// difference behind an io.ReadCloser so the cleaning stage reads both
// the same way.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Opener opens trade sources for reading.
type Opener struct {
	client *resty.Client
	logger *slog.Logger
}

// NewOpener creates an Opener with a preconfigured HTTP client.
func NewOpener(logger *slog.Logger) *Opener {
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().
		SetTimeout(60 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &Opener{client: client, logger: logger}
}

// Open returns a reader for source. HTTP and HTTPS URLs are fetched
// into memory; anything else is treated as a local file path. The
// caller must close the returned reader.
func (o *Opener) Open(ctx context.Context, source string) (io.ReadCloser, error) {
	if isURL(source) {
		return o.fetch(ctx, source)
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", source, err)
	}
	return f, nil
}

func (o *Opener) fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	o.logger.InfoContext(ctx, "fetching trades over HTTP",
		slog.String("url", rawURL))

	resp, err := o.client.R().
		SetContext(ctx).
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", rawURL, resp.Status())
	}

	o.logger.InfoContext(ctx, "trades fetched",
		slog.String("url", rawURL),
		slog.Int("bytes", len(resp.Body())))

	return io.NopCloser(bytes.NewReader(resp.Body())), nil
}

func isURL(source string) bool {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return false
	}
	u, err := url.Parse(source)
	return err == nil && u.Host != ""
}
