// Package camera downloads still frames from network cameras.
package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// ErrEmptyImage is returned when a camera answers with no bytes.
var ErrEmptyImage = errors.New("camera returned an empty image")

// ErrImageTooLarge is returned when a snapshot exceeds the download limit.
var ErrImageTooLarge = errors.New("image too large")

// maxImageBytes bounds a single snapshot download.
const maxImageBytes = 20 << 20

// Fetcher downloads snapshots over HTTP.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher creates a fetcher that optionally routes through proxy.
func NewFetcher(proxy string, timeout time.Duration) *Fetcher {
	var transport http.RoundTripper = &http.Transport{}
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Camera fetches will not use a proxy.", proxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		maxBytes: maxImageBytes,
	}
}

// Fetch downloads the image at rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes from %s", ErrImageTooLarge, f.maxBytes, rawURL)
	}
	if len(body) == 0 {
		return nil, ErrEmptyImage
	}
	return body, nil
}
