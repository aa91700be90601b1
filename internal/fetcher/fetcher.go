// Package fetcher is the shared HTTP layer for every adapter. All outbound
// calls go through it so timeouts, retries and per-host rate limits are
// applied in one place.
package fetcher

import "context"

// Fetcher defines the operations adapters need against remote sources.
type Fetcher interface {
	// Get fetches the URL and returns the response body.
	Get(ctx context.Context, url string) ([]byte, error)

	// Post sends a request body and returns the response body. Used for the
	// SOAP identity lookup.
	Post(ctx context.Context, url, contentType string, body []byte) ([]byte, error)

	// DownloadToFile fetches the URL into path, writing to a temp file first
	// and renaming into place so a partial download never clobbers a
	// readable copy. Returns bytes written.
	DownloadToFile(ctx context.Context, url, path string) (int64, error)
}
