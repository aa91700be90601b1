package fetcher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clarusrisk/diligence-cli/internal/resilience"
)

// maxBodyBytes caps in-memory response bodies. Sanctions CSVs go through
// DownloadToFile, which streams and is not subject to this limit.
const maxBodyBytes = 16 << 20

// Options configures the HTTP fetcher.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	Retry      resilience.RetryConfig
	RateLimits map[string]rate.Limit // per host, events per second
}

// HTTPFetcher implements Fetcher using net/http with retry and per-host rate
// limiting.
type HTTPFetcher struct {
	client   *http.Client
	opts     Options
	limiters map[string]*rate.Limiter
}

// DefaultRateLimits returns conservative per-host limits for the public
// registries the adapters talk to.
func DefaultRateLimits() map[string]rate.Limit {
	return map[string]rate.Limit{
		"ec.europa.eu":                 rate.Limit(2),
		"api.opencorporates.com":       rate.Limit(1),
		"api.ssllabs.com":              rate.Limit(0.5),
		"home.treasury.gov":            rate.Limit(1),
		"register.consilium.europa.eu": rate.Limit(1),
	}
}

// New creates an HTTPFetcher.
func New(opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "diligence-cli/1.0"
	}
	limiters := make(map[string]*rate.Limiter, len(opts.RateLimits))
	for host, limit := range opts.RateLimits {
		limiters[host] = rate.NewLimiter(limit, 1)
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: opts.Timeout},
		opts:     opts,
		limiters: limiters,
	}
}

func (f *HTTPFetcher) wait(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil // let the request itself fail with a better error
	}
	if lim, ok := f.limiters[u.Hostname()]; ok {
		return lim.Wait(ctx)
	}
	return nil
}

// Get fetches the URL and returns the response body.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte
	err := resilience.Do(ctx, f.retryConfig(rawURL, "get"), func(ctx context.Context) error {
		var err error
		body, err = f.roundTrip(ctx, http.MethodGet, rawURL, "", nil)
		return err
	})
	return body, err
}

// Post sends body to the URL and returns the response body.
func (f *HTTPFetcher) Post(ctx context.Context, rawURL, contentType string, reqBody []byte) ([]byte, error) {
	var body []byte
	err := resilience.Do(ctx, f.retryConfig(rawURL, "post"), func(ctx context.Context) error {
		var err error
		body, err = f.roundTrip(ctx, http.MethodPost, rawURL, contentType, reqBody)
		return err
	})
	return body, err
}

func (f *HTTPFetcher) retryConfig(rawURL, op string) resilience.RetryConfig {
	cfg := f.opts.Retry
	if cfg.OnRetry == nil {
		host := rawURL
		if u, err := url.Parse(rawURL); err == nil {
			host = u.Hostname()
		}
		cfg.OnRetry = resilience.RetryLogger(host, op)
	}
	return cfg
}

func (f *HTTPFetcher) roundTrip(ctx context.Context, method, rawURL, contentType string, reqBody []byte) ([]byte, error) {
	if err := f.wait(ctx, rawURL); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limit wait")
	}

	var bodyReader io.Reader
	if reqBody != nil {
		bodyReader = bytes.NewReader(reqBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: build request %s", rawURL)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: %s %s", method, rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := eris.Errorf("fetcher: %s %s: status %d", method, rawURL, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read body %s", rawURL)
	}
	return body, nil
}

// DownloadToFile streams the URL into path via a temp file and atomic rename.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL, path string) (int64, error) {
	var written int64
	err := resilience.Do(ctx, f.retryConfig(rawURL, "download"), func(ctx context.Context) error {
		var err error
		written, err = f.downloadOnce(ctx, rawURL, path)
		return err
	})
	return written, err
}

func (f *HTTPFetcher) downloadOnce(ctx context.Context, rawURL, path string) (int64, error) {
	if err := f.wait(ctx, rawURL); err != nil {
		return 0, eris.Wrap(err, "fetcher: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, eris.Wrapf(err, "fetcher: build request %s", rawURL)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, eris.Wrapf(err, "fetcher: get %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("fetcher: get %s: status %d", rawURL, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return 0, resilience.NewTransientError(err, resp.StatusCode)
		}
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, eris.Wrapf(err, "fetcher: mkdir for %s", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after successful rename

	written, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, eris.Wrapf(err, "fetcher: write %s", tmpName)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return 0, eris.Wrapf(err, "fetcher: rename %s", path)
	}

	zap.L().Debug("downloaded file",
		zap.String("url", rawURL),
		zap.String("path", path),
		zap.Int64("bytes", written),
	)
	return written, nil
}
