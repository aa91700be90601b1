// Package cache manages file-cached external reference data: sanctions list
// snapshots with a TTL, and small per-query response caches.
package cache

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clarusrisk/diligence-cli/internal/fetcher"
)

// Dataset is a TTL-governed local copy of one external reference list.
// Refresh is attempted once per stale check; a failed refresh falls back to
// the last good copy instead of deleting it. Downloads go through the
// fetcher's temp-file-and-rename path, so concurrent refreshes are redundant
// but never corrupting.
type Dataset struct {
	fetcher fetcher.Fetcher
	path    string
	urls    []string
	ttl     time.Duration
}

// NewDataset describes one cached list file under dir.
func NewDataset(f fetcher.Fetcher, dir, filename string, urls []string, ttl time.Duration) *Dataset {
	return &Dataset{
		fetcher: f,
		path:    filepath.Join(dir, filename),
		urls:    urls,
		ttl:     ttl,
	}
}

// Path returns the on-disk location of the cached file.
func (d *Dataset) Path() string { return d.path }

// fresh reports whether a non-empty copy exists that is younger than the TTL.
func (d *Dataset) fresh() bool {
	info, err := os.Stat(d.path)
	if err != nil || info.Size() == 0 {
		return false
	}
	return time.Since(info.ModTime()) < d.ttl
}

// usable reports whether any non-empty copy exists, fresh or stale.
func (d *Dataset) usable() bool {
	info, err := os.Stat(d.path)
	return err == nil && info.Size() > 0
}

// Ensure returns the path to a readable copy of the list, refreshing it first
// when the TTL has lapsed. Each configured URL is tried in order. When every
// download fails but a stale copy exists, the stale copy is returned.
func (d *Dataset) Ensure(ctx context.Context) (string, error) {
	if d.fresh() {
		return d.path, nil
	}

	var lastErr error
	for _, url := range d.urls {
		if _, err := d.fetcher.DownloadToFile(ctx, url, d.path); err != nil {
			lastErr = err
			zap.L().Warn("reference list download failed",
				zap.String("url", url),
				zap.String("path", d.path),
				zap.Error(err),
			)
			continue
		}
		return d.path, nil
	}

	if d.usable() {
		zap.L().Warn("using stale reference list after failed refresh",
			zap.String("path", d.path),
		)
		return d.path, nil
	}

	if lastErr == nil {
		lastErr = eris.New("no download URLs configured")
	}
	return "", eris.Wrapf(lastErr, "cache: no usable copy of %s", filepath.Base(d.path))
}
