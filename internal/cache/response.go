package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// ResponseCache stores small per-query API responses as JSON files keyed by a
// hash of the query. Used by adapters with rate-limited upstreams
// (OpenCorporates) to avoid repeat calls within the TTL.
type ResponseCache struct {
	dir string
	ttl time.Duration
}

// NewResponseCache creates a response cache rooted at dir.
func NewResponseCache(dir string, ttl time.Duration) *ResponseCache {
	return &ResponseCache{dir: dir, ttl: ttl}
}

type cacheEnvelope struct {
	CachedAt time.Time       `json:"cached_at"`
	Value    json.RawMessage `json:"value"`
}

// Key derives the cache filename for a query string.
func (c *ResponseCache) Key(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached value for the query, or nil when absent or expired.
// Unreadable cache entries are treated as misses, never as errors.
func (c *ResponseCache) Get(query string, out any) bool {
	raw, err := os.ReadFile(filepath.Join(c.dir, c.Key(query)+".json"))
	if err != nil {
		return false
	}
	var env cacheEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false
	}
	if time.Since(env.CachedAt) >= c.ttl {
		return false
	}
	return json.Unmarshal(env.Value, out) == nil
}

// Put stores a value for the query.
func (c *ResponseCache) Put(query string, value any) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return eris.Wrap(err, "cache: mkdir")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return eris.Wrap(err, "cache: marshal value")
	}
	env, err := json.Marshal(cacheEnvelope{CachedAt: time.Now().UTC(), Value: raw})
	if err != nil {
		return eris.Wrap(err, "cache: marshal envelope")
	}
	path := filepath.Join(c.dir, c.Key(query)+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, env, 0o644); err != nil {
		return eris.Wrap(err, "cache: write")
	}
	return eris.Wrap(os.Rename(tmp, path), "cache: rename")
}
