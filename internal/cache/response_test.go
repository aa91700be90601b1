package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedThing struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestResponseCache_RoundTrip(t *testing.T) {
	c := NewResponseCache(t.TempDir(), time.Hour)

	require.NoError(t, c.Put("DE123|Siemens", cachedThing{Name: "Siemens AG", Count: 3}))

	var got cachedThing
	require.True(t, c.Get("DE123|Siemens", &got))
	assert.Equal(t, "Siemens AG", got.Name)
	assert.Equal(t, 3, got.Count)
}

func TestResponseCache_MissWhenAbsent(t *testing.T) {
	c := NewResponseCache(t.TempDir(), time.Hour)

	var got cachedThing
	assert.False(t, c.Get("never stored", &got))
}

func TestResponseCache_ExpiredEntryIsMiss(t *testing.T) {
	c := NewResponseCache(t.TempDir(), time.Nanosecond)

	require.NoError(t, c.Put("q", cachedThing{Name: "x"}))
	time.Sleep(10 * time.Millisecond)

	var got cachedThing
	assert.False(t, c.Get("q", &got))
}

func TestResponseCache_CorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := NewResponseCache(dir, time.Hour)

	path := filepath.Join(dir, c.Key("q")+".json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var got cachedThing
	assert.False(t, c.Get("q", &got))
}

func TestResponseCache_KeysAreStableAndDistinct(t *testing.T) {
	c := NewResponseCache(t.TempDir(), time.Hour)

	assert.Equal(t, c.Key("a"), c.Key("a"))
	assert.NotEqual(t, c.Key("a"), c.Key("b"))
	assert.Len(t, c.Key("a"), 64)
}

func TestResponseCache_PutOverwrites(t *testing.T) {
	c := NewResponseCache(t.TempDir(), time.Hour)

	require.NoError(t, c.Put("q", cachedThing{Count: 1}))
	require.NoError(t, c.Put("q", cachedThing{Count: 2}))

	var got cachedThing
	require.True(t, c.Get("q", &got))
	assert.Equal(t, 2, got.Count)
}
