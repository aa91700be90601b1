package adapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarusrisk/diligence-cli/internal/config"
)

func TestDefaultListSpecs(t *testing.T) {
	cfg := config.AdaptersConfig{
		SanctionsEU:   config.ListConfig{Enabled: true, URLs: []string{"https://eu.example/list.csv"}},
		SanctionsOFAC: config.ListConfig{Enabled: true, TTLHours: 6},
		SanctionsUK:   config.ListConfig{Enabled: false},
	}

	specs := DefaultListSpecs(cfg, 24)
	require.Len(t, specs, 3)

	eu := specs[0]
	assert.Equal(t, "sanctions_eu", eu.Source)
	assert.Equal(t, []string{"https://eu.example/list.csv"}, eu.URLs)
	assert.Equal(t, 24, eu.TTLHours)
	assert.True(t, eu.Enabled)

	// Per-list TTL override beats the cache-wide default.
	assert.Equal(t, 6, specs[1].TTLHours)
	assert.False(t, specs[2].Enabled)
}

func TestLoadListSpecs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lists.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
lists:
  - source: sanctions_custom
    file: custom.csv
    urls:
      - https://lists.example/custom.csv
    ttl_hours: 12
    name_columns: [name, alias]
    enabled: true
`), 0o644))

	specs, err := LoadListSpecs(path)
	require.NoError(t, err)
	require.Len(t, specs, 1)

	assert.Equal(t, "sanctions_custom", specs[0].Source)
	assert.Equal(t, "custom.csv", specs[0].File)
	assert.Equal(t, 12, specs[0].TTLHours)
	assert.Equal(t, []string{"name", "alias"}, specs[0].NameColumns)
	assert.True(t, specs[0].Enabled)
}

func TestLoadListSpecs_MissingFile(t *testing.T) {
	_, err := LoadListSpecs(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadListSpecs_EmptyLists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lists.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lists: []\n"), 0o644))

	_, err := LoadListSpecs(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defines no lists")
}
