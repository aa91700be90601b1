package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	data      []byte
	err       error
	downloads []string
}

func (f *fakeFetcher) Get(context.Context, string) ([]byte, error) { return nil, nil }

func (f *fakeFetcher) Post(context.Context, string, string, []byte) ([]byte, error) {
	return nil, nil
}

func (f *fakeFetcher) DownloadToFile(_ context.Context, url, path string) (int64, error) {
	f.downloads = append(f.downloads, url)
	if f.err != nil {
		return 0, f.err
	}
	if err := os.WriteFile(path, f.data, 0o644); err != nil {
		return 0, err
	}
	return int64(len(f.data)), nil
}

func TestDataset_FreshCopySkipsDownload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "list.csv"), []byte("data"), 0o644))

	f := &fakeFetcher{}
	d := NewDataset(f, dir, "list.csv", []string{"https://a.example/list.csv"}, time.Hour)

	path, err := d.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "list.csv"), path)
	assert.Empty(t, f.downloads)
}

func TestDataset_DownloadsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	f := &fakeFetcher{data: []byte("fresh data")}
	d := NewDataset(f, dir, "list.csv", []string{"https://a.example/list.csv"}, time.Hour)

	path, err := d.Ensure(context.Background())
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fresh data", string(content))
	assert.Equal(t, []string{"https://a.example/list.csv"}, f.downloads)
}

func TestDataset_DownloadsWhenStale(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "list.csv")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	f := &fakeFetcher{data: []byte("new")}
	d := NewDataset(f, dir, "list.csv", []string{"https://a.example/list.csv"}, time.Hour)

	got, err := d.Ensure(context.Background())
	require.NoError(t, err)
	content, _ := os.ReadFile(got)
	assert.Equal(t, "new", string(content))
}

func TestDataset_TriesURLsInOrder(t *testing.T) {
	dir := t.TempDir()
	f := &fakeFetcher{err: eris.New("unreachable")}
	d := NewDataset(f, dir, "list.csv",
		[]string{"https://a.example/1.csv", "https://b.example/2.csv"}, time.Hour)

	_, err := d.Ensure(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"https://a.example/1.csv", "https://b.example/2.csv"}, f.downloads)
}

func TestDataset_StaleFallbackWhenAllDownloadsFail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "list.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale but usable"), 0o644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	f := &fakeFetcher{err: eris.New("unreachable")}
	d := NewDataset(f, dir, "list.csv", []string{"https://a.example/list.csv"}, time.Hour)

	got, err := d.Ensure(context.Background())
	require.NoError(t, err)
	content, _ := os.ReadFile(got)
	assert.Equal(t, "stale but usable", string(content))
}

func TestDataset_NoUsableCopyIsError(t *testing.T) {
	d := NewDataset(&fakeFetcher{err: eris.New("unreachable")},
		t.TempDir(), "list.csv", []string{"https://a.example/list.csv"}, time.Hour)

	_, err := d.Ensure(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable copy")
}

func TestDataset_NoURLsConfigured(t *testing.T) {
	d := NewDataset(&fakeFetcher{}, t.TempDir(), "list.csv", nil, time.Hour)

	_, err := d.Ensure(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no download URLs configured")
}
