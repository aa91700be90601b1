package adapter

import (
	"context"
	"os"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/clarusrisk/diligence-cli/internal/model"
)

// stubFetcher serves canned responses for adapter tests.
type stubFetcher struct {
	getBody    []byte
	getErr     error
	postBody   []byte
	postErr    error
	fileData   []byte
	gotURL     string
	gotPayload []byte
}

func (s *stubFetcher) Get(_ context.Context, url string) ([]byte, error) {
	s.gotURL = url
	return s.getBody, s.getErr
}

func (s *stubFetcher) Post(_ context.Context, url, _ string, body []byte) ([]byte, error) {
	s.gotURL = url
	s.gotPayload = body
	return s.postBody, s.postErr
}

func (s *stubFetcher) DownloadToFile(_ context.Context, url, path string) (int64, error) {
	s.gotURL = url
	if s.fileData == nil {
		return 0, eris.New("download unavailable")
	}
	if err := os.WriteFile(path, s.fileData, 0o644); err != nil {
		return 0, err
	}
	return int64(len(s.fileData)), nil
}

func TestResultHelpers(t *testing.T) {
	r := Result("vies", model.StatusOK, nil, "VAT valid")
	assert.Equal(t, "vies", r.Source)
	assert.NotNil(t, r.Data)

	u := Unknown("whois", "website required")
	assert.Equal(t, model.StatusUnknown, u.Status)
	assert.Equal(t, "website required", u.Note)

	d := Disabled("ssl_labs")
	assert.Equal(t, model.StatusError, d.Status)
	assert.Contains(t, d.Note, "disabled")

	f := Failure("vies", "VIES request failed", eris.New("boom"))
	assert.Equal(t, model.StatusError, f.Status)
	assert.Equal(t, "boom", f.Data["error"])
}
