package adapter

import (
	"context"
	"encoding/json"
	"net/url"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/clarusrisk/diligence-cli/internal/cache"
	"github.com/clarusrisk/diligence-cli/internal/config"
	"github.com/clarusrisk/diligence-cli/internal/fetcher"
	"github.com/clarusrisk/diligence-cli/internal/model"
)

// SourceOpenCorporates identifies the OpenCorporates adapter.
const SourceOpenCorporates = "opencorporates"

// OpenCorporates resolves the company against the OpenCorporates search API.
// Responses are cached on disk per query because the free API tier is heavily
// rate limited.
type OpenCorporates struct {
	cfg     config.OpenCorpConfig
	fetcher fetcher.Fetcher
	cache   *cache.ResponseCache
}

// NewOpenCorporates creates the OpenCorporates adapter.
func NewOpenCorporates(cfg config.OpenCorpConfig, f fetcher.Fetcher, cacheDir string) *OpenCorporates {
	ttl := time.Duration(cfg.TTLHours) * time.Hour
	return &OpenCorporates{
		cfg:     cfg,
		fetcher: f,
		cache:   cache.NewResponseCache(filepath.Join(cacheDir, "opencorp"), ttl),
	}
}

func (o *OpenCorporates) Name() string { return SourceOpenCorporates }

func (o *OpenCorporates) Ready(q model.Query) error {
	if q.VATNumber == "" && q.Name == "" {
		return ErrIdentityRequired
	}
	return nil
}

type ocSearchPayload struct {
	Results struct {
		Companies []struct {
			Company ocCompany `json:"company"`
		} `json:"companies"`
	} `json:"results"`
}

type ocCompany struct {
	Name              string `json:"name"`
	CompanyNumber     string `json:"company_number"`
	JurisdictionCode  string `json:"jurisdiction_code"`
	IncorporationDate string `json:"incorporation_date"`
	OpenCorporatesURL string `json:"opencorporates_url"`
}

func (o *OpenCorporates) Fetch(ctx context.Context, q model.Query) (model.CheckResult, error) {
	if !o.cfg.Enabled {
		return Disabled(SourceOpenCorporates), nil
	}
	if o.cfg.APIKey == "" {
		return Result(SourceOpenCorporates, model.StatusError, nil, "no API key configured"), nil
	}

	cacheKey := q.VATNumber + "|" + q.Name
	var cached model.CheckResult
	if o.cache.Get(cacheKey, &cached) {
		return cached, nil
	}

	payload, err := o.search(ctx, q)
	if err != nil {
		return Failure(SourceOpenCorporates, "OpenCorporates request failed", err), nil
	}

	result := o.interpret(payload)
	if err := o.cache.Put(cacheKey, result); err != nil {
		zap.L().Warn("response cache write failed",
			zap.String("source", SourceOpenCorporates), zap.Error(err))
	}
	return result, nil
}

// search prefers a jurisdiction-scoped lookup by the VAT's numeric part, then
// falls back to the full VAT string, then to the company name.
func (o *OpenCorporates) search(ctx context.Context, q model.Query) (*ocSearchPayload, error) {
	if q.VATNumber != "" {
		vat := cleanVAT(q.VATNumber)
		if country, number, ok := splitVATPrefix(vat); ok {
			payload, err := o.doSearch(ctx, url.Values{
				"q":                 {number},
				"jurisdiction_code": {strings.ToLower(country)},
			})
			if err != nil {
				return nil, err
			}
			if len(payload.Results.Companies) > 0 {
				return payload, nil
			}
		}
		return o.doSearch(ctx, url.Values{"q": {vat}})
	}
	return o.doSearch(ctx, url.Values{"q": {q.Name}})
}

func (o *OpenCorporates) doSearch(ctx context.Context, params url.Values) (*ocSearchPayload, error) {
	params.Set("api_token", o.cfg.APIKey)
	params.Set("per_page", "5")
	raw, err := o.fetcher.Get(ctx, o.cfg.Endpoint+"/companies/search?"+params.Encode())
	if err != nil {
		return nil, err
	}
	var payload ocSearchPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (o *OpenCorporates) interpret(payload *ocSearchPayload) model.CheckResult {
	if len(payload.Results.Companies) == 0 {
		return Unknown(SourceOpenCorporates, "no companies found")
	}
	c := payload.Results.Companies[0].Company
	return Result(SourceOpenCorporates, model.StatusOK, map[string]any{
		"name":               c.Name,
		"company_number":     c.CompanyNumber,
		"jurisdiction_code":  c.JurisdictionCode,
		"incorporation_date": c.IncorporationDate,
		"source_url":         c.OpenCorporatesURL,
	}, "found by OpenCorporates")
}

func cleanVAT(vat string) string {
	vat = strings.ReplaceAll(vat, " ", "")
	vat = strings.ReplaceAll(vat, "-", "")
	return strings.ToUpper(vat)
}

// splitVATPrefix separates a leading two-letter country prefix, if present.
func splitVATPrefix(vat string) (country, number string, ok bool) {
	if len(vat) <= 2 {
		return "", "", false
	}
	if !unicode.IsLetter(rune(vat[0])) || !unicode.IsLetter(rune(vat[1])) {
		return "", "", false
	}
	return vat[:2], vat[2:], true
}
