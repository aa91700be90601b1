package adapter

import (
	"context"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/clarusrisk/diligence-cli/internal/config"
	"github.com/clarusrisk/diligence-cli/internal/fetcher"
	"github.com/clarusrisk/diligence-cli/internal/model"
)

// SourceVIES identifies the identity-resolution adapter.
const SourceVIES = "vies"

var vatRe = regexp.MustCompile(`^([A-Z]{2})([0-9A-Z+*.]{2,12})$`)

// VIES validates a VAT number against the EU VIES SOAP service. It is the
// identity adapter: its name/address/country output enriches the company
// record before any other adapter runs.
type VIES struct {
	cfg     config.VIESConfig
	fetcher fetcher.Fetcher
}

// NewVIES creates the VIES adapter.
func NewVIES(cfg config.VIESConfig, f fetcher.Fetcher) *VIES {
	return &VIES{cfg: cfg, fetcher: f}
}

func (v *VIES) Name() string { return SourceVIES }

func (v *VIES) Ready(q model.Query) error {
	if q.VATNumber == "" {
		return ErrVATRequired
	}
	return nil
}

// SplitVAT separates a full VAT identifier into country prefix and number.
func SplitVAT(vat string) (country, number string, ok bool) {
	vat = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(vat), " ", ""))
	m := vatRe.FindStringSubmatch(vat)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

const checkVatEnvelope = `<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:urn="urn:ec.europa.eu:taxud:vies:services:checkVat:types"><soapenv:Body><urn:checkVat><urn:countryCode>%s</urn:countryCode><urn:vatNumber>%s</urn:vatNumber></urn:checkVat></soapenv:Body></soapenv:Envelope>`

// checkVatResponse matches the SOAP body namespace-agnostically: unqualified
// field tags bind to any namespace, which sidesteps the schema drift the VIES
// endpoint is known for.
type checkVatResponse struct {
	CountryCode string `xml:"countryCode"`
	VATNumber   string `xml:"vatNumber"`
	RequestDate string `xml:"requestDate"`
	Valid       bool   `xml:"valid"`
	CompanyName string `xml:"name"`
	Address     string `xml:"address"`
}

type soapEnvelope struct {
	Body struct {
		Response *checkVatResponse `xml:"checkVatResponse"`
		Fault    *struct {
			String string `xml:"faultstring"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

func (v *VIES) Fetch(ctx context.Context, q model.Query) (model.CheckResult, error) {
	if !v.cfg.Enabled {
		return Disabled(SourceVIES), nil
	}

	country, number, ok := SplitVAT(q.VATNumber)
	if !ok {
		return Result(SourceVIES, model.StatusWarning,
			map[string]any{"vat_number": q.VATNumber}, "invalid VAT format"), nil
	}

	envelope := fmt.Sprintf(checkVatEnvelope, xmlEscape(country), xmlEscape(number))
	raw, err := v.fetcher.Post(ctx, v.cfg.Endpoint, "text/xml; charset=utf-8", []byte(envelope))
	if err != nil {
		return Failure(SourceVIES, "VIES request failed", err), nil
	}

	var env soapEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return Failure(SourceVIES, "VIES response parse failed", err), nil
	}
	if env.Body.Fault != nil {
		return Result(SourceVIES, model.StatusError,
			map[string]any{"error": env.Body.Fault.String}, "VIES SOAP fault"), nil
	}
	resp := env.Body.Response
	if resp == nil {
		return Result(SourceVIES, model.StatusError, nil, "empty VIES response"), nil
	}

	name := cleanRegistryField(resp.CompanyName)
	address := cleanRegistryField(resp.Address)

	data := map[string]any{
		"vat_number":   q.VATNumber,
		"country_code": strings.TrimSpace(resp.CountryCode),
		"request_date": strings.TrimSpace(resp.RequestDate),
		"valid":        resp.Valid,
		"name":         name,
		"address":      address,
	}

	if !resp.Valid {
		return Result(SourceVIES, model.StatusWarning, data, "VAT not valid"), nil
	}
	return Result(SourceVIES, model.StatusOK, data, "VAT valid"), nil
}

// cleanRegistryField trims a VIES text field and drops the "---" placeholder
// the registry returns for withheld names.
func cleanRegistryField(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", ", "))
	if s == model.BlankNameSentinel {
		return ""
	}
	return s
}

func xmlEscape(s string) string {
	var sb strings.Builder
	_ = xml.EscapeText(&sb, []byte(s))
	return sb.String()
}
