package model

import "strings"

// BlankNameSentinel is the placeholder some registries return instead of a
// legal name. It is treated everywhere as "no name".
const BlankNameSentinel = "---"

// DefaultCountry is assumed when raw input carries no country at all.
const DefaultCountry = "DE"

// Requester identifies who is asking. Some reciprocity-based registries only
// answer when the caller supplies its own VAT identity.
type Requester struct {
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Org         string `json:"org,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	VATNumber   string `json:"vat_number,omitempty"`
}

// Query is the canonical, ephemeral input handed to every adapter. It is
// rebuilt before each fan-out and never persisted on its own (only echoed
// back inside CheckResult.UsedQuery for audit).
type Query struct {
	VATNumber string     `json:"vat_number"`
	Name      string     `json:"name"`
	Country   string     `json:"country"`
	Address   string     `json:"address"`
	Website   string     `json:"website"`
	Requester *Requester `json:"requester,omitempty"`
}

// NormalizeQuery canonicalizes raw user input: trims every field, uppercases
// country (falling back to DefaultCountry) and VAT, lowercases the website,
// and drops the blank-name sentinel.
func NormalizeQuery(vat, name, country, address, website string) Query {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		country = DefaultCountry
	}
	return Query{
		VATNumber: strings.ToUpper(strings.TrimSpace(vat)),
		Name:      normalizeName(name),
		Country:   country,
		Address:   strings.TrimSpace(address),
		Website:   strings.ToLower(strings.TrimSpace(website)),
	}
}

// QueryFromCompany rebuilds the canonical query from a stored company. Unlike
// NormalizeQuery it does not force a country default: an empty stored country
// stays empty so the identity adapter can still supply it.
func QueryFromCompany(c *Company) Query {
	return Query{
		VATNumber: strings.ToUpper(strings.TrimSpace(c.VATNumber)),
		Name:      normalizeName(c.Name),
		Country:   strings.ToUpper(strings.TrimSpace(c.Country)),
		Address:   strings.TrimSpace(c.Address),
		Website:   strings.ToLower(strings.TrimSpace(c.Website)),
		Requester: c.Requester,
	}
}

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == BlankNameSentinel {
		return ""
	}
	return name
}
