package pipeline

import (
	"strings"

	"github.com/clarusrisk/diligence-cli/internal/model"
)

// EnrichCompany fills empty company identity fields from an identity-adapter
// result. Existing values are never overwritten; the caller's data stays
// authoritative. Returns true when any field changed.
func EnrichCompany(c *model.Company, result model.CheckResult) bool {
	changed := false

	fill := func(dst *string, key string) {
		if *dst != "" {
			return
		}
		v, ok := result.Data[key].(string)
		if !ok {
			return
		}
		v = strings.TrimSpace(v)
		if v == "" || v == model.BlankNameSentinel {
			return
		}
		*dst = v
		changed = true
	}

	fill(&c.Name, "name")
	fill(&c.Address, "address")
	fill(&c.Country, "country_code")

	if changed {
		if c.RawSource == nil {
			c.RawSource = map[string]any{}
		}
		c.RawSource[result.Source] = result.Data
	}
	return changed
}
