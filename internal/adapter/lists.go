package adapter

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/clarusrisk/diligence-cli/internal/config"
)

// ListSpec describes one screening list: where its snapshot comes from, how
// long a snapshot stays fresh, and which columns hold entity names. New
// jurisdictions are added as data, not code.
type ListSpec struct {
	Source      string   `yaml:"source"`
	File        string   `yaml:"file"`
	URLs        []string `yaml:"urls"`
	TTLHours    int      `yaml:"ttl_hours"`
	NameColumns []string `yaml:"name_columns"`
	Enabled     bool     `yaml:"enabled"`
}

// DefaultListSpecs builds the built-in EU/OFAC/UK descriptors from config.
func DefaultListSpecs(cfg config.AdaptersConfig, defaultTTLHours int) []ListSpec {
	ttl := func(override int) int {
		if override > 0 {
			return override
		}
		return defaultTTLHours
	}
	return []ListSpec{
		{
			Source:      "sanctions_eu",
			File:        "sanctions_eu.csv",
			URLs:        cfg.SanctionsEU.URLs,
			TTLHours:    ttl(cfg.SanctionsEU.TTLHours),
			NameColumns: []string{"name", "entity", "organisation"},
			Enabled:     cfg.SanctionsEU.Enabled,
		},
		{
			Source:      "sanctions_ofac",
			File:        "ofac_sdn.csv",
			URLs:        cfg.SanctionsOFAC.URLs,
			TTLHours:    ttl(cfg.SanctionsOFAC.TTLHours),
			NameColumns: []string{"name", "entity"},
			Enabled:     cfg.SanctionsOFAC.Enabled,
		},
		{
			Source:      "sanctions_uk",
			File:        "uk_sanctions.csv",
			URLs:        cfg.SanctionsUK.URLs,
			TTLHours:    ttl(cfg.SanctionsUK.TTLHours),
			NameColumns: []string{"name", "entity"},
			Enabled:     cfg.SanctionsUK.Enabled,
		},
	}
}

// LoadListSpecs reads screening-list descriptors from a YAML file. The file
// replaces the built-in descriptors entirely when present.
func LoadListSpecs(path string) ([]ListSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "adapter: read lists file %s", path)
	}
	var wrapper struct {
		Lists []ListSpec `yaml:"lists"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "adapter: parse lists file")
	}
	if len(wrapper.Lists) == 0 {
		return nil, eris.Errorf("adapter: lists file %s defines no lists", path)
	}
	return wrapper.Lists, nil
}
