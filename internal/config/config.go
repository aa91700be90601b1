package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	HTTP      HTTPConfig      `yaml:"http" mapstructure:"http"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Requester RequesterConfig `yaml:"requester" mapstructure:"requester"`
	Adapters  AdaptersConfig  `yaml:"adapters" mapstructure:"adapters"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// HTTPConfig bounds every outbound call made by adapters. Retries happen
// here, in the shared HTTP layer, never in the orchestrator.
type HTTPConfig struct {
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries       int     `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BackoffMult      float64 `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// CacheConfig locates the reference-dataset file cache.
type CacheConfig struct {
	Dir             string `yaml:"dir" mapstructure:"dir"`
	DefaultTTLHours int    `yaml:"default_ttl_hours" mapstructure:"default_ttl_hours"`
}

// MatchConfig holds the fuzzy-match decision thresholds on the 0-100
// similarity scale. They apply to every list-screening adapter.
type MatchConfig struct {
	CriticalThreshold int `yaml:"critical_threshold" mapstructure:"critical_threshold"`
	WarnThreshold     int `yaml:"warn_threshold" mapstructure:"warn_threshold"`
}

// RequesterConfig is the fallback requester identity used when a lookup
// supplies none. Reciprocity-based registries require it.
type RequesterConfig struct {
	CountryCode string `yaml:"country_code" mapstructure:"country_code"`
	VATNumber   string `yaml:"vat_number" mapstructure:"vat_number"`
}

// AdaptersConfig carries per-adapter enablement and endpoints.
type AdaptersConfig struct {
	VIES           VIESConfig     `yaml:"vies" mapstructure:"vies"`
	SanctionsEU    ListConfig     `yaml:"sanctions_eu" mapstructure:"sanctions_eu"`
	SanctionsOFAC  ListConfig     `yaml:"sanctions_ofac" mapstructure:"sanctions_ofac"`
	SanctionsUK    ListConfig     `yaml:"sanctions_uk" mapstructure:"sanctions_uk"`
	Registry       EndpointConfig `yaml:"registry" mapstructure:"registry"`
	Insolvency     EndpointConfig `yaml:"insolvency" mapstructure:"insolvency"`
	OpenCorporates OpenCorpConfig `yaml:"opencorporates" mapstructure:"opencorporates"`
	Whois          WhoisConfig    `yaml:"whois" mapstructure:"whois"`
	SSLLabs        EndpointConfig `yaml:"ssllabs" mapstructure:"ssllabs"`
	ListsFile      string         `yaml:"lists_file" mapstructure:"lists_file"`
}

// VIESConfig configures the identity-resolution adapter.
type VIESConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// ListConfig configures one sanctions-list adapter.
type ListConfig struct {
	Enabled  bool     `yaml:"enabled" mapstructure:"enabled"`
	URLs     []string `yaml:"urls" mapstructure:"urls"`
	TTLHours int      `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// EndpointConfig is the minimal enable-flag + endpoint pair shared by the
// registry, insolvency and ssllabs adapters.
type EndpointConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// OpenCorpConfig configures the OpenCorporates adapter.
type OpenCorpConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey   string `yaml:"api_key" mapstructure:"api_key"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// WhoisConfig configures the WHOIS adapter.
type WhoisConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Server  string `yaml:"server" mapstructure:"server"`
}

// NotifyConfig configures status-change notifications.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DILIGENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "diligence.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	v.SetDefault("http.timeout_secs", 30)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.initial_backoff_ms", 500)
	v.SetDefault("http.max_backoff_ms", 15000)
	v.SetDefault("http.backoff_multiplier", 2.0)
	v.SetDefault("http.user_agent", "diligence-cli/1.0")

	v.SetDefault("cache.dir", ".cache/diligence")
	v.SetDefault("cache.default_ttl_hours", 24)

	v.SetDefault("match.critical_threshold", 92)
	v.SetDefault("match.warn_threshold", 80)

	v.SetDefault("adapters.vies.enabled", true)
	v.SetDefault("adapters.vies.endpoint", "https://ec.europa.eu/taxation_customs/vies/services/checkVatService")
	v.SetDefault("adapters.sanctions_eu.enabled", true)
	v.SetDefault("adapters.sanctions_eu.urls", []string{
		"https://register.consilium.europa.eu/rest/download/content?filename=consolidated-list.csv",
	})
	v.SetDefault("adapters.sanctions_ofac.enabled", true)
	v.SetDefault("adapters.sanctions_ofac.urls", []string{
		"https://home.treasury.gov/system/files/126/sdn.csv",
		"https://www.treasury.gov/ofac/downloads/sdn.csv",
	})
	v.SetDefault("adapters.sanctions_uk.enabled", true)
	v.SetDefault("adapters.sanctions_uk.urls", []string{
		"https://ofsistorage.blob.core.windows.net/publishlive/2023format/ConList.csv",
	})
	v.SetDefault("adapters.registry.enabled", false)
	v.SetDefault("adapters.registry.endpoint", "https://www.unternehmensregister.de/ureg/search1.2.html")
	v.SetDefault("adapters.insolvency.enabled", false)
	v.SetDefault("adapters.insolvency.endpoint", "https://neu.insolvenzbekanntmachungen.de/ap/suche.jsf")
	v.SetDefault("adapters.opencorporates.enabled", false)
	v.SetDefault("adapters.opencorporates.endpoint", "https://api.opencorporates.com/v0.4")
	v.SetDefault("adapters.opencorporates.ttl_hours", 24)
	v.SetDefault("adapters.whois.enabled", true)
	v.SetDefault("adapters.whois.server", "whois.denic.de:43")
	v.SetDefault("adapters.ssllabs.enabled", false)
	v.SetDefault("adapters.ssllabs.endpoint", "https://api.ssllabs.com/api/v3")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
