package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/flexmarket/api"
	"github.com/kilianp07/flexmarket/core/metrics"
	"github.com/kilianp07/flexmarket/core/wdp"
	"github.com/kilianp07/flexmarket/infra/journal"
	"github.com/kilianp07/flexmarket/infra/logger"
	"github.com/kilianp07/flexmarket/infra/monitoring"
	"github.com/kilianp07/flexmarket/infra/mqtt"
)

// EnvPrefix marks environment overrides. Nested keys are separated by a
// double underscore, e.g. FLEX_MQTT__BROKER.
const EnvPrefix = "FLEX_"

type Config struct {
	Market     MarketConfig      `json:"market"`
	Solver     wdp.Config        `json:"solver"`
	MQTT       mqtt.Config       `json:"mqtt"`
	API        api.Config        `json:"api"`
	Metrics    metrics.Config    `json:"metrics"`
	Logging    logger.Config     `json:"logging"`
	Journal    journal.Config    `json:"journal"`
	Monitoring monitoring.Config `json:"monitoring"`
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Market.SetDefaults()
	c.Solver.SetDefaults()
	c.MQTT.SetDefaults()
	c.Metrics.SetDefaults()
	c.Logging.SetDefaults()
	c.Journal.SetDefaults()
	c.Monitoring.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	checks := []struct {
		section string
		check   func() error
	}{
		{"market", c.Market.Validate},
		{"solver", c.Solver.Validate},
		{"mqtt", c.MQTT.Validate},
		{"logging", c.Logging.Validate},
		{"journal", c.Journal.Validate},
		{"monitoring", c.Monitoring.Validate},
	}
	for _, ch := range checks {
		if err := ch.check(); err != nil {
			return fmt.Errorf("%s: %w", ch.section, err)
		}
	}
	return nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
