package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// HouseholdConfig maps one household ID to its policy file.
type HouseholdConfig struct {
	ID       string `yaml:"id"`
	Policies string `yaml:"policies"`
}

// Config is the guardian server configuration file.
type Config struct {
	Listen     string            `yaml:"listen"`
	Watch      bool              `yaml:"watch"`
	Households []HouseholdConfig `yaml:"households"`
}

// LoadConfig reads a server configuration file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if len(cfg.Households) == 0 {
		return nil, fmt.Errorf("config must define at least one household")
	}
	for i, h := range cfg.Households {
		if h.ID == "" {
			return nil, fmt.Errorf("household %d: id is required", i)
		}
		if h.Policies == "" {
			return nil, fmt.Errorf("household %q: policies path is required", h.ID)
		}
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
}
