package config

import (
	"fmt"
	"os"

	"coding-interface/internal/models"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Dataset struct {
		// Path to the default coding CSV, loaded at startup when present.
		Path string `yaml:"path"`
	} `yaml:"dataset"`

	// Classification taxonomy shown to coders. The label set and its default
	// changed between study iterations, so it comes from configuration.
	Taxonomy models.Taxonomy `yaml:"taxonomy"`
}

// DefaultTaxonomy is the financial-accelerator label set used when the config
// file supplies none.
func DefaultTaxonomy() models.Taxonomy {
	return models.Taxonomy{
		Name:    "financial_accelerator",
		Default: "none",
		Options: []models.ClassificationOption{
			{
				Value: "strong",
				Label: "STRONG - Credit markets SIGNIFICANTLY amplify economic shocks",
				Guide: "Amplification or feedback language: magnifies, self-reinforcing, spiral, cascade, contagion.",
			},
			{
				Value: "weak",
				Label: "WEAK - Credit markets have LITTLE/NO amplifying effect",
				Guide: "Disconnection or resilience language: despite tight credit, strong balance sheets, no feedback.",
			},
			{
				Value: "moderate",
				Label: "MODERATE - Qualified/partial amplification",
				Guide: "Hedged or conditional amplification: some feedback, varies by sector, less than past cycles.",
			},
			{
				Value: "none",
				Label: "NONE - No financial accelerator belief expressed",
				Guide: "Mentions credit or activity without an amplification mechanism. When in doubt, select none.",
			},
		},
	}
}

// LoadConfig loads configuration from a YAML file. A missing file is not an
// error: defaults apply so the service can start without one.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Set defaults
	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}

	if config.Dataset.Path == "" {
		config.Dataset.Path = "./data/coding_financial_accelerator.csv"
	}

	if len(config.Taxonomy.Options) == 0 {
		config.Taxonomy = DefaultTaxonomy()
	}

	if config.Taxonomy.Default == "" {
		config.Taxonomy.Default = config.Taxonomy.Options[len(config.Taxonomy.Options)-1].Value
	}

	if !config.Taxonomy.Contains(config.Taxonomy.Default) {
		return nil, fmt.Errorf("taxonomy default %q is not among its options", config.Taxonomy.Default)
	}

	config.Dataset.Path = os.ExpandEnv(config.Dataset.Path)

	return config, nil
}
