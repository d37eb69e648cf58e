package utils

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jiaming2012/backoffice/src/models"
)

const BACKOFFICE_CONFIG_FILENAME = "backoffice-config.yaml"

func LoadBackofficeConfig(path string) (*models.BackofficeConfigYAML, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadBackofficeConfig: failed to read %s: %w", path, err)
	}

	cfg, err := ParseBackofficeConfig(data)
	if err != nil {
		return nil, fmt.Errorf("LoadBackofficeConfig: %s: %w", path, err)
	}

	return cfg, nil
}

// ParseBackofficeConfig decodes and validates the policy configuration.
func ParseBackofficeConfig(data []byte) (*models.BackofficeConfigYAML, error) {
	var cfg models.BackofficeConfigYAML
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %v: %w", err, models.ErrValidation)
	}

	if _, _, err := cfg.Settlement.SettlementTime(); err != nil {
		return nil, fmt.Errorf("invalid config: %v: %w", err, models.ErrValidation)
	}

	if _, err := cfg.Commission.DefaultPlan.ToPlan(); err != nil {
		return nil, fmt.Errorf("invalid default plan: %w", err)
	}

	return &cfg, nil
}
