package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLProvider implements Provider for YAML configuration files.
type YAMLProvider struct {
	filename string
}

// NewYAMLProvider creates a new YAML configuration provider.
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{filename: filename}
}

// LoadConfig loads the complete configuration from the YAML file.
func (y *YAMLProvider) LoadConfig() (*Data, error) {
	raw, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", y.filename, err)
	}

	var data Data
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", y.filename, err)
	}

	data.applyDefaults()
	if err := data.Validate(true); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &data, nil
}

// IsReadOnly reports that the YAML backend cannot be written through
// the provider.
func (y *YAMLProvider) IsReadOnly() bool { return true }

// Close is a no-op for the YAML backend.
func (y *YAMLProvider) Close() error { return nil }
