// Package utils loads the exporter configuration file.
package utils

import (
	"bytes"
	"fmt"
	"os"

	"github.com/axapi-tools/a10_exporter/internal/models"
	"gopkg.in/yaml.v2"
)

// FileExists checks if the given file exists.
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}

// ReadFile decodes the configuration file at path into cfg.
//
// The file is usually JSON; it is decoded as YAML, of which JSON is a subset,
// so YAML files are accepted too. YAML forbids tab indentation in block
// style; such files are rejected with a hint saying so.
func ReadFile(cfg *models.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		if bytes.ContainsRune(data, '\t') {
			return fmt.Errorf("failed to decode config file %s (indent with spaces, not tabs): %w", path, err)
		}
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("config file %s is empty", path)
	}

	return nil
}

// LoadConfig reads and validates the configuration file at path.
func LoadConfig(path string) (*models.Config, error) {
	if !FileExists(path) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	var cfg models.Config
	if err := ReadFile(&cfg, path); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
