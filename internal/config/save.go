package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveCredentials persists the Telegram token and admin list to the YAML
// config file. It merges into any existing file so hand-edited settings
// survive, and returns the path that was written.
func SaveCredentials(token string, adminIDs []int64, opts ...Option) (string, error) {
	options := loadOptions{
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(&options)
	}

	configPath := options.configPath
	if configPath == "" {
		configPath = DefaultConfigFile
	}

	var existing map[string]any
	if options.readFile != nil {
		if data, err := options.readFile(configPath); err == nil {
			if len(data) > 0 {
				if err := yaml.Unmarshal(data, &existing); err != nil {
					return "", fmt.Errorf("parse config file: %w", err)
				}
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("read config file: %w", err)
		}
	}
	if existing == nil {
		existing = map[string]any{}
	}

	telegram, _ := existing["telegram"].(map[string]any)
	if telegram == nil {
		telegram = map[string]any{}
	}
	telegram["token"] = token
	if len(adminIDs) > 0 {
		telegram["admin_ids"] = adminIDs
	}
	existing["telegram"] = telegram

	encoded, err := yaml.Marshal(existing)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("ensure config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, encoded, 0o600); err != nil {
		return "", fmt.Errorf("write config file: %w", err)
	}

	return configPath, nil
}
