package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// cliConfig is the persisted connection settings in config.yaml.
type cliConfig struct {
	Addr      string `yaml:"addr"`
	CACert    string `yaml:"cacert,omitempty"`
	Insecure  bool   `yaml:"insecure,omitempty"`
	Plaintext bool   `yaml:"plaintext,omitempty"`
}

func defaultConfig() cliConfig { return cliConfig{Addr: "localhost:8443"} }

func configPath(dir string) string { return filepath.Join(dir, "config.yaml") }

// loadConfig reads path over the defaults; a missing file yields the defaults.
func loadConfig(path string) (cliConfig, error) {
	cfg := defaultConfig()
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func saveConfig(path string, cfg cliConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
