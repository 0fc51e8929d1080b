package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sampleConfig struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

var errBadPort = errors.New("port must be positive")

func (c *sampleConfig) Validate() error {
	if c.Port <= 0 {
		return errBadPort
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "name: dagaz\nport: 8080\n")

	var cfg sampleConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "dagaz" || cfg.Port != 8080 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_SERVICE_NAME", "expanded")
	path := writeConfig(t, "name: ${TEST_SERVICE_NAME}\nport: 1\n")

	var cfg sampleConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "expanded" {
		t.Errorf("name = %q, want env-expanded value", cfg.Name)
	}
}

func TestLoad_ValidatorCalled(t *testing.T) {
	path := writeConfig(t, "name: x\nport: 0\n")

	var cfg sampleConfig
	err := Load(path, &cfg)
	if !errors.Is(err, errBadPort) {
		t.Errorf("err = %v, want validator error", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg sampleConfig
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Error("missing file should be an error")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	fallback := writeConfig(t, "name: fallback\nport: 2\n")

	var cfg sampleConfig
	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "nope.yaml"), fallback, &cfg); err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg.Name != "fallback" {
		t.Errorf("name = %q, want fallback file to be used", cfg.Name)
	}
}
