package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vincentkfu/fioverify/internal/matrix"
)

// defaultConfigFile is looked up in the working directory when no
// --config flag is given.
const defaultConfigFile = ".fioverify.yaml"

// Config holds the file-configurable harness settings. CLI flags
// override whatever the file says.
type Config struct {
	// Fio is the subject executable path.
	Fio string `yaml:"fio"`

	// ArtifactRoot is the run's artifact directory tree. Empty means
	// a timestamped directory is created per run.
	ArtifactRoot string `yaml:"artifact_root"`

	// TimeoutSeconds bounds one subject invocation.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// Checksums overrides the verification method list.
	Checksums []string `yaml:"checksums"`

	// SkipRequirements bypasses host requirement predicates.
	SkipRequirements bool `yaml:"skip_requirements"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() Config {
	return Config{
		Fio:            "fio",
		TimeoutSeconds: 300,
	}
}

// loadConfig reads the YAML config file at path, falling back to
// .fioverify.yaml in the working directory, falling back to defaults.
// A named file that does not exist is an error; the implicit default
// file is allowed to be absent.
func loadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	implicit := path == ""
	if implicit {
		path = defaultConfigFile
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if implicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", c.TimeoutSeconds)
	}
	if c.Fio == "" {
		return errors.New("fio path must not be empty")
	}
	if len(c.Checksums) > 0 {
		if _, err := matrix.ParseChecksums(c.Checksums); err != nil {
			return err
		}
	}
	return nil
}
