// Package config merges the layered configuration surface into the flat
// view the verification core consumes: defaults, then the global config
// file, then the project config file, then environment variables. Flags
// are applied last by the CLI layer.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ProjectFile is the per-project configuration file name.
const ProjectFile = ".starkverify.toml"

// Config is the fully merged configuration. The core packages receive
// values from here and never learn which layer supplied them.
type Config struct {
	// Network selects a well-known verification endpoint. Mutually
	// exclusive with URL.
	Network string
	// URL is a custom verification endpoint.
	URL string

	License        string
	DefaultPackage string
	ProjectType    string

	IncludeLock  bool
	IncludeTests bool

	FailFast       bool
	InterItemDelay time.Duration

	HistoryBackend     string
	HistoryPath        string
	HistoryPostgresURL string

	// Contracts are the batch items declared in the project file.
	Contracts []Contract
}

// Contract is one [[contracts]] entry of the project file.
type Contract struct {
	ClassHash    string `toml:"class-hash"`
	ContractName string `toml:"contract-name"`
	Package      string `toml:"package"`
}

// fileSettings is the shape shared by the [starkverify] table of the
// project file and the global YAML file. Pointer fields distinguish
// "unset" from zero values so lower layers survive the merge.
type fileSettings struct {
	Network        *string `toml:"network" yaml:"network"`
	URL            *string `toml:"url" yaml:"url"`
	License        *string `toml:"license" yaml:"license"`
	DefaultPackage *string `toml:"default-package" yaml:"default-package"`
	ProjectType    *string `toml:"project-type" yaml:"project-type"`
	IncludeLock    *bool   `toml:"include-lock" yaml:"include-lock"`
	IncludeTests   *bool   `toml:"include-tests" yaml:"include-tests"`
	FailFast       *bool   `toml:"fail-fast" yaml:"fail-fast"`
	DelaySeconds   *int    `toml:"delay-seconds" yaml:"delay-seconds"`

	History struct {
		Backend     *string `toml:"backend" yaml:"backend"`
		Path        *string `toml:"path" yaml:"path"`
		PostgresURL *string `toml:"postgres-url" yaml:"postgres-url"`
	} `toml:"history" yaml:"history"`
}

// envSettings are the STARKVERIFY_* overrides.
type envSettings struct {
	Network            *string `env:"NETWORK"`
	URL                *string `env:"URL"`
	License            *string `env:"LICENSE"`
	DefaultPackage     *string `env:"DEFAULT_PACKAGE"`
	ProjectType        *string `env:"PROJECT_TYPE"`
	IncludeLock        *bool   `env:"INCLUDE_LOCK"`
	IncludeTests       *bool   `env:"INCLUDE_TESTS"`
	HistoryBackend     *string `env:"HISTORY_BACKEND"`
	HistoryPath        *string `env:"HISTORY_PATH"`
	HistoryPostgresURL *string `env:"DATABASE_URL"`
}

// projectFile is the full shape of .starkverify.toml.
type projectFile struct {
	Starkverify fileSettings `toml:"starkverify"`
	Contracts   []Contract   `toml:"contracts"`
}

// GlobalPath returns the per-user config file location.
func GlobalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".starkverify", "config.yaml")
	}
	return filepath.Join(home, ".starkverify", "config.yaml")
}

// Load builds the merged configuration for a project root. Missing
// config files are not errors; malformed ones are.
func Load(root string) (*Config, error) {
	cfg := &Config{Network: DefaultNetwork}

	if err := applyYAMLFile(cfg, GlobalPath()); err != nil {
		return nil, err
	}
	if err := applyProjectFile(cfg, filepath.Join(root, ProjectFile)); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyYAMLFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	var s fileSettings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	applySettings(cfg, &s)
	return nil
}

func applyProjectFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	var pf projectFile
	if err := toml.Unmarshal(raw, &pf); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	applySettings(cfg, &pf.Starkverify)
	cfg.Contracts = pf.Contracts
	return nil
}

func applySettings(cfg *Config, s *fileSettings) {
	setString(&cfg.Network, s.Network)
	// A custom URL in a higher layer replaces the network selection.
	if s.URL != nil && *s.URL != "" {
		cfg.URL = *s.URL
		cfg.Network = ""
	}
	setString(&cfg.License, s.License)
	setString(&cfg.DefaultPackage, s.DefaultPackage)
	setString(&cfg.ProjectType, s.ProjectType)
	setBool(&cfg.IncludeLock, s.IncludeLock)
	setBool(&cfg.IncludeTests, s.IncludeTests)
	setBool(&cfg.FailFast, s.FailFast)
	if s.DelaySeconds != nil {
		cfg.InterItemDelay = time.Duration(*s.DelaySeconds) * time.Second
	}
	setString(&cfg.HistoryBackend, s.History.Backend)
	setString(&cfg.HistoryPath, s.History.Path)
	setString(&cfg.HistoryPostgresURL, s.History.PostgresURL)
}

func applyEnv(cfg *Config) error {
	var e envSettings
	if err := env.ParseWithOptions(&e, env.Options{Prefix: "STARKVERIFY_"}); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	setString(&cfg.Network, e.Network)
	if e.URL != nil && *e.URL != "" {
		cfg.URL = *e.URL
		cfg.Network = ""
	}
	setString(&cfg.License, e.License)
	setString(&cfg.DefaultPackage, e.DefaultPackage)
	setString(&cfg.ProjectType, e.ProjectType)
	setBool(&cfg.IncludeLock, e.IncludeLock)
	setBool(&cfg.IncludeTests, e.IncludeTests)
	setString(&cfg.HistoryBackend, e.HistoryBackend)
	setString(&cfg.HistoryPath, e.HistoryPath)
	setString(&cfg.HistoryPostgresURL, e.HistoryPostgresURL)
	return nil
}

func setString(dst *string, src *string) {
	if src != nil && *src != "" {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
