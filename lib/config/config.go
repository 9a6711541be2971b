// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for an Atrium process.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Central configures the shared cross-node broker.
	Central BrokerConfig `yaml:"central"`

	// Local configures the node-private broker.
	Local BrokerConfig `yaml:"local"`

	// Catalog configures the capability catalog database.
	Catalog CatalogConfig `yaml:"catalog"`

	// Station configures this node's external identity.
	Station StationConfig `yaml:"station"`

	// Timeouts configures supervision deadlines.
	Timeouts TimeoutsConfig `yaml:"timeouts"`

	// Per-environment overrides, applied after the base values.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the sections that can be overridden per
// environment.
type Overrides struct {
	Paths   *PathsConfig   `yaml:"paths,omitempty"`
	Central *BrokerConfig  `yaml:"central,omitempty"`
	Local   *BrokerConfig  `yaml:"local,omitempty"`
	Catalog *CatalogConfig `yaml:"catalog,omitempty"`
	Station *StationConfig `yaml:"station,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for Atrium data.
	Root string `yaml:"root"`

	// State is where runtime state is stored.
	State string `yaml:"state"`
}

// BrokerConfig configures one Redis-backed broker pool.
type BrokerConfig struct {
	// Address is the host:port of the Redis server.
	Address string `yaml:"address"`

	// Password is the server password, empty for none.
	Password string `yaml:"password"`

	// Database is the Redis database number.
	Database int `yaml:"database"`
}

// CatalogConfig configures the capability catalog database.
type CatalogConfig struct {
	// Path is the SQLite database file.
	// Default: ${ATRIUM_ROOT}/catalog.db
	Path string `yaml:"path"`

	// PoolSize is the connection pool size. Zero means the pool's
	// default.
	PoolSize int `yaml:"pool_size"`
}

// StationConfig configures this node's external identity.
type StationConfig struct {
	// Participant is this node's address on the dialog channels.
	Participant string `yaml:"participant"`

	// Quiet suppresses audible/attention-getting responses for
	// sessions created on this station.
	Quiet bool `yaml:"quiet"`

	// Debug enables diagnostic decoding of foreign dialog traffic.
	// Never enable in production; the logs include other stations'
	// message bodies.
	Debug bool `yaml:"debug"`
}

// TimeoutsConfig configures supervision deadlines as duration strings
// ("30s", "2m"). Use [TimeoutsConfig.Parse] for the parsed form.
type TimeoutsConfig struct {
	// Startup bounds the wait for all rooms to report healthy.
	// Default: 30s
	Startup string `yaml:"startup"`

	// Shutdown bounds the wait for rooms to stop before forced
	// cancellation. Default: 15s
	Shutdown string `yaml:"shutdown"`

	// Collect bounds the what-capabilities collection phase.
	// Default: 10s
	Collect string `yaml:"collect"`
}

// Timeouts is the parsed form of TimeoutsConfig.
type Timeouts struct {
	Startup  time.Duration
	Shutdown time.Duration
	Collect  time.Duration
}

// Parse converts the duration strings. Fails on any unparseable value.
func (t TimeoutsConfig) Parse() (Timeouts, error) {
	var parsed Timeouts
	var err error
	if parsed.Startup, err = time.ParseDuration(t.Startup); err != nil {
		return Timeouts{}, fmt.Errorf("timeouts.startup: %w", err)
	}
	if parsed.Shutdown, err = time.ParseDuration(t.Shutdown); err != nil {
		return Timeouts{}, fmt.Errorf("timeouts.shutdown: %w", err)
	}
	if parsed.Collect, err = time.ParseDuration(t.Collect); err != nil {
		return Timeouts{}, fmt.Errorf("timeouts.collect: %w", err)
	}
	return parsed, nil
}

// Default returns the default configuration. These defaults ensure
// every field has a sensible zero-value base before the file is
// loaded; the config file itself is still required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "atrium")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:  defaultRoot,
			State: filepath.Join(defaultRoot, "state"),
		},
		Central: BrokerConfig{
			Address: "localhost:6379",
		},
		Local: BrokerConfig{
			Address:  "localhost:6379",
			Database: 1,
		},
		Catalog: CatalogConfig{
			Path: filepath.Join(defaultRoot, "catalog.db"),
		},
		Station: StationConfig{
			Participant: "station-dev",
		},
		Timeouts: TimeoutsConfig{
			Startup:  "30s",
			Shutdown: "15s",
			Collect:  "10s",
		},
	}
}

// Load loads configuration from the ATRIUM_CONFIG environment
// variable. There are no fallbacks: if it is not set, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv("ATRIUM_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("ATRIUM_CONFIG environment variable not set; " +
			"set it to the path of your atrium.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The file is
// the single source of truth; environment variables do not override
// values. The only expansion performed is ${VAR} substitution in path
// fields for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching
// c.Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		// Production hardening applies even without an explicit
		// override section.
		if c.Environment == Production {
			c.Station.Debug = false
		}
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.State != "" {
			c.Paths.State = overrides.Paths.State
		}
	}
	if overrides.Central != nil {
		applyBrokerOverride(&c.Central, overrides.Central)
	}
	if overrides.Local != nil {
		applyBrokerOverride(&c.Local, overrides.Local)
	}
	if overrides.Catalog != nil {
		if overrides.Catalog.Path != "" {
			c.Catalog.Path = overrides.Catalog.Path
		}
		if overrides.Catalog.PoolSize != 0 {
			c.Catalog.PoolSize = overrides.Catalog.PoolSize
		}
	}
	if overrides.Station != nil {
		if overrides.Station.Participant != "" {
			c.Station.Participant = overrides.Station.Participant
		}
		// Booleans always apply from an explicit override section.
		c.Station.Quiet = overrides.Station.Quiet
		c.Station.Debug = overrides.Station.Debug
	}

	if c.Environment == Production {
		c.Station.Debug = false
	}
}

func applyBrokerOverride(base *BrokerConfig, override *BrokerConfig) {
	if override.Address != "" {
		base.Address = override.Address
	}
	if override.Password != "" {
		base.Password = override.Password
	}
	if override.Database != 0 {
		base.Database = override.Database
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"ATRIUM_ROOT": c.Paths.Root,
		"HOME":        os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["ATRIUM_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Catalog.Path = expandVars(c.Catalog.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Central.Address == "" {
		errs = append(errs, fmt.Errorf("central.address is required"))
	}
	if c.Local.Address == "" {
		errs = append(errs, fmt.Errorf("local.address is required"))
	}
	if c.Catalog.Path == "" {
		errs = append(errs, fmt.Errorf("catalog.path is required"))
	}
	if c.Station.Participant == "" {
		errs = append(errs, fmt.Errorf("station.participant is required"))
	}
	if _, err := c.Timeouts.Parse(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Root, c.Paths.State} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
