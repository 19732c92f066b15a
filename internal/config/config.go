// Package config loads the resident matcher configuration from YAML.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"resident-matcher/internal/common"
	"resident-matcher/internal/match"
	"resident-matcher/internal/resident"
)

// Config is the top-level configuration file.
type Config struct {
	Directory Directory `yaml:"directory"`
	Matching  Matching  `yaml:"matching"`
	Log       Log       `yaml:"log"`
}

// Directory locates the resident directory API.
type Directory struct {
	Scheme  string        `yaml:"scheme,omitempty"`
	Host    string        `yaml:"host,omitempty"`
	Port    int           `yaml:"port,omitempty"`
	Path    string        `yaml:"path,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Matching tunes candidate ranking.
type Matching struct {
	Threshold  int    `yaml:"threshold"`
	MaxResults int    `yaml:"max_results"`
	Policy     string `yaml:"policy,omitempty"`
}

// Log selects the log level.
type Log struct {
	Level string `yaml:"level,omitempty"`
}

var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		Matching: Matching{
			Threshold:  match.DefaultThreshold,
			MaxResults: match.DefaultMaxResults,
		},
	}
	applyDefaults(cfg)

	return cfg
}

// LoadFile loads and parses a YAML configuration file from the given path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse parses YAML data into a Config, expands ${VAR} references and
// validates the result.
func Parse(data []byte) (*Config, error) {
	// Unset keys keep their defaults; an explicit threshold of 0 is kept
	cfg := Default()

	err := yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	resolveEnvVars(cfg)
	applyDefaults(cfg)

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills in string and duration fields left empty after env expansion.
func applyDefaults(cfg *Config) {
	if cfg.Directory.Scheme == "" {
		cfg.Directory.Scheme = "http"
	}

	if cfg.Directory.Path == "" {
		cfg.Directory.Path = resident.DefaultPath
	}

	if cfg.Directory.Timeout <= 0 {
		cfg.Directory.Timeout = resident.DefaultTimeout
	}

	if cfg.Matching.Policy == "" {
		cfg.Matching.Policy = match.PolicyFirstMatch.String()
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate checks value ranges. A missing directory host is not an error here;
// it is reported when a search tries to resolve the endpoint.
func (c *Config) Validate() error {
	if !common.InRange(c.Matching.Threshold, 0, 100) {
		return fmt.Errorf("matching.threshold must be within 0-100, got %d", c.Matching.Threshold)
	}

	if c.Matching.MaxResults <= 0 {
		return fmt.Errorf("matching.max_results must be positive, got %d", c.Matching.MaxResults)
	}

	if _, ok := match.ParsePolicy(c.Matching.Policy); !ok {
		return fmt.Errorf("matching.policy must be \"first\" or \"best\", got %q", c.Matching.Policy)
	}

	return nil
}

// Endpoint returns the directory endpoint.
func (d Directory) Endpoint() resident.Endpoint {
	return resident.Endpoint{
		Scheme: d.Scheme,
		Host:   d.Host,
		Port:   d.Port,
		Path:   d.Path,
	}
}

// Options returns the ranking options.
func (m Matching) Options() match.Options {
	policy, _ := match.ParsePolicy(m.Policy)

	return match.Options{
		Threshold:  m.Threshold,
		MaxResults: m.MaxResults,
		Policy:     policy,
	}
}

// resolveEnvVars expands ${VAR} patterns in string fields.
func resolveEnvVars(cfg *Config) {
	cfg.Directory.Scheme = expandEnv(cfg.Directory.Scheme)
	cfg.Directory.Host = expandEnv(cfg.Directory.Host)
	cfg.Directory.Path = expandEnv(cfg.Directory.Path)
	cfg.Matching.Policy = expandEnv(cfg.Matching.Policy)
	cfg.Log.Level = expandEnv(cfg.Log.Level)
}

// expandEnv replaces ${VAR} with os.Getenv(VAR). Unset vars become "".
func expandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}

	return envVarPattern.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(m)[1])
	})
}
