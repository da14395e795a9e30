package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/bigkevmcd/gitlab-polling/pkg/connections"
	"github.com/bigkevmcd/gitlab-polling/pkg/gitlab"
	"github.com/bigkevmcd/gitlab-polling/pkg/polling"
)

const (
	// DefaultRuns bounds a session when the file does not set a budget.
	DefaultRuns = 10
	// DefaultInterval separates cycles when the file does not set one.
	DefaultInterval = 60 * time.Second
)

// Duration wraps time.Duration to accept values like "60s" in YAML.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("failed to parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Config is the file-based configuration for the poller binary.
type Config struct {
	// Connection names the connection that is resolved for the GitLab
	// host and credential.
	Connection string `yaml:"connection" validate:"required"`
	// Targets maps repository identifiers to branch names.
	Targets map[string]string `yaml:"targets" validate:"required,min=1"`
	// Since is the ISO 8601 timestamp commits are checked against.
	Since string `yaml:"since"`
	// Runs bounds the number of polling cycles in a session.
	Runs int `yaml:"runs" validate:"gte=1"`
	// Interval is the wait between cycles.
	Interval Duration `yaml:"interval"`
	// Timeout bounds each commit query.
	Timeout Duration `yaml:"timeout"`
	// Filter is an optional CEL expression applied to each commit.
	Filter string `yaml:"filter"`
	// WebhookURL receives one change event per changed repository.
	WebhookURL string `yaml:"webhookURL" validate:"omitempty,url"`
	// StateFile, when set, persists the session between restarts.
	StateFile string `yaml:"stateFile"`
}

// Load reads, defaults and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration from %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	return cfg, nil
}

// Parse unmarshals, defaults and validates a configuration.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	cfg.applyDefaults()
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Spec returns the polling session parameters for the configuration.
func (c *Config) Spec() polling.Spec {
	return polling.Spec{
		Targets:  c.Targets,
		Since:    c.Since,
		MaxRuns:  c.Runs,
		Interval: c.Interval.Duration,
		Filter:   c.Filter,
	}
}

func (c *Config) applyDefaults() {
	if c.Connection == "" {
		c.Connection = connections.DefaultConnectionID
	}
	if c.Runs == 0 {
		c.Runs = DefaultRuns
	}
	if c.Interval.Duration == 0 {
		c.Interval.Duration = DefaultInterval
	}
	if c.Timeout.Duration == 0 {
		c.Timeout.Duration = gitlab.DefaultTimeout
	}
}
