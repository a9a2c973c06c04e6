// Package config handles configuration loading and validation for steward.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "5m"
// or "90s".
type Duration time.Duration

// Std converts to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// WatchConfig selects and tunes the input watchers.
type WatchConfig struct {
	// Folder is the drop folder scanned for new files. Empty disables the
	// folder watcher.
	Folder string `yaml:"folder"`
	// Include and Ignore are glob patterns relative to Folder.
	Include []string `yaml:"include"`
	Ignore  []string `yaml:"ignore"`

	// EmailSpool is the JSON spool file of inbound mail. Empty disables
	// the email watcher.
	EmailSpool string `yaml:"email_spool"`
	// SocialFeed is the JSON feed file of social events. Empty disables
	// the social watcher.
	SocialFeed string `yaml:"social_feed"`
}

// ExecutorConfig selects how approved actions are performed.
type ExecutorConfig struct {
	// Endpoint is the effector URL approved actions are posted to. Empty
	// together with DryRun false is a validation error.
	Endpoint string `yaml:"endpoint"`
	// DryRun reports every action as would_execute instead of performing it.
	DryRun bool `yaml:"dry_run"`
	// Timeout bounds a single execution attempt.
	Timeout Duration `yaml:"timeout"`
}

// ScheduleConfig tunes the run loop.
type ScheduleConfig struct {
	// CycleEvery is the processing cycle interval.
	CycleEvery Duration `yaml:"cycle_every"`
	// BriefingAt is the daily briefing time of day, "15:04" UTC.
	BriefingAt string `yaml:"briefing_at"`
	// ExpirySweep is how often pending approvals are checked for expiry.
	ExpirySweep Duration `yaml:"expiry_sweep"`
	// ApprovalTTL is how long a new approval request stays fresh before it
	// is reported as expired.
	ApprovalTTL Duration `yaml:"approval_ttl"`
}

// Config holds the application configuration.
type Config struct {
	// Vault is the root directory of the vault. Set by flag, not from the
	// config file.
	Vault string `yaml:"-"`

	Watch    WatchConfig    `yaml:"watch"`
	Executor ExecutorConfig `yaml:"executor"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Watch: WatchConfig{
			Ignore: []string{"**/.*"},
		},
		Executor: ExecutorConfig{
			DryRun:  true,
			Timeout: Duration(60 * time.Second),
		},
		Schedule: ScheduleConfig{
			CycleEvery:  Duration(5 * time.Minute),
			BriefingAt:  "08:00",
			ExpirySweep: Duration(time.Hour),
			ApprovalTTL: Duration(24 * time.Hour),
		},
	}
}

// Load reads configuration from the given path and sets the vault root.
// If configPath is empty or doesn't exist, returns defaults with the
// provided vault.
func Load(configPath, vaultPath string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Vault = vaultPath

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
			cfg.Vault = vaultPath
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Executor.Timeout == 0 {
		c.Executor.Timeout = defaults.Executor.Timeout
	}
	if c.Schedule.CycleEvery == 0 {
		c.Schedule.CycleEvery = defaults.Schedule.CycleEvery
	}
	if c.Schedule.BriefingAt == "" {
		c.Schedule.BriefingAt = defaults.Schedule.BriefingAt
	}
	if c.Schedule.ExpirySweep == 0 {
		c.Schedule.ExpirySweep = defaults.Schedule.ExpirySweep
	}
	if c.Schedule.ApprovalTTL == 0 {
		c.Schedule.ApprovalTTL = defaults.Schedule.ApprovalTTL
	}
}
