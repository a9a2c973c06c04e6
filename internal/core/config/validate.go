package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/hay-kot/criterio"
)

// Validate checks that the configuration is structurally valid. I/O checks
// live in ValidateDeep so Validate stays usable in tests and dry paths.
func (c *Config) Validate() error {
	return criterio.ValidateStruct(
		criterio.Run("vault", c.Vault, notEmpty),
		criterio.Run("executor.endpoint", c.Executor, executorTarget),
		criterio.Run("executor.timeout", c.Executor.Timeout, positiveDuration),
		criterio.Run("schedule.cycle_every", c.Schedule.CycleEvery, positiveDuration),
		criterio.Run("schedule.expiry_sweep", c.Schedule.ExpirySweep, positiveDuration),
		criterio.Run("schedule.approval_ttl", c.Schedule.ApprovalTTL, positiveDuration),
		criterio.Run("schedule.briefing_at", c.Schedule.BriefingAt, timeOfDay),
	)
}

// ValidateDeep adds filesystem checks on top of Validate: the vault root
// and watch folder must be directories when set.
func (c *Config) ValidateDeep() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return criterio.ValidateStruct(
		criterio.Run("vault", c.Vault, isDirectory),
		criterio.Run("watch.folder", c.Watch.Folder, isDirectoryOrEmpty),
	)
}

func notEmpty(s string) error {
	if s == "" {
		return fmt.Errorf("cannot be empty")
	}
	return nil
}

func positiveDuration(d Duration) error {
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func timeOfDay(s string) error {
	if _, err := time.Parse("15:04", s); err != nil {
		return fmt.Errorf("must be a 24h clock time like 08:00")
	}
	return nil
}

// executorTarget requires a real endpoint unless dry-run mode is on.
func executorTarget(e ExecutorConfig) error {
	if e.DryRun {
		return nil
	}
	if e.Endpoint == "" {
		return fmt.Errorf("required when dry_run is false")
	}
	u, err := url.Parse(e.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	return nil
}

func isDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

func isDirectoryOrEmpty(path string) error {
	if path == "" {
		return nil
	}
	return isDirectory(path)
}
