package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", "/tmp/vault")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/vault", cfg.Vault)
	assert.True(t, cfg.Executor.DryRun)
	assert.Equal(t, Duration(5*time.Minute), cfg.Schedule.CycleEvery)
	assert.Equal(t, "08:00", cfg.Schedule.BriefingAt)
	assert.Equal(t, Duration(24*time.Hour), cfg.Schedule.ApprovalTTL)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steward.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
watch:
  folder: /drops
  include:
    - "**/*.pdf"
executor:
  endpoint: http://localhost:9911/actions
  dry_run: false
schedule:
  cycle_every: 1m
  briefing_at: "07:30"
`), 0o644))

	cfg, err := Load(path, "/tmp/vault")
	require.NoError(t, err)

	assert.Equal(t, "/drops", cfg.Watch.Folder)
	assert.Equal(t, []string{"**/*.pdf"}, cfg.Watch.Include)
	assert.False(t, cfg.Executor.DryRun)
	assert.Equal(t, "http://localhost:9911/actions", cfg.Executor.Endpoint)
	assert.Equal(t, Duration(time.Minute), cfg.Schedule.CycleEvery)
	assert.Equal(t, "07:30", cfg.Schedule.BriefingAt)

	// Unset values still get defaults.
	assert.Equal(t, Duration(time.Hour), cfg.Schedule.ExpirySweep)
	assert.Equal(t, Duration(60*time.Second), cfg.Executor.Timeout)
}

func TestLoad_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steward.yml")
	require.NoError(t, os.WriteFile(path, []byte("schedule:\n  cycle_every: soon\n"), 0o644))

	_, err := Load(path, "/tmp/vault")
	require.ErrorContains(t, err, "duration")
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"), "/tmp/vault")
	require.NoError(t, err)
	assert.True(t, cfg.Executor.DryRun)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults ok", func(*Config) {}, false},
		{"empty vault", func(c *Config) { c.Vault = "" }, true},
		{"live without endpoint", func(c *Config) { c.Executor.DryRun = false }, true},
		{"live with endpoint", func(c *Config) {
			c.Executor.DryRun = false
			c.Executor.Endpoint = "http://localhost:9911/actions"
		}, false},
		{"relative endpoint", func(c *Config) {
			c.Executor.DryRun = false
			c.Executor.Endpoint = "/actions"
		}, true},
		{"zero cycle interval", func(c *Config) { c.Schedule.CycleEvery = 0 }, true},
		{"bad briefing time", func(c *Config) { c.Schedule.BriefingAt = "8 o'clock" }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Vault = "/tmp/vault"
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateDeep(t *testing.T) {
	vaultDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Vault = vaultDir
	require.NoError(t, cfg.ValidateDeep())

	cfg.Watch.Folder = filepath.Join(vaultDir, "missing")
	require.Error(t, cfg.ValidateDeep())

	cfg.Watch.Folder = ""
	cfg.Vault = filepath.Join(vaultDir, "missing")
	require.Error(t, cfg.ValidateDeep())
}
