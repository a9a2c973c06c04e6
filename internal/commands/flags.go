package commands

import (
	"os"
	"path/filepath"

	"github.com/hay-kot/steward/internal/core/config"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	VaultPath  string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "steward", "config.yaml")
}

// DefaultVaultPath returns the default vault location.
func DefaultVaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Steward_Vault")
}

// DefaultLogFile returns the default log file path using the system's state directory.
func DefaultLogFile() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, _ := os.UserHomeDir()
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, "steward", "steward.log")
}
