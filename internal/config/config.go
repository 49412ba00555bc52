package config

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Config holds the resolved application configuration.
type Config struct {
	// GitPath is the git executable; empty means PATH lookup.
	GitPath string `mapstructure:"git_path"`
	// CommandTimeout bounds every single git invocation.
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	// StrictParsing turns malformed git output into failures instead of
	// skipped lines.
	StrictParsing bool `mapstructure:"strict_parsing"`
	// ProtectedBranches are never rebased or force-pushed without --force.
	ProtectedBranches []string `mapstructure:"protected_branches"`
	// WatchDebounce coalesces bursts of .git changes in the dashboard.
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
	// CacheTTL is how long the dashboard reuses a state query.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	LogLevel string        `mapstructure:"log_level"`
	// LogFile receives JSON logs; empty logs to stderr.
	LogFile string `mapstructure:"log_file"`
}

// IsProtected reports whether branch is listed in ProtectedBranches.
func (c *Config) IsProtected(branch string) bool {
	return slices.Contains(c.ProtectedBranches, branch)
}

// Load reads configuration from file, or from ~/.config/gitstate/config.yaml
// when file is empty. Environment variables prefixed GITSTATE_ override both.
func Load(file string) (*Config, error) {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(Directory())
	}

	setDefaults(v)

	v.SetEnvPrefix("GITSTATE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Missing config file: use defaults.
		var notFound viper.ConfigFileNotFoundError
		if !cerr.As(err, &notFound) {
			return nil, cerr.Wrap(err, "reading config")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, cerr.Wrap(err, "decoding config")
	}
	if cfg.CommandTimeout <= 0 {
		return nil, cerr.Newf("command_timeout must be positive, got %s", cfg.CommandTimeout)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("git_path", "")
	v.SetDefault("command_timeout", 30*time.Second)
	v.SetDefault("strict_parsing", false)
	v.SetDefault("protected_branches", []string{"main", "master"})
	v.SetDefault("watch_debounce", 300*time.Millisecond)
	v.SetDefault("cache_ttl", 2*time.Second)
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_file", "")
}

// Directory is the per-user config directory, honouring XDG_CONFIG_HOME.
func Directory() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gitstate")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "gitstate")
}
