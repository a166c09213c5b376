package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// AppName names the per-user config directory.
const AppName = "site-audit"

// EnvPrefix is prepended to every environment override, e.g.
// SITE_AUDIT_DB_URL or SITE_AUDIT_DEFAULTS_FORMAT.
const EnvPrefix = "SITE_AUDIT"

// Config holds all site-audit configuration.
type Config struct {
	DBURL       string   `mapstructure:"db_url"`
	Root        string   `mapstructure:"root"` // Drupal web root
	URI         string   `mapstructure:"uri"`
	Drush       string   `mapstructure:"drush"` // drush binary
	Vendor      string   `mapstructure:"vendor"`
	TablePrefix string   `mapstructure:"table_prefix"`
	Schema      string   `mapstructure:"schema"` // PostgreSQL schema holding the Drupal tables
	OptOut      []string `mapstructure:"opt_out"` // persisted check opt-outs
	Defaults    Defaults `mapstructure:"defaults"`

	// Path is the config file that was read, empty when none was found.
	Path string `mapstructure:"-"`
}

// Defaults holds default CLI flag values.
type Defaults struct {
	Format       string `mapstructure:"format"`
	Timeout      string `mapstructure:"timeout"`       // whole run
	CheckTimeout string `mapstructure:"check_timeout"` // each check
}

const (
	defaultTimeout      = 2 * time.Minute
	defaultCheckTimeout = 5 * time.Second
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Drush:  "drush",
		Vendor: "default",
		Defaults: Defaults{
			Format:       "json",
			Timeout:      defaultTimeout.String(),
			CheckTimeout: defaultCheckTimeout.String(),
		},
	}
}

// Paths returns the config files Load looks for, in order of precedence.
func Paths(dir string) []string {
	return []string{
		filepath.Join(dir, ".site-audit.yml"),
		filepath.Join(xdg.ConfigHome, AppName, "config.yml"),
	}
}

// Load reads configuration from .site-audit.yml in the given directory,
// falling back to $XDG_CONFIG_HOME/site-audit/config.yml. Environment
// variables prefixed with SITE_AUDIT_ override file values. Returns
// DefaultConfig, with overrides applied, if no file is found.
func Load(dir string) (Config, error) {
	v := newViper()

	var path string
	for _, p := range Paths(dir) {
		if _, err := os.Stat(p); err == nil {
			path = p
			break
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return DefaultConfig(), errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return DefaultConfig(), errors.Wrap(err, "decode config")
	}
	cfg.Path = path
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default for AutomaticEnv to reach it in Unmarshal.
	d := DefaultConfig()
	v.SetDefault("db_url", d.DBURL)
	v.SetDefault("root", d.Root)
	v.SetDefault("uri", d.URI)
	v.SetDefault("drush", d.Drush)
	v.SetDefault("vendor", d.Vendor)
	v.SetDefault("table_prefix", d.TablePrefix)
	v.SetDefault("schema", d.Schema)
	v.SetDefault("opt_out", []string{})
	v.SetDefault("defaults.format", d.Defaults.Format)
	v.SetDefault("defaults.timeout", d.Defaults.Timeout)
	v.SetDefault("defaults.check_timeout", d.Defaults.CheckTimeout)
	return v
}

// TimeoutDuration parses Defaults.Timeout. Returns 2m if parsing fails.
func (c *Config) TimeoutDuration() time.Duration {
	return parseDuration(c.Defaults.Timeout, defaultTimeout)
}

// CheckTimeoutDuration parses Defaults.CheckTimeout. Returns 5s if parsing
// fails.
func (c *Config) CheckTimeoutDuration() time.Duration {
	return parseDuration(c.Defaults.CheckTimeout, defaultCheckTimeout)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
