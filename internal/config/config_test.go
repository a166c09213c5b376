package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
)

// isolate points the user config directory at an empty temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	xdg.Reload()
	t.Cleanup(xdg.Reload)
	return home
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Drush != "drush" {
		t.Errorf("Drush = %q, want drush", cfg.Drush)
	}
	if cfg.Vendor != "default" {
		t.Errorf("Vendor = %q, want default", cfg.Vendor)
	}
	if cfg.Defaults.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Defaults.Format)
	}
	if cfg.Defaults.Timeout != "2m0s" {
		t.Errorf("Timeout = %q, want 2m0s", cfg.Defaults.Timeout)
	}
	if cfg.Defaults.CheckTimeout != "5s" {
		t.Errorf("CheckTimeout = %q, want 5s", cfg.Defaults.CheckTimeout)
	}
}

func TestLoad_NoFile(t *testing.T) {
	isolate(t)
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Path != "" {
		t.Errorf("Path = %q, want empty", cfg.Path)
	}
	if cfg.Drush != "drush" || cfg.Defaults.Format != "json" {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoad_FromDir(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	content := []byte(`
db_url: "postgres://drupal@localhost:5432/drupal"
root: /var/www/html/web
uri: https://example.com
vendor: pantheon
table_prefix: d8_
opt_out:
  - CacheBinsAll
  - watchdog
defaults:
  format: text
  timeout: "60s"
  check_timeout: "10s"
`)
	path := filepath.Join(dir, ".site-audit.yml")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Path != path {
		t.Errorf("Path = %q, want %q", cfg.Path, path)
	}
	if cfg.DBURL != "postgres://drupal@localhost:5432/drupal" {
		t.Errorf("DBURL = %q", cfg.DBURL)
	}
	if cfg.Root != "/var/www/html/web" || cfg.URI != "https://example.com" {
		t.Errorf("Root/URI = %q %q", cfg.Root, cfg.URI)
	}
	if cfg.Vendor != "pantheon" || cfg.TablePrefix != "d8_" {
		t.Errorf("Vendor/TablePrefix = %q %q", cfg.Vendor, cfg.TablePrefix)
	}
	if len(cfg.OptOut) != 2 || cfg.OptOut[0] != "CacheBinsAll" {
		t.Errorf("OptOut = %v", cfg.OptOut)
	}
	// Keys missing from the file keep their defaults.
	if cfg.Drush != "drush" {
		t.Errorf("Drush = %q, want drush", cfg.Drush)
	}
	if cfg.TimeoutDuration() != 60*time.Second {
		t.Errorf("TimeoutDuration = %v", cfg.TimeoutDuration())
	}
	if cfg.CheckTimeoutDuration() != 10*time.Second {
		t.Errorf("CheckTimeoutDuration = %v", cfg.CheckTimeoutDuration())
	}
}

func TestLoad_UserConfig(t *testing.T) {
	home := isolate(t)
	if err := os.MkdirAll(filepath.Join(home, AppName), 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(home, AppName, "config.yml")
	if err := os.WriteFile(path, []byte("uri: https://user.example.com\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Path != path {
		t.Errorf("Path = %q, want %q", cfg.Path, path)
	}
	if cfg.URI != "https://user.example.com" {
		t.Errorf("URI = %q", cfg.URI)
	}
}

func TestLoad_DirWinsOverUserConfig(t *testing.T) {
	home := isolate(t)
	if err := os.MkdirAll(filepath.Join(home, AppName), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(home, AppName, "config.yml"), []byte("uri: user\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".site-audit.yml"), []byte("uri: project\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.URI != "project" {
		t.Errorf("URI = %q, want project", cfg.URI)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".site-audit.yml"), []byte("db_url: postgres://file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SITE_AUDIT_DB_URL", "postgres://env")
	t.Setenv("SITE_AUDIT_DEFAULTS_FORMAT", "sarif")
	t.Setenv("SITE_AUDIT_OPT_OUT", "CronLast,users")
	t.Setenv("SITE_AUDIT_SCHEMA", "drupal")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBURL != "postgres://env" {
		t.Errorf("DBURL = %q, want postgres://env", cfg.DBURL)
	}
	if cfg.Defaults.Format != "sarif" {
		t.Errorf("Format = %q, want sarif", cfg.Defaults.Format)
	}
	if len(cfg.OptOut) != 2 || cfg.OptOut[1] != "users" {
		t.Errorf("OptOut = %v", cfg.OptOut)
	}
	if cfg.Schema != "drupal" {
		t.Errorf("Schema = %q, want drupal", cfg.Schema)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".site-audit.yml"), []byte("{{invalid"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestTimeoutDuration(t *testing.T) {
	tests := []struct {
		name    string
		timeout string
		want    time.Duration
	}{
		{"valid 60s", "60s", 60 * time.Second},
		{"valid 5m", "5m", 5 * time.Minute},
		{"empty", "", 2 * time.Minute},
		{"invalid", "notaduration", 2 * time.Minute},
		{"negative", "-1s", 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Defaults: Defaults{Timeout: tt.timeout}}
			if got := cfg.TimeoutDuration(); got != tt.want {
				t.Errorf("TimeoutDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckTimeoutDuration(t *testing.T) {
	cfg := Config{}
	if got := cfg.CheckTimeoutDuration(); got != 5*time.Second {
		t.Errorf("CheckTimeoutDuration() = %v, want 5s", got)
	}
	cfg.Defaults.CheckTimeout = "250ms"
	if got := cfg.CheckTimeoutDuration(); got != 250*time.Millisecond {
		t.Errorf("CheckTimeoutDuration() = %v, want 250ms", got)
	}
}
