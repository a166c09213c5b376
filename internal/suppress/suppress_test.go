package suppress

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestLoadRules_NoFile(t *testing.T) {
	rules, err := LoadRules(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(rules.Names()) != 0 {
		t.Error("expected empty rules")
	}
}

func TestLoadRules_ValidFile(t *testing.T) {
	dir := t.TempDir()
	content := `opt_outs:
  - check: CacheBinsAll
    reason: "Memcache holds every bin"
  - check: watchdog
    reason: "Logs ship to syslog"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got := rules.Names(); !slices.Equal(got, []string{"CacheBinsAll", "watchdog"}) {
		t.Fatalf("Names() = %v", got)
	}
	if got := rules.Reason("watchdog"); got != "Logs ship to syslog" {
		t.Errorf("Reason(watchdog) = %q", got)
	}
	if got := rules.Reason("cron"); got != "" {
		t.Errorf("Reason(cron) = %q, want empty", got)
	}
}

func TestLoadRules_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("{{invalid"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadRules(dir)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadRules_MissingCheck(t *testing.T) {
	dir := t.TempDir()
	content := "opt_outs:\n  - reason: forgot the name\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadRules(dir); err == nil {
		t.Error("expected error for entry without check")
	}
}

func TestNames_MergesConfig(t *testing.T) {
	rules := &Rules{
		ignoreFile: IgnoreFile{OptOuts: []OptOut{{Check: "CronLast"}, {Check: " views "}}},
	}
	rules.WithConfigOptOuts([]string{"views", "", "UsersRolesList"})

	want := []string{"CronLast", "views", "UsersRolesList"}
	if got := rules.Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestExclusions(t *testing.T) {
	rules := &Rules{ignoreFile: IgnoreFile{OptOuts: []OptOut{{Check: "CacheBinsAll"}}}}
	rules.WithConfigOptOuts([]string{"watchdog"})

	set := rules.Exclusions("cron_last,UsersCountAll")

	tests := []struct {
		short, id, category string
		want                bool
	}{
		{"CacheBinsAll", "cache_bins_all", "cache", true},
		{"WatchdogAge", "watchdog_age", "watchdog", true},
		{"CronLast", "cron_last", "cron", true},
		{"UsersCountAll", "users_count_all", "users", true},
		{"CronEnabled", "cron_enabled", "cron", false},
		// No substring matching.
		{"CacheBinsAllExtra", "cache_bins_all_extra", "cache_extra", false},
	}
	for _, tt := range tests {
		if got := set.Excludes(tt.short, tt.id, tt.category); got != tt.want {
			t.Errorf("Excludes(%s) = %v, want %v", tt.short, got, tt.want)
		}
	}
	if set.Len() != 4 {
		t.Errorf("Len() = %d, want 4", set.Len())
	}
}

func TestUnmatched(t *testing.T) {
	rules := &Rules{}
	rules.WithConfigOptOuts([]string{"CacheBinsAll", "NoSuchCheck", "cache"})

	known := map[string]bool{"CacheBinsAll": true, "cache": true}
	got := rules.Unmatched(func(n string) bool { return known[n] })
	if !slices.Equal(got, []string{"NoSuchCheck"}) {
		t.Errorf("Unmatched() = %v", got)
	}
}
