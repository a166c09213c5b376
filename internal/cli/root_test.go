package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adrg/xdg"
)

// isolate keeps user config and a real drush out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	xdg.Reload()
	t.Cleanup(xdg.Reload)
	t.Setenv("SITE_AUDIT_DRUSH", filepath.Join(t.TempDir(), "no-drush"))
	t.Setenv("SITE_AUDIT_DB_URL", "")
	t.Setenv("SITE_AUDIT_ROOT", "")
	t.Setenv("NO_COLOR", "1")
}

// runCmd executes a CLI command and returns stdout, stderr and the error.
func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd(BuildInfo{Version: "test", Commit: "abc123", Date: "today"})
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersionCmd(t *testing.T) {
	isolate(t)
	stdout, _, err := runCmd(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "site-audit test (commit abc123, built today)\n" {
		t.Errorf("got %q", stdout)
	}
}

func TestReportsCmd_InvalidDBURL_ErrorIsGraceful(t *testing.T) {
	isolate(t)
	stdout, _, err := runCmd(t, "reports", "--db-url", "not-a-url")
	if err == nil {
		t.Fatal("expected connection error")
	}
	if strings.Contains(err.Error(), "connect: connect:") {
		t.Fatalf("unexpected duplicated prefix: %v", err)
	}
	if !strings.Contains(err.Error(), "connect: cannot parse `not-a-url`") {
		t.Fatalf("unexpected error: %v", err)
	}
	if stdout != "" {
		t.Errorf("nothing should be written on a fatal error, got %q", stdout)
	}
}

func TestValidateCmd(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(good, []byte(`{"time":1,"reports":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	stdout, _, err := runCmd(t, "validate", good)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(stdout, "good.json: valid\n") {
		t.Errorf("got %q", stdout)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"time":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, stderr, err := runCmd(t, "validate", bad)
	var ee *ExitError
	if !errors.As(err, &ee) || ee.Code != 1 {
		t.Fatalf("expected exit 1, got %v", err)
	}
	if !strings.Contains(stderr, "/:") {
		t.Errorf("expected a violation on stderr, got %q", stderr)
	}
}

func TestValidateCmd_RequiresFile(t *testing.T) {
	isolate(t)
	if _, _, err := runCmd(t, "validate"); err == nil {
		t.Error("expected argument error")
	}
}

func TestUnknownLogFormat(t *testing.T) {
	isolate(t)
	if _, _, err := runCmd(t, "version", "--log-format", "xml"); err == nil {
		t.Error("expected error for unknown log format")
	}
}

func TestExitError(t *testing.T) {
	err := &ExitError{Code: 2}
	if err.Error() != "exit status 2" {
		t.Errorf("got %q", err.Error())
	}
}

func TestTarget(t *testing.T) {
	tests := []struct {
		name string
		app  app
		want string
	}{
		{"uri first", app{uri: "https://example.com", dbURL: "postgres://db", root: "/var/www"}, "https://example.com"},
		{"then database", app{dbURL: "postgres://db", root: "/var/www"}, "postgres://db"},
		{"then root", app{root: "/var/www"}, "/var/www"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.app.target(); got != tt.want {
				t.Errorf("target() = %q, want %q", got, tt.want)
			}
		})
	}
}
