//go:build integration

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/ppiankov/siteaudit/internal/audit"
	"github.com/ppiankov/siteaudit/internal/reporter"
	"github.com/ppiankov/siteaudit/internal/testutil"
)

// connStr is set by TestMain and shared across all integration tests.
var connStr string

func TestMain(m *testing.M) {
	cs, cleanup, err := testutil.Setup()
	if err != nil {
		fmt.Println("skipping integration tests:", err)
		os.Exit(0)
	}
	connStr = cs
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func runJSON(t *testing.T, args ...string) audit.Aggregate {
	t.Helper()
	stdout, stderr, err := runCmd(t, args...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, stderr)
	}
	if errs, err := reporter.Validate([]byte(stdout)); err != nil || len(errs) > 0 {
		t.Fatalf("schema: %v %v", errs, err)
	}
	var agg audit.Aggregate
	if err := json.Unmarshal([]byte(stdout), &agg); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	return agg
}

func TestIntegration_Database(t *testing.T) {
	isolate(t)
	agg := runJSON(t, "database", "--db-url", connStr)

	rep, ok := agg.Report("SiteAuditReportDatabase")
	if !ok {
		t.Fatal("missing database report")
	}
	size, ok := rep.Check("SiteAuditCheckDatabaseSize")
	if !ok {
		t.Fatal("missing size check")
	}
	if !strings.HasPrefix(size.Result, "Total size: ") {
		t.Errorf("size result = %q", size.Result)
	}
}

func TestIntegration_Users(t *testing.T) {
	isolate(t)
	agg := runJSON(t, "users", "--db-url", connStr)

	rep, ok := agg.Report("SiteAuditReportUsers")
	if !ok {
		t.Fatal("missing users report")
	}
	for _, key := range []string{"SiteAuditCheckUsersCountAll", "SiteAuditCheckUsersCountBlocked", "SiteAuditCheckUsersRolesList"} {
		c, ok := rep.Check(key)
		if !ok {
			t.Errorf("missing %s", key)
			continue
		}
		if strings.HasPrefix(c.Result, "Unable to determine") {
			t.Errorf("%s was not determined: %s", key, c.Result)
		}
	}
}

func TestIntegration_Reports_Text(t *testing.T) {
	isolate(t)
	stdout, _, err := runCmd(t, "reports", "--db-url", connStr, "--format", "text")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Database: ", "Users: ", "Summary: "} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output, got:\n%s", want, stdout)
		}
	}
}
