package cli

import (
	"reflect"
	"testing"

	"github.com/ppiankov/siteaudit/internal/audit"
)

func gateAggregate() audit.Aggregate {
	return audit.Aggregate{
		Time: 1,
		Reports: []audit.Report{
			{Key: "SiteAuditReportCron", Percent: 50, Checks: []audit.CheckResult{
				{Key: "SiteAuditCheckCronEnabled", Score: audit.ScoreWarn},
				{Key: "SiteAuditCheckCronLast", Score: audit.ScoreInfo},
			}},
			{Key: "SiteAuditReportUsers", Percent: 0, Checks: []audit.CheckResult{
				{Key: "SiteAuditCheckUsersRolesList", Score: audit.ScoreInfo},
			}},
			{Key: "SiteAuditReportViews", Percent: 100, Checks: []audit.CheckResult{
				{Key: "SiteAuditCheckViewsEnabled", Score: audit.ScorePass},
			}},
		},
	}
}

func TestParseFailOn(t *testing.T) {
	got, err := parseFailOn("fail, Warning,,")
	if err != nil {
		t.Fatal(err)
	}
	want := []audit.Score{audit.ScoreFail, audit.ScoreWarn}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseFailOn() = %v, want %v", got, want)
	}

	if got, err := parseFailOn(""); err != nil || got != nil {
		t.Errorf("parseFailOn(\"\") = %v, %v", got, err)
	}
	if _, err := parseFailOn("fail,high"); err == nil {
		t.Error("expected error for unknown score")
	}
}

func TestShouldFailOn(t *testing.T) {
	agg := gateAggregate()
	tests := []struct {
		name   string
		scores []audit.Score
		want   bool
	}{
		{"warn present", []audit.Score{audit.ScoreWarn}, true},
		{"no failures", []audit.Score{audit.ScoreFail}, false},
		{"either", []audit.Score{audit.ScoreFail, audit.ScorePass}, true},
		{"none", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldFailOn(agg, tt.scores); got != tt.want {
				t.Errorf("shouldFailOn() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBelowMinPercent(t *testing.T) {
	agg := gateAggregate()

	// Users is all informational, so its 0% never trips the gate.
	if got := belowMinPercent(agg, 60); !reflect.DeepEqual(got, []string{"SiteAuditReportCron"}) {
		t.Errorf("belowMinPercent(60) = %v", got)
	}
	if got := belowMinPercent(agg, 50); got != nil {
		t.Errorf("belowMinPercent(50) = %v, want none", got)
	}
	if got := belowMinPercent(agg, 0); got != nil {
		t.Errorf("belowMinPercent(0) = %v, want none", got)
	}
}
