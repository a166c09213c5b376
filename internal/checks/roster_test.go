package checks

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/siteaudit/internal/audit"
)

func TestRosterIdentity(t *testing.T) {
	roster := Roster(&Site{})
	require.Len(t, roster, 35)

	names := map[string]bool{}
	ids := map[string]bool{}
	run := audit.NewRunContext(audit.Options{}, nil)
	for _, re := range roster {
		assert.False(t, names[re.Name], "duplicate name %s", re.Name)
		names[re.Name] = true

		_, ok := audit.LookupCategory(re.Category)
		assert.True(t, ok, "%s: unknown category %s", re.Name, re.Category)

		c := re.New(run)
		assert.False(t, ids[c.ID()], "duplicate id %s", c.ID())
		ids[c.ID()] = true
		assert.Equal(t, re.Category, c.Category(), re.Name)
		assert.NotEmpty(t, c.Label(), re.Name)
		assert.NotEmpty(t, c.Description(), re.Name)
	}
}

func TestRosterResultAndActionForEveryScore(t *testing.T) {
	run := audit.NewRunContext(audit.Options{}, nil)
	for _, re := range Roster(&Site{}) {
		c := re.New(run)
		for _, s := range audit.Scores {
			assert.NotPanics(t, func() { _ = c.Result(s) }, "%s Result(%s)", re.Name, s)
			assert.NotPanics(t, func() { _ = c.Action(s) }, "%s Action(%s)", re.Name, s)
		}
	}
}

func TestRosterDependenciesResolve(t *testing.T) {
	o, err := audit.New(Roster(&Site{}), audit.Config{})
	require.NoError(t, err)
	assert.Equal(t, 35, o.Pending())
	assert.Equal(t, 6, o.Pending(categoryWatchdog))
}

func TestRosterFullRun(t *testing.T) {
	site, _, _ := healthySite()
	o, err := audit.New(Roster(site), audit.Config{Now: func() time.Time { return testNow }})
	require.NoError(t, err)
	agg, err := o.Run(t.Context())
	require.NoError(t, err)

	keys := make([]string, 0, len(agg.Reports))
	for _, r := range agg.Reports {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{
		"SiteAuditReportBestPractices",
		"SiteAuditReportBlock",
		"SiteAuditReportCache",
		"SiteAuditReportCron",
		"SiteAuditReportDatabase",
		"SiteAuditReportExtensions",
		"SiteAuditReportUsers",
		"SiteAuditReportViews",
		"SiteAuditReportWatchdog",
	}, keys)
	assert.Equal(t, testNow.Unix(), agg.Time)

	for _, r := range agg.Reports {
		assert.Equal(t, 100, r.Percent, r.Key)
	}

	cache, ok := agg.Report("SiteAuditReportCache")
	require.True(t, ok)
	data, err := json.Marshal(cache)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"SiteAuditCheckCachePreprocessCSS":{`)
}
