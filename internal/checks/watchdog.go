package checks

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/siteaudit/internal/audit"
	"github.com/ppiankov/siteaudit/internal/drupal"
)

const (
	categoryWatchdog = "watchdog"
	dblogDisabled    = "Database logging (dblog) is not enabled."
	// Share of log entries from which 404s or PHP messages deserve a warning.
	watchdogWarnPercent = 10
)

// watchdogEnabled returns whether dblog is installed, as recorded by the
// WatchdogEnabled check or probed directly.
func watchdogEnabled(ctx context.Context, site *Site, run *audit.RunContext) (bool, error) {
	if enabled, ok := audit.Lookup[bool](run.Scratch, keyWatchdogEnabled); ok {
		return enabled, nil
	}
	enabled, err := site.DB.ModuleEnabled(ctx, "dblog")
	if err != nil {
		return false, err
	}
	run.Scratch.Set(keyWatchdogEnabled, enabled)
	return enabled, nil
}

// watchdogTotal returns the number of dblog entries, as recorded by the
// WatchdogCount check or probed directly.
func watchdogTotal(ctx context.Context, site *Site, run *audit.RunContext) (int64, error) {
	if n, ok := audit.Lookup[int64](run.Scratch, keyWatchdogCount); ok {
		return n, nil
	}
	n, err := site.DB.WatchdogCount(ctx)
	if err != nil {
		return 0, err
	}
	run.Scratch.Set(keyWatchdogCount, n)
	return n, nil
}

func percentOf(part, total int64, places int) float64 {
	if total == 0 {
		return 0
	}
	scale := math.Pow(10, float64(places))
	return math.Round(float64(part)/float64(total)*100*scale) / scale
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type watchdogEnabledCheck struct {
	base
	aborts
	site *Site
}

func newWatchdogEnabled(site *Site) audit.Check {
	return &watchdogEnabledCheck{
		base: base{"watchdog_enabled", "dblog status", "Check to see if database logging is enabled.", categoryWatchdog},
		site: site,
	}
}

func (c *watchdogEnabledCheck) CalculateScore(ctx context.Context, run *audit.RunContext) (audit.Score, error) {
	enabled, err := c.site.DB.ModuleEnabled(ctx, "dblog")
	if err != nil {
		return audit.ScoreInfo, err
	}
	run.Scratch.Set(keyWatchdogEnabled, enabled)
	if !enabled {
		c.abort = true
		return audit.ScoreInfo, nil
	}
	return audit.ScorePass, nil
}

func (c *watchdogEnabledCheck) Result(score audit.Score) string {
	switch score {
	case audit.ScoreInfo:
		return "Database logging (dblog) is not enabled; if the site is having problems, consider enabling it for debugging."
	case audit.ScorePass:
		return "Database logging (dblog) is enabled."
	}
	return ""
}

func (c *watchdogEnabledCheck) Action(audit.Score) string { return "" }

type watchdogCount struct {
	base
	site    *Site
	enabled bool
	count   int64
}

func newWatchdogCount(site *Site) audit.Check {
	return &watchdogCount{
		base: base{"watchdog_count", "Count", "Number of dblog entries.", categoryWatchdog},
		site: site,
	}
}

func (c *watchdogCount) DependsOn() []string { return []string{"watchdog_enabled"} }

func (c *watchdogCount) CalculateScore(ctx context.Context, run *audit.RunContext) (audit.Score, error) {
	enabled, err := watchdogEnabled(ctx, c.site, run)
	if err != nil || !enabled {
		return audit.ScoreInfo, err
	}
	c.enabled = true
	n, err := c.site.DB.WatchdogCount(ctx)
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.count = n
	run.Scratch.Set(keyWatchdogCount, n)
	return audit.ScoreInfo, nil
}

func (c *watchdogCount) Result(score audit.Score) string {
	if score != audit.ScoreInfo {
		return ""
	}
	if !c.enabled {
		return dblogDisabled
	}
	if c.count == 0 {
		return "There are no dblog entries."
	}
	return plural(c.count, "There is one log entry.", "There are @count log entries.")
}

func (c *watchdogCount) Action(audit.Score) string { return "" }

type watchdog404 struct {
	base
	site    *Site
	enabled bool
	count   int64
	percent float64
}

func newWatchdog404(site *Site) audit.Check {
	return &watchdog404{
		base: base{"watchdog_404", "Number of 404 entries", "Count the number of page not found entries.", categoryWatchdog},
		site: site,
	}
}

func (c *watchdog404) DependsOn() []string { return []string{"watchdog_count"} }

func (c *watchdog404) CalculateScore(ctx context.Context, run *audit.RunContext) (audit.Score, error) {
	enabled, err := watchdogEnabled(ctx, c.site, run)
	if err != nil || !enabled {
		return audit.ScoreInfo, err
	}
	c.enabled = true
	total, err := watchdogTotal(ctx, c.site, run)
	if err != nil {
		return audit.ScoreInfo, err
	}
	n, err := c.site.DB.WatchdogCountByType(ctx, "page not found")
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.count = n
	if n == 0 {
		return audit.ScorePass, nil
	}
	c.percent = percentOf(n, total, 0)
	if c.percent >= watchdogWarnPercent {
		return audit.ScoreWarn, nil
	}
	return audit.ScoreInfo, nil
}

func (c *watchdog404) Result(score audit.Score) string {
	switch score {
	case audit.ScorePass:
		return "No 404 entries."
	case audit.ScoreInfo, audit.ScoreWarn:
		if !c.enabled {
			return dblogDisabled
		}
		return strconv.FormatInt(c.count, 10) + " pages not found (" + formatNumber(c.percent) + "%)."
	}
	return ""
}

func (c *watchdog404) Action(score audit.Score) string {
	if score == audit.ScoreWarn {
		return "Review the full report at admin/reports/page-not-found. If self-inflicted, fix the source. If a redirect is appropriate, visit admin/config/search/path and add URL aliases."
	}
	return ""
}

type watchdogAge struct {
	base
	site    *Site
	enabled bool
	rng     drupal.LogRange
	empty   bool
}

func newWatchdogAge(site *Site) audit.Check {
	return &watchdogAge{
		base: base{"watchdog_age", "Date range of log entries", "Oldest and newest.", categoryWatchdog},
		site: site,
	}
}

func (c *watchdogAge) DependsOn() []string { return []string{"watchdog_enabled"} }

func (c *watchdogAge) CalculateScore(ctx context.Context, run *audit.RunContext) (audit.Score, error) {
	enabled, err := watchdogEnabled(ctx, c.site, run)
	if err != nil || !enabled {
		return audit.ScoreInfo, err
	}
	c.enabled = true
	rng, ok, err := c.site.DB.WatchdogRange(ctx)
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.rng, c.empty = rng, !ok
	return audit.ScoreInfo, nil
}

func (c *watchdogAge) Result(score audit.Score) string {
	if score != audit.ScoreInfo {
		return ""
	}
	switch {
	case !c.enabled:
		return dblogDisabled
	case c.empty:
		return "There are no dblog entries."
	}
	from := c.rng.Oldest.Format(time.RFC1123Z)
	to := c.rng.Newest.Format(time.RFC1123Z)
	if c.rng.Oldest.Format(time.DateOnly) == c.rng.Newest.Format(time.DateOnly) {
		return "From " + from + " to " + to
	}
	days := math.Round(c.rng.Newest.Sub(c.rng.Oldest).Hours()/24*100) / 100
	return "From " + from + " to " + to + " (" + formatNumber(days) + " days)"
}

func (c *watchdogAge) Action(audit.Score) string { return "" }

type watchdogPhp struct {
	base
	site       *Site
	enabled    bool
	severities []drupal.SeverityCount
	percent    float64
}

func newWatchdogPhp(site *Site) audit.Check {
	return &watchdogPhp{
		base: base{"watchdog_php", "PHP messages", "Count PHP notices, warnings and errors.", categoryWatchdog},
		site: site,
	}
}

func (c *watchdogPhp) DependsOn() []string { return []string{"watchdog_count"} }

func (c *watchdogPhp) CalculateScore(ctx context.Context, run *audit.RunContext) (audit.Score, error) {
	enabled, err := watchdogEnabled(ctx, c.site, run)
	if err != nil || !enabled {
		return audit.ScoreInfo, err
	}
	c.enabled = true
	total, err := watchdogTotal(ctx, c.site, run)
	if err != nil {
		return audit.ScoreInfo, err
	}
	sev, err := c.site.DB.WatchdogSeverityCounts(ctx, "php")
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.severities = sev

	var php int64
	for _, s := range sev {
		php += s.Count
	}
	if php == 0 {
		return audit.ScorePass, nil
	}
	c.percent = percentOf(php, total, 2)
	if c.percent >= watchdogWarnPercent {
		return audit.ScoreWarn, nil
	}
	return audit.ScoreInfo, nil
}

func (c *watchdogPhp) Result(score audit.Score) string {
	switch score {
	case audit.ScorePass:
		return "No PHP warnings, notices or errors."
	case audit.ScoreInfo, audit.ScoreWarn:
		if !c.enabled {
			return dblogDisabled
		}
		counts := make([]string, 0, len(c.severities))
		for _, s := range c.severities {
			counts = append(counts, drupal.SeverityName(s.Severity)+": "+strconv.FormatInt(s.Count, 10))
		}
		return strings.Join(counts, ", ") + " - total " + formatNumber(c.percent) + "%"
	}
	return ""
}

func (c *watchdogPhp) Action(score audit.Score) string {
	if score == audit.ScoreWarn {
		return "Every time Drupal logs a PHP notice, warning or error, PHP executes slower and the writing operation locks the database. By eliminating the problems, your site will be faster."
	}
	return ""
}

type watchdogSyslog struct {
	base
	site    *Site
	vendor  string
	enabled bool
}

func newWatchdogSyslog(site *Site, run *audit.RunContext) audit.Check {
	return &watchdogSyslog{
		base:   base{"watchdog_syslog", "syslog status", "Check to see if syslog logging is enabled.", categoryWatchdog},
		site:   site,
		vendor: run.Options.Vendor,
	}
}

func (c *watchdogSyslog) CalculateScore(ctx context.Context, _ *audit.RunContext) (audit.Score, error) {
	enabled, err := c.site.DB.ModuleEnabled(ctx, "syslog")
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.enabled = enabled
	if enabled && c.vendor == VendorPantheon {
		return audit.ScoreFail, nil
	}
	return audit.ScoreInfo, nil
}

func (c *watchdogSyslog) Result(score audit.Score) string {
	switch score {
	case audit.ScoreFail:
		return "Syslog logging is enabled!"
	case audit.ScoreInfo, audit.ScorePass:
		if c.enabled {
			return "Syslog logging is enabled."
		}
		return "Syslog logging is not enabled."
	}
	return ""
}

func (c *watchdogSyslog) Action(score audit.Score) string {
	if score == audit.ScoreFail && c.vendor == VendorPantheon {
		return "On Pantheon, you can technically write to syslog, but there is no mechanism for reading it. Disable syslog and enable dblog instead."
	}
	return ""
}
