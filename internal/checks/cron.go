package checks

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/siteaudit/internal/audit"
)

const day = 24 * 60 * 60

type cronEnabled struct {
	base
	site      *Site
	threshold int64
}

func newCronEnabled(site *Site) audit.Check {
	return &cronEnabled{
		base: base{"cron_enabled", "Enabled", "Check to see if cron is scheduled to run.", "cron"},
		site: site,
	}
}

func (c *cronEnabled) CalculateScore(ctx context.Context, run *audit.RunContext) (audit.Score, error) {
	last, err := cronLast(ctx, c.site, run)
	if err != nil {
		return audit.ScoreInfo, err
	}
	settings, err := c.site.Config.Config(ctx, "automated_cron.settings")
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.threshold = toInt(settings["interval"])

	if c.site.now().Unix()-last > day {
		if c.threshold == 0 {
			return audit.ScoreFail, nil
		}
		return audit.ScoreWarn, nil
	}
	if c.threshold > day {
		return audit.ScoreWarn, nil
	}
	return audit.ScorePass, nil
}

// cronLast returns the unix time of the last cron run, 0 if it never ran.
func cronLast(ctx context.Context, site *Site, run *audit.RunContext) (int64, error) {
	if last, ok := audit.Lookup[int64](run.Scratch, keyCronLast); ok {
		return last, nil
	}
	raw, err := site.Config.State(ctx, "system.cron_last")
	if err != nil {
		return 0, err
	}
	last := stateInt(raw)
	run.Scratch.Set(keyCronLast, last)
	return last, nil
}

func (c *cronEnabled) Result(score audit.Score) string {
	switch score {
	case audit.ScoreFail:
		return "You have disabled cron, which will prevent routine system tasks from executing."
	case audit.ScorePass:
		if c.threshold == 0 {
			return "Drupal Cron frequency is set to never, but has been executed within the past 24 hours (either manually or using drush cron)."
		}
		return "Cron is set to run every " + strconv.FormatFloat(math.Round(float64(c.threshold)/60), 'f', -1, 64) + " minutes."
	case audit.ScoreWarn:
		if c.threshold > day {
			return "Drupal Cron frequency is set to more than 24 hours."
		}
		return "Drupal Cron has not run in the past day even though its frequency has been set to less than 24 hours."
	}
	return ""
}

func (c *cronEnabled) Action(score audit.Score) string {
	switch {
	case score == audit.ScoreFail:
		return "Please visit /admin/config/system/cron and set the cron frequency to something other than Never but less than 24 hours."
	case score == audit.ScoreWarn && c.threshold > day:
		return "Please visit /admin/config/system/cron and set the cron frequency to something less than 24 hours."
	}
	return ""
}

type cronLastRun struct {
	base
	site *Site
	last int64
	now  time.Time
}

func newCronLast(site *Site) audit.Check {
	return &cronLastRun{
		base: base{"cron_last", "Last run", "Time Cron last executed.", "cron"},
		site: site,
	}
}

func (c *cronLastRun) DependsOn() []string { return []string{"cron_enabled"} }

func (c *cronLastRun) CalculateScore(ctx context.Context, run *audit.RunContext) (audit.Score, error) {
	last, err := cronLast(ctx, c.site, run)
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.last = last
	c.now = c.site.now()
	return audit.ScoreInfo, nil
}

func (c *cronLastRun) Result(score audit.Score) string {
	if score != audit.ScoreInfo {
		return ""
	}
	if c.last == 0 {
		return "Cron has never run."
	}
	at := time.Unix(c.last, 0)
	return "Cron last ran at " + at.Format(time.RFC1123Z) + " (" + formatInterval(c.now.Sub(at)) + " ago)"
}

func (c *cronLastRun) Action(audit.Score) string { return "" }

var intervalUnits = []struct {
	seconds   int64
	one, many string
}{
	{365 * day, "1 year", "@count years"},
	{30 * day, "1 month", "@count months"},
	{7 * day, "1 week", "@count weeks"},
	{day, "1 day", "@count days"},
	{3600, "1 hour", "@count hours"},
	{60, "1 min", "@count min"},
	{1, "1 sec", "@count sec"},
}

// formatInterval renders a duration with its two largest units,
// e.g. "1 day 3 hours".
func formatInterval(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = -secs
	}
	var parts []string
	for _, u := range intervalUnits {
		if len(parts) == 2 {
			break
		}
		if secs >= u.seconds {
			n := secs / u.seconds
			parts = append(parts, plural(n, u.one, u.many))
			secs %= u.seconds
		} else if len(parts) > 0 {
			// Units are only combined when adjacent.
			break
		}
	}
	if len(parts) == 0 {
		return "0 sec"
	}
	return strings.Join(parts, " ")
}
