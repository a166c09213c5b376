package checks

import (
	"context"
	"strconv"

	"github.com/ppiankov/siteaudit/internal/audit"
)

type viewsEnabled struct {
	base
	aborts
	site *Site
}

func newViewsEnabled(site *Site) audit.Check {
	return &viewsEnabled{
		base: base{"views_enabled", "Views status", "Check to see if enabled.", "views"},
		site: site,
	}
}

func (c *viewsEnabled) CalculateScore(ctx context.Context, run *audit.RunContext) (audit.Score, error) {
	enabled, err := c.site.DB.ModuleEnabled(ctx, "views")
	if err != nil {
		return audit.ScoreInfo, err
	}
	run.Scratch.Set(keyViewsEnabled, enabled)
	if !enabled {
		c.abort = true
		return audit.ScoreInfo, nil
	}
	return audit.ScorePass, nil
}

func (c *viewsEnabled) Result(score audit.Score) string {
	switch score {
	case audit.ScoreInfo:
		return "Views is not enabled."
	case audit.ScorePass:
		return "Views is enabled."
	}
	return ""
}

func (c *viewsEnabled) Action(audit.Score) string { return "" }

type viewsCount struct {
	base
	aborts
	site  *Site
	count int64
}

func newViewsCount(site *Site) audit.Check {
	return &viewsCount{
		base: base{"views_count", "Count", "Number of enabled Views.", "views"},
		site: site,
	}
}

func (c *viewsCount) DependsOn() []string { return []string{"views_enabled"} }

func (c *viewsCount) CalculateScore(ctx context.Context, run *audit.RunContext) (audit.Score, error) {
	enabled, ok := audit.Lookup[bool](run.Scratch, keyViewsEnabled)
	if !ok {
		var err error
		if enabled, err = c.site.DB.ModuleEnabled(ctx, "views"); err != nil {
			return audit.ScoreInfo, err
		}
	}
	if !enabled {
		return audit.ScoreInfo, nil
	}
	n, err := c.site.DB.CountEnabledViews(ctx)
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.count = n
	if n == 0 {
		c.abort = true
		return audit.ScoreWarn, nil
	}
	return audit.ScorePass, nil
}

func (c *viewsCount) Result(score audit.Score) string {
	switch score {
	case audit.ScorePass, audit.ScoreWarn:
		if c.count == 0 {
			return "There are no enabled views."
		}
		return "There are " + strconv.FormatInt(c.count, 10) + " enabled views."
	case audit.ScoreInfo:
		return "Views is not enabled."
	}
	return ""
}

func (c *viewsCount) Action(score audit.Score) string {
	if score == audit.ScoreWarn {
		return "Consider disabling the views module if you don't need it."
	}
	return ""
}
