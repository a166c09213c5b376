package checks

import (
	"context"

	"github.com/ppiankov/siteaudit/internal/audit"
)

type blockEnabled struct {
	base
	aborts
	site *Site
}

func newBlockEnabled(site *Site) audit.Check {
	return &blockEnabled{
		base: base{"block_enabled", "Block status", "Check to see if enabled.", "block"},
		site: site,
	}
}

func (c *blockEnabled) CalculateScore(ctx context.Context, _ *audit.RunContext) (audit.Score, error) {
	enabled, err := c.site.DB.ModuleEnabled(ctx, "block")
	if err != nil {
		return audit.ScoreInfo, err
	}
	if !enabled {
		c.abort = true
		return audit.ScoreInfo, nil
	}
	theme, err := c.site.Config.Config(ctx, "system.theme")
	if err != nil {
		return audit.ScoreInfo, err
	}
	if !truthy(theme["default"]) {
		return audit.ScoreWarn, nil
	}
	return audit.ScorePass, nil
}

func (c *blockEnabled) Result(score audit.Score) string {
	switch score {
	case audit.ScoreFail:
		return "Block caching is not enabled!"
	case audit.ScoreInfo:
		return "Block is not enabled."
	case audit.ScorePass:
		return "Block is enabled."
	case audit.ScoreWarn:
		return "Block is enabled, but there is no default theme. Consider disabling block if you don't need it."
	}
	return ""
}

func (c *blockEnabled) Action(audit.Score) string { return "" }
