package checks

import (
	"context"
	"io/fs"
	"math"
	"strconv"

	"github.com/cockroachdb/errors"
	"go.yaml.in/yaml/v3"

	"github.com/ppiankov/siteaudit/internal/audit"
	"github.com/ppiankov/siteaudit/internal/drupal"
	"github.com/ppiankov/siteaudit/internal/probe"
)

const (
	categoryCache       = "cache"
	defaultCacheBackend = "cache.backend.database"
	servicesFile        = "sites/default/services.yml"
)

// cacheBins returns the bins found by CacheBinsAll, probing the database
// itself when that check did not run.
func cacheBins(ctx context.Context, site *Site, run *audit.RunContext) ([]drupal.CacheBin, error) {
	if bins, ok := audit.Lookup[[]drupal.CacheBin](run.Scratch, keyCacheBins); ok {
		return bins, nil
	}
	bins, err := site.DB.CacheBins(ctx)
	if err != nil {
		return nil, err
	}
	run.Scratch.Set(keyCacheBins, bins)
	return bins, nil
}

type cacheBinsAll struct {
	base
	site *Site
	bins []drupal.CacheBin
}

func newCacheBinsAll(site *Site) audit.Check {
	return &cacheBinsAll{
		base: base{"cache_bins_all", "Available cache bins", "All available cache bins.", categoryCache},
		site: site,
	}
}

func (c *cacheBinsAll) CalculateScore(ctx context.Context, run *audit.RunContext) (audit.Score, error) {
	bins, err := c.site.DB.CacheBins(ctx)
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.bins = bins
	run.Scratch.Set(keyCacheBins, bins)
	return audit.ScoreInfo, nil
}

func (c *cacheBinsAll) Result(score audit.Score) string {
	if score != audit.ScoreInfo {
		return ""
	}
	if len(c.bins) == 0 {
		return "No database cache bins found."
	}
	pairs := make([][2]string, 0, len(c.bins))
	for _, b := range c.bins {
		pairs = append(pairs, [2]string{b.Bin, b.Table})
	}
	return keyValueList(pairs)
}

func (c *cacheBinsAll) Action(audit.Score) string { return "" }

// servicesParameters is the part of services.yml the cache checks read.
type servicesParameters struct {
	Parameters struct {
		DefaultBinBackends map[string]string `yaml:"cache_default_bin_backends"`
	} `yaml:"parameters"`
}

type cacheBinsDefault struct {
	base
	site     *Site
	backends [][2]string
}

func newCacheBinsDefault(site *Site) audit.Check {
	return &cacheBinsDefault{
		base: base{"cache_default_bins", "Default cache bins", "All default cache bins.", categoryCache},
		site: site,
	}
}

func (c *cacheBinsDefault) DependsOn() []string { return []string{"cache_bins_all"} }

func (c *cacheBinsDefault) CalculateScore(ctx context.Context, run *audit.RunContext) (audit.Score, error) {
	bins, err := cacheBins(ctx, c.site, run)
	if err != nil {
		return audit.ScoreInfo, err
	}
	defaults, err := c.defaultBackends()
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.backends = c.backends[:0]
	for _, b := range bins {
		backend, ok := defaults[b.Bin]
		if !ok {
			backend = defaultCacheBackend
		}
		c.backends = append(c.backends, [2]string{b.Bin, backend})
	}
	return audit.ScoreInfo, nil
}

func (c *cacheBinsDefault) defaultBackends() (map[string]string, error) {
	if c.site.Root == nil {
		return nil, nil
	}
	data, err := fs.ReadFile(c.site.Root, servicesFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, probe.Unavailable(errors.Wrapf(err, "read %s", servicesFile))
	}
	var svc servicesParameters
	if err := yaml.Unmarshal(data, &svc); err != nil {
		return nil, probe.Unavailable(errors.Wrapf(err, "parse %s", servicesFile))
	}
	return svc.Parameters.DefaultBinBackends, nil
}

func (c *cacheBinsDefault) Result(score audit.Score) string {
	if score != audit.ScoreInfo {
		return ""
	}
	if len(c.backends) == 0 {
		return "No database cache bins found."
	}
	return keyValueList(c.backends)
}

func (c *cacheBinsDefault) Action(audit.Score) string { return "" }

type cacheBinsUsed struct {
	base
	site *Site
	used [][2]string
}

func newCacheBinsUsed(site *Site) audit.Check {
	return &cacheBinsUsed{
		base: base{"cache_bins_used", "Used Bins", "Cache bins used by each service.", categoryCache},
		site: site,
	}
}

func (c *cacheBinsUsed) DependsOn() []string { return []string{"cache_bins_all"} }

func (c *cacheBinsUsed) CalculateScore(ctx context.Context, run *audit.RunContext) (audit.Score, error) {
	bins, err := cacheBins(ctx, c.site, run)
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.used = c.used[:0]
	for _, b := range bins {
		if b.Rows > 0 {
			c.used = append(c.used, [2]string{b.Bin, plural(b.Rows, "1 entry", "@count entries")})
		}
	}
	return audit.ScoreInfo, nil
}

func (c *cacheBinsUsed) Result(score audit.Score) string {
	if score != audit.ScoreInfo {
		return ""
	}
	if len(c.used) == 0 {
		return "No cache bin holds any entries."
	}
	return keyValueList(c.used)
}

func (c *cacheBinsUsed) Action(audit.Score) string { return "" }

type cachePageExpire struct {
	base
	site   *Site
	maxAge int64
}

func newCachePageExpire(site *Site) audit.Check {
	return &cachePageExpire{
		base: base{"cache_page_expire", "Expiration of cached pages",
			"Verify that Drupal's cached pages last for at least 15 minutes.", categoryCache},
		site: site,
	}
}

func (c *cachePageExpire) CalculateScore(ctx context.Context, run *audit.RunContext) (audit.Score, error) {
	perf, err := c.site.Config.Config(ctx, "system.performance")
	if err != nil {
		return audit.ScoreInfo, err
	}
	v, _ := dig(perf, "cache.page.max_age")
	c.maxAge = toInt(v)
	switch {
	case c.maxAge == 0:
		if isDev(run) {
			return audit.ScoreInfo, nil
		}
		return audit.ScoreFail, nil
	case c.maxAge >= 900:
		return audit.ScorePass, nil
	}
	return audit.ScoreWarn, nil
}

func (c *cachePageExpire) minutes() string {
	return strconv.FormatFloat(math.Round(float64(c.maxAge)/60), 'f', -1, 64)
}

func (c *cachePageExpire) Result(score audit.Score) string {
	switch score {
	case audit.ScoreFail, audit.ScoreInfo:
		return "Expiration of cached pages not set!"
	case audit.ScorePass:
		return "Expiration of cached pages is set to " + c.minutes() + " min."
	case audit.ScoreWarn:
		return "Expiration of cached pages only set to " + c.minutes() + " min."
	}
	return ""
}

func (c *cachePageExpire) Action(audit.Score) string { return "" }

// cachePreprocess checks one of the asset aggregation settings.
type cachePreprocess struct {
	base
	site    *Site
	setting string
	fail    string
	pass    string
	option  string
}

func newCachePreprocessCSS(site *Site) audit.Check {
	return &cachePreprocess{
		base: base{"cache_preprocess_css", "Aggregate and compress CSS files in Drupal",
			"Verify that Drupal is aggregating and compressing CSS.", categoryCache},
		site:    site,
		setting: "css.preprocess",
		fail:    "CSS aggregation and compression is not enabled!",
		pass:    "CSS aggregation and compression is enabled.",
		option:  "Aggregate and compress CSS files",
	}
}

func newCachePreprocessJS(site *Site) audit.Check {
	return &cachePreprocess{
		base: base{"cache_preprocess_js", "Aggregate and compress JavaScript files in Drupal",
			"Verify that Drupal is aggregating JavaScript.", categoryCache},
		site:    site,
		setting: "js.preprocess",
		fail:    "JavaScript aggregation is not enabled!",
		pass:    "JavaScript aggregation is enabled.",
		option:  "Aggregate JavaScript files",
	}
}

func (c *cachePreprocess) CalculateScore(ctx context.Context, run *audit.RunContext) (audit.Score, error) {
	perf, err := c.site.Config.Config(ctx, "system.performance")
	if err != nil {
		return audit.ScoreInfo, err
	}
	if v, _ := dig(perf, c.setting); truthy(v) {
		return audit.ScorePass, nil
	}
	if isDev(run) {
		return audit.ScoreInfo, nil
	}
	return audit.ScoreFail, nil
}

func (c *cachePreprocess) Result(score audit.Score) string {
	switch score {
	case audit.ScoreFail, audit.ScoreInfo:
		return c.fail
	case audit.ScorePass:
		return c.pass
	}
	return ""
}

func (c *cachePreprocess) Action(score audit.Score) string {
	if score == audit.ScorePass {
		return ""
	}
	return `Go to /admin/config/development/performance and check "` + c.option + `".`
}
