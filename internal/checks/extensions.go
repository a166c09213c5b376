package checks

import (
	"context"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go.yaml.in/yaml/v3"

	"github.com/ppiankov/siteaudit/internal/audit"
	"github.com/ppiankov/siteaudit/internal/probe"
)

const (
	categoryExtensions = "extensions"
	keyExtensions      = "extensions"
	maxExtensions      = 150
)

// installedModules returns the installed modules, sorted, sharing the
// result between the extension checks.
func installedModules(ctx context.Context, site *Site, run *audit.RunContext) ([]string, error) {
	if mods, ok := audit.Lookup[[]string](run.Scratch, keyExtensions); ok {
		return mods, nil
	}
	mods, err := site.DB.Modules(ctx)
	if err != nil {
		return nil, err
	}
	run.Scratch.Set(keyExtensions, mods)
	return mods, nil
}

type extensionsCount struct {
	base
	site  *Site
	count int
}

func newExtensionsCount(site *Site) audit.Check {
	return &extensionsCount{
		base: base{"extensions_count", "Count", "Count the number of enabled extensions (modules and themes) in a site.", categoryExtensions},
		site: site,
	}
}

func (c *extensionsCount) CalculateScore(ctx context.Context, run *audit.RunContext) (audit.Score, error) {
	mods, err := installedModules(ctx, c.site, run)
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.count = len(mods)
	if c.count > maxExtensions {
		return audit.ScoreWarn, nil
	}
	return audit.ScorePass, nil
}

func (c *extensionsCount) Result(score audit.Score) string {
	switch score {
	case audit.ScorePass, audit.ScoreWarn:
		return "There are " + strconv.Itoa(c.count) + " extensions enabled."
	}
	return ""
}

func (c *extensionsCount) Action(score audit.Score) string {
	if score != audit.ScoreWarn {
		return ""
	}
	return "Consider the following options:\n" +
		"- Disable unneeded or unnecessary extensions.\n" +
		"- Consolidate functionality if possible, or custom develop a solution specific to your needs.\n" +
		"- Avoid using modules that serve only one small purpose that is not mission critical."
}

// devExtensions maps known development modules to why they should not be
// enabled in production.
var devExtensions = map[string]string{
	"admin_devel":        "Debugging utility; degrades performance.",
	"cache_disable":      "Development utility and performance drain; degrades performance.",
	"coder":              "Debugging utility; potential security risk and unnecessary performance hit.",
	"content_copy":       "Development utility; unnecessary overhead.",
	"context_ui":         "Development user interface; unnecessary overhead.",
	"debug":              "Debugging utility; potential security risk, unnecessary overhead.",
	"delete_all":         "Development utility; potentially dangerous.",
	"demo":               "Development utility for sandboxing.",
	"devel":              "Debugging utility; degrades performance and potential security risk.",
	"devel_node_access":  "Development utility; degrades performance and potential security risk.",
	"devel_themer":       "Development utility; degrades performance and potential security risk.",
	"field_ui":           "Development user interface; allows privileged users to change site structure which can lead to data inconsistencies. Best practice is to store Content Types in code and deploy changes instead of allowing editing in live environments.",
	"fontyourface_ui":    "Development user interface; unnecessary overhead.",
	"form_controller":    "Development utility; unnecessary overhead.",
	"imagecache_ui":      "Development user interface; unnecessary overhead.",
	"journal":            "Development utility; unnecessary overhead.",
	"l10n_client":        "Development utility; unnecessary overhead.",
	"l10n_update":        "Development utility; unnecessary overhead.",
	"macro":              "Development utility; unnecessary overhead.",
	"rules_admin":        "Development user interface; unnecessary overhead.",
	"stringoverrides":    "Development utility.",
	"trace":              "Debugging utility; degrades performance and potential security risk.",
	"upgrade_status":     "Development utility for performing a major Drupal core update; should removed after use.",
	"user_display_ui":    "Development user interface; unnecessary overhead.",
	"util":               "Development utility; unnecessary overhead, potential security risk.",
	"views_ui":           "Development UI; allows privileged users to change site structure which can lead to performance problems or inconsistent behavior. Best practice is to store Views in code and deploy changes instead of allowing editing in live environments.",
	"views_theme_wizard": "Development utility; unnecessary overhead, potential security risk.",

	"ipsum":      "Development utility to generate fake content.",
	"testmodule": "Internal test module.",

	"block_example":            "Development examples.",
	"cache_example":            "Development examples.",
	"config_entity_example":    "Development examples.",
	"content_entity_example":   "Development examples.",
	"dbtng_example":            "Development examples.",
	"email_example":            "Development examples.",
	"examples":                 "Development examples.",
	"field_example":            "Development examples.",
	"field_permission_example": "Development examples.",
	"file_example":             "Development examples.",
	"js_example":               "Development examples.",
	"node_type_example":        "Development examples.",
	"page_example":             "Development examples.",
	"phpunit_example":          "Development examples.",
	"simpletest_example":       "Development examples.",
	"tablesort_example":        "Development examples.",
	"tour_example":             "Development examples.",
}

type extensionsDev struct {
	base
	site   *Site
	detail bool
	found  []string
}

func newExtensionsDev(site *Site, run *audit.RunContext) audit.Check {
	return &extensionsDev{
		base:   base{"extensions_dev", "Development", "Check for enabled development modules.", categoryExtensions},
		site:   site,
		detail: run.Options.Detail,
	}
}

func (c *extensionsDev) CalculateScore(ctx context.Context, run *audit.RunContext) (audit.Score, error) {
	mods, err := installedModules(ctx, c.site, run)
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.found = c.found[:0]
	for _, m := range mods {
		if _, ok := devExtensions[m]; ok {
			c.found = append(c.found, m)
		}
	}
	if len(c.found) == 0 {
		return audit.ScorePass, nil
	}
	if isDev(run) {
		return audit.ScoreInfo, nil
	}
	return audit.ScoreWarn, nil
}

func (c *extensionsDev) Result(score audit.Score) string {
	switch score {
	case audit.ScorePass:
		return "No enabled development extensions were detected; no action required."
	case audit.ScoreWarn, audit.ScoreInfo:
		msg := "The following development modules(s) are currently enabled: " + strings.Join(c.found, ", ")
		if c.detail {
			pairs := make([][2]string, 0, len(c.found))
			for _, m := range c.found {
				pairs = append(pairs, [2]string{m, devExtensions[m]})
			}
			msg += "\n" + keyValueList(pairs)
		}
		return msg
	}
	return ""
}

func (c *extensionsDev) Action(score audit.Score) string {
	if score == audit.ScoreWarn {
		return "Disable development modules for increased stability, security and performance in the Live (production) environment."
	}
	return ""
}

// safeDuplicates ship with core tests and are expected to appear twice.
var safeDuplicates = []string{
	"drupal_system_listing_compatible_test",
	"drupal_system_listing_incompatible_test",
	"aaa_update_test",
}

type extensionCopy struct {
	path    string
	version string
}

func (e extensionCopy) label() string {
	if e.version == "" {
		return e.path
	}
	return e.path + " (" + e.version + ")"
}

type infoFile struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Version string `yaml:"version"`
}

type extensionsDuplicate struct {
	base
	site  *Site
	dupes map[string][]extensionCopy
}

func newExtensionsDuplicate(site *Site) audit.Check {
	return &extensionsDuplicate{
		base: base{"extensions_duplicate", "Duplicates", "Check for duplicate extensions in the site codebase.", categoryExtensions},
		site: site,
	}
}

// skipDir reports whether a directory of the web root holds no extensions.
func skipDir(p string) bool {
	switch path.Base(p) {
	case ".git", "node_modules":
		return true
	}
	// Public files of each site.
	if matched, _ := path.Match("sites/*/files", p); matched {
		return true
	}
	return false
}

func (c *extensionsDuplicate) CalculateScore(ctx context.Context, run *audit.RunContext) (audit.Score, error) {
	if c.site.Root == nil {
		return audit.ScoreInfo, probe.Unavailable(errors.New("web root not configured"))
	}
	found := make(map[string][]extensionCopy)
	err := fs.WalkDir(c.site.Root, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, the root must be readable.
			if p == "." {
				return err
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != "." && skipDir(p) {
				return fs.SkipDir
			}
			return nil
		}
		name, ok := strings.CutSuffix(d.Name(), ".info.yml")
		if !ok || slices.Contains(safeDuplicates, name) {
			return nil
		}
		data, err := fs.ReadFile(c.site.Root, p)
		if err != nil {
			return nil
		}
		var info infoFile
		if yaml.Unmarshal(data, &info) != nil || info.Name == "" || info.Type == "" {
			return nil
		}
		found[name] = append(found[name], extensionCopy{path: p, version: info.Version})
		return nil
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return audit.ScoreInfo, ctxErr
	}
	if err != nil {
		return audit.ScoreInfo, probe.Unavailable(errors.Wrap(err, "scan extensions"))
	}

	mods, err := installedModules(ctx, c.site, run)
	if err != nil {
		return audit.ScoreInfo, err
	}

	c.dupes = make(map[string][]extensionCopy)
	for name, copies := range found {
		if len(copies) > 1 && !tolerableDuplicate(copies, slices.Contains(mods, name)) {
			c.dupes[name] = copies
		}
	}
	if len(c.dupes) > 0 {
		return audit.ScoreWarn, nil
	}
	return audit.ScorePass, nil
}

// tolerableDuplicate reports whether copies of one extension are expected:
// every copy is a test fixture or lives in an installation profile, or a
// single enabled copy outside the profile is newer than every profile copy.
func tolerableDuplicate(copies []extensionCopy, enabled bool) bool {
	inProfile, tests := 0, 0
	var outside extensionCopy
	for _, c := range copies {
		switch {
		case strings.Contains(c.path, "/tests/"):
			tests++
		case strings.HasPrefix(c.path, "profiles/"):
			inProfile++
		default:
			outside = c
		}
	}
	if inProfile+tests == len(copies) {
		return true
	}
	if inProfile == 0 || len(copies)-inProfile != 1 || !enabled || outside.version == "" {
		return false
	}
	for _, c := range copies {
		if c == outside {
			continue
		}
		if c.version == "" || compareVersions(outside.version, c.version) <= 0 {
			return false
		}
	}
	return true
}

// compareVersions compares the numeric parts of two extension versions
// ("8.x-1.10" > "8.x-1.9"). It returns -1, 0 or 1.
func compareVersions(a, b string) int {
	pa, pb := versionParts(a), versionParts(b)
	for i := 0; i < max(len(pa), len(pb)); i++ {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

func versionParts(v string) []int {
	fields := strings.FieldsFunc(v, func(r rune) bool { return r < '0' || r > '9' })
	parts := make([]int, 0, len(fields))
	for _, f := range fields {
		n, _ := strconv.Atoi(f)
		parts = append(parts, n)
	}
	return parts
}

func (c *extensionsDuplicate) Result(score audit.Score) string {
	switch score {
	case audit.ScorePass:
		return "No duplicate extensions were detected."
	case audit.ScoreWarn:
		names := make([]string, 0, len(c.dupes))
		for name := range c.dupes {
			names = append(names, name)
		}
		slices.Sort(names)

		var b strings.Builder
		b.WriteString("The following duplicate extensions were found:")
		for _, name := range names {
			b.WriteString("\n      " + name)
			for _, cp := range c.dupes[name] {
				b.WriteString("\n        " + cp.label())
			}
		}
		return b.String()
	}
	return ""
}

func (c *extensionsDuplicate) Action(score audit.Score) string {
	if score == audit.ScoreWarn {
		return "Prune your codebase to have only one copy of any given extension."
	}
	return ""
}
