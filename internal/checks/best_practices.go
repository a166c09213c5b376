package checks

import (
	"context"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/siteaudit/internal/audit"
	"github.com/ppiankov/siteaudit/internal/probe"
)

const categoryBestPractices = "best_practices"

// readDir lists a directory of the web root. A missing directory is not an
// error; anything else means the filesystem cannot be probed.
func readDir(root fs.FS, dir string) ([]fs.DirEntry, error) {
	if root == nil {
		return nil, probe.Unavailable(errors.New("web root not configured"))
	}
	entries, err := fs.ReadDir(root, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, probe.Unavailable(errors.Wrapf(err, "read %s", dir))
	}
	return entries, nil
}

// statLink reports whether name exists (without following a final link)
// and whether it is a symbolic link.
func statLink(root fs.FS, name string) (exists, link bool, err error) {
	if root == nil {
		return false, false, probe.Unavailable(errors.New("web root not configured"))
	}
	fi, err := lstat(root, name)
	if errors.Is(err, fs.ErrNotExist) {
		return false, false, nil
	}
	if err != nil {
		return false, false, probe.Unavailable(errors.Wrapf(err, "stat %s", name))
	}
	return true, isSymlink(fi), nil
}

type fast404 struct {
	base
	site *Site
}

func newFast404(site *Site) audit.Check {
	return &fast404{
		base: base{"best_practices_fast_404", "Fast 404 pages", "Check if enabled.", categoryBestPractices},
		site: site,
	}
}

func (c *fast404) CalculateScore(ctx context.Context, _ *audit.RunContext) (audit.Score, error) {
	perf, err := c.site.Config.Config(ctx, "system.performance")
	if err != nil {
		return audit.ScoreInfo, err
	}
	enabled, _ := dig(perf, "fast_404.enabled")
	paths, _ := dig(perf, "fast_404.paths")
	p, _ := paths.(string)
	if truthy(enabled) && strings.TrimSpace(p) != "" {
		return audit.ScorePass, nil
	}
	return audit.ScoreWarn, nil
}

func (c *fast404) Result(score audit.Score) string {
	switch score {
	case audit.ScorePass:
		return "Fast 404 pages are enabled."
	case audit.ScoreWarn:
		return "Fast 404 pages are not enabled for any path."
	}
	return ""
}

func (c *fast404) Action(score audit.Score) string {
	if score == audit.ScoreWarn {
		return "See https://github.com/drupal/drupal/blob/8.0.x/sites/default/default.settings.php#L572 for details on how to implement."
	}
	return ""
}

type folderStructure struct {
	base
	site *Site

	info, pass, warn, action string
}

func newFolderStructure(site *Site) audit.Check {
	return &folderStructure{
		base: base{"best_practices_folder_structure", "Folder Structure",
			"Checks if modules/contrib and modules/custom directory is present.", categoryBestPractices},
		site: site,
	}
}

func (c *folderStructure) CalculateScore(_ context.Context, _ *audit.RunContext) (audit.Score, error) {
	entries, err := readDir(c.site.Root, "modules")
	if err != nil {
		return audit.ScoreInfo, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) == 0 {
		c.info = "Contrib and custom modules not found."
		return audit.ScoreInfo, nil
	}

	contrib := firstOf(dirs, "contrib", "composer")
	custom := firstOf(dirs, "custom")

	if len(dirs) == 1 {
		if contrib != "" || custom != "" {
			c.pass = "modules/" + dirs[0] + " directory exist."
			return audit.ScorePass, nil
		}
		c.warn = "Either modules/contrib or modules/custom directories are not present!"
		c.action = "Put all the contrib modules inside the ./modules/contrib directory or the custom modules inside the ./modules/custom directory."
		return audit.ScoreWarn, nil
	}

	switch {
	case contrib == "" && custom == "":
		c.warn = "Neither modules/contrib nor modules/custom directories are present!"
		c.action = "Put all the contrib modules inside the ./modules/contrib directory and custom modules inside the ./modules/custom directory."
		return audit.ScoreWarn, nil
	case contrib == "":
		c.warn = "modules/contrib directory is not present!"
		c.action = "Put all the contrib modules inside the ./modules/contrib directory."
		return audit.ScoreWarn, nil
	case custom == "":
		c.warn = "modules/custom directory is not present!"
		c.action = "Put all the custom modules inside the ./modules/custom directory."
		return audit.ScoreWarn, nil
	}
	c.pass = "modules/" + contrib + " and modules/" + custom + " directories exist."
	return audit.ScorePass, nil
}

// firstOf returns the first of dirs whose name is one of names.
func firstOf(dirs []string, names ...string) string {
	for _, d := range dirs {
		if slices.Contains(names, d) {
			return d
		}
	}
	return ""
}

func (c *folderStructure) Result(score audit.Score) string {
	switch score {
	case audit.ScoreInfo:
		return c.info
	case audit.ScorePass:
		return c.pass
	case audit.ScoreWarn:
		return c.warn
	}
	return ""
}

func (c *folderStructure) Action(audit.Score) string {
	if c.action == "" {
		return ""
	}
	return c.action + " Moving modules may cause errors, so refer to https://www.drupal.org/node/183681 for information on how to best proceed."
}

type services struct {
	base
	site *Site

	exists, link bool
}

func newServices(site *Site) audit.Check {
	return &services{
		base: base{"best_practices_services", "sites/default/services.yml",
			"Check if the services file exists.", categoryBestPractices},
		site: site,
	}
}

func (c *services) CalculateScore(_ context.Context, _ *audit.RunContext) (audit.Score, error) {
	exists, link, err := statLink(c.site.Root, "sites/default/services.yml")
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.exists, c.link = exists, link
	if exists && !link {
		return audit.ScorePass, nil
	}
	return audit.ScoreWarn, nil
}

func (c *services) Result(score audit.Score) string {
	switch score {
	case audit.ScorePass:
		return "services.yml exists and is not a symbolic link."
	case audit.ScoreWarn:
		if !c.exists {
			return "services.yml does not exist! Copy the default.service.yml to services.yml and see https://www.drupal.org/documentation/install/settings-file for details."
		}
		return "sites/default/services.yml is a symbolic link."
	}
	return ""
}

func (c *services) Action(score audit.Score) string {
	if score != audit.ScoreWarn {
		return ""
	}
	if !c.exists {
		return "Create services.yml file inside sites/default directory by copying default.services.yml file. See https://www.drupal.org/documentation/install/settings-file for details."
	}
	return "Don't rely on symbolic links for core configuration files; copy services.yml where it should be and remove the symbolic link."
}

type sites struct {
	base
	site *Site

	multisite bool
}

func newSites(site *Site) audit.Check {
	return &sites{
		base: base{"best_practices_sites", "sites/sites.php",
			"Check if multisite configuration file is a symbolic link.", categoryBestPractices},
		site: site,
	}
}

func (c *sites) CalculateScore(_ context.Context, run *audit.RunContext) (audit.Score, error) {
	exists, link, err := statLink(c.site.Root, "sites/sites.php")
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.multisite = exists
	run.Scratch.Set(keyMultisite, exists)
	if link {
		return audit.ScoreWarn, nil
	}
	return audit.ScorePass, nil
}

func (c *sites) Result(score audit.Score) string {
	switch score {
	case audit.ScorePass:
		if c.multisite {
			return "sites.php is not a symbolic link."
		}
		return "sites.php does not exist."
	case audit.ScoreWarn:
		return "sites/sites.php is a symbolic link."
	}
	return ""
}

func (c *sites) Action(score audit.Score) string {
	if score == audit.ScoreWarn {
		return "Don't rely on symbolic links for core configuration files; copy sites.php where it should be and remove the symbolic link."
	}
	return ""
}

type sitesDefault struct {
	base
	site *Site
}

func newSitesDefault(site *Site) audit.Check {
	return &sitesDefault{
		base: base{"best_practices_sites_default", "sites/default",
			"Check if it exists and isn't symbolic.", categoryBestPractices},
		site: site,
	}
}

func (c *sitesDefault) CalculateScore(_ context.Context, _ *audit.RunContext) (audit.Score, error) {
	exists, link, err := statLink(c.site.Root, "sites/default")
	if err != nil {
		return audit.ScoreInfo, err
	}
	if !exists {
		return audit.ScoreFail, nil
	}
	// Follow the link: a link to something that is not a directory is as
	// bad as no directory at all.
	fi, err := fs.Stat(c.site.Root, "sites/default")
	if err != nil || !fi.IsDir() {
		return audit.ScoreFail, nil
	}
	if link {
		return audit.ScoreWarn, nil
	}
	return audit.ScorePass, nil
}

func (c *sitesDefault) Result(score audit.Score) string {
	switch score {
	case audit.ScoreFail:
		return "sites/default does not exist!"
	case audit.ScoreInfo:
		return "sites/default is a directory and not a symbolic link."
	case audit.ScorePass:
		return "sites/default exists."
	case audit.ScoreWarn:
		return "sites/default exists as a symbolic link."
	}
	return ""
}

func (c *sitesDefault) Action(score audit.Score) string {
	switch score {
	case audit.ScoreFail:
		return "sites/default is necessary; recreate the directory immediately."
	case audit.ScoreWarn:
		return "Avoid changing Drupal's site structure; remove the symbolic link and recreate sites/default."
	}
	return ""
}

// allowedSitesFiles may live in sites/ next to the site directories.
var allowedSitesFiles = []string{
	".DS_Store",
	".gitignore",
	"all",
	"default",
	"development.services.yml",
	"example.settings.local.php",
	"example.sites.php",
	"README.txt",
}

type sitesSuperfluous struct {
	base
	site   *Site
	vendor string

	extra     []string
	multisite bool
}

func newSitesSuperfluous(site *Site, run *audit.RunContext) audit.Check {
	return &sitesSuperfluous{
		base: base{"best_practices_sites_superfluous", "Superfluous files in /sites",
			"Detect unnecessary files.", categoryBestPractices},
		site:   site,
		vendor: run.Options.Vendor,
	}
}

func (c *sitesSuperfluous) DependsOn() []string { return []string{"best_practices_sites"} }

func (c *sitesSuperfluous) CalculateScore(_ context.Context, run *audit.RunContext) (audit.Score, error) {
	entries, err := readDir(c.site.Root, "sites")
	if err != nil {
		return audit.ScoreInfo, err
	}
	multisite, ok := audit.Lookup[bool](run.Scratch, keyMultisite)
	if !ok {
		if multisite, _, err = statLink(c.site.Root, "sites/sites.php"); err != nil {
			return audit.ScoreInfo, err
		}
	}
	c.multisite = multisite
	c.extra = nil
	for _, e := range entries {
		fi, err := fs.Stat(c.site.Root, path.Join("sites", e.Name()))
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		name := e.Name()
		if slices.Contains(allowedSitesFiles, name) {
			continue
		}
		// Multisite directory aliasing is fine off Pantheon.
		if name == "sites.php" && c.vendor != VendorPantheon {
			continue
		}
		c.extra = append(c.extra, name)
	}
	if len(c.extra) > 0 {
		return audit.ScoreWarn, nil
	}
	return audit.ScorePass, nil
}

func (c *sitesSuperfluous) Result(score audit.Score) string {
	switch score {
	case audit.ScorePass:
		return "No unnecessary files detected."
	case audit.ScoreWarn:
		return "The following extra files were detected: " + strings.Join(c.extra, ", ")
	}
	return ""
}

func (c *sitesSuperfluous) Action(score audit.Score) string {
	if score != audit.ScoreWarn {
		return ""
	}
	action := "Unless you have an explicit need for it, don't store anything other than settings here."
	if c.multisite && c.vendor == VendorPantheon {
		action += " Pantheon does not support multisite; remove sites/sites.php."
	}
	return action
}
