package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ppiankov/siteaudit/internal/audit"
	"github.com/ppiankov/siteaudit/internal/baseline"
	"github.com/ppiankov/siteaudit/internal/checks"
	"github.com/ppiankov/siteaudit/internal/drupal"
	"github.com/ppiankov/siteaudit/internal/drush"
	"github.com/ppiankov/siteaudit/internal/reporter"
	"github.com/ppiankov/siteaudit/internal/suppress"
)

// categoryCommand maps a report category to its subcommand.
type categoryCommand struct {
	use      string
	alias    string
	category string
}

var categoryCommands = []categoryCommand{
	{"best-practices", "abp", "best_practices"},
	{"block", "ab", "block"},
	{"cache", "ac", "cache"},
	{"cron", "acr", "cron"},
	{"database", "ad", "database"},
	{"extensions", "ae", "extensions"},
	{"security", "asec", "security"},
	{"users", "au", "users"},
	{"views", "av", "views"},
	{"watchdog", "aw", "watchdog"},
}

type auditFlags struct {
	vendor         string
	detail         bool
	skip           []string
	format         string
	compact        bool
	showOptedOut   bool
	failOn         string
	minPercent     int
	baselinePath   string
	updateBaseline string
	progress       bool
}

func addAuditFlags(cmd *cobra.Command, f *auditFlags) {
	cmd.Flags().StringVar(&f.vendor, "vendor", "default", "hosting vendor, tunes some checks (e.g. pantheon, acquia)")
	cmd.Flags().BoolVar(&f.detail, "detail", false, "include per-item detail in results")
	cmd.Flags().StringSliceVar(&f.skip, "skip", nil, "check names, ids or categories to skip (comma-separated or repeated)")
	cmd.Flags().StringVar(&f.format, "format", "json", "output format: json, text, sarif, or spectrehub")
	cmd.Flags().BoolVar(&f.compact, "json", false, "write compact single-line JSON")
	cmd.Flags().BoolVar(&f.showOptedOut, "show-opted-out", false, "list opted-out checks as informational")
	cmd.Flags().StringVar(&f.failOn, "fail-on", "", "exit 2 if any check has one of these scores (comma-separated: fail,warn)")
	cmd.Flags().IntVar(&f.minPercent, "min-percent", 0, "exit 2 if any report scores below this percent")
	cmd.Flags().StringVar(&f.baselinePath, "baseline", "", "exit 2 if any check scores worse than in this baseline file")
	cmd.Flags().StringVar(&f.updateBaseline, "update-baseline", "", "save current scores as a new baseline")
	cmd.Flags().BoolVar(&f.progress, "progress", false, "show a progress bar when stderr is a terminal")
}

func (a *app) newReportsCmd() *cobra.Command {
	var f auditFlags
	cmd := &cobra.Command{
		Use:     "reports",
		Aliases: []string{"aa"},
		Short:   "Run every report",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAudit(cmd, &f, "")
		},
	}
	addAuditFlags(cmd, &f)
	return cmd
}

func (a *app) newCategoryCmd(cc categoryCommand) *cobra.Command {
	var f auditFlags
	label := cc.category
	if cat, ok := audit.LookupCategory(cc.category); ok {
		label = cat.Label
	}
	cmd := &cobra.Command{
		Use:     cc.use,
		Aliases: []string{cc.alias},
		Short:   "Run the " + label + " report",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAudit(cmd, &f, cc.category)
		},
	}
	addAuditFlags(cmd, &f)
	return cmd
}

// runAudit audits one category, or all of them when category is empty, and
// writes the report. Nothing is written to stdout when the audit fails.
func (a *app) runAudit(cmd *cobra.Command, f *auditFlags, category string) error {
	format, err := a.outputFormat(cmd, f)
	if err != nil {
		return err
	}
	failOn, err := parseFailOn(f.failOn)
	if err != nil {
		return err
	}
	vendor := f.vendor
	if !cmd.Flags().Changed("vendor") && a.cfg.Vendor != "" {
		vendor = a.cfg.Vendor
	}

	rules, err := suppress.LoadRules(a.cwd)
	if err != nil {
		return errors.Wrap(err, "load opt-outs")
	}
	rules.WithConfigOptOuts(a.cfg.OptOut)

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.TimeoutDuration())
	defer cancel()

	site, closeSite, err := a.openSite(ctx)
	if err != nil {
		return err
	}
	defer closeSite()

	bar := newProgress(cmd.ErrOrStderr(), f.progress)
	orch, err := audit.New(checks.Roster(site), audit.Config{
		Options: audit.Options{
			Vendor:      vendor,
			Detail:      f.detail,
			Environment: checks.DetectEnvironment(os.Getenv),
		},
		Exclusions:   rules.Exclusions(f.skip...),
		ShowOptedOut: f.showOptedOut,
		CheckTimeout: a.cfg.CheckTimeoutDuration(),
		OnScored:     bar.scored,
	})
	if err != nil {
		return errors.Wrap(err, "build checks")
	}
	warnUnmatched(rules, f.skip, orch.Registry())

	var agg audit.Aggregate
	if category == "" {
		bar.start(orch.Pending())
		agg, err = orch.Run(ctx)
	} else {
		bar.start(orch.Pending(category))
		var rep audit.Report
		rep, err = orch.RunCategory(ctx, category)
		agg = audit.Aggregate{Time: time.Now().Unix()}
		if len(rep.Checks) > 0 {
			agg.Reports = []audit.Report{rep}
		}
	}
	bar.finish()
	if err != nil {
		return errors.Wrap(err, "audit")
	}
	slog.Debug("audit complete", "reports", len(agg.Reports))

	if f.updateBaseline != "" {
		if err := baseline.Save(f.updateBaseline, agg); err != nil {
			return errors.Wrap(err, "save baseline")
		}
		slog.Info("baseline saved", "path", f.updateBaseline)
	}
	var regressions []baseline.Regression
	if f.baselinePath != "" {
		bl, err := baseline.Load(f.baselinePath)
		if err != nil {
			return errors.Wrap(err, "load baseline")
		}
		regressions = bl.Regressions(agg)
	}

	out := cmd.OutOrStdout()
	err = reporter.Write(out, &agg, reporter.Options{
		Format:  format,
		Compact: f.compact,
		Color:   format == reporter.FormatText && os.Getenv("NO_COLOR") == "" && reporter.IsTerminal(out),
		Meta:    reporter.Metadata{Version: a.info.Version, Target: a.target()},
	})
	if err != nil {
		return errors.Wrap(err, "write report")
	}

	return a.applyGates(cmd, agg, failOn, f.minPercent, regressions)
}

// outputFormat resolves --format, --json and the configured default.
func (a *app) outputFormat(cmd *cobra.Command, f *auditFlags) (reporter.Format, error) {
	if f.compact {
		if cmd.Flags().Changed("format") && reporter.Format(strings.ToLower(f.format)) != reporter.FormatJSON {
			return "", errors.Newf("--json cannot be combined with --format %s", f.format)
		}
		return reporter.FormatJSON, nil
	}
	name := f.format
	if !cmd.Flags().Changed("format") && a.cfg.Defaults.Format != "" {
		name = a.cfg.Defaults.Format
	}
	return reporter.ParseFormat(name)
}

// openSite connects the probes. Without a database URL the database checks
// report themselves as undeterminable; a URL that cannot be reached is an
// error.
func (a *app) openSite(ctx context.Context) (*checks.Site, func(), error) {
	var db *drupal.Inspector
	if a.dbURL == "" {
		slog.Warn("no database URL configured, database checks will not be determined")
		db = drupal.Offline(errors.New("no database URL (set --db-url or SITE_AUDIT_DB_URL)"))
	} else {
		var err error
		db, err = drupal.NewInspector(ctx, drupal.Config{
			URL:         a.dbURL,
			TablePrefix: a.cfg.TablePrefix,
			Schema:      a.cfg.Schema,
		})
		if err != nil {
			return nil, nil, err
		}
		if ver, err := db.ServerVersion(ctx); err == nil {
			slog.Debug("connected", "version", ver)
		}
	}

	site := &checks.Site{
		DB:     db,
		Config: drush.New(drush.Config{Bin: a.cfg.Drush, Root: a.root, URI: a.uri}),
	}
	if a.root != "" {
		site.Root = os.DirFS(a.root)
	}
	return site, db.Close, nil
}

// warnUnmatched logs opt-outs and skips that name no check or category.
func warnUnmatched(rules *suppress.Rules, skip []string, reg *audit.Registry) {
	known := make(map[string]bool)
	for _, c := range audit.Categories {
		known[c.ID] = true
	}
	for _, id := range reg.IDs() {
		known[id] = true
		known[reg.Name(id)] = true
	}
	match := func(name string) bool { return known[name] }

	for _, name := range rules.Unmatched(match) {
		slog.Warn("opt-out matches no check", "name", name, "reason", rules.Reason(name))
	}
	for _, name := range audit.NewExclusionSet(skip...).Names() {
		if !match(name) {
			slog.Warn("--skip matches no check", "name", name)
		}
	}
}

// applyGates returns an *ExitError with code 2 when a gate trips.
func (a *app) applyGates(cmd *cobra.Command, agg audit.Aggregate, failOn []audit.Score, minPercent int, regressions []baseline.Regression) error {
	stderr := cmd.ErrOrStderr()
	tripped := false

	if len(failOn) > 0 && shouldFailOn(agg, failOn) {
		_, _ = fmt.Fprintln(stderr, "fail-on: matching checks found")
		tripped = true
	}
	for _, key := range belowMinPercent(agg, minPercent) {
		_, _ = fmt.Fprintf(stderr, "min-percent: %s is below %d%%\n", key, minPercent)
		tripped = true
	}
	for _, r := range regressions {
		_, _ = fmt.Fprintf(stderr, "regression: %s/%s (%s) %s -> %s\n",
			r.Report, r.Check, r.Label, r.Was.Label(), r.Now.Label())
		tripped = true
	}

	if tripped {
		return &ExitError{Code: 2}
	}
	return nil
}
