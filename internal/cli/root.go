package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ppiankov/siteaudit/internal/config"
	"github.com/ppiankov/siteaudit/internal/logging"
	"github.com/ppiankov/siteaudit/internal/reporter"
)

// BuildInfo identifies the binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// ExitError carries a process exit code out of a command. Code 2 means a
// gate (--fail-on, --min-percent, --baseline) tripped after the report was
// written.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// app holds state shared by every subcommand of one invocation.
type app struct {
	info BuildInfo
	cfg  config.Config
	cwd  string

	dbURL     string
	root      string
	uri       string
	verbose   bool
	logFormat string
}

func newRootCmd(info BuildInfo) *cobra.Command {
	a := &app{info: info}

	root := &cobra.Command{
		Use:   "site-audit",
		Short: "Drupal site auditor",
		Long: "Audits a Drupal site's configuration, database and files against best " +
			"practices and reports a scored result per category.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.dbURL, "db-url", "", "Drupal database URL (or set SITE_AUDIT_DB_URL)")
	root.PersistentFlags().StringVar(&a.root, "root", "", "Drupal web root (or set SITE_AUDIT_ROOT)")
	root.PersistentFlags().StringVar(&a.uri, "uri", "", "site URI passed to drush (or set SITE_AUDIT_URI)")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable debug-level logging")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "text", "diagnostic log format: text or json")

	root.AddCommand(newVersionCmd(info))
	root.AddCommand(newValidateCmd())
	root.AddCommand(a.newReportsCmd())
	for _, cc := range categoryCommands {
		root.AddCommand(a.newCategoryCmd(cc))
	}

	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	err := logging.Setup(logging.Options{
		Verbose: a.verbose,
		Format:  a.logFormat,
		Output:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	a.cwd, err = os.Getwd()
	if err != nil {
		a.cwd = "."
	}
	a.cfg, err = config.Load(a.cwd)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if a.cfg.Path != "" {
		slog.Debug("config loaded", "path", a.cfg.Path)
	}

	// Flags win over config and SITE_AUDIT_* environment values.
	if a.dbURL == "" {
		a.dbURL = a.cfg.DBURL
	}
	if a.root == "" {
		a.root = a.cfg.Root
	}
	if a.uri == "" {
		a.uri = a.cfg.URI
	}
	return nil
}

// target names the audited site in report metadata.
func (a *app) target() string {
	switch {
	case a.uri != "":
		return a.uri
	case a.dbURL != "":
		return a.dbURL
	}
	return a.root
}

func newVersionCmd(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "site-audit %s (commit %s, built %s)\n",
				info.Version, info.Commit, info.Date)
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a JSON report against the report schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			errs, err := reporter.ValidateFile(args[0])
			if err != nil {
				return err
			}
			if len(errs) > 0 {
				for _, e := range errs {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), e)
				}
				return &ExitError{Code: 1}
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: valid\n", args[0])
			return err
		},
	}
}

// Execute runs the root command. Errors other than *ExitError are printed
// to stderr before being returned.
func Execute(info BuildInfo) error {
	cmd := newRootCmd(info)
	err := cmd.Execute()
	var ee *ExitError
	if err != nil && !errors.As(err, &ee) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
	return err
}
