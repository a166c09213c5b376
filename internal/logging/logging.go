package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

// Log output formats accepted by --log-format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options configure the diagnostic logger. Audit output never goes through
// it; it only carries probe and scoring diagnostics on stderr.
type Options struct {
	Verbose bool
	Format  string
	Output  io.Writer
}

// Init configures the default slog logger with the text handler.
// verbose=true sets LevelDebug, otherwise LevelWarn (silent unless problems).
// output defaults to os.Stderr if nil.
func Init(verbose bool, output io.Writer) {
	slog.SetDefault(New(Options{Verbose: verbose, Output: output}))
}

// Setup is Init with a selectable handler format.
func Setup(opts Options) error {
	f, err := ParseFormat(opts.Format)
	if err != nil {
		return err
	}
	if f == FormatText {
		Init(opts.Verbose, opts.Output)
		return nil
	}
	slog.SetDefault(New(opts))
	return nil
}

// ParseFormat normalizes a --log-format value. Empty means text.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", errors.Newf("unknown log format %q (want text or json)", s)
	}
}

// New builds a logger for opts without installing it. An unknown format
// falls back to text.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if f, _ := ParseFormat(opts.Format); f == FormatJSON {
		handler = slog.NewJSONHandler(out, hopts)
	} else {
		handler = slog.NewTextHandler(out, hopts)
	}
	return slog.New(handler).With("tool", "site-audit")
}
