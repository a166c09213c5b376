package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/siteaudit/internal/audit"
)

// Format controls report output format.
type Format string

const (
	FormatText       Format = "text"
	FormatJSON       Format = "json"
	FormatSARIF      Format = "sarif"
	FormatSpectreHub Format = "spectrehub"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatSARIF, FormatSpectreHub:
		return f, nil
	}
	return "", errors.Newf("unknown format %q (want json, text, sarif or spectrehub)", s)
}

// Metadata holds report context that is not part of the audit itself.
type Metadata struct {
	Version string
	// Target identifies the audited site (URI or database URL). Only its
	// hash is written.
	Target string
}

// Options control how an aggregate is written.
type Options struct {
	Format Format
	// Compact writes JSON on a single line.
	Compact bool
	// Color enables ANSI colors in text output.
	Color bool
	Meta  Metadata
}

// Write outputs the aggregate in the configured format.
func Write(w io.Writer, agg *audit.Aggregate, opts Options) error {
	switch opts.Format {
	case FormatText:
		return writeText(w, agg, opts.Color)
	case FormatSARIF:
		return writeSARIF(w, agg, opts.Meta)
	case FormatSpectreHub:
		return writeSpectreHub(w, agg, opts.Meta)
	default:
		return writeJSON(w, agg, opts.Compact)
	}
}

func writeJSON(w io.Writer, agg *audit.Aggregate, compact bool) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return errors.Wrap(enc.Encode(agg), "encode report")
}

// Summary counts emitted checks by score.
type Summary struct {
	Total int
	Fail  int
	Warn  int
	Pass  int
	Info  int
}

// Summarize counts the checks of every report in agg.
func Summarize(agg *audit.Aggregate) Summary {
	var s Summary
	for _, r := range agg.Reports {
		for _, c := range r.Checks {
			s.Total++
			switch c.Score {
			case audit.ScoreFail:
				s.Fail++
			case audit.ScoreWarn:
				s.Warn++
			case audit.ScorePass:
				s.Pass++
			case audit.ScoreInfo:
				s.Info++
			}
		}
	}
	return s
}

func writeText(w io.Writer, agg *audit.Aggregate, colored bool) error {
	if len(agg.Reports) == 0 {
		_, err := fmt.Fprintln(w, "No reports.")
		return err
	}

	p := newPalette(colored)
	for i, r := range agg.Reports {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", p.title.Sprint(r.Label), p.percent(r.Percent)); err != nil {
			return err
		}
		for _, c := range r.Checks {
			if _, err := fmt.Fprintf(w, "  %s %s\n", p.score(c.Score), c.Label); err != nil {
				return err
			}
			if c.Result != "" {
				if _, err := fmt.Fprintln(w, indent(c.Result, "    ")); err != nil {
					return err
				}
			}
			if c.Action != nil && *c.Action != "" {
				if _, err := fmt.Fprintln(w, indent(p.action.Sprint("Action: ")+*c.Action, "    ")); err != nil {
					return err
				}
			}
		}
	}

	s := Summarize(agg)
	_, err := fmt.Fprintf(w, "\nSummary: %d checks (fail=%d warn=%d pass=%d info=%d)\n",
		s.Total, s.Fail, s.Warn, s.Pass, s.Info)
	return err
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}
