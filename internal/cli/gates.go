package cli

import (
	"strings"

	"github.com/ppiankov/siteaudit/internal/audit"
)

// parseFailOn reads a comma-separated list of score names (fail, warn,
// blocker, warning, ...).
func parseFailOn(s string) ([]audit.Score, error) {
	var out []audit.Score
	for _, p := range strings.Split(s, ",") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		score, err := audit.ParseScore(p)
		if err != nil {
			return nil, err
		}
		out = append(out, score)
	}
	return out, nil
}

// shouldFailOn returns true if any emitted check has one of the scores.
func shouldFailOn(agg audit.Aggregate, scores []audit.Score) bool {
	want := make(map[audit.Score]bool, len(scores))
	for _, s := range scores {
		want[s] = true
	}
	for _, r := range agg.Reports {
		for _, c := range r.Checks {
			if want[c.Score] {
				return true
			}
		}
	}
	return false
}

// belowMinPercent returns the keys of reports scoring under min. Reports
// made only of informational checks have no meaningful percent and are
// never reported.
func belowMinPercent(agg audit.Aggregate, min int) []string {
	if min <= 0 {
		return nil
	}
	var out []string
	for _, r := range agg.Reports {
		judged := false
		for _, c := range r.Checks {
			if c.Score.Judged() {
				judged = true
				break
			}
		}
		if judged && r.Percent < min {
			out = append(out, r.Key)
		}
	}
	return out
}
