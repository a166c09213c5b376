package baseline

import (
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/siteaudit/internal/audit"
)

// Baseline holds the scores of a previous audit, keyed by check key.
type Baseline struct {
	Time     int64                  `json:"time"`
	Scores   map[string]audit.Score `json:"scores"`
	Percents map[string]int         `json:"percents"`
}

// Regression is a judged check whose score dropped since the baseline.
type Regression struct {
	Report string
	Check  string
	Label  string
	Was    audit.Score
	Now    audit.Score
}

// Load reads a baseline file. Returns an empty baseline if the file does not exist.
func Load(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Baseline{Scores: map[string]audit.Score{}, Percents: map[string]int{}}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read baseline")
	}

	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, errors.Wrap(err, "parse baseline")
	}
	if b.Scores == nil {
		b.Scores = map[string]audit.Score{}
	}
	if b.Percents == nil {
		b.Percents = map[string]int{}
	}
	return &b, nil
}

// New captures the scores of an audit.
func New(agg audit.Aggregate) *Baseline {
	b := &Baseline{Time: agg.Time, Scores: map[string]audit.Score{}, Percents: map[string]int{}}
	for _, r := range agg.Reports {
		b.Percents[r.Key] = r.Percent
		for _, c := range r.Checks {
			b.Scores[c.Key] = c.Score
		}
	}
	return b
}

// Save writes the scores of agg to a baseline file.
func Save(path string, agg audit.Aggregate) error {
	data, err := json.MarshalIndent(New(agg), "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal baseline")
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// Len returns the number of checks in the baseline.
func (b *Baseline) Len() int {
	return len(b.Scores)
}

// Regressions compares agg against the baseline, in report order. A check
// regresses when it was and still is judged (not Info) and its score went
// down the Fail < Warn < Pass order. Checks missing from either side are
// ignored.
func (b *Baseline) Regressions(agg audit.Aggregate) []Regression {
	var out []Regression
	for _, r := range agg.Reports {
		for _, c := range r.Checks {
			was, ok := b.Scores[c.Key]
			if !ok || !was.Judged() || !c.Score.Judged() {
				continue
			}
			if c.Score < was {
				out = append(out, Regression{Report: r.Key, Check: c.Key, Label: c.Label, Was: was, Now: c.Score})
			}
		}
	}
	return out
}
