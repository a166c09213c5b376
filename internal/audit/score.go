package audit

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Score is the ordinal verdict of a check.
//
// The numeric order is Fail < Warn < Pass < Info. Info is not "better than
// Pass": it carries no verdict and is left out of percentage math.
type Score int

const (
	ScoreFail Score = 0
	ScoreWarn Score = 1
	ScorePass Score = 2
	ScoreInfo Score = 3
)

// Scores lists every score value.
var Scores = []Score{ScoreFail, ScoreWarn, ScorePass, ScoreInfo}

func (s Score) String() string {
	switch s {
	case ScoreFail:
		return "fail"
	case ScoreWarn:
		return "warn"
	case ScorePass:
		return "pass"
	case ScoreInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Label returns the human label shown next to a result.
func (s Score) Label() string {
	switch s {
	case ScorePass:
		return "Pass"
	case ScoreWarn:
		return "Warning"
	case ScoreInfo:
		return "Information"
	default:
		return "Blocker"
	}
}

// Valid reports whether s is one of the four defined values.
func (s Score) Valid() bool {
	return s >= ScoreFail && s <= ScoreInfo
}

// Judged reports whether the score counts toward a category percentage.
func (s Score) Judged() bool {
	return s != ScoreInfo
}

// ParseScore parses a score name (fail, warn, pass, info), case-insensitively.
// "warning" and "blocker" are accepted as aliases.
func ParseScore(name string) (Score, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fail", "blocker":
		return ScoreFail, nil
	case "warn", "warning":
		return ScoreWarn, nil
	case "pass":
		return ScorePass, nil
	case "info", "information":
		return ScoreInfo, nil
	}
	return ScoreInfo, errors.Newf("unknown score %q", name)
}
