package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreValues(t *testing.T) {
	assert.Equal(t, 0, int(ScoreFail))
	assert.Equal(t, 1, int(ScoreWarn))
	assert.Equal(t, 2, int(ScorePass))
	assert.Equal(t, 3, int(ScoreInfo))
}

func TestScoreStringAndLabel(t *testing.T) {
	tests := []struct {
		score Score
		str   string
		label string
	}{
		{ScoreFail, "fail", "Blocker"},
		{ScoreWarn, "warn", "Warning"},
		{ScorePass, "pass", "Pass"},
		{ScoreInfo, "info", "Information"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.str, tt.score.String())
		assert.Equal(t, tt.label, tt.score.Label())
		assert.True(t, tt.score.Valid())
	}
	assert.False(t, Score(7).Valid())
	assert.Equal(t, "unknown", Score(-1).String())
}

func TestScoreJudged(t *testing.T) {
	assert.True(t, ScoreFail.Judged())
	assert.True(t, ScorePass.Judged())
	assert.False(t, ScoreInfo.Judged())
}

func TestParseScore(t *testing.T) {
	for in, want := range map[string]Score{
		"fail":    ScoreFail,
		"Blocker": ScoreFail,
		"WARN":    ScoreWarn,
		"warning": ScoreWarn,
		" pass ":  ScorePass,
		"info":    ScoreInfo,
	} {
		got, err := ParseScore(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseScore("critical")
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "SiteAuditReportBestPractices", ReportKey("best_practices"))
	assert.Equal(t, "SiteAuditReportCache", ReportKey("cache"))
	assert.Equal(t, "SiteAuditReportFrontEnd", ReportKey("front_end"))
	assert.Equal(t, "SiteAuditCheckCachePreprocessCSS", CheckKey("CachePreprocessCSS"))
	assert.Equal(t, "", PascalCase(""))
}

func TestCategories(t *testing.T) {
	require.Len(t, Categories, 12)
	assert.Equal(t, "best_practices", Categories[0].ID)
	assert.Equal(t, "watchdog", Categories[len(Categories)-1].ID)

	c, ok := LookupCategory("cache")
	require.True(t, ok)
	assert.Equal(t, "Drupal's caching settings", c.Label)

	_, ok = LookupCategory("nope")
	assert.False(t, ok)
}
