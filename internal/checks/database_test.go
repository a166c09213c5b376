package checks

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/siteaudit/internal/audit"
	"github.com/ppiankov/siteaudit/internal/drupal"
	"github.com/ppiankov/siteaudit/internal/probe"
)

func TestDatabaseHealthySite(t *testing.T) {
	site, _, _ := healthySite()
	rep := runCategory(t, site, audit.Options{}, categoryDatabase)

	assert.Len(t, rep.Checks, 4)
	assert.Equal(t, 100, rep.Percent)
	assert.Equal(t, "Total size: 50.00MB", checkResult(t, rep, "DatabaseSize").Result)
	assert.Equal(t, "Every table is using UTF-8.", checkResult(t, rep, "DatabaseCollation").Result)
	assert.Equal(t, audit.ScorePass, checkResult(t, rep, "DatabaseFragmentation").Score)

	rows := checkResult(t, rep, "DatabaseRowCount")
	assert.Equal(t, audit.ScoreInfo, rows.Score)
	assert.Equal(t, "No tables with more than 1000 rows.", rows.Result)
}

func TestDatabaseSizeEmptyAborts(t *testing.T) {
	site, db, _ := healthySite()
	db.size = 0
	rep := runCategory(t, site, audit.Options{}, categoryDatabase)

	require.Len(t, rep.Checks, 1)
	size := checkResult(t, rep, "DatabaseSize")
	assert.Equal(t, audit.ScoreFail, size.Score)
	assert.Equal(t, "Empty, or unable to determine the size due to a permission error.", size.Result)
	assert.Equal(t, 0, rep.Percent)
	assert.Zero(t, db.calls["TableCollations"])
}

func TestDatabaseSizeGroupsThousands(t *testing.T) {
	c := newDatabaseSize(&Site{DB: &fakeDB{size: 1610612736}})
	score, err := calculate(t, c, audit.Options{})
	require.NoError(t, err)
	assert.Equal(t, "Total size: 1,536.00MB", c.Result(score))
}

func TestDatabaseCollation(t *testing.T) {
	tests := []struct {
		name   string
		db     *fakeDB
		want   audit.Score
		result string
	}{
		{
			name: "non utf8 database",
			db: &fakeDB{
				encoding:   drupal.Encoding{Name: "SQL_ASCII"},
				collations: []drupal.TableCollation{{Table: "legacy_import", Collation: "C"}},
			},
			want:   audit.ScoreWarn,
			result: "(database): SQL_ASCII\nlegacy_import: C",
		},
		{
			name: "explicit table collations",
			db: &fakeDB{
				encoding:   drupal.Encoding{Name: "UTF8"},
				collations: []drupal.TableCollation{{Table: "node_field_data", Collation: "en_US"}},
			},
			want:   audit.ScoreInfo,
			result: "node_field_data: en_US",
		},
		{
			name:   "lower case encoding name",
			db:     &fakeDB{encoding: drupal.Encoding{Name: "utf8"}},
			want:   audit.ScorePass,
			result: "Every table is using UTF-8.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newDatabaseCollation(&Site{DB: tt.db})
			score, err := calculate(t, c, audit.Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, score)
			assert.Equal(t, tt.result, c.Result(score))
			if tt.want == audit.ScoreWarn {
				assert.Contains(t, c.Action(score), "ENCODING 'UTF8'")
			} else {
				assert.Empty(t, c.Action(score))
			}
		})
	}
}

func TestDatabaseFragmentation(t *testing.T) {
	db := &fakeDB{bloat: []drupal.TableBloat{{Table: "watchdog", Ratio: 0.25}, {Table: "cache_render", Ratio: 0.126}}}
	c := newDatabaseFragmentation(&Site{DB: db})
	score, err := calculate(t, c, audit.Options{})
	require.NoError(t, err)
	assert.Equal(t, audit.ScoreWarn, score)
	assert.Equal(t, "watchdog: 0.25\ncache_render: 0.13", c.Result(score))
	assert.Contains(t, c.Action(score), "VACUUM")
}

func TestDatabaseRowCount(t *testing.T) {
	db := &fakeDB{rows: []drupal.TableRows{{Table: "watchdog", Rows: 120000}, {Table: "node", Rows: 1500}}}
	c := newDatabaseRowCount(&Site{DB: db})
	score, err := calculate(t, c, audit.Options{})
	require.NoError(t, err)
	assert.Equal(t, audit.ScoreWarn, score)
	assert.Equal(t, "watchdog: 120000\nnode: 1500", c.Result(score))
}

func TestDatabaseUnavailable(t *testing.T) {
	site, db, _ := healthySite()
	db.err = probe.Unavailable(errors.New("connection refused"))
	rep := runCategory(t, site, audit.Options{}, categoryDatabase)

	assert.Len(t, rep.Checks, 4)
	for _, c := range rep.Checks {
		assert.Equal(t, audit.ScoreFail, c.Score, c.Label)
		assert.Contains(t, c.Result, "Unable to determine: ")
		assert.Contains(t, c.Result, "connection refused")
	}
	assert.Equal(t, 0, rep.Percent)
}
