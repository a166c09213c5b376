package checks

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ppiankov/siteaudit/internal/audit"
	"github.com/ppiankov/siteaudit/internal/drupal"
)

const (
	categoryDatabase   = "database"
	fragmentationRatio = 0.05
	largeTableRows     = 1000
)

type databaseSize struct {
	base
	aborts
	site *Site
	size int64
}

func newDatabaseSize(site *Site) audit.Check {
	return &databaseSize{
		base: base{"database_size", "Total size", "Determine the size of the database.", categoryDatabase},
		site: site,
	}
}

func (c *databaseSize) CalculateScore(ctx context.Context, _ *audit.RunContext) (audit.Score, error) {
	size, err := c.site.DB.DatabaseSize(ctx)
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.size = size
	if size <= 0 {
		c.abort = true
		return audit.ScoreFail, nil
	}
	return audit.ScoreInfo, nil
}

func (c *databaseSize) Result(score audit.Score) string {
	switch score {
	case audit.ScoreFail:
		return "Empty, or unable to determine the size due to a permission error."
	case audit.ScoreInfo:
		p := message.NewPrinter(language.English)
		return p.Sprintf("Total size: %.2fMB", float64(c.size)/1048576)
	}
	return ""
}

func (c *databaseSize) Action(audit.Score) string { return "" }

type databaseCollation struct {
	base
	site   *Site
	tables [][2]string
}

func newDatabaseCollation(site *Site) audit.Check {
	return &databaseCollation{
		base: base{"database_collation", "Collations",
			"Check to see if there are any tables that aren't using UTF-8.", categoryDatabase},
		site: site,
	}
}

func (c *databaseCollation) CalculateScore(ctx context.Context, _ *audit.RunContext) (audit.Score, error) {
	enc, err := c.site.DB.DatabaseEncoding(ctx)
	if err != nil {
		return audit.ScoreInfo, err
	}
	collations, err := c.site.DB.TableCollations(ctx)
	if err != nil {
		return audit.ScoreInfo, err
	}

	c.tables = c.tables[:0]
	utf8 := strings.EqualFold(enc.Name, "UTF8")
	if !utf8 {
		c.tables = append(c.tables, [2]string{"(database)", enc.Name})
	}
	for _, tc := range collations {
		c.tables = append(c.tables, [2]string{tc.Table, tc.Collation})
	}
	switch {
	case !utf8:
		return audit.ScoreWarn, nil
	case len(c.tables) > 0:
		return audit.ScoreInfo, nil
	}
	return audit.ScorePass, nil
}

func (c *databaseCollation) Result(score audit.Score) string {
	switch score {
	case audit.ScorePass:
		return "Every table is using UTF-8."
	case audit.ScoreInfo, audit.ScoreWarn:
		return keyValueList(c.tables)
	}
	return ""
}

func (c *databaseCollation) Action(score audit.Score) string {
	if score == audit.ScoreWarn {
		return "The encoding of a PostgreSQL database is fixed when it is created; dump the data, recreate the database with ENCODING 'UTF8' and restore it. Of course, test first and ensure your data will not be negatively affected."
	}
	return ""
}

type databaseFragmentation struct {
	base
	site   *Site
	tables []drupal.TableBloat
}

func newDatabaseFragmentation(site *Site) audit.Check {
	return &databaseFragmentation{
		base: base{"database_fragmentation", "Database Fragmentation",
			"Detect table fragmentation which increases storage space and decreases I/O efficiency.", categoryDatabase},
		site: site,
	}
}

func (c *databaseFragmentation) CalculateScore(ctx context.Context, _ *audit.RunContext) (audit.Score, error) {
	tables, err := c.site.DB.DeadTupleRatios(ctx, fragmentationRatio)
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.tables = tables
	if len(tables) == 0 {
		return audit.ScorePass, nil
	}
	return audit.ScoreWarn, nil
}

func (c *databaseFragmentation) Result(score audit.Score) string {
	if score != audit.ScoreWarn {
		return ""
	}
	pairs := make([][2]string, 0, len(c.tables))
	for _, t := range c.tables {
		pairs = append(pairs, [2]string{t.Table, strconv.FormatFloat(t.Ratio, 'f', 2, 64)})
	}
	return keyValueList(pairs)
}

func (c *databaseFragmentation) Action(score audit.Score) string {
	if score == audit.ScoreWarn {
		return `Run "VACUUM" on the fragmented tables, or "VACUUM FULL" to return the space to the operating system. Refer to https://www.postgresql.org/docs/current/routine-vacuuming.html for more details.`
	}
	return ""
}

type databaseRowCount struct {
	base
	site   *Site
	tables []drupal.TableRows
}

func newDatabaseRowCount(site *Site) audit.Check {
	return &databaseRowCount{
		base: base{"database_row_count", "Tables with at least 1000 rows",
			"Return list of all tables with at least 1000 rows in the database.", categoryDatabase},
		site: site,
	}
}

func (c *databaseRowCount) CalculateScore(ctx context.Context, _ *audit.RunContext) (audit.Score, error) {
	tables, err := c.site.DB.TableRowCounts(ctx, largeTableRows)
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.tables = tables
	if len(tables) > 0 {
		return audit.ScoreWarn, nil
	}
	return audit.ScoreInfo, nil
}

func (c *databaseRowCount) Result(score audit.Score) string {
	if score != audit.ScoreInfo && score != audit.ScoreWarn {
		return ""
	}
	if len(c.tables) == 0 {
		return "No tables with more than 1000 rows."
	}
	pairs := make([][2]string, 0, len(c.tables))
	for _, t := range c.tables {
		pairs = append(pairs, [2]string{t.Table, strconv.FormatInt(t.Rows, 10)})
	}
	return keyValueList(pairs)
}

func (c *databaseRowCount) Action(audit.Score) string { return "" }
