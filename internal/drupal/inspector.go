// Package drupal reads site state from a Drupal database on PostgreSQL.
package drupal

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ppiankov/siteaudit/internal/probe"
)

// Inspector queries Drupal tables and PostgreSQL statistics.
//
// Query failures are marked probe.ErrUnavailable so the calling check can
// degrade to a failed score. Failures while scanning returned rows are
// not marked: they point at a schema the inspector does not understand.
type Inspector struct {
	pool    *pgxpool.Pool
	prefix  string
	connErr error
}

// NewInspector connects to the database, retrying transient failures, and
// verifies the connection.
func NewInspector(ctx context.Context, cfg Config) (*Inspector, error) {
	return connectWithRetry(ctx, cfg)
}

func newInspectorOnce(ctx context.Context, cfg Config) (*Inspector, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	if cfg.Schema != "" {
		poolCfg.ConnConfig.RuntimeParams["search_path"] = cfg.Schema
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping")
	}
	return &Inspector{pool: pool, prefix: cfg.TablePrefix}, nil
}

// Offline returns an inspector for a database that could not be reached.
// Every query reports err as unavailable.
func Offline(err error) *Inspector {
	if err == nil {
		err = errors.New("database not configured")
	}
	return &Inspector{connErr: err}
}

// Close releases the connection pool.
func (i *Inspector) Close() {
	if i.pool != nil {
		i.pool.Close()
	}
}

// table returns the quoted, prefixed name of a Drupal table.
func (i *Inspector) table(name string) string {
	return pgx.Identifier{i.prefix + name}.Sanitize()
}

func (i *Inspector) unavailable(what string, err error) error {
	return probe.Unavailable(errors.Wrap(err, what))
}

func (i *Inspector) query(ctx context.Context, what, sql string, args ...any) (pgx.Rows, error) {
	if i.pool == nil {
		return nil, i.unavailable(what, i.connErr)
	}
	rows, err := i.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, i.unavailable(what, err)
	}
	return rows, nil
}

func (i *Inspector) queryRow(ctx context.Context, what, sql string, args []any, dest ...any) error {
	if i.pool == nil {
		return i.unavailable(what, i.connErr)
	}
	if err := i.pool.QueryRow(ctx, sql, args...).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		return i.unavailable(what, err)
	}
	return nil
}

// ServerVersion returns the PostgreSQL server version string.
func (i *Inspector) ServerVersion(ctx context.Context) (string, error) {
	var version string
	if err := i.queryRow(ctx, "server version", "SHOW server_version", nil, &version); err != nil {
		return "", err
	}
	return version, nil
}

// Modules returns the installed modules, sorted by name. Drupal keeps one
// system.schema entry per installed module.
func (i *Inspector) Modules(ctx context.Context) ([]string, error) {
	sql := `SELECT name FROM ` + i.table("key_value") + `
		WHERE collection = 'system.schema'
		ORDER BY name`

	rows, err := i.query(ctx, "get modules", sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "scan module")
		}
		modules = append(modules, name)
	}
	if err := rows.Err(); err != nil {
		return nil, i.unavailable("get modules", err)
	}
	return modules, nil
}

// ModuleEnabled reports whether a module is installed.
func (i *Inspector) ModuleEnabled(ctx context.Context, name string) (bool, error) {
	sql := `SELECT EXISTS (
		SELECT 1 FROM ` + i.table("key_value") + `
		WHERE collection = 'system.schema' AND name = $1)`

	var ok bool
	if err := i.queryRow(ctx, "module enabled", sql, []any{name}, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// TableExists reports whether a Drupal table exists in the current schema.
func (i *Inspector) TableExists(ctx context.Context, name string) (bool, error) {
	sql := `SELECT EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = $1)`

	var ok bool
	if err := i.queryRow(ctx, "table exists", sql, []any{i.prefix + name}, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// DatabaseSize returns the on-disk size of the database in bytes.
func (i *Inspector) DatabaseSize(ctx context.Context) (int64, error) {
	var size int64
	if err := i.queryRow(ctx, "database size", "SELECT pg_database_size(current_database())", nil, &size); err != nil {
		return 0, err
	}
	return size, nil
}

// DatabaseEncoding returns the encoding and locale of the database.
func (i *Inspector) DatabaseEncoding(ctx context.Context) (Encoding, error) {
	sql := `SELECT pg_encoding_to_char(encoding), datcollate, datctype
		FROM pg_catalog.pg_database
		WHERE datname = current_database()`

	var enc Encoding
	if err := i.queryRow(ctx, "database encoding", sql, nil, &enc.Name, &enc.Collate, &enc.CType); err != nil {
		return Encoding{}, err
	}
	return enc, nil
}

// TableCollations lists tables whose columns use an explicit collation.
func (i *Inspector) TableCollations(ctx context.Context) ([]TableCollation, error) {
	sql := `SELECT table_name::text, MIN(collation_name)::text
		FROM information_schema.columns
		WHERE table_schema = current_schema()
			AND table_name LIKE $1
			AND collation_name IS NOT NULL
			AND collation_name <> 'default'
		GROUP BY table_name
		ORDER BY table_name`

	rows, err := i.query(ctx, "get collations", sql, likePrefix(i.prefix)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TableCollation
	for rows.Next() {
		var tc TableCollation
		if err := rows.Scan(&tc.Table, &tc.Collation); err != nil {
			return nil, errors.Wrap(err, "scan collation")
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, i.unavailable("get collations", err)
	}
	return out, nil
}

// TableRowCounts returns tables with more than minRows estimated rows,
// largest first.
func (i *Inspector) TableRowCounts(ctx context.Context, minRows int64) ([]TableRows, error) {
	sql := `SELECT c.relname, GREATEST(c.reltuples, 0)::bigint
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = current_schema()
			AND c.relkind = 'r'
			AND c.relname LIKE $1
			AND c.reltuples > $2::bigint
		ORDER BY c.reltuples DESC, c.relname`

	rows, err := i.query(ctx, "get row counts", sql, likePrefix(i.prefix)+"%", minRows)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TableRows
	for rows.Next() {
		var tr TableRows
		if err := rows.Scan(&tr.Table, &tr.Rows); err != nil {
			return nil, errors.Wrap(err, "scan row count")
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, i.unavailable("get row counts", err)
	}
	return out, nil
}

// DeadTupleRatios returns tables whose share of dead tuples exceeds
// minRatio, worst first.
func (i *Inspector) DeadTupleRatios(ctx context.Context, minRatio float64) ([]TableBloat, error) {
	sql := `SELECT relname, live, dead, dead::float8 / (live + dead) AS ratio
		FROM (
			SELECT relname,
				COALESCE(n_live_tup, 0) AS live,
				COALESCE(n_dead_tup, 0) AS dead
			FROM pg_catalog.pg_stat_user_tables
			WHERE schemaname = current_schema() AND relname LIKE $1
		) s
		WHERE live + dead > 0 AND dead::float8 / (live + dead) > $2
		ORDER BY ratio DESC, relname`

	rows, err := i.query(ctx, "get dead tuples", sql, likePrefix(i.prefix)+"%", minRatio)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TableBloat
	for rows.Next() {
		var b TableBloat
		if err := rows.Scan(&b.Table, &b.LiveTuples, &b.DeadTuples, &b.Ratio); err != nil {
			return nil, errors.Wrap(err, "scan dead tuples")
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, i.unavailable("get dead tuples", err)
	}
	return out, nil
}

// CacheBins returns the database cache bins, i.e. the cache_* tables other
// than the cache tag checksum table.
func (i *Inspector) CacheBins(ctx context.Context) ([]CacheBin, error) {
	sql := `SELECT c.relname, GREATEST(c.reltuples, 0)::bigint
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = current_schema()
			AND c.relkind = 'r'
			AND c.relname LIKE $1
			AND c.relname <> $2
		ORDER BY c.relname`

	cachePrefix := i.prefix + "cache_"
	rows, err := i.query(ctx, "get cache bins", sql, likePrefix(cachePrefix)+"%", i.prefix+"cachetags")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CacheBin
	for rows.Next() {
		var b CacheBin
		if err := rows.Scan(&b.Table, &b.Rows); err != nil {
			return nil, errors.Wrap(err, "scan cache bin")
		}
		b.Bin = strings.TrimPrefix(b.Table, cachePrefix)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, i.unavailable("get cache bins", err)
	}
	return out, nil
}

// CountUsers returns the number of user accounts, excluding anonymous.
func (i *Inspector) CountUsers(ctx context.Context) (int64, error) {
	sql := `SELECT COUNT(*) FROM ` + i.table("users_field_data") + ` WHERE uid > 0`
	var n int64
	if err := i.queryRow(ctx, "count users", sql, nil, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// CountBlockedUsers returns the number of blocked accounts.
func (i *Inspector) CountBlockedUsers(ctx context.Context) (int64, error) {
	sql := `SELECT COUNT(*) FROM ` + i.table("users_field_data") + ` WHERE uid > 0 AND status = 0`
	var n int64
	if err := i.queryRow(ctx, "count blocked users", sql, nil, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// UserByID loads one account. It returns nil when the account does not exist.
func (i *Inspector) UserByID(ctx context.Context, uid int64) (*User, error) {
	sql := `SELECT uid, COALESCE(name, ''), COALESCE(mail, ''), status = 1
		FROM ` + i.table("users_field_data") + `
		WHERE uid = $1
		ORDER BY default_langcode DESC
		LIMIT 1`

	var u User
	err := i.queryRow(ctx, "load user", sql, []any{uid}, &u.UID, &u.Name, &u.Mail, &u.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// RoleCounts returns the number of users per role, by role name.
func (i *Inspector) RoleCounts(ctx context.Context) ([]RoleCount, error) {
	sql := `SELECT roles_target_id, COUNT(entity_id)
		FROM ` + i.table("user__roles") + `
		GROUP BY roles_target_id
		ORDER BY roles_target_id`

	rows, err := i.query(ctx, "get roles", sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoleCount
	for rows.Next() {
		var rc RoleCount
		if err := rows.Scan(&rc.Role, &rc.Users); err != nil {
			return nil, errors.Wrap(err, "scan role")
		}
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, i.unavailable("get roles", err)
	}
	return out, nil
}

// CountEnabledViews returns the number of view config entities whose
// status is true. Config data is PHP-serialized.
func (i *Inspector) CountEnabledViews(ctx context.Context) (int64, error) {
	sql := `SELECT COUNT(*) FROM ` + i.table("config") + `
		WHERE collection = ''
			AND name LIKE 'views.view.%'
			AND position('s:6:"status";b:1;' IN convert_from(data, 'UTF8')) > 0`

	var n int64
	if err := i.queryRow(ctx, "count views", sql, nil, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// WatchdogCount returns the number of dblog entries.
func (i *Inspector) WatchdogCount(ctx context.Context) (int64, error) {
	sql := `SELECT COUNT(wid) FROM ` + i.table("watchdog")
	var n int64
	if err := i.queryRow(ctx, "count watchdog", sql, nil, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// WatchdogCountByType returns the number of dblog entries of one type.
func (i *Inspector) WatchdogCountByType(ctx context.Context, typ string) (int64, error) {
	sql := `SELECT COUNT(wid) FROM ` + i.table("watchdog") + ` WHERE type = $1`
	var n int64
	if err := i.queryRow(ctx, "count watchdog type", sql, []any{typ}, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// WatchdogSeverityCounts returns dblog entries of one type grouped by
// severity, most severe first.
func (i *Inspector) WatchdogSeverityCounts(ctx context.Context, typ string) ([]SeverityCount, error) {
	sql := `SELECT severity, COUNT(wid)
		FROM ` + i.table("watchdog") + `
		WHERE type = $1
		GROUP BY severity
		ORDER BY severity`

	rows, err := i.query(ctx, "get watchdog severities", sql, typ)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SeverityCount
	for rows.Next() {
		var sc SeverityCount
		if err := rows.Scan(&sc.Severity, &sc.Count); err != nil {
			return nil, errors.Wrap(err, "scan watchdog severity")
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, i.unavailable("get watchdog severities", err)
	}
	return out, nil
}

// WatchdogRange returns the timestamps of the first and last dblog
// entries. ok is false when the log is empty.
func (i *Inspector) WatchdogRange(ctx context.Context) (LogRange, bool, error) {
	sql := `SELECT
			(SELECT timestamp FROM ` + i.table("watchdog") + ` ORDER BY wid ASC LIMIT 1),
			(SELECT timestamp FROM ` + i.table("watchdog") + ` ORDER BY wid DESC LIMIT 1)`

	var oldest, newest *int64
	if err := i.queryRow(ctx, "watchdog range", sql, nil, &oldest, &newest); err != nil {
		return LogRange{}, false, err
	}
	if oldest == nil || newest == nil {
		return LogRange{}, false, nil
	}
	return LogRange{
		Oldest: time.Unix(*oldest, 0).UTC(),
		Newest: time.Unix(*newest, 0).UTC(),
	}, true, nil
}

// likePrefix escapes LIKE wildcards in a literal prefix.
func likePrefix(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
