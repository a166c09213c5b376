package checks

import (
	"context"
	"encoding/json"
	"io/fs"
	"path"
	"slices"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ppiankov/siteaudit/internal/audit"
	"github.com/ppiankov/siteaudit/internal/drupal"
)

var testNow = time.Unix(1700000000, 0).UTC()

type fakeDB struct {
	modules    []string
	size       int64
	encoding   drupal.Encoding
	collations []drupal.TableCollation
	rows       []drupal.TableRows
	bloat      []drupal.TableBloat
	bins       []drupal.CacheBin
	users      int64
	blocked    int64
	uid1       *drupal.User
	roles      []drupal.RoleCount
	views      int64
	entries    int64
	byType     map[string]int64
	severities []drupal.SeverityCount
	logRange   *drupal.LogRange

	err   error // returned by every probe when set
	calls map[string]int
}

func (f *fakeDB) call(name string) error {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
	return f.err
}

func (f *fakeDB) Modules(context.Context) ([]string, error) {
	return f.modules, f.call("Modules")
}

func (f *fakeDB) ModuleEnabled(_ context.Context, name string) (bool, error) {
	return slices.Contains(f.modules, name), f.call("ModuleEnabled")
}

func (f *fakeDB) TableExists(context.Context, string) (bool, error) {
	return true, f.call("TableExists")
}

func (f *fakeDB) DatabaseSize(context.Context) (int64, error) {
	return f.size, f.call("DatabaseSize")
}

func (f *fakeDB) DatabaseEncoding(context.Context) (drupal.Encoding, error) {
	return f.encoding, f.call("DatabaseEncoding")
}

func (f *fakeDB) TableCollations(context.Context) ([]drupal.TableCollation, error) {
	return f.collations, f.call("TableCollations")
}

func (f *fakeDB) TableRowCounts(context.Context, int64) ([]drupal.TableRows, error) {
	return f.rows, f.call("TableRowCounts")
}

func (f *fakeDB) DeadTupleRatios(context.Context, float64) ([]drupal.TableBloat, error) {
	return f.bloat, f.call("DeadTupleRatios")
}

func (f *fakeDB) CacheBins(context.Context) ([]drupal.CacheBin, error) {
	return f.bins, f.call("CacheBins")
}

func (f *fakeDB) CountUsers(context.Context) (int64, error) {
	return f.users, f.call("CountUsers")
}

func (f *fakeDB) CountBlockedUsers(context.Context) (int64, error) {
	return f.blocked, f.call("CountBlockedUsers")
}

func (f *fakeDB) UserByID(context.Context, int64) (*drupal.User, error) {
	return f.uid1, f.call("UserByID")
}

func (f *fakeDB) RoleCounts(context.Context) ([]drupal.RoleCount, error) {
	return f.roles, f.call("RoleCounts")
}

func (f *fakeDB) CountEnabledViews(context.Context) (int64, error) {
	return f.views, f.call("CountEnabledViews")
}

func (f *fakeDB) WatchdogCount(context.Context) (int64, error) {
	return f.entries, f.call("WatchdogCount")
}

func (f *fakeDB) WatchdogCountByType(_ context.Context, typ string) (int64, error) {
	return f.byType[typ], f.call("WatchdogCountByType")
}

func (f *fakeDB) WatchdogSeverityCounts(context.Context, string) ([]drupal.SeverityCount, error) {
	return f.severities, f.call("WatchdogSeverityCounts")
}

func (f *fakeDB) WatchdogRange(context.Context) (drupal.LogRange, bool, error) {
	if err := f.call("WatchdogRange"); err != nil || f.logRange == nil {
		return drupal.LogRange{}, false, err
	}
	return *f.logRange, true, nil
}

type fakeConfig struct {
	config map[string]map[string]any
	state  map[string]string
	err    error
}

func (f *fakeConfig) Config(_ context.Context, name string) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.config[name]; ok {
		return v, nil
	}
	return map[string]any{}, nil
}

func (f *fakeConfig) State(_ context.Context, key string) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.state[key]; ok {
		return json.RawMessage(v), nil
	}
	return nil, nil
}

// healthySite returns a site on which every judged check passes.
func healthySite() (*Site, *fakeDB, *fakeConfig) {
	db := &fakeDB{
		modules:  []string{"block", "dblog", "node", "system", "user", "views"},
		size:     52428800,
		encoding: drupal.Encoding{Name: "UTF8"},
		bins: []drupal.CacheBin{
			{Bin: "default", Table: "cache_default"},
			{Bin: "render", Table: "cache_render", Rows: 12},
		},
		users:    4,
		blocked:  1,
		uid1:     &drupal.User{UID: 1, Name: "admin", Mail: "admin@example.com"},
		roles:    []drupal.RoleCount{{Role: "administrator", Users: 1}, {Role: "editor", Users: 2}},
		views:    3,
		entries:  100,
		byType:   map[string]int64{},
		logRange: &drupal.LogRange{Oldest: testNow.Add(-36 * time.Hour), Newest: testNow},
	}
	cfg := &fakeConfig{
		config: map[string]map[string]any{
			"system.performance": {
				"fast_404": map[string]any{"enabled": true, "paths": "/\\.(?:txt|png)$/i"},
				"cache":    map[string]any{"page": map[string]any{"max_age": float64(3600)}},
				"css":      map[string]any{"preprocess": true},
				"js":       map[string]any{"preprocess": true},
			},
			"system.theme":           {"default": "olivero"},
			"automated_cron.settings": {"interval": float64(10800)},
		},
		state: map[string]string{"system.cron_last": "1699999000"},
	}
	root := fstest.MapFS{
		"modules/contrib/token/token.info.yml": {Data: []byte("name: Token\ntype: module\nversion: 8.x-1.13\n")},
		"modules/custom/site/site.info.yml":    {Data: []byte("name: Site\ntype: module\n")},
		"sites/default/settings.php":           {Data: []byte("<?php\n")},
		"sites/default/services.yml":           {Data: []byte("parameters:\n  cache_default_bin_backends:\n    render: cache.backend.memcache\n")},
		"sites/README.txt":                     {Data: []byte("readme")},
	}
	return &Site{DB: db, Config: cfg, Root: root, Now: func() time.Time { return testNow }}, db, cfg
}

// runCategory audits one category of site through the engine.
func runCategory(t *testing.T, site *Site, opts audit.Options, category string) audit.Report {
	t.Helper()
	o, err := audit.New(Roster(site), audit.Config{Options: opts})
	require.NoError(t, err)
	rep, err := o.RunCategory(context.Background(), category)
	require.NoError(t, err)
	return rep
}

func checkResult(t *testing.T, rep audit.Report, name string) audit.CheckResult {
	t.Helper()
	c, ok := rep.Check(audit.CheckKey(name))
	require.True(t, ok, "check %s missing from %s", name, rep.Key)
	return c
}

func actionOf(c audit.CheckResult) string {
	if c.Action == nil {
		return ""
	}
	return *c.Action
}

// calculate scores a single check outside the engine.
func calculate(t *testing.T, c audit.Check, opts audit.Options) (audit.Score, error) {
	t.Helper()
	return c.CalculateScore(context.Background(), audit.NewRunContext(opts, nil))
}

// linkFS adds symbolic links to a MapFS. Links resolve to their target on
// Open and Stat and are reported as links by Lstat.
type linkFS struct {
	fstest.MapFS
	links map[string]string
}

func (l linkFS) resolve(name string) string {
	if target, ok := l.links[name]; ok {
		return target
	}
	return name
}

func (l linkFS) Open(name string) (fs.File, error) {
	return l.MapFS.Open(l.resolve(name))
}

func (l linkFS) Stat(name string) (fs.FileInfo, error) {
	return l.MapFS.Stat(l.resolve(name))
}

func (l linkFS) ReadFile(name string) ([]byte, error) {
	return l.MapFS.ReadFile(l.resolve(name))
}

func (l linkFS) Lstat(name string) (fs.FileInfo, error) {
	if _, ok := l.links[name]; ok {
		return linkInfo(path.Base(name)), nil
	}
	return l.MapFS.Stat(name)
}

type linkInfo string

func (n linkInfo) Name() string       { return string(n) }
func (n linkInfo) Size() int64        { return 0 }
func (n linkInfo) Mode() fs.FileMode  { return fs.ModeSymlink | 0o777 }
func (n linkInfo) ModTime() time.Time { return time.Time{} }
func (n linkInfo) IsDir() bool        { return false }
func (n linkInfo) Sys() any           { return nil }
