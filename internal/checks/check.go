package checks

import (
	"encoding/json"
	"io/fs"
	"strconv"
	"strings"

	"github.com/ppiankov/siteaudit/internal/audit"
)

// Scratch keys shared between checks of the same run.
const (
	keyMultisite       = "multisite_enabled"
	keyCacheBins       = "cache_bins_all"
	keyCronLast        = "cron_last"
	keyViewsEnabled    = "views_enabled"
	keyWatchdogEnabled = "watchdog_enabled"
	keyWatchdogCount   = "watchdog_count"
)

// base carries the static identity of a check.
type base struct {
	id          string
	label       string
	description string
	category    string
}

func (b base) ID() string          { return b.id }
func (b base) Label() string       { return b.label }
func (b base) Description() string { return b.description }
func (b base) Category() string    { return b.category }

// aborts is embedded by checks that can stop the rest of their category.
type aborts struct {
	abort bool
}

func (a *aborts) ShouldAbort() bool { return a.abort }

// keyValueList renders one "key: value" line per pair, in order.
func keyValueList(pairs [][2]string) string {
	lines := make([]string, 0, len(pairs))
	for _, p := range pairs {
		lines = append(lines, p[0]+": "+p[1])
	}
	return strings.Join(lines, "\n")
}

// dig walks a decoded config object along a dotted path.
func dig(m map[string]any, path string) (any, bool) {
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// truthy follows PHP's loose boolean conversion for config values.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case string:
		return t != "" && t != "0"
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// toInt converts a decoded config or state value to an integer. Values that
// are not numeric yield 0.
func toInt(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int:
		return int64(t)
	case int64:
		return t
	case json.Number:
		n, _ := t.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n
	case bool:
		if t {
			return 1
		}
	}
	return 0
}

// stateInt decodes a numeric state value. Unset or non-numeric state is 0.
func stateInt(raw json.RawMessage) int64 {
	if raw == nil {
		return 0
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0
	}
	return toInt(v)
}

type lstatFS interface {
	Lstat(name string) (fs.FileInfo, error)
}

// lstat returns file info without following a final symbolic link when
// fsys supports it, and falls back to fs.Stat otherwise.
func lstat(fsys fs.FS, name string) (fs.FileInfo, error) {
	if l, ok := fsys.(lstatFS); ok {
		return l.Lstat(name)
	}
	return fs.Stat(fsys, name)
}

func isSymlink(fi fs.FileInfo) bool {
	return fi.Mode()&fs.ModeSymlink != 0
}

func isDev(run *audit.RunContext) bool {
	return run.Options.Environment == EnvDev
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return strings.ReplaceAll(many, "@count", strconv.FormatInt(n, 10))
}
