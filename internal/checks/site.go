// Package checks holds the Drupal audit checks and the roster that wires
// them into the audit engine.
package checks

import (
	"context"
	"encoding/json"
	"io/fs"
	"time"

	"github.com/ppiankov/siteaudit/internal/drupal"
)

// Database is the read-only view of the Drupal database the checks need.
// *drupal.Inspector implements it.
type Database interface {
	Modules(ctx context.Context) ([]string, error)
	ModuleEnabled(ctx context.Context, name string) (bool, error)
	TableExists(ctx context.Context, name string) (bool, error)

	DatabaseSize(ctx context.Context) (int64, error)
	DatabaseEncoding(ctx context.Context) (drupal.Encoding, error)
	TableCollations(ctx context.Context) ([]drupal.TableCollation, error)
	TableRowCounts(ctx context.Context, minRows int64) ([]drupal.TableRows, error)
	DeadTupleRatios(ctx context.Context, minRatio float64) ([]drupal.TableBloat, error)
	CacheBins(ctx context.Context) ([]drupal.CacheBin, error)

	CountUsers(ctx context.Context) (int64, error)
	CountBlockedUsers(ctx context.Context) (int64, error)
	UserByID(ctx context.Context, uid int64) (*drupal.User, error)
	RoleCounts(ctx context.Context) ([]drupal.RoleCount, error)

	CountEnabledViews(ctx context.Context) (int64, error)

	WatchdogCount(ctx context.Context) (int64, error)
	WatchdogCountByType(ctx context.Context, typ string) (int64, error)
	WatchdogSeverityCounts(ctx context.Context, typ string) ([]drupal.SeverityCount, error)
	WatchdogRange(ctx context.Context) (drupal.LogRange, bool, error)
}

// ConfigReader reads active configuration and state. *drush.Client
// implements it.
type ConfigReader interface {
	Config(ctx context.Context, name string) (map[string]any, error)
	State(ctx context.Context, key string) (json.RawMessage, error)
}

// Site is everything a check can probe.
type Site struct {
	DB     Database
	Config ConfigReader
	// Root is the Drupal web root. Symbolic link checks need an FS with an
	// Lstat method, such as os.DirFS.
	Root fs.FS
	Now  func() time.Time
}

func (s *Site) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
