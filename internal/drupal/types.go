package drupal

import "time"

// Config holds the Drupal database connection settings.
type Config struct {
	URL string
	// TablePrefix is Drupal's $databases prefix, prepended to every table.
	TablePrefix string
	// Schema sets the connection search_path. Empty keeps the server default.
	Schema string
}

// Encoding describes the character set of the Drupal database.
type Encoding struct {
	Name    string `json:"name"`    // server encoding, e.g. UTF8
	Collate string `json:"collate"` // LC_COLLATE of the database
	CType   string `json:"ctype"`
}

// TableCollation is a table with at least one column using a non-default
// collation.
type TableCollation struct {
	Table     string `json:"table"`
	Collation string `json:"collation"`
}

// TableRows is a table with its estimated row count (pg_class.reltuples).
type TableRows struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// TableBloat holds dead tuple statistics from pg_stat_user_tables.
type TableBloat struct {
	Table      string  `json:"table"`
	LiveTuples int64   `json:"liveTuples"`
	DeadTuples int64   `json:"deadTuples"`
	Ratio      float64 `json:"ratio"` // dead / (live + dead)
}

// CacheBin is a database cache backend table (cache_<bin>).
type CacheBin struct {
	Bin   string `json:"bin"`
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// User is a row of users_field_data.
type User struct {
	UID    int64  `json:"uid"`
	Name   string `json:"name"`
	Mail   string `json:"mail"`
	Active bool   `json:"active"`
}

// RoleCount is the number of users holding a role.
type RoleCount struct {
	Role  string `json:"role"`
	Users int64  `json:"users"`
}

// SeverityCount is the number of log entries at an RFC 5424 severity.
type SeverityCount struct {
	Severity int   `json:"severity"`
	Count    int64 `json:"count"`
}

// LogRange is the timestamp of the oldest and newest watchdog entries.
type LogRange struct {
	Oldest time.Time `json:"oldest"`
	Newest time.Time `json:"newest"`
}

// SeverityName returns the RFC 5424 name Drupal uses for a severity level.
func SeverityName(level int) string {
	switch level {
	case 0:
		return "emergency"
	case 1:
		return "alert"
	case 2:
		return "critical"
	case 3:
		return "error"
	case 4:
		return "warning"
	case 5:
		return "notice"
	case 6:
		return "info"
	case 7:
		return "debug"
	default:
		return "unknown"
	}
}
