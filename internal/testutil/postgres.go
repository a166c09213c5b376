// Package testutil starts a seeded PostgreSQL for integration tests.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// SeedSQL creates a minimal Drupal schema: installed modules, config,
// users and roles, dblog entries and a few cache bins.
const SeedSQL = `
DROP TABLE IF EXISTS key_value, config, users_field_data, user__roles, watchdog,
	cache_default, cache_render, cache_page, cachetags;

CREATE TABLE key_value (
	collection VARCHAR(128) NOT NULL DEFAULT '',
	name VARCHAR(128) NOT NULL DEFAULT '',
	value BYTEA NOT NULL,
	PRIMARY KEY (collection, name)
);

INSERT INTO key_value (collection, name, value) VALUES
	('system.schema', 'system', 'i:8000;'),
	('system.schema', 'user', 'i:8000;'),
	('system.schema', 'block', 'i:8000;'),
	('system.schema', 'dblog', 'i:8000;'),
	('system.schema', 'views', 'i:8000;'),
	('system.schema', 'devel', 'i:8000;'),
	('state', 'system.cron_last', 'i:1700000000;');

CREATE TABLE config (
	collection VARCHAR(255) NOT NULL DEFAULT '',
	name VARCHAR(255) NOT NULL DEFAULT '',
	data BYTEA,
	PRIMARY KEY (collection, name)
);

INSERT INTO config (collection, name, data) VALUES
	('', 'views.view.frontpage', 'a:2:{s:6:"status";b:1;s:2:"id";s:9:"frontpage";}'),
	('', 'views.view.content', 'a:2:{s:6:"status";b:1;s:2:"id";s:7:"content";}'),
	('', 'views.view.archive', 'a:2:{s:6:"status";b:0;s:2:"id";s:7:"archive";}'),
	('', 'system.theme', 'a:1:{s:7:"default";s:6:"olivero";}');

CREATE TABLE users_field_data (
	uid INTEGER NOT NULL,
	langcode VARCHAR(12) NOT NULL DEFAULT 'en',
	name VARCHAR(60) NOT NULL,
	mail VARCHAR(254),
	status SMALLINT,
	default_langcode SMALLINT NOT NULL DEFAULT 1,
	PRIMARY KEY (uid, langcode)
);

INSERT INTO users_field_data (uid, name, mail, status) VALUES
	(0, '', NULL, 0),
	(1, 'admin', 'admin@example.com', 1),
	(2, 'editor', 'editor@example.com', 1),
	(3, 'spammer', 'spam@example.com', 0);

CREATE TABLE user__roles (
	bundle VARCHAR(128) NOT NULL DEFAULT 'user',
	deleted SMALLINT NOT NULL DEFAULT 0,
	entity_id INTEGER NOT NULL,
	revision_id INTEGER NOT NULL,
	langcode VARCHAR(32) NOT NULL DEFAULT 'en',
	delta INTEGER NOT NULL DEFAULT 0,
	roles_target_id VARCHAR(255) NOT NULL,
	PRIMARY KEY (entity_id, deleted, delta, langcode)
);

INSERT INTO user__roles (entity_id, revision_id, delta, roles_target_id) VALUES
	(1, 1, 0, 'administrator'),
	(2, 2, 0, 'editor'),
	(2, 2, 1, 'administrator');

CREATE TABLE watchdog (
	wid BIGSERIAL PRIMARY KEY,
	uid INTEGER NOT NULL DEFAULT 0,
	type VARCHAR(64) NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	severity INTEGER NOT NULL DEFAULT 0,
	timestamp INTEGER NOT NULL DEFAULT 0
);

INSERT INTO watchdog (type, message, severity, timestamp) VALUES
	('cron', 'Cron run completed.', 5, 1699000000),
	('page not found', '/wp-login.php', 4, 1699100000),
	('page not found', '/xmlrpc.php', 4, 1699200000),
	('php', 'Notice: Undefined index', 5, 1699300000),
	('php', 'Warning: Division by zero', 4, 1699400000),
	('php', 'Error: Call to undefined function', 3, 1699500000),
	('user', 'Session opened for admin.', 5, 1699600000),
	('user', 'Session closed for admin.', 5, 1699700000),
	('system', 'views module installed.', 6, 1699800000),
	('cron', 'Cron run completed.', 5, 1700000000);

CREATE TABLE cache_default (cid VARCHAR(255) PRIMARY KEY, data BYTEA, expire INTEGER NOT NULL DEFAULT 0);
CREATE TABLE cache_render (cid VARCHAR(255) PRIMARY KEY, data BYTEA, expire INTEGER NOT NULL DEFAULT 0);
CREATE TABLE cache_page (cid VARCHAR(255) PRIMARY KEY, data BYTEA, expire INTEGER NOT NULL DEFAULT 0);
CREATE TABLE cachetags (tag VARCHAR(255) PRIMARY KEY, invalidations INTEGER NOT NULL DEFAULT 0);

INSERT INTO cache_render (cid, data) VALUES ('a', 'x'), ('b', 'y');

ANALYZE;
`

const testDBEnv = "SITE_AUDIT_TEST_DB_URL"

// runPostgresContainer starts a PG container, recovering from panics if Docker is unavailable.
func runPostgresContainer(ctx context.Context) (container *postgres.PostgresContainer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("%v", r)
		}
	}()
	return postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("drupal"),
		postgres.WithUsername("drupal"),
		postgres.WithPassword("drupal"),
	)
}

func seedDatabase(ctx context.Context, connStr string) error {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return errors.Wrap(err, "seed connect")
	}
	if _, err := conn.Exec(ctx, SeedSQL); err != nil {
		_ = conn.Close(ctx)
		return errors.Wrap(err, "seed")
	}
	return conn.Close(ctx)
}

// Setup starts a PostgreSQL container, seeds it with a Drupal schema,
// and returns the connection string and a cleanup function.
// If SITE_AUDIT_TEST_DB_URL is set, it seeds that database instead of Docker.
func Setup() (string, func(), error) {
	ctx := context.Background()

	if connStr := os.Getenv(testDBEnv); connStr != "" {
		if err := seedDatabase(ctx, connStr); err != nil {
			return "", nil, errors.Wrapf(err, "seed %s", testDBEnv)
		}
		return connStr, func() {}, nil
	}

	container, err := runPostgresContainer(ctx)
	if err != nil {
		return "", nil, errors.Wrap(err, "docker not available")
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return "", nil, errors.Wrap(err, "connection string")
	}

	if err := seedDatabase(ctx, connStr); err != nil {
		_ = container.Terminate(ctx)
		return "", nil, err
	}

	cleanup := func() {
		_ = container.Terminate(ctx)
	}
	return connStr, cleanup, nil
}

// SetupPostgres is a test helper that starts a seeded PostgreSQL container.
// Skips the test if Docker is not available.
func SetupPostgres(t *testing.T) (string, func()) {
	t.Helper()
	connStr, cleanup, err := Setup()
	if err != nil {
		t.Skipf("skipping: %v", err)
	}
	return connStr, cleanup
}
