// Package drush reads Drupal configuration and state through the drush CLI.
package drush

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/siteaudit/internal/probe"
)

// ErrNotFound is returned when a config object does not exist. drush prints
// null for an unset state key instead.
var ErrNotFound = errors.New("not found")

// Config locates drush and the site it should bootstrap.
type Config struct {
	Bin  string // drush executable; defaults to "drush"
	Root string // Drupal root (--root)
	URI  string // site URI (--uri)
}

// Client runs drush commands. Results are cached for the client's lifetime,
// which is meant to be one audit run.
type Client struct {
	cfg    Config
	config map[string]map[string]any
	state  map[string]json.RawMessage
}

// New returns a client for cfg.
func New(cfg Config) *Client {
	if cfg.Bin == "" {
		cfg.Bin = "drush"
	}
	return &Client{
		cfg:    cfg,
		config: make(map[string]map[string]any),
		state:  make(map[string]json.RawMessage),
	}
}

// Config returns the active configuration object name, overrides included.
// A missing object yields an empty map.
func (c *Client) Config(ctx context.Context, name string) (map[string]any, error) {
	if v, ok := c.config[name]; ok {
		return v, nil
	}
	out, err := c.run(ctx, "config:get", name, "--format=json", "--include-overridden")
	if errors.Is(err, ErrNotFound) {
		c.config[name] = map[string]any{}
		return c.config[name], nil
	}
	if err != nil {
		return nil, err
	}

	var v map[string]any
	if err := json.Unmarshal(out, &v); err != nil {
		return nil, errors.Wrapf(err, "decode config %s", name)
	}
	if v == nil {
		v = map[string]any{}
	}
	c.config[name] = v
	return v, nil
}

// State returns the raw JSON value of a state key, or nil when unset.
func (c *Client) State(ctx context.Context, key string) (json.RawMessage, error) {
	if v, ok := c.state[key]; ok {
		return v, nil
	}
	out, err := c.run(ctx, "state:get", key, "--format=json")
	if err != nil {
		return nil, err
	}

	out = bytes.TrimSpace(out)
	if len(out) == 0 || bytes.Equal(out, []byte("null")) {
		c.state[key] = nil
		return nil, nil
	}
	if !json.Valid(out) {
		return nil, errors.Newf("decode state %s: invalid JSON %q", key, truncate(string(out), 80))
	}
	c.state[key] = json.RawMessage(out)
	return c.state[key], nil
}

func (c *Client) args(args ...string) []string {
	full := make([]string, 0, len(args)+3)
	if c.cfg.Root != "" {
		full = append(full, "--root="+c.cfg.Root)
	}
	if c.cfg.URI != "" {
		full = append(full, "--uri="+c.cfg.URI)
	}
	full = append(full, args...)
	return append(full, "--no-interaction")
}

// run executes drush and returns stdout. Failures to start drush or a
// non-zero exit are reported as unavailable probes.
func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	full := c.args(args...)
	cmd := exec.CommandContext(ctx, c.cfg.Bin, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.Debug("drush", "args", strings.Join(full, " "))
	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}

	what := "drush " + args[0] + " " + args[1]
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := strings.TrimSpace(stderr.String())
		if args[0] == "config:get" && strings.Contains(msg, "Config "+args[1]+" does not exist") {
			return nil, errors.Wrapf(ErrNotFound, "%s", what)
		}
		if msg != "" {
			err = errors.Newf("exit status %d: %s", exitErr.ExitCode(), truncate(msg, 200))
		}
	}
	return nil, probe.Unavailable(errors.Wrap(err, what))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
