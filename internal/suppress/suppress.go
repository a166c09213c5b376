package suppress

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.yaml.in/yaml/v3"

	"github.com/ppiankov/siteaudit/internal/audit"
)

// FileName is the opt-out file looked up in the working directory.
const FileName = ".site-audit-ignore.yml"

// OptOut is a single entry in the ignore file. Check is a roster short name
// (CacheBinsAll), a check id (cache_bins_all) or a category id (cache).
type OptOut struct {
	Check  string `yaml:"check"`
	Reason string `yaml:"reason,omitempty"`
}

// IgnoreFile is the structure of .site-audit-ignore.yml.
type IgnoreFile struct {
	OptOuts []OptOut `yaml:"opt_outs"`
}

// Rules holds loaded opt-outs from all persisted sources.
type Rules struct {
	ignoreFile IgnoreFile
	// Names from config opt_out
	configOptOuts []string
}

// LoadRules loads opt-outs from .site-audit-ignore.yml in the given directory.
func LoadRules(dir string) (*Rules, error) {
	r := &Rules{}

	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	if err := yaml.Unmarshal(data, &r.ignoreFile); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	for i, o := range r.ignoreFile.OptOuts {
		if strings.TrimSpace(o.Check) == "" {
			return nil, errors.Newf("%s: opt_outs[%d] has no check", path, i)
		}
	}
	return r, nil
}

// WithConfigOptOuts adds opt-outs from config.
func (r *Rules) WithConfigOptOuts(names []string) {
	r.configOptOuts = names
}

// Names returns every opted-out name, file entries first, without blanks
// or repeats.
func (r *Rules) Names() []string {
	var names []string
	seen := make(map[string]bool)
	add := func(n string) {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			return
		}
		seen[n] = true
		names = append(names, n)
	}
	for _, o := range r.ignoreFile.OptOuts {
		add(o.Check)
	}
	for _, n := range r.configOptOuts {
		add(n)
	}
	return names
}

// Reason returns the recorded reason for opting out of name.
func (r *Rules) Reason(name string) string {
	for _, o := range r.ignoreFile.OptOuts {
		if strings.TrimSpace(o.Check) == name {
			return o.Reason
		}
	}
	return ""
}

// Exclusions merges the persisted opt-outs with names skipped for this run
// only (e.g. --skip) into one exclusion set.
func (r *Rules) Exclusions(skip ...string) audit.ExclusionSet {
	set := audit.NewExclusionSet(r.Names()...)
	set.Add(skip...)
	return set
}

// Unmatched returns the opted-out names that match returns false for,
// i.e. entries that no longer name any check or category.
func (r *Rules) Unmatched(match func(name string) bool) []string {
	var out []string
	for _, n := range r.Names() {
		if !match(n) {
			out = append(out, n)
		}
	}
	return out
}
