package audit

import (
	"sort"
	"strings"
)

// ExclusionSet is the set of names a site opted out of. A name matches a
// check when it equals the check's short name, its id, or its category id.
type ExclusionSet struct {
	names map[string]struct{}
}

// NewExclusionSet builds a set from names. Each name may itself be a
// comma-separated list; blanks are dropped.
func NewExclusionSet(names ...string) ExclusionSet {
	s := ExclusionSet{names: make(map[string]struct{})}
	s.Add(names...)
	return s
}

// Add merges more names into the set.
func (s *ExclusionSet) Add(names ...string) {
	if s.names == nil {
		s.names = make(map[string]struct{})
	}
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				s.names[part] = struct{}{}
			}
		}
	}
}

// Excludes reports whether a check is opted out.
func (s ExclusionSet) Excludes(shortName, id, category string) bool {
	for _, k := range []string{shortName, id, category} {
		if k == "" {
			continue
		}
		if _, ok := s.names[k]; ok {
			return true
		}
	}
	return false
}

// Len returns the number of names in the set.
func (s ExclusionSet) Len() int {
	return len(s.names)
}

// Names returns the names in the set, sorted.
func (s ExclusionSet) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
