package audit

import "context"

// Check is a single auditable condition.
//
// CalculateScore is the only method allowed to read external state. It is
// called at most once per run; the registry memoizes the result.
// Result and Action are pure functions of the score. Every score value must
// produce a defined string; an empty string means "no message".
type Check interface {
	ID() string
	Label() string
	Description() string
	Category() string
	CalculateScore(ctx context.Context, run *RunContext) (Score, error)
	Result(score Score) string
	Action(score Score) string
}

// Dependent is implemented by checks that read scratch values produced by
// other checks. The producers are scored first.
type Dependent interface {
	DependsOn() []string
}

// Aborter is implemented by checks that can decide, once scored, that the
// rest of their category should not run (e.g. the audited module is not
// installed).
type Aborter interface {
	ShouldAbort() bool
}

// PercentOverrider is implemented by checks that can pin their category's
// percentage.
type PercentOverrider interface {
	PercentOverride() (int, bool)
}

// Options are the run-wide flags passed through to checks. The engine
// itself does not interpret them.
type Options struct {
	Vendor      string
	Detail      bool
	Environment string
}

// RunContext is shared by every check in one run. It replaces ad-hoc
// global state: checks get the options, the scratch bag, and a way to force
// another check to be scored.
type RunContext struct {
	Options Options
	Scratch *Scratch

	registry *Registry
}

// NewRunContext returns a run context bound to reg. Checks scored by reg
// receive this context.
func NewRunContext(opts Options, reg *Registry) *RunContext {
	rc := &RunContext{
		Options:  opts,
		Scratch:  NewScratch(),
		registry: reg,
	}
	if reg != nil {
		reg.run = rc
	}
	return rc
}

// EnsureComputed scores the check with the given id if it has not been
// scored yet. Unknown ids are logged and ignored.
func (rc *RunContext) EnsureComputed(ctx context.Context, id string) error {
	if rc.registry == nil {
		return nil
	}
	return rc.registry.EnsureComputed(ctx, id)
}

// Scratch is the run-scoped key/value bag checks use to share probe results.
type Scratch struct {
	data map[string]any
}

// NewScratch returns an empty scratch bag.
func NewScratch() *Scratch {
	return &Scratch{data: make(map[string]any)}
}

// Get returns the value stored under key.
func (s *Scratch) Get(key string) (any, bool) {
	v, ok := s.data[key]
	return v, ok
}

// Set stores value under key, replacing any previous value.
func (s *Scratch) Set(key string, value any) {
	s.data[key] = value
}

// Lookup returns the value under key if it is present and of type T.
func Lookup[T any](s *Scratch, key string) (T, bool) {
	var zero T
	v, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// RosterEntry is one row of the static check roster. Name is the
// class-style short name used for exclusion matching and output keys.
type RosterEntry struct {
	Name     string
	Category string
	New      func(run *RunContext) Check
}
