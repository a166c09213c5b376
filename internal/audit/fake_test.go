package audit

import (
	"context"
)

// fakeCheck is a configurable Check used across the package tests.
type fakeCheck struct {
	id       string
	category string
	score    Score
	err      error
	calc     func(ctx context.Context, run *RunContext) (Score, error)
	deps     []string
	abort    bool
	override *int
	calls    int
}

func (f *fakeCheck) ID() string          { return f.id }
func (f *fakeCheck) Label() string       { return "Label " + f.id }
func (f *fakeCheck) Description() string { return "Description " + f.id }
func (f *fakeCheck) Category() string    { return f.category }

func (f *fakeCheck) CalculateScore(ctx context.Context, run *RunContext) (Score, error) {
	f.calls++
	if f.calc != nil {
		return f.calc(ctx, run)
	}
	return f.score, f.err
}

func (f *fakeCheck) Result(score Score) string {
	switch score {
	case ScorePass:
		return f.id + " passed"
	case ScoreWarn:
		return f.id + " warned"
	case ScoreInfo:
		return f.id + " info"
	default:
		return f.id + " failed"
	}
}

func (f *fakeCheck) Action(score Score) string {
	if score == ScoreWarn || score == ScoreFail {
		return "Fix " + f.id
	}
	return ""
}

// dependentCheck adds DependsOn to a fake.
type dependentCheck struct{ *fakeCheck }

func (d dependentCheck) DependsOn() []string { return d.deps }

// abortingCheck adds ShouldAbort to a fake.
type abortingCheck struct{ *fakeCheck }

func (a abortingCheck) ShouldAbort() bool { return a.abort }

// overridingCheck adds PercentOverride to a fake.
type overridingCheck struct{ *fakeCheck }

func (o overridingCheck) PercentOverride() (int, bool) {
	if o.override == nil {
		return 0, false
	}
	return *o.override, true
}

func entryFor(name string, c Check) RosterEntry {
	return RosterEntry{
		Name:     name,
		Category: c.Category(),
		New:      func(*RunContext) Check { return c },
	}
}
