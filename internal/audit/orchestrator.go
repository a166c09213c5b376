package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Config controls one audit run.
type Config struct {
	Options      Options
	Exclusions   ExclusionSet
	ShowOptedOut bool
	// CheckTimeout bounds each check. Zero means DefaultCheckTimeout;
	// negative disables the limit.
	CheckTimeout time.Duration
	// OnScored is called once for every check that gets calculated.
	OnScored func(id string, score Score)
	Now      func() time.Time
}

// Orchestrator instantiates the roster and produces reports.
type Orchestrator struct {
	reg     *Registry
	builder *Builder
}

// New builds every check of the roster, in order, and validates the
// dependency graph. Roster entries whose category is unknown, or whose
// check disagrees with the roster about its category, are rejected.
func New(roster []RosterEntry, cfg Config) (*Orchestrator, error) {
	reg := NewRegistry()
	switch {
	case cfg.CheckTimeout > 0:
		reg.SetCheckTimeout(cfg.CheckTimeout)
	case cfg.CheckTimeout < 0:
		reg.SetCheckTimeout(0)
	}
	reg.OnScored(cfg.OnScored)
	run := NewRunContext(cfg.Options, reg)

	for _, re := range roster {
		if _, ok := LookupCategory(re.Category); !ok {
			return nil, errors.Newf("roster %s: unknown category %q", re.Name, re.Category)
		}
		check := re.New(run)
		if check == nil {
			return nil, errors.Newf("roster %s: constructor returned nil", re.Name)
		}
		if check.Category() != re.Category {
			return nil, errors.Newf("roster %s: check reports category %q, roster says %q",
				re.Name, check.Category(), re.Category)
		}
		optOut := cfg.Exclusions.Excludes(re.Name, check.ID(), re.Category)
		if optOut {
			slog.Debug("check opted out", "check", check.ID())
		}
		if err := reg.Add(re.Name, check, optOut); err != nil {
			return nil, err
		}
	}
	order, err := reg.Validate()
	if err != nil {
		return nil, err
	}
	slog.Debug("check evaluation order", "order", strings.Join(order, ","))

	b := NewBuilder(reg)
	b.ShowOptedOut = cfg.ShowOptedOut
	if cfg.Now != nil {
		b.Now = cfg.Now
	}
	return &Orchestrator{reg: reg, builder: b}, nil
}

// Registry exposes the run's registry.
func (o *Orchestrator) Registry() *Registry {
	return o.reg
}

// Pending returns how many checks in the given categories will be
// calculated at most. No categories means all of them.
func (o *Orchestrator) Pending(categories ...string) int {
	want := make(map[string]bool, len(categories))
	for _, c := range categories {
		want[c] = true
	}
	n := 0
	for _, id := range o.reg.order {
		e := o.reg.entries[id]
		if e.optOut {
			continue
		}
		if len(want) > 0 && !want[e.check.Category()] {
			continue
		}
		n++
	}
	return n
}

// Run audits every category. A fatal check error ends the run and no
// aggregate is returned.
func (o *Orchestrator) Run(ctx context.Context) (Aggregate, error) {
	return o.builder.BuildAll(ctx)
}

// RunCategory audits one category. An unknown category is logged and
// yields an empty report.
func (o *Orchestrator) RunCategory(ctx context.Context, id string) (Report, error) {
	cat, ok := LookupCategory(id)
	if !ok {
		slog.Warn("unknown report category", "category", id)
		return Report{}, nil
	}
	rep, err := o.builder.BuildCategory(ctx, cat)
	if err != nil {
		return Report{}, errors.Wrapf(err, "category %s", id)
	}
	return rep, nil
}
