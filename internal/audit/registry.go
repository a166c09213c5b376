package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/siteaudit/internal/probe"
)

// DefaultCheckTimeout bounds a single CalculateScore call.
const DefaultCheckTimeout = 5 * time.Second

// OptedOutResult is the result text of a check excluded by the site.
const OptedOutResult = "Opted-out in site configuration."

// ErrDependencyCycle is returned when checks depend on each other.
var ErrDependencyCycle = errors.New("check dependency cycle")

// errCheckDeadline is the cancel cause of a per-check deadline. A producer
// scored from inside a consumer inherits the consumer's deadline and must
// not mistake it for cancellation of the whole run.
var errCheckDeadline = errors.New("check deadline exceeded")

type memoState int

const (
	notComputed memoState = iota
	computing
	computed
)

type memo struct {
	state memoState
	score Score
	// note replaces the check's own result text (timeout, unavailable probe).
	note string
}

type entry struct {
	name   string
	check  Check
	optOut bool
	memo   memo
}

// Registry holds the checks of one run, in declaration order, and memoizes
// their scores.
type Registry struct {
	entries map[string]*entry
	order   []string
	run     *RunContext

	checkTimeout time.Duration
	onScored     func(id string, score Score)
}

// NewRegistry returns an empty registry using DefaultCheckTimeout.
func NewRegistry() *Registry {
	return &Registry{
		entries:      make(map[string]*entry),
		checkTimeout: DefaultCheckTimeout,
	}
}

// SetCheckTimeout changes the per-check timeout. Zero or negative disables it.
func (r *Registry) SetCheckTimeout(d time.Duration) {
	r.checkTimeout = d
}

// OnScored registers a hook called once per check, after it is scored.
func (r *Registry) OnScored(fn func(id string, score Score)) {
	r.onScored = fn
}

// Add registers check under the roster short name. An opted-out check is
// pinned to ScoreInfo and never calculated.
func (r *Registry) Add(name string, check Check, optOut bool) error {
	if check == nil {
		return errors.Newf("register %s: nil check", name)
	}
	id := check.ID()
	if id == "" {
		return errors.Newf("register %s: empty check id", name)
	}
	if _, dup := r.entries[id]; dup {
		return errors.Newf("register %s: duplicate check id %q", name, id)
	}
	e := &entry{name: name, check: check, optOut: optOut}
	if optOut {
		e.memo = memo{state: computed, score: ScoreInfo}
	}
	r.entries[id] = e
	r.order = append(r.order, id)
	return nil
}

// IDs returns the registered check ids in declaration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered checks.
func (r *Registry) Len() int {
	return len(r.order)
}

// Check returns the registered check with the given id.
func (r *Registry) Check(id string) (Check, bool) {
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.check, true
}

// OptedOut reports whether the check was registered as opted out.
func (r *Registry) OptedOut(id string) bool {
	e, ok := r.entries[id]
	return ok && e.optOut
}

// Name returns the roster short name the check was registered under.
func (r *Registry) Name(id string) string {
	if e, ok := r.entries[id]; ok {
		return e.name
	}
	return ""
}

// EnsureComputed scores the check if it has not been scored yet. An unknown
// id is logged and ignored.
func (r *Registry) EnsureComputed(ctx context.Context, id string) error {
	if _, ok := r.entries[id]; !ok {
		slog.Warn("ensure computed: unknown check", "id", id, "known", strings.Join(r.order, ","))
		return nil
	}
	_, err := r.Score(ctx, id)
	return err
}

// Validate checks the declared dependency graph and returns an evaluation
// order in which every producer precedes its consumers. Ties keep
// declaration order. Unknown dependencies are logged and ignored.
//
// Scoring does not follow this order: Score ensures a check's producers
// recursively, so reports can be built in category order. New logs the
// order at debug level.
func (r *Registry) Validate() ([]string, error) {
	indegree := make(map[string]int, len(r.order))
	consumers := make(map[string][]string, len(r.order))
	for _, id := range r.order {
		for _, dep := range dependsOn(r.entries[id].check) {
			if _, ok := r.entries[dep]; !ok {
				slog.Warn("unknown check dependency", "check", id, "depends_on", dep)
				continue
			}
			if dep == id {
				return nil, errors.Wrapf(ErrDependencyCycle, "%s depends on itself", id)
			}
			indegree[id]++
			consumers[dep] = append(consumers[dep], id)
		}
	}

	order := make([]string, 0, len(r.order))
	done := make(map[string]bool, len(r.order))
	for len(order) < len(r.order) {
		progressed := false
		// Rescan in declaration order so the result is stable.
		for _, id := range r.order {
			if done[id] || indegree[id] > 0 {
				continue
			}
			done[id] = true
			order = append(order, id)
			for _, c := range consumers[id] {
				indegree[c]--
			}
			progressed = true
			break
		}
		if !progressed {
			var stuck []string
			for _, id := range r.order {
				if !done[id] {
					stuck = append(stuck, id)
				}
			}
			return nil, errors.Wrapf(ErrDependencyCycle, "among %s", strings.Join(stuck, ", "))
		}
	}
	return order, nil
}

// Score returns the memoized score of a check, calculating it on first use.
//
// A check whose probe is unavailable, or that runs out of time, scores
// ScoreFail with an explanatory result. Any other error is returned and
// should end the run.
func (r *Registry) Score(ctx context.Context, id string) (Score, error) {
	e, ok := r.entries[id]
	if !ok {
		return ScoreFail, errors.Newf("score: unknown check %q", id)
	}
	switch e.memo.state {
	case computed:
		return e.memo.score, nil
	case computing:
		return ScoreFail, errors.Wrapf(ErrDependencyCycle, "%s is needed while being scored", id)
	}

	e.memo.state = computing
	for _, dep := range dependsOn(e.check) {
		if err := r.EnsureComputed(ctx, dep); err != nil {
			e.memo.state = notComputed
			return ScoreFail, err
		}
	}

	score, note, err := r.calculate(ctx, e)
	if err != nil {
		e.memo.state = notComputed
		return ScoreFail, err
	}
	e.memo = memo{state: computed, score: score, note: note}
	slog.Debug("check scored", "check", id, "score", score.String())
	if r.onScored != nil {
		r.onScored(id, score)
	}
	return score, nil
}

func (r *Registry) calculate(ctx context.Context, e *entry) (Score, string, error) {
	id := e.check.ID()
	if err := ctx.Err(); err != nil {
		if checkDeadline(ctx) {
			return r.timedOut(id)
		}
		return ScoreFail, "", errors.Wrapf(err, "check %s", id)
	}

	checkCtx := ctx
	if r.checkTimeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeoutCause(ctx, r.checkTimeout, errCheckDeadline)
		defer cancel()
	}

	if r.run == nil {
		NewRunContext(Options{}, r)
	}
	score, err := e.check.CalculateScore(checkCtx, r.run)
	switch {
	case checkDeadline(checkCtx):
		return r.timedOut(id)
	case checkCtx.Err() != nil:
		// The run itself was cancelled, not just this check.
		return ScoreFail, "", errors.Wrapf(checkCtx.Err(), "check %s", id)
	case err == nil:
	case probe.IsUnavailable(err):
		slog.Debug("probe unavailable", "check", id, "error", err)
		return ScoreFail, "Unable to determine: " + err.Error(), nil
	default:
		return ScoreFail, "", errors.Wrapf(err, "check %s", id)
	}

	if !score.Valid() {
		return ScoreFail, "", errors.Newf("check %s: invalid score %d", id, int(score))
	}
	return score, "", nil
}

func (r *Registry) timedOut(id string) (Score, string, error) {
	slog.Warn("check timed out", "check", id, "timeout", r.checkTimeout)
	return ScoreFail, "Check timed out after " + r.checkTimeout.String() + ".", nil
}

// checkDeadline reports whether ctx ended because a check deadline, its own
// or an enclosing check's, expired.
func checkDeadline(ctx context.Context) bool {
	return ctx.Err() != nil && errors.Is(context.Cause(ctx), errCheckDeadline)
}

// Result returns the result text of a scored check.
func (r *Registry) Result(ctx context.Context, id string) (string, error) {
	e, ok := r.entries[id]
	if !ok {
		return "", errors.Newf("result: unknown check %q", id)
	}
	if e.optOut {
		return OptedOutResult, nil
	}
	score, err := r.Score(ctx, id)
	if err != nil {
		return "", err
	}
	if e.memo.note != "" {
		return e.memo.note, nil
	}
	return e.check.Result(score), nil
}

// RenderedAction returns the recommended action of a scored check, or nil
// when there is none or the check could not be determined. Opted-out checks
// have an empty, non-nil action.
func (r *Registry) RenderedAction(ctx context.Context, id string) (*string, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, errors.Newf("action: unknown check %q", id)
	}
	if e.optOut {
		empty := ""
		return &empty, nil
	}
	score, err := r.Score(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.memo.note != "" {
		// Timed out or undeterminable: the check's own remediation does not apply.
		return nil, nil
	}
	action := e.check.Action(score)
	if action == "" {
		return nil, nil
	}
	return &action, nil
}

func dependsOn(c Check) []string {
	if d, ok := c.(Dependent); ok {
		return d.DependsOn()
	}
	return nil
}
