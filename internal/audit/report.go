package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
)

// CheckResult is one emitted check inside a report.
type CheckResult struct {
	Key         string  `json:"-"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Result      string  `json:"result"`
	Action      *string `json:"action"`
	Score       Score   `json:"score"`
}

// Report is the scored result of one category.
type Report struct {
	Key     string
	Label   string
	Percent int
	Checks  []CheckResult
}

// Aggregate is the result of a full audit.
type Aggregate struct {
	Time    int64
	Reports []Report
}

// Report returns the report with the given key.
func (a *Aggregate) Report(key string) (Report, bool) {
	for _, r := range a.Reports {
		if r.Key == key {
			return r, true
		}
	}
	return Report{}, false
}

// Check returns the check with the given key.
func (r *Report) Check(key string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Key == key {
			return c, true
		}
	}
	return CheckResult{}, false
}

// Percent computes a category percentage from member scores. Info scores
// are left out entirely; with nothing left the percentage is 0.
func Percent(scores []Score) int {
	sum, n := 0, 0
	for _, s := range scores {
		if !s.Judged() {
			continue
		}
		sum += int(s)
		n++
	}
	if n == 0 {
		return 0
	}
	return clampPercent(int(math.Round(100 * float64(sum) / float64(2*n))))
}

func clampPercent(p int) int {
	return min(max(p, 0), 100)
}

// Builder folds scored checks into reports.
type Builder struct {
	reg *Registry
	// ShowOptedOut emits opted-out checks as Info instead of omitting them.
	ShowOptedOut bool
	// Now stamps BuildAll results. Defaults to time.Now.
	Now func() time.Time
}

// NewBuilder returns a builder over reg.
func NewBuilder(reg *Registry) *Builder {
	return &Builder{reg: reg, Now: time.Now}
}

// BuildCategory scores and reports the members of one category, in
// declaration order. Scoring stops after a member that asks to abort.
func (b *Builder) BuildCategory(ctx context.Context, cat Category) (Report, error) {
	rep := Report{Key: ReportKey(cat.ID), Label: cat.Label}
	var (
		scores     []Score
		override   int
		overridden bool
	)
	for _, id := range b.reg.order {
		e := b.reg.entries[id]
		if e.check.Category() != cat.ID {
			continue
		}
		if e.optOut && !b.ShowOptedOut {
			continue
		}

		score, err := b.reg.Score(ctx, id)
		if err != nil {
			return Report{}, err
		}
		result, err := b.reg.Result(ctx, id)
		if err != nil {
			return Report{}, err
		}
		action, err := b.reg.RenderedAction(ctx, id)
		if err != nil {
			return Report{}, err
		}
		rep.Checks = append(rep.Checks, CheckResult{
			Key:         CheckKey(e.name),
			Label:       e.check.Label(),
			Description: e.check.Description(),
			Result:      result,
			Action:      action,
			Score:       score,
		})
		scores = append(scores, score)

		if e.optOut {
			continue
		}
		if po, ok := e.check.(PercentOverrider); ok {
			if p, ok := po.PercentOverride(); ok {
				override, overridden = p, true
			}
		}
		if a, ok := e.check.(Aborter); ok && a.ShouldAbort() {
			slog.Info("category aborted", "category", cat.ID, "check", id)
			break
		}
	}

	rep.Percent = Percent(scores)
	if overridden {
		rep.Percent = clampPercent(override)
	}
	return rep, nil
}

// BuildAll reports every category in declared order. Categories with no
// emitted members are left out.
func (b *Builder) BuildAll(ctx context.Context) (Aggregate, error) {
	now := b.Now
	if now == nil {
		now = time.Now
	}
	agg := Aggregate{Time: now().Unix()}
	for _, cat := range Categories {
		rep, err := b.BuildCategory(ctx, cat)
		if err != nil {
			return Aggregate{}, errors.Wrapf(err, "category %s", cat.ID)
		}
		if len(rep.Checks) == 0 {
			continue
		}
		agg.Reports = append(agg.Reports, rep)
	}
	return agg, nil
}

// MarshalJSON encodes the report with its checks as an object keyed by
// check key, in report order.
func (r Report) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"percent":`)
	buf.WriteString(strconv.Itoa(r.Percent))
	buf.WriteString(`,"label":`)
	if err := writeJSON(&buf, r.Label); err != nil {
		return nil, err
	}
	buf.WriteString(`,"checks":{`)
	for i, c := range r.Checks {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, c.Key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSON(&buf, c); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a report, keeping the order of its checks.
func (r *Report) UnmarshalJSON(data []byte) error {
	var raw struct {
		Percent int             `json:"percent"`
		Label   string          `json:"label"`
		Checks  json.RawMessage `json:"checks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decode report")
	}
	out := Report{Key: r.Key, Percent: raw.Percent, Label: raw.Label}
	err := decodeOrdered(raw.Checks, func(key string, dec *json.Decoder) error {
		var c CheckResult
		if err := dec.Decode(&c); err != nil {
			return errors.Wrapf(err, "decode check %s", key)
		}
		c.Key = key
		out.Checks = append(out.Checks, c)
		return nil
	})
	if err != nil {
		return err
	}
	*r = out
	return nil
}

// MarshalJSON encodes the aggregate with its reports as an object keyed by
// report key, in category order.
func (a Aggregate) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"time":`)
	buf.WriteString(strconv.FormatInt(a.Time, 10))
	buf.WriteString(`,"reports":{`)
	for i, r := range a.Reports {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, r.Key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSON(&buf, r); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an aggregate, keeping the order of its reports.
func (a *Aggregate) UnmarshalJSON(data []byte) error {
	var raw struct {
		Time    int64           `json:"time"`
		Reports json.RawMessage `json:"reports"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decode aggregate")
	}
	out := Aggregate{Time: raw.Time}
	err := decodeOrdered(raw.Reports, func(key string, dec *json.Decoder) error {
		r := Report{Key: key}
		if err := dec.Decode(&r); err != nil {
			return errors.Wrapf(err, "decode report %s", key)
		}
		out.Reports = append(out.Reports, r)
		return nil
	})
	if err != nil {
		return err
	}
	*a = out
	return nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// decodeOrdered walks a JSON object member by member, in document order.
// A missing or null object is treated as empty.
func decodeOrdered(data json.RawMessage, fn func(key string, dec *json.Decoder) error) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return errors.Wrap(err, "decode object")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.Newf("decode object: expected '{', got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return errors.Wrap(err, "decode object key")
		}
		key, ok := tok.(string)
		if !ok {
			return errors.Newf("decode object: expected key, got %v", tok)
		}
		if err := fn(key, dec); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return errors.Wrap(err, "decode object end")
	}
	return nil
}
