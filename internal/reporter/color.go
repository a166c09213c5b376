package reporter

import (
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/ppiankov/siteaudit/internal/audit"
)

type palette struct {
	title  *color.Color
	action *color.Color
	scores map[audit.Score]*color.Color
	good   *color.Color
	fair   *color.Color
	poor   *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		title:  color.New(color.Bold),
		action: color.New(color.FgHiBlack),
		scores: map[audit.Score]*color.Color{
			audit.ScoreFail: color.New(color.FgRed, color.Bold),
			audit.ScoreWarn: color.New(color.FgYellow),
			audit.ScorePass: color.New(color.FgGreen),
			audit.ScoreInfo: color.New(color.FgCyan),
		},
		good: color.New(color.FgGreen),
		fair: color.New(color.FgYellow),
		poor: color.New(color.FgRed),
	}
	for _, c := range p.all() {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) all() []*color.Color {
	out := []*color.Color{p.title, p.action, p.good, p.fair, p.poor}
	for _, c := range p.scores {
		out = append(out, c)
	}
	return out
}

func (p palette) score(s audit.Score) string {
	c, ok := p.scores[s]
	if !ok {
		c = p.scores[audit.ScoreFail]
	}
	return c.Sprint("[" + s.Label() + "]")
}

func (p palette) percent(n int) string {
	text := strconv.Itoa(n) + "%"
	switch {
	case n >= 80:
		return p.good.Sprint(text)
	case n >= 50:
		return p.fair.Sprint(text)
	}
	return p.poor.Sprint(text)
}

// IsTerminal returns true if the writer is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
