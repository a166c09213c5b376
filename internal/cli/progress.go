package cli

import (
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/ppiankov/siteaudit/internal/audit"
	"github.com/ppiankov/siteaudit/internal/reporter"
)

// progress draws a bar on an interactive stderr while checks are scored.
// A zero progress is a no-op.
type progress struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newProgress(w io.Writer, enabled bool) *progress {
	if !enabled || !reporter.IsTerminal(w) {
		return &progress{}
	}
	return &progress{w: w}
}

func (p *progress) start(total int) {
	if p.w == nil || total <= 0 {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(18),
		progressbar.OptionSetDescription("auditing"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// scored is the audit.Config OnScored hook.
func (p *progress) scored(id string, _ audit.Score) {
	if p.bar == nil {
		return
	}
	p.bar.Describe(id)
	_ = p.bar.Add(1)
}

func (p *progress) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
