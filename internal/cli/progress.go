package cli

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/law-makers/harvest/pkg/models"
)

// progress renders collector stats as one bar per listing. The maximum
// grows as links are discovered and stays one above the submitted count
// until discovery closes, so the bar never completes while scrolling.
type progress struct {
	mu       sync.Mutex
	w        io.Writer
	visible  bool
	bar      *progressbar.ProgressBar
	listings int
}

func newProgress(w io.Writer, visible bool) *progress {
	return &progress{w: w, visible: visible}
}

func (p *progress) newBar() *progressbar.ProgressBar {
	return progressbar.NewOptions(1,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription("harvesting"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetVisibility(p.visible),
	)
}

// observe is installed as the collector observer
func (p *progress) observe(s models.Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		p.bar = p.newBar()
	}

	total := s.Submitted
	if !s.Closed {
		total++
	}
	if total > 0 {
		p.bar.ChangeMax(total)
		_ = p.bar.Set(s.Completed)
	}

	if s.Closed && s.Pending() == 0 {
		_ = p.bar.Finish()
		p.bar = nil
		p.listings++
	}
}

func (p *progress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}
