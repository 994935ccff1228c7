// Package output provides output formatting for the kvstash CLI.
package output

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
)

// ProgressBar displays progress for batch operations. Counts are item
// counts, not bytes; callers format sizes themselves.
type ProgressBar struct {
	w       io.Writer
	title   string
	total   int64
	current int64
	width   int
	mu      sync.Mutex
}

// NewProgressBar creates a new progress bar.
func NewProgressBar(w io.Writer, title string) *ProgressBar {
	return &ProgressBar{
		w:     w,
		title: title,
		width: 40,
	}
}

// SetTotal sets the total item count. Zero means unknown; the bar
// then shows a running count instead of a percentage.
func (p *ProgressBar) SetTotal(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

// Update sets the current and total counts and redraws.
func (p *ProgressBar) Update(current, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = current
	p.total = total
	p.render()
}

// Increment adds to the current count and redraws.
func (p *ProgressBar) Increment(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current += n
	p.render()
}

// Finish completes the progress bar and ends the line.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = p.total
	p.render()
	fmt.Fprintln(p.w)
}

func (p *ProgressBar) render() {
	if p.total <= 0 {
		fmt.Fprintf(p.w, "\r%s %s", p.title, humanize.Comma(p.current))
		return
	}

	percent := float64(p.current) / float64(p.total)
	if percent > 1 {
		percent = 1
	}

	filled := int(float64(p.width) * percent)
	empty := p.width - filled

	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)
	percentStr := fmt.Sprintf("%3.0f%%", percent*100)

	fmt.Fprintf(p.w, "\r%s [%s] %s (%s/%s)",
		p.title,
		bar,
		percentStr,
		humanize.Comma(p.current),
		humanize.Comma(p.total),
	)
}
