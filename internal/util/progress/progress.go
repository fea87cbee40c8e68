package progress

import (
	"io"
	"log"

	"github.com/schollz/progressbar/v3"
)

// Tracker counts finished steps on a progress bar. A nil Tracker, or one
// created without a writer, does nothing.
type Tracker struct {
	bar *progressbar.ProgressBar
}

// New creates a tracker for total steps drawn on w
func New(w io.Writer, total int, description string) *Tracker {
	if w == nil || total <= 0 {
		return &Tracker{}
	}
	return &Tracker{
		bar: progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionShowCount(),
		),
	}
}

// Start labels the step that is about to run
func (t *Tracker) Start(label string) {
	if t == nil || t.bar == nil {
		return
	}
	t.bar.Describe(label)
}

// Done marks one step finished
func (t *Tracker) Done() {
	if t == nil {
		return
	}
	Add(t.bar, 1)
}

// Finish completes the bar
func (t *Tracker) Finish() {
	if t == nil || t.bar == nil {
		return
	}
	if err := t.bar.Finish(); err != nil {
		log.Printf("failed to finish progress bar: %v", err)
	}
}

// Add increments the progress bar while safely handling errors.
func Add(bar *progressbar.ProgressBar, n int) {
	if bar == nil || n == 0 {
		return
	}

	if err := bar.Add(n); err != nil {
		log.Printf("failed to update progress bar: %v", err)
	}
}
