package cmd

import (
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// progress shows a spinner while a screen reports it is loading. It stays
// silent when output is not a terminal.
type progress struct {
	mu      sync.Mutex
	spinner *spinner.Spinner
	enabled bool
	running bool
}

func newProgress(w io.Writer, enabled bool) *progress {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " loading"

	return &progress{spinner: s, enabled: enabled && !color.NoColor}
}

// Loading starts or stops the spinner
func (p *progress) Loading(on bool) {
	if p == nil || !p.enabled {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case on && !p.running:
		p.spinner.Start()
		p.running = true
	case !on && p.running:
		p.spinner.Stop()
		p.running = false
	}
}
