package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// SpinnerState represents the current state of a spinner.
type SpinnerState int

const (
	SpinnerPending SpinnerState = iota
	SpinnerInProgress
	SpinnerSuccess
	SpinnerFailed
	SpinnerSkipped
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Spinner displays an animated status indicator with a label. When the
// output isn't a terminal it prints nothing until the final line.
type Spinner struct {
	mu           sync.Mutex
	label        string
	note         string
	state        SpinnerState
	frame        int
	startTime    time.Time
	stopChan     chan struct{}
	doneChan     chan struct{}
	output       func(string)
	animate      bool
	running      bool
	lastRendered string
}

// NewSpinner creates a spinner writing to stdout.
func NewSpinner(label string) *Spinner {
	s := &Spinner{label: label, state: SpinnerPending}
	s.SetWriter(os.Stdout)
	return s
}

// SetWriter directs output to w and animates only if w is a terminal.
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = func(str string) { io.WriteString(w, str) }
	s.animate = isTerminal(w)
}

// SetOutput sets the output function and turns animation on.
func (s *Spinner) SetOutput(fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = fn
	s.animate = true
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.state = SpinnerInProgress
	s.startTime = time.Now()
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	animate := s.animate
	s.mu.Unlock()

	if !animate {
		close(s.doneChan)
		return
	}

	s.render()
	go s.spin()
}

// Stop halts the spinner animation without changing state.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	<-s.doneChan
}

// Success stops the spinner and marks it as successful. note is shown
// after the timing.
func (s *Spinner) Success(note string) {
	s.finish(SpinnerSuccess, note)
}

// Fail stops the spinner and marks it as failed.
func (s *Spinner) Fail(note string) {
	s.finish(SpinnerFailed, note)
}

// Skip stops the spinner and marks it as skipped.
func (s *Spinner) Skip(reason string) {
	s.finish(SpinnerSkipped, reason)
}

func (s *Spinner) finish(state SpinnerState, note string) {
	s.Stop()
	s.mu.Lock()
	s.state = state
	s.note = note
	s.mu.Unlock()
	s.renderFinal()
}

// State returns the current spinner state.
func (s *Spinner) State() SpinnerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Elapsed returns the time since the spinner started.
func (s *Spinner) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}

// Label returns the spinner's label.
func (s *Spinner) Label() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.label
}

// SetLabel updates the spinner's label.
func (s *Spinner) SetLabel(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.label = label
}

func (s *Spinner) spin() {
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()
	defer close(s.doneChan)

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.frame = (s.frame + 1) % len(spinnerFrames)
			s.mu.Unlock()
			s.render()
		}
	}
}

func (s *Spinner) render() {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol := spinnerFrames[s.frame]
	colorIndex := (s.frame / 2) % len(GradientColors)
	style := lipgloss.NewStyle().Foreground(GradientColors[colorIndex])

	line := fmt.Sprintf("\r%s %s...", style.Render(symbol), s.label)
	s.clear()
	s.output(line)
	s.lastRendered = line
}

// clear blanks the previously rendered frame. Caller holds mu.
func (s *Spinner) clear() {
	if s.lastRendered == "" {
		return
	}
	s.output("\r" + strings.Repeat(" ", lipgloss.Width(s.lastRendered)) + "\r")
	s.lastRendered = ""
}

func (s *Spinner) renderFinal() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var symbol string
	var style lipgloss.Style

	switch s.state {
	case SpinnerSuccess:
		symbol = SymbolComplete
		style = SuccessStyle()
	case SpinnerFailed:
		symbol = SymbolFail
		style = ErrorStyle()
	case SpinnerSkipped:
		symbol = SymbolSkipped
		style = WarningStyle()
	default:
		symbol = SymbolPending
		style = MutedStyle()
	}

	s.clear()

	var b strings.Builder
	b.WriteString(style.Render(symbol))
	b.WriteString(" ")
	b.WriteString(s.label)
	if s.state != SpinnerSkipped && !s.startTime.IsZero() {
		b.WriteString(" ")
		b.WriteString(MutedStyle().Render(formatDuration(time.Since(s.startTime))))
	}
	if s.note != "" {
		b.WriteString(" ")
		b.WriteString(MutedStyle().Render("(" + s.note + ")"))
	}
	b.WriteString("\n")
	s.output(b.String())
}

// formatDuration formats a duration for display (e.g., "0.3s", "1.2s", "2m05s").
func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	switch {
	case secs < 0.1:
		return fmt.Sprintf("%.2fs", secs)
	case secs < 60:
		return fmt.Sprintf("%.1fs", secs)
	default:
		m := int(secs) / 60
		return fmt.Sprintf("%dm%02ds", m, int(secs)%60)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
