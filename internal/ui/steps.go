package ui

import (
	"fmt"
	"io"
	"strings"
)

// DividerWidth is the default width for divider lines.
const DividerWidth = 56

// StepDisplay renders numbered steps, one spinner line per step.
//
//	● [1/6] Updating packages 41.2s (updated with apt-get, installed neovim)
//	✗ [3/6] Installing public key on the server 0.4s
//	    read-only file system
//	⊘ [5/6] Disabling password authentication (needs copy-key)
type StepDisplay struct {
	w       io.Writer
	static  bool
	current *Spinner
}

// NewStepDisplay creates a step display writing to w.
func NewStepDisplay(w io.Writer) *StepDisplay {
	return &StepDisplay{w: w}
}

// SetStatic turns spinner animation off. Used when other output is
// interleaved with step lines.
func (d *StepDisplay) SetStatic(static bool) {
	d.static = static
}

func (d *StepDisplay) spinner(label string) *Spinner {
	s := NewSpinner(label)
	s.SetWriter(d.w)
	if d.static {
		s.animate = false
	}
	return s
}

// StepLabel formats "[index/total] title".
func StepLabel(index, total int, title string) string {
	return fmt.Sprintf("[%d/%d] %s", index, total, title)
}

// Start shows a step as in progress.
func (d *StepDisplay) Start(index, total int, title string) {
	d.Stop()
	label := StepLabel(index, total, title)
	if d.static {
		fmt.Fprintf(d.w, "%s %s...\n", InfoStyle().Render(SymbolProgress), label)
	}
	s := d.spinner(label)
	s.Start()
	d.current = s
}

// Stop halts the running spinner and erases its line so other output can
// be written. The step stays open.
func (d *StepDisplay) Stop() {
	if d.current != nil {
		d.current.Stop()
		d.current.mu.Lock()
		d.current.clear()
		d.current.mu.Unlock()
	}
}

// Succeed closes the current step as successful.
func (d *StepDisplay) Succeed(note string) {
	if d.current == nil {
		return
	}
	d.current.Success(note)
	d.current = nil
}

// Fail closes the current step as failed and prints output indented below.
func (d *StepDisplay) Fail(note, output string) {
	if d.current == nil {
		return
	}
	d.current.Fail(note)
	d.current = nil
	d.RenderOutput(output)
}

// Skip prints a skipped step that never started.
func (d *StepDisplay) Skip(index, total int, title, reason string) {
	d.spinner(StepLabel(index, total, title)).Skip(reason)
}

// RenderOutput prints text indented and muted. Blank input prints nothing.
func (d *StepDisplay) RenderOutput(text string) {
	text = strings.TrimRight(text, "\n")
	if strings.TrimSpace(text) == "" {
		return
	}
	style := MutedStyle()
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(d.w, "    %s\n", style.Render(line))
	}
}

// RenderSubStatus renders an indented sub-status line.
func (d *StepDisplay) RenderSubStatus(symbol, name, status string) {
	style := MutedStyle()
	fmt.Fprintf(d.w, "  %s %s %s\n", style.Render(symbol), name, style.Render(status))
}

// Divider renders a horizontal line.
func (d *StepDisplay) Divider() {
	fmt.Fprintf(d.w, "%s\n", FormatDivider(DividerWidth))
}

// Newline writes an empty line.
func (d *StepDisplay) Newline() {
	fmt.Fprintln(d.w)
}

// FormatDivider returns a divider line as a string.
func FormatDivider(width int) string {
	return MutedStyle().Render(strings.Repeat("━", width))
}
