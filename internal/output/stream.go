// Package output shapes remote command output for the terminal when
// vpsinit runs with --verbose.
package output

import (
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/vpsinit/internal/ui"
)

// Formatter processes each remote output line before display.
type Formatter interface {
	ProcessLine(line string) string
}

// IndentFormatter nests remote output under the step line and highlights
// lines that look like errors.
type IndentFormatter struct {
	prefix     string
	errorStyle lipgloss.Style
}

// NewIndentFormatter creates a formatter that prefixes lines with a muted
// gutter.
func NewIndentFormatter() *IndentFormatter {
	return &IndentFormatter{
		prefix:     "    " + ui.MutedStyle().Render("│") + " ",
		errorStyle: lipgloss.NewStyle().Foreground(ui.ColorError),
	}
}

// ProcessLine indents line and colors error lines.
func (f *IndentFormatter) ProcessLine(line string) string {
	if isErrorLine(line) {
		line = f.errorStyle.Render(line)
	}
	return f.prefix + line
}

// isErrorLine checks if a line appears to be an error message.
func isErrorLine(line string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(line))
	for _, prefix := range []string{"error:", "error ", "e:", "fatal:", "failed:", "sudo:", "bash:"} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// StreamHandler is a line-buffered io.Writer. Complete lines go through
// the formatter; a trailing partial line waits for Flush.
type StreamHandler struct {
	mu        sync.Mutex
	w         io.Writer
	formatter Formatter
	buf       []byte
	lines     int
}

// NewStreamHandler creates a handler writing to w. A nil formatter passes
// lines through unchanged.
func NewStreamHandler(w io.Writer, f Formatter) *StreamHandler {
	return &StreamHandler{w: w, formatter: f}
}

// Write implements io.Writer with line buffering. Remote stdout and
// stderr share one handler, so it is safe for concurrent use.
func (h *StreamHandler) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf = append(h.buf, p...)
	for {
		idx := strings.IndexByte(string(h.buf), '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSuffix(string(h.buf[:idx]), "\r")
		h.buf = h.buf[idx+1:]
		if err := h.writeLine(line); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Flush writes any buffered partial line.
func (h *StreamHandler) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.buf) == 0 {
		return nil
	}
	line := string(h.buf)
	h.buf = nil
	return h.writeLine(line)
}

// Lines returns the number of lines written.
func (h *StreamHandler) Lines() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lines
}

func (h *StreamHandler) writeLine(line string) error {
	h.lines++
	if h.formatter != nil {
		line = h.formatter.ProcessLine(line)
	}
	_, err := io.WriteString(h.w, line+"\n")
	return err
}
