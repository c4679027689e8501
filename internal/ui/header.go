package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// HeaderInfo contains information to display in the header.
type HeaderInfo struct {
	Version string // e.g. "v0.3.0"
	Target  string // user@host being provisioned
	Note    string // optional line under the target
}

// HeaderWidth is the width of the header divider.
const HeaderWidth = 44

// RenderHeader renders the banner printed before the first step.
func RenderHeader(info HeaderInfo) string {
	titleStyle := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	versionStyle := lipgloss.NewStyle().Foreground(ColorAccentDeep)
	targetStyle := lipgloss.NewStyle().Foreground(ColorPrimary)
	dividerStyle := lipgloss.NewStyle().Foreground(ColorBorder)

	var b strings.Builder

	b.WriteString(titleStyle.Render("vpsinit"))
	if info.Version != "" {
		b.WriteString(" ")
		b.WriteString(versionStyle.Render(info.Version))
	}
	b.WriteString("\n")

	if info.Target != "" {
		b.WriteString(MutedStyle().Render("target "))
		b.WriteString(targetStyle.Render(info.Target))
		b.WriteString("\n")
	}
	if info.Note != "" {
		b.WriteString(MutedStyle().Render(info.Note))
		b.WriteString("\n")
	}

	b.WriteString(dividerStyle.Render(strings.Repeat("━", HeaderWidth)))
	b.WriteString("\n")
	return b.String()
}
