package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ItemStatus marks one summary line.
type ItemStatus int

const (
	ItemOK ItemStatus = iota
	ItemFailed
	ItemSkipped
	ItemInfo
)

// SummaryItem is one line of the closing summary.
type SummaryItem struct {
	Status ItemStatus
	Label  string
	Detail string
}

// Summary is the block printed after a run.
type Summary struct {
	Title    string
	OK       bool
	Items    []SummaryItem
	Warnings []string
	// Next lists commands worth running afterwards.
	Next []string
}

// SummaryRenderer formats summaries for terminal display.
type SummaryRenderer struct {
	titleStyle lipgloss.Style
	labelWidth int
}

// NewSummaryRenderer creates a renderer with default styles.
func NewSummaryRenderer() *SummaryRenderer {
	return &SummaryRenderer{
		titleStyle: lipgloss.NewStyle().Bold(true),
		labelWidth: 12,
	}
}

// RenderSummary renders s with the default renderer.
func RenderSummary(s Summary) string {
	return NewSummaryRenderer().Render(s)
}

// Render generates the formatted summary string.
func (r *SummaryRenderer) Render(s Summary) string {
	var sb strings.Builder

	symbol, style := SymbolSuccess, SuccessStyle()
	if !s.OK {
		symbol, style = SymbolFail, ErrorStyle()
	}
	sb.WriteString(style.Render(symbol))
	sb.WriteString(" ")
	sb.WriteString(r.titleStyle.Render(s.Title))
	sb.WriteString("\n")

	for _, item := range s.Items {
		sb.WriteString("  ")
		sb.WriteString(itemSymbol(item.Status))
		sb.WriteString(" ")
		if item.Detail == "" {
			sb.WriteString(item.Label)
		} else {
			sb.WriteString(padRight(item.Label, r.labelWidth))
			sb.WriteString(" ")
			sb.WriteString(item.Detail)
		}
		sb.WriteString("\n")
	}

	if len(s.Warnings) > 0 {
		sb.WriteString("\n")
		for _, w := range s.Warnings {
			sb.WriteString(fmt.Sprintf("%s %s\n", WarningStyle().Render(SymbolWarning), w))
		}
	}

	if len(s.Next) > 0 {
		sb.WriteString("\n")
		for _, cmd := range s.Next {
			sb.WriteString(fmt.Sprintf("  %s %s\n", MutedStyle().Render("$"), InfoStyle().Render(cmd)))
		}
	}

	return sb.String()
}

func itemSymbol(status ItemStatus) string {
	switch status {
	case ItemOK:
		return SuccessStyle().Render(SymbolComplete)
	case ItemFailed:
		return ErrorStyle().Render(SymbolFail)
	case ItemSkipped:
		return WarningStyle().Render(SymbolSkipped)
	default:
		return MutedStyle().Render(SymbolArrow)
	}
}

// padRight pads s to width visible cells.
func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}
