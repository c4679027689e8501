package ui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// NewTable creates a Bubbles table with default styling.
func NewTable(columns []TableColumn, rows []table.Row) table.Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{Title: c.Title, Width: c.Width}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1), // +1 for header
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.Foreground(ColorPrimary)
	// Not interactive: the selected row looks like any other.
	s.Selected = s.Cell

	t.SetStyles(s)
	return t
}

// RenderSimpleTable renders a non-interactive table string.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}
	return NewTable(columns, tableRows).View()
}

// HostRow is one provisioned alias.
type HostRow struct {
	Alias        string
	Hostname     string
	User         string
	Port         string
	IdentityFile string
}

// RenderHostTable renders the aliases written to the SSH config.
func RenderHostTable(rows []HostRow) string {
	if len(rows) == 0 {
		return "No hosts provisioned yet"
	}

	columns := []TableColumn{
		{Title: "ALIAS", Width: 8},
		{Title: "HOSTNAME", Width: 24},
		{Title: "USER", Width: 10},
		{Title: "PORT", Width: 6},
		{Title: "KEY", Width: 40},
	}
	for _, r := range rows {
		if w := lipgloss.Width(r.Alias); w > columns[0].Width {
			columns[0].Width = w
		}
		if w := lipgloss.Width(r.Hostname); w > columns[1].Width {
			columns[1].Width = w
		}
		if w := lipgloss.Width(r.IdentityFile); w > columns[4].Width {
			columns[4].Width = w
		}
	}

	cells := make([][]string, len(rows))
	for i, r := range rows {
		port := r.Port
		if port == "" {
			port = "22"
		}
		cells[i] = []string{r.Alias, r.Hostname, r.User, port, r.IdentityFile}
	}
	return RenderSimpleTable(columns, cells)
}
