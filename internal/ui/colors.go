package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Accent palette used for the banner and spinner.
const (
	ColorAccent     lipgloss.Color = "#5FD7FF" // Sky
	ColorAccentDeep lipgloss.Color = "#875FFF" // Violet
	ColorAccentWarm lipgloss.Color = "#FFAF5F" // Amber
	ColorBorder     lipgloss.Color = "#4E4E4E"
)

// Semantic colors for status indication
const (
	ColorSuccess lipgloss.Color = "#5FD787" // Green
	ColorError   lipgloss.Color = "#FF5F5F" // Red
	ColorWarning lipgloss.Color = "#FFD75F" // Yellow
	ColorInfo    lipgloss.Color = "#5FAFFF" // Blue
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "#E4E4E4"
	ColorSecondary lipgloss.Color = "#87AFD7"
	ColorMuted     lipgloss.Color = "#808080"
)

// GradientColors are cycled by the spinner.
var GradientColors = []lipgloss.Color{ColorAccent, ColorInfo, ColorAccentDeep, ColorSuccess}

func SuccessStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorSuccess) }
func ErrorStyle() lipgloss.Style   { return lipgloss.NewStyle().Foreground(ColorError) }
func WarningStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorWarning) }
func InfoStyle() lipgloss.Style    { return lipgloss.NewStyle().Foreground(ColorInfo) }
func MutedStyle() lipgloss.Style   { return lipgloss.NewStyle().Foreground(ColorMuted) }

// DisableColors switches lipgloss to plain ASCII output. Used for --no-color
// and when NO_COLOR is set.
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// ColorsDisabledByEnv reports whether NO_COLOR is set to a non-empty value.
func ColorsDisabledByEnv() bool {
	return os.Getenv("NO_COLOR") != ""
}
