package tui

import "github.com/charmbracelet/lipgloss"

// ─── Color Palette (Catppuccin Mocha) ───────────────────────────────────────

var (
	colorSurface1 = lipgloss.Color("#45475A") // gauge track
	colorText     = lipgloss.Color("#CDD6F4") // primary text
	colorSubtext  = lipgloss.Color("#A6ADC8") // secondary text
	colorDim      = lipgloss.Color("#585B70") // muted, rules

	colorAccent   = lipgloss.Color("#CBA6F7") // mauve – header
	colorBlue     = lipgloss.Color("#89B4FA") // time gauge
	colorSapphire = lipgloss.Color("#74C7EC") // key hints
	colorGreen    = lipgloss.Color("#A6E3A1") // OK / healthy
	colorYellow   = lipgloss.Color("#F9E2AF") // warning
	colorRed      = lipgloss.Color("#F38BA8") // error / critical
	colorTeal     = lipgloss.Color("#94E2D5") // cost

	colorOK   = colorGreen
	colorWarn = colorYellow
	colorCrit = colorRed
)

// ─── Reusable Styles ────────────────────────────────────────────────────────

var (
	headerBrandStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorAccent)

	ruleStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSubtext)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorText)

	boldValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	tealStyle = lipgloss.NewStyle().
			Foreground(colorTeal)

	waitingStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorSapphire).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	// Startup status lines printed before the live view takes the screen.
	StatusInfoStyle = lipgloss.NewStyle().
			Foreground(colorSapphire)

	StatusOKStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	StatusWarnStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	StatusErrorStyle = lipgloss.NewStyle().
				Foreground(colorRed)
)
