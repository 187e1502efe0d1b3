package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderUsageGauge produces a bar that fills from left to right as usage
// increases (0=empty, 100=full). Colors shift green→yellow→red at the warn
// and crit percentages.
func RenderUsageGauge(usedPercent float64, width int, warnAt, critAt float64) string {
	if width < 5 {
		width = 5
	}
	if usedPercent < 0 {
		usedPercent = 0
	}
	if usedPercent > 100 {
		usedPercent = 100
	}

	var color lipgloss.Color
	switch {
	case usedPercent >= critAt:
		color = colorCrit
	case usedPercent >= warnAt:
		color = colorWarn
	default:
		color = colorOK
	}
	return renderBar(usedPercent, width, color)
}

// RenderTimeGauge shows elapsed session time in a fixed color.
func RenderTimeGauge(elapsedPercent float64, width int) string {
	if width < 5 {
		width = 5
	}
	if elapsedPercent < 0 {
		elapsedPercent = 0
	}
	if elapsedPercent > 100 {
		elapsedPercent = 100
	}
	return renderBar(elapsedPercent, width, colorBlue)
}

func renderBar(percent float64, width int, color lipgloss.Color) string {
	filled := int(percent / 100 * float64(width))
	empty := width - filled

	filledStyle := lipgloss.NewStyle().Foreground(color)
	trackStyle := lipgloss.NewStyle().Foreground(colorSurface1)
	return filledStyle.Render(strings.Repeat("━", filled)) +
		trackStyle.Render(strings.Repeat("━", empty))
}
