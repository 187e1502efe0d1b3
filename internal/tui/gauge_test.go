package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
)

func TestRenderUsageGauge_Width(t *testing.T) {
	tests := []struct {
		name    string
		percent float64
		width   int
	}{
		{"empty", 0, 40},
		{"half", 50, 40},
		{"full", 100, 40},
		{"over", 250, 40},
		{"negative", -5, 40},
		{"min width", 50, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ansi.Strip(RenderUsageGauge(tt.percent, tt.width, 70, 90))
			width := tt.width
			if width < 5 {
				width = 5
			}
			if got := len([]rune(out)); got != width {
				t.Errorf("width = %d, want %d", got, width)
			}
			if got := strings.Count(out, "━"); got != width {
				t.Errorf("bar cells = %d, want %d", got, width)
			}
		})
	}
}

func TestRenderBar_Width(t *testing.T) {
	out := renderBar(25, 40, colorOK)
	if got := ansi.StringWidth(out); got != 40 {
		t.Errorf("width = %d, want 40", got)
	}
}

func TestRenderTimeGauge_Clamps(t *testing.T) {
	if got := ansi.StringWidth(RenderTimeGauge(120, 30)); got != 30 {
		t.Errorf("width = %d, want 30", got)
	}
}
