package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/wjarka/claude-session-monitor/internal/monitor"
	"github.com/wjarka/claude-session-monitor/internal/period"
)

const (
	gaugeWidth = 40
	// Token gauge color thresholds, in percent of the ceiling.
	tokenWarnAt = 70
	tokenCritAt = 90
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	lines := []string{
		headerBrandStyle.Render("✦ ✧ ✦ CLAUDE SESSION MONITOR ✦ ✧ ✦"),
		ruleStyle.Render(strings.Repeat("=", 35)),
		"",
	}
	switch {
	case !m.ready:
		lines = append(lines, dimStyle.Render("Loading usage data..."), "")
	case m.snap.Active != nil:
		lines = append(lines, renderActive(m.snap)...)
	default:
		lines = append(lines, renderWaiting(m.snap)...)
	}
	if m.ready {
		lines = append(lines, renderFooter(m.snap, m.cfg.Location())...)
	}

	if m.width > 0 {
		for i, l := range lines {
			lines[i] = ansi.Truncate(l, m.width, "…")
		}
	}
	return strings.Join(lines, "\n")
}

func renderActive(s monitor.Snapshot) []string {
	p := s.Progress
	lines := []string{
		labelStyle.Render("Token Usage:  ") + " " +
			RenderUsageGauge(p.TokenPercent, gaugeWidth, tokenWarnAt, tokenCritAt) + " " +
			valueStyle.Render(fmt.Sprintf("%.1f%%", p.TokenPercent)),
		labelStyle.Render("Time to Reset:") + " " +
			RenderTimeGauge(p.TimePercent, gaugeWidth) + " " +
			valueStyle.Render(formatRemaining(p.Remaining)),
		"",
		labelStyle.Render("Tokens:") + "        " +
			valueStyle.Render(fmt.Sprintf("%s / ~%s", formatCount(p.Tokens), formatCount(p.Ceiling))),
		labelStyle.Render("Session Cost:") + "  " + tealStyle.Render(fmt.Sprintf("$%.2f", p.CostUSD)),
		labelStyle.Render("Burn Rate:") + "     " + dimStyle.Render(fmt.Sprintf("%s tokens/min", formatCount(int64(p.TokensPerMinute)))),
	}
	if a := s.Active; len(a.Models) > 0 {
		lines = append(lines, labelStyle.Render("Models:")+"        "+
			dimStyle.Render(fmt.Sprintf("%s (%s entries)", strings.Join(a.Models, ", "), formatCount(int64(a.Entries)))))
	}
	return append(lines, "")
}

func renderWaiting(s monitor.Snapshot) []string {
	lines := []string{
		"",
		waitingStyle.Render("Waiting for a new session to start..."),
		"",
		"Saved max tokens: " + formatCount(s.Summary.TokenCeiling),
		"Current subscription period started: " + period.Format(s.Summary.PeriodStart),
	}
	if prev := s.Summary.PreviousPeriod; prev != nil {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("Previous period (%s): %d sessions, $%.2f",
			prev.PeriodStart, prev.Sessions, prev.Cost)))
	}
	return append(lines, "")
}

func renderFooter(s monitor.Snapshot, loc *time.Location) []string {
	sum := s.Summary
	lines := []string{
		ruleStyle.Render(strings.Repeat("=", 60)),
		fmt.Sprintf("⏰ %s   🗓️ Sessions: %s | 💰 Cost (mo): %s",
			s.Now.In(loc).Format("15:04:05"),
			boldValueStyle.Render(fmt.Sprintf("%d used, %d left", sum.SessionsUsed, sum.SessionsLeft)),
			tealStyle.Render(fmt.Sprintf("$%.2f", s.MonthCostUSD)),
		),
		fmt.Sprintf("  └─ ⏳ %d days left (avg. %.1f sessions/day) | %s to exit",
			sum.DaysRemaining, sum.AvgSessionsPerDay, helpKeyStyle.Render("Ctrl+C")),
	}
	if s.FetchErr != nil {
		stale := "never"
		if !s.LastFetch.IsZero() {
			stale = s.LastFetch.In(loc).Format("15:04:05")
		}
		lines = append(lines, errorStyle.Render("usage data unavailable, showing data from "+stale))
	}
	return lines
}

// formatRemaining renders a duration as "2h 05m".
func formatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Minutes())
	return fmt.Sprintf("%dh %02dm", total/60, total%60)
}

// formatCount renders n with thousands separators.
func formatCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
