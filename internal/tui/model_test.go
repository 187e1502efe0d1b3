package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/rs/zerolog"

	"github.com/wjarka/claude-session-monitor/internal/ccusage"
	"github.com/wjarka/claude-session-monitor/internal/config"
	"github.com/wjarka/claude-session-monitor/internal/monitor"
	"github.com/wjarka/claude-session-monitor/internal/reconcile"
	"github.com/wjarka/claude-session-monitor/internal/state"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type nopSource struct{}

func (nopSource) Fetch(context.Context, *time.Time) ([]ccusage.Block, error) {
	return []ccusage.Block{}, nil
}

type recordingNotifier struct {
	sent []string
}

func (r *recordingNotifier) Send(_ context.Context, title, message string) error {
	r.sent = append(r.sent, title+": "+message)
	return nil
}

func newTestModel(t *testing.T) (Model, *monitor.Monitor) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	st := state.State{
		MaxTokens:             20000,
		MonthlyMeta:           state.PeriodMeta{PeriodStart: "2024-03-01", Sessions: 3, Cost: 4},
		LastIncrementalUpdate: "2024-03-14",
	}
	engine := reconcile.NewEngine(cfg, st, nil, zerolog.Nop())
	mon := monitor.New(cfg, engine, nopSource{}, nil, zerolog.Nop())
	return NewModel(context.Background(), cfg, mon, &recordingNotifier{}, zerolog.Nop()), mon
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestView_Loading(t *testing.T) {
	m, _ := newTestModel(t)
	out := ansi.Strip(m.View())
	if !strings.Contains(out, "CLAUDE SESSION MONITOR") {
		t.Errorf("missing header in %q", out)
	}
	if !strings.Contains(out, "Loading usage data...") {
		t.Errorf("missing loading line in %q", out)
	}
}

func TestView_Waiting(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = update(t, m, tickMsg(testNow))
	out := ansi.Strip(m.View())

	for _, want := range []string{
		"Waiting for a new session to start...",
		"Saved max tokens: 20,000",
		"Current subscription period started: 2024-03-01",
		"Sessions: 3 used, 47 left",
		"Cost (mo): $4.00",
		"17 days left (avg. 2.8 sessions/day)",
		"Ctrl+C to exit",
		"12:00:00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
}

func TestView_ActiveSession(t *testing.T) {
	m, _ := newTestModel(t)
	start := testNow.Add(-time.Hour)
	block := ccusage.Block{
		ID:          "s1",
		StartTime:   start,
		EndTime:     start.Add(5 * time.Hour),
		TotalTokens: 5000,
		CostUSD:     1.25,
		Entries:     1204,
		Models:      []string{"claude-opus-4", "claude-sonnet-4"},
		IsActive:    true,
	}
	m, _ = update(t, m, BlocksMsg{At: testNow, Blocks: []ccusage.Block{block}})
	m, _ = update(t, m, tickMsg(testNow))
	out := ansi.Strip(m.View())

	for _, want := range []string{
		"Token Usage:",
		"25.0%",
		"Time to Reset:",
		"4h 00m",
		"5,000 / ~20,000",
		"Session Cost:  $1.25",
		"Cost (mo): $5.25",
		"Models:        claude-opus-4, claude-sonnet-4 (1,204 entries)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
}

func TestView_FetchErrorShowsStaleLine(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = update(t, m, BlocksMsg{At: testNow, Blocks: []ccusage.Block{}, Err: errors.New("boom")})
	m, _ = update(t, m, tickMsg(testNow))
	if out := ansi.Strip(m.View()); !strings.Contains(out, "usage data unavailable") {
		t.Errorf("view missing stale data line:\n%s", out)
	}
}

func TestView_TruncatesToWidth(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 20, Height: 10})
	m, _ = update(t, m, tickMsg(testNow))
	for _, line := range strings.Split(m.View(), "\n") {
		if w := ansi.StringWidth(line); w > 20 {
			t.Errorf("line width = %d, want <= 20: %q", w, line)
		}
	}
}

func TestUpdate_QuitKeys(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyRunes, Runes: []rune("q")},
	} {
		m, _ := newTestModel(t)
		m, cmd := update(t, m, key)
		if cmd == nil {
			t.Fatalf("%v: expected quit command", key)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%v: command did not quit", key)
		}
		if m.View() != "" {
			t.Errorf("%v: view should be empty after quit", key)
		}
	}
}

func TestUpdate_AlertDispatchesNotification(t *testing.T) {
	m, _ := newTestModel(t)
	n := m.notifier.(*recordingNotifier)
	start := testNow.Add(-4*time.Hour - 45*time.Minute)
	block := ccusage.Block{ID: "s1", StartTime: start, EndTime: start.Add(5 * time.Hour), TotalTokens: 100}

	m, _ = update(t, m, BlocksMsg{At: testNow, Blocks: []ccusage.Block{block}})
	_, cmd := m.tick(testNow)
	if cmd == nil {
		t.Fatal("expected commands from tick")
	}
	runAll(cmd())

	if len(n.sent) != 1 || !strings.Contains(n.sent[0], "Less than 30 minutes remaining") {
		t.Errorf("sent = %v, want one time-remaining alert", n.sent)
	}
}

// runAll executes the non-blocking commands of a batch. Tick commands are
// skipped since they sleep.
func runAll(msg tea.Msg) {
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return
	}
	for i, c := range batch {
		if c == nil || i == 0 {
			continue
		}
		runAll(c())
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{35000, "35,000"},
		{1234567, "1,234,567"},
		{-4500, "-4,500"},
	}
	for _, tt := range tests {
		if got := formatCount(tt.in); got != tt.want {
			t.Errorf("formatCount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatRemaining(t *testing.T) {
	if got := formatRemaining(2*time.Hour + 5*time.Minute + 30*time.Second); got != "2h 05m" {
		t.Errorf("formatRemaining = %q, want %q", got, "2h 05m")
	}
	if got := formatRemaining(-time.Minute); got != "0h 00m" {
		t.Errorf("formatRemaining(negative) = %q, want %q", got, "0h 00m")
	}
}
