package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/wjarka/claude-session-monitor/internal/ccusage"
	"github.com/wjarka/claude-session-monitor/internal/config"
	"github.com/wjarka/claude-session-monitor/internal/live"
	"github.com/wjarka/claude-session-monitor/internal/monitor"
)

const notifyTimeout = 10 * time.Second

// Notifier delivers desktop alerts.
type Notifier interface {
	Send(ctx context.Context, title, message string) error
}

type tickMsg time.Time

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// BlocksMsg carries the result of a background cache refresh.
type BlocksMsg struct {
	At     time.Time
	Blocks []ccusage.Block
	Err    error
}

// FilesChangedMsg signals that usage files were written since the last
// refresh.
type FilesChangedMsg struct{}

type alertSentMsg struct {
	kind live.AlertKind
	err  error
}

type Model struct {
	ctx      context.Context
	cfg      config.Config
	mon      *monitor.Monitor
	notifier Notifier
	logger   zerolog.Logger

	snap     monitor.Snapshot
	ready    bool
	width    int
	height   int
	quitting bool
}

func NewModel(ctx context.Context, cfg config.Config, mon *monitor.Monitor, notifier Notifier, logger zerolog.Logger) Model {
	return Model{
		ctx:      ctx,
		cfg:      cfg,
		mon:      mon,
		notifier: notifier,
		logger:   logger.With().Str("component", "tui").Logger(),
	}
}

func (m Model) Init() tea.Cmd {
	return func() tea.Msg { return tickMsg(time.Now()) }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m.tick(time.Time(msg))

	case BlocksMsg:
		m.mon.ApplyFetch(msg.At, msg.Blocks, msg.Err)
		return m, nil

	case FilesChangedMsg:
		m.mon.MarkChanged()
		return m, nil

	case alertSentMsg:
		if msg.err != nil {
			m.logger.Debug().Err(msg.err).Str("kind", string(msg.kind)).Msg("notification failed")
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) tick(now time.Time) (tea.Model, tea.Cmd) {
	m.snap = m.mon.Tick(m.ctx, now)
	m.ready = true

	cmds := []tea.Cmd{tickCmd(m.cfg.RefreshInterval())}
	for _, a := range m.snap.Alerts {
		cmds = append(cmds, m.notifyCmd(a))
	}
	if since, ok := m.mon.BeginFetch(now); ok {
		cmds = append(cmds, m.fetchCmd(since))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) fetchCmd(since time.Time) tea.Cmd {
	mon := m.mon
	parent := m.ctx
	timeout := m.cfg.FetchTimeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		blocks, err := mon.Fetch(ctx, since)
		return BlocksMsg{At: time.Now(), Blocks: blocks, Err: err}
	}
}

func (m Model) notifyCmd(a live.Alert) tea.Cmd {
	n := m.notifier
	if n == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		return alertSentMsg{kind: a.Kind, err: n.Send(ctx, a.Title, a.Message)}
	}
}
