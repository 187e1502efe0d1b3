// Package monitor drives the live loop: it decides when to refresh the
// block cache, advances the session tracker and triggers reconciliation
// when a session closes or the billing period rolls over.
//
// A Monitor is not safe for concurrent use. Fetches may run elsewhere, but
// their results must be handed back through ApplyFetch on the owning
// goroutine.
package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/wjarka/claude-session-monitor/internal/ccusage"
	"github.com/wjarka/claude-session-monitor/internal/config"
	"github.com/wjarka/claude-session-monitor/internal/live"
	"github.com/wjarka/claude-session-monitor/internal/metrics"
	"github.com/wjarka/claude-session-monitor/internal/period"
	"github.com/wjarka/claude-session-monitor/internal/reconcile"
)

// Snapshot is everything the dashboard needs to render one frame.
type Snapshot struct {
	Now      time.Time
	Active   *ccusage.Block
	Progress live.Progress
	Summary  reconcile.Summary
	// MonthCostUSD includes the running session on top of completed ones.
	MonthCostUSD float64
	Alerts       []live.Alert
	// Reconciled is set when this tick ran a reconciliation.
	Reconciled *reconcile.Result
	FetchErr   error
	LastFetch  time.Time
}

type Monitor struct {
	cfg     config.Config
	engine  *reconcile.Engine
	tracker *live.Tracker
	source  reconcile.Source
	metrics *metrics.Recorder
	logger  zerolog.Logger

	limiter  *rate.Limiter
	idle     *rate.Limiter
	watching bool
	changed  bool
	fetching bool

	// pending is set while a session-end or startup merge still has to be
	// retried after a failed fetch.
	pending     bool
	pendingFull bool

	cache     []ccusage.Block
	fetchErr  error
	lastFetch time.Time
}

func New(cfg config.Config, engine *reconcile.Engine, source reconcile.Source, rec *metrics.Recorder, logger zerolog.Logger) *Monitor {
	return &Monitor{
		cfg:    cfg,
		engine: engine,
		tracker: live.NewTracker(live.Thresholds{
			TimeRemaining: cfg.TimeRemainingThreshold(),
			Inactivity:    cfg.InactivityThreshold(),
		}),
		source:  source,
		metrics: rec,
		logger:  logger.With().Str("component", "monitor").Logger(),
		limiter: rate.NewLimiter(rate.Every(cfg.FetchInterval()), 1),
		idle:    rate.NewLimiter(rate.Every(cfg.IdleFetchInterval()), 1),
	}
}

// SetWatching tells the monitor whether file change hints are available.
// While they are, refreshes without a pending change fall back to the idle
// interval.
func (m *Monitor) SetWatching(on bool) {
	m.watching = on
}

// MarkChanged records a file change hint.
func (m *Monitor) MarkChanged() {
	m.changed = true
}

func (m *Monitor) Engine() *reconcile.Engine { return m.engine }

func (m *Monitor) Blocks() []ccusage.Block { return m.cache }

// Start runs the startup reconciliation and seeds the cache with its
// response.
func (m *Monitor) Start(ctx context.Context, now time.Time, forceFull bool) reconcile.Result {
	res := m.reconcile(ctx, now, forceFull)
	m.lastFetch = now
	m.markPending(res, forceFull)
	return res
}

// BeginFetch reports whether a cache refresh is due at now and, if so,
// marks it in flight and returns the window start to fetch from.
func (m *Monitor) BeginFetch(now time.Time) (time.Time, bool) {
	if m.fetching {
		return time.Time{}, false
	}
	if m.watching && !m.changed && m.idle.TokensAt(now) < 1 {
		return time.Time{}, false
	}
	if !m.limiter.AllowN(now, 1) {
		return time.Time{}, false
	}
	m.idle.AllowN(now, 1)
	m.fetching = true
	m.changed = false
	today := period.Today(now, m.cfg.Location())
	return period.Start(m.cfg.StartDay, today), true
}

// Fetch queries the source for the refresh window. It touches no monitor
// state and may run on any goroutine.
func (m *Monitor) Fetch(ctx context.Context, since time.Time) ([]ccusage.Block, error) {
	return m.source.Fetch(ctx, &since)
}

// ApplyFetch installs a refresh result. Failed or empty responses keep the
// previous cache.
func (m *Monitor) ApplyFetch(now time.Time, blocks []ccusage.Block, err error) {
	m.fetching = false
	m.fetchErr = err
	if err != nil {
		m.metrics.FetchFailed()
		m.logger.Warn().Err(err).Msg("refreshing blocks failed, keeping cache")
		return
	}
	m.lastFetch = now
	if len(blocks) == 0 {
		return
	}
	m.cache = blocks
}

// Tick advances the tracker against the cache and performs any
// reconciliation the transition calls for.
func (m *Monitor) Tick(ctx context.Context, now time.Time) Snapshot {
	up := m.tracker.Tick(now, m.cache)
	snap := Snapshot{Now: now, Active: up.Active, Alerts: up.Alerts}

	if up.Active != nil {
		if m.engine.ObserveTokens(up.Active.TotalTokens) {
			m.logger.Info().Int64("max_tokens", up.Active.TotalTokens).Msg("token ceiling raised")
		}
		m.metrics.SetActiveTokens(up.Active.TotalTokens)
	} else {
		m.metrics.SetActiveTokens(0)
	}
	for _, a := range up.Alerts {
		m.metrics.Alert(string(a.Kind))
	}

	switch {
	case up.Ended:
		m.logger.Info().Msg("session ended, reconciling")
		res := m.reconcile(ctx, now, m.pendingFull)
		m.markPending(res, m.pendingFull)
		snap.Reconciled = &res
	case m.pending && m.limiter.AllowN(now, 1):
		m.logger.Info().Msg("retrying reconciliation after failed fetch")
		res := m.reconcile(ctx, now, m.pendingFull)
		m.markPending(res, m.pendingFull)
		snap.Reconciled = &res
	case m.engine.NeedsRollover(now) && m.limiter.AllowN(now, 1):
		m.logger.Info().Msg("billing period changed, reconciling")
		res := m.reconcile(ctx, now, false)
		snap.Reconciled = &res
	}

	snap.Summary = m.engine.Summary(now)
	snap.MonthCostUSD = snap.Summary.CostUSD
	if snap.Active != nil {
		snap.Progress = live.Measure(*snap.Active, now, m.engine.TokenCeiling())
		snap.MonthCostUSD += snap.Active.CostUSD
	}
	snap.FetchErr = m.fetchErr
	snap.LastFetch = m.lastFetch

	m.metrics.SetPeriod(snap.Summary.SessionsUsed, snap.Summary.SessionsLeft, snap.Summary.CostUSD)
	m.metrics.SetTokenCeiling(m.engine.TokenCeiling())
	return snap
}

func (m *Monitor) reconcile(ctx context.Context, now time.Time, forceFull bool) reconcile.Result {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout())
	defer cancel()

	res := m.engine.Reconcile(ctx, m.source, now, forceFull)
	if res.FetchErr != nil {
		m.metrics.FetchFailed()
		m.fetchErr = res.FetchErr
		return res
	}
	m.fetchErr = nil
	m.pending, m.pendingFull = false, false
	m.metrics.Reconciled(res.Plan.Strategy.String())
	if len(res.Blocks) > 0 {
		m.cache = res.Blocks
	}
	return res
}

func (m *Monitor) markPending(res reconcile.Result, forceFull bool) {
	if res.FetchErr == nil {
		return
	}
	m.pending = true
	m.pendingFull = m.pendingFull || forceFull
}

// Pending reports whether a failed merge is waiting to be retried.
func (m *Monitor) Pending() bool { return m.pending }
