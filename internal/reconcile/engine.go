// Package reconcile folds usage blocks into the persisted billing-period
// aggregates. Every completed session is counted at most once per period.
package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/wjarka/claude-session-monitor/internal/ccusage"
	"github.com/wjarka/claude-session-monitor/internal/config"
	"github.com/wjarka/claude-session-monitor/internal/period"
	"github.com/wjarka/claude-session-monitor/internal/state"
)

// Source supplies usage blocks. An error means "no new information".
type Source interface {
	Fetch(ctx context.Context, since *time.Time) ([]ccusage.Block, error)
}

// Store persists the engine state.
type Store interface {
	Save(state.State) error
}

// Ledger mirrors counted sessions into a queryable history. It is optional
// and its failures never affect the aggregates.
type Ledger interface {
	Record(ctx context.Context, periodStart string, blocks []ccusage.Block) error
	ReplacePeriod(ctx context.Context, periodStart string, blocks []ccusage.Block) error
	Prune(ctx context.Context, keepFrom string) (int64, error)
}

// Result describes one merge.
type Result struct {
	Plan          Plan
	Blocks        []ccusage.Block
	Applied       bool
	NewSessions   int
	CeilingRaised bool
	FetchErr      error
	PersistErr    error
}

// Summary holds the derived counters shown to the user.
type Summary struct {
	PeriodStart       time.Time
	NextRenewal       time.Time
	SessionsUsed      int
	SessionsLeft      int
	CostUSD           float64
	DaysRemaining     int
	AvgSessionsPerDay float64
	TokenCeiling      int64
	PreviousPeriod    *state.PeriodMeta
}

type Engine struct {
	cfg     config.Config
	store   Store
	ledger  Ledger
	logger  zerolog.Logger
	st      state.State
	counted map[string]struct{}
	dirty   bool
}

func NewEngine(cfg config.Config, st state.State, store Store, logger zerolog.Logger) *Engine {
	e := &Engine{
		cfg:    cfg,
		store:  store,
		logger: logger.With().Str("component", "reconcile").Logger(),
		st:     st.Clone(),
	}
	e.counted = make(map[string]struct{}, len(e.st.ProcessedSessionIDs))
	for _, id := range e.st.ProcessedSessionIDs {
		e.counted[id] = struct{}{}
	}
	return e
}

// SetLedger attaches an optional session ledger.
func (e *Engine) SetLedger(l Ledger) {
	e.ledger = l
}

// State returns a copy of the current in-memory state.
func (e *Engine) State() state.State {
	return e.st.Clone()
}

// Dirty reports whether the in-memory state has changes that failed to persist.
func (e *Engine) Dirty() bool {
	return e.dirty
}

// TokenCeiling is the highest block token count seen, or the configured
// default when none has been recorded yet.
func (e *Engine) TokenCeiling() int64 {
	if e.st.MaxTokens > 0 {
		return e.st.MaxTokens
	}
	return e.cfg.DefaultTokenCeiling
}

// Plan selects the fetch strategy for a refresh at now.
func (e *Engine) Plan(now time.Time, forceFull bool) Plan {
	today := period.Today(now, e.cfg.Location())
	ps := period.Start(e.cfg.StartDay, today)
	plan := Plan{PeriodStart: ps}

	switch {
	case forceFull:
		plan.Strategy, plan.Reason = StrategyFullRescan, ReasonForced
		return plan
	case e.st.MaxTokens <= 0:
		plan.Strategy, plan.Reason = StrategyFullRescan, ReasonNoCeiling
		return plan
	case e.st.MonthlyMeta.PeriodStart != period.Format(ps):
		plan.Strategy, plan.Reason, plan.Since = StrategyPeriodRollover, ReasonNewPeriod, &ps
		return plan
	}

	window := today.AddDate(0, 0, -e.cfg.Fetch.IncrementalWindowDays)
	last, ok := period.Parse(e.st.LastIncrementalUpdate)
	if !ok {
		plan.Strategy, plan.Reason, plan.Since = StrategyIncremental, ReasonNoLastUpdate, &window
		return plan
	}

	since := last.AddDate(0, 0, -e.cfg.Fetch.IncrementalOverlapDays)
	if since.Before(window) {
		// An overlap window clipped to the fallback window could skip sessions
		// closed since the last run; rescan the period instead.
		plan.Strategy, plan.Reason, plan.Since = StrategyPeriodRollover, ReasonStaleWindow, &ps
		return plan
	}
	plan.Strategy, plan.Reason, plan.Since = StrategyIncremental, ReasonOverlap, &since
	return plan
}

// NeedsRollover reports whether the billing period changed since the last
// merge.
func (e *Engine) NeedsRollover(now time.Time) bool {
	today := period.Today(now, e.cfg.Location())
	return e.st.MonthlyMeta.PeriodStart != period.Format(period.Start(e.cfg.StartDay, today))
}

// Reconcile plans, fetches from src and merges the response.
func (e *Engine) Reconcile(ctx context.Context, src Source, now time.Time, forceFull bool) Result {
	plan := e.Plan(now, forceFull)
	blocks, err := src.Fetch(ctx, plan.Since)
	return e.Apply(ctx, plan, blocks, err, now)
}

// Apply merges blocks fetched for plan. A non-nil fetchErr leaves every
// aggregate and timestamp untouched.
func (e *Engine) Apply(ctx context.Context, plan Plan, blocks []ccusage.Block, fetchErr error, now time.Time) Result {
	res := Result{Plan: plan, Blocks: blocks, FetchErr: fetchErr}
	log := e.logger.With().Str("strategy", plan.Strategy.String()).Str("reason", string(plan.Reason)).Logger()
	if fetchErr != nil {
		log.Warn().Err(fetchErr).Msg("fetch failed, keeping previous aggregates")
		return res
	}

	today := period.Today(now, e.cfg.Location())
	psKey := period.Format(plan.PeriodStart)
	prevLastUpdate := e.st.LastIncrementalUpdate

	sessions := lo.Filter(blocks, func(b ccusage.Block, _ int) bool { return !b.IsGap })
	completed := lo.Filter(sessions, func(b ccusage.Block, _ int) bool {
		return !b.IsActive && !b.StartTime.Before(plan.PeriodStart)
	})

	var counted []ccusage.Block
	if plan.Strategy.Wholesale() {
		counted = lo.UniqBy(completed, func(b ccusage.Block) string { return b.ID })
		e.replaceAggregate(psKey, counted)
		res.NewSessions = len(counted)
	} else {
		counted = e.addToAggregate(completed)
		res.NewSessions = len(counted)
	}

	if len(sessions) > 0 {
		top := lo.MaxBy(sessions, func(a, b ccusage.Block) bool { return a.TotalTokens > b.TotalTokens })
		if top.TotalTokens > e.st.MaxTokens {
			e.st.MaxTokens = top.TotalTokens
			res.CeilingRaised = true
		}
	}
	if plan.Strategy == StrategyFullRescan {
		e.st.LastMaxTokensScan = period.Format(today)
	}

	e.st.LastIncrementalUpdate = period.Format(today)
	res.Applied = true
	if err := e.persist(); err != nil {
		e.st.LastIncrementalUpdate = prevLastUpdate
		res.PersistErr = err
		log.Warn().Err(err).Msg("persisting state failed")
	}

	e.syncLedger(ctx, plan, psKey, counted)

	log.Debug().
		Int("blocks", len(blocks)).
		Int("new_sessions", res.NewSessions).
		Int("sessions", e.st.MonthlyMeta.Sessions).
		Float64("cost", e.st.MonthlyMeta.Cost).
		Int64("max_tokens", e.st.MaxTokens).
		Msg("merged blocks")
	return res
}

func (e *Engine) replaceAggregate(periodStart string, counted []ccusage.Block) {
	old := e.st.MonthlyMeta
	if old.PeriodStart != "" && old.PeriodStart != periodStart {
		prev := old
		e.st.PreviousPeriod = &prev
	}

	ids := lo.Map(counted, func(b ccusage.Block, _ int) string { return b.ID })
	e.st.MonthlyMeta = state.PeriodMeta{
		PeriodStart: periodStart,
		Sessions:    len(counted),
		Cost:        lo.SumBy(counted, func(b ccusage.Block) float64 { return b.CostUSD }),
	}
	e.st.ProcessedSessionIDs = ids
	e.counted = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		e.counted[id] = struct{}{}
	}
}

func (e *Engine) addToAggregate(completed []ccusage.Block) []ccusage.Block {
	var added []ccusage.Block
	for _, b := range completed {
		if _, seen := e.counted[b.ID]; seen {
			continue
		}
		e.counted[b.ID] = struct{}{}
		e.st.ProcessedSessionIDs = append(e.st.ProcessedSessionIDs, b.ID)
		e.st.MonthlyMeta.Sessions++
		e.st.MonthlyMeta.Cost += b.CostUSD
		added = append(added, b)
	}
	return added
}

// ObserveTokens raises the token ceiling when a running session exceeds it
// and persists the change immediately.
func (e *Engine) ObserveTokens(tokens int64) bool {
	if tokens <= e.st.MaxTokens {
		return false
	}
	e.st.MaxTokens = tokens
	if err := e.persist(); err != nil {
		e.logger.Warn().Err(err).Int64("max_tokens", tokens).Msg("persisting token ceiling failed")
	}
	return true
}

// Flush retries a persist that failed earlier.
func (e *Engine) Flush() error {
	if !e.dirty {
		return nil
	}
	return e.persist()
}

func (e *Engine) persist() error {
	if e.store == nil {
		e.dirty = false
		return nil
	}
	if err := e.store.Save(e.st.Clone()); err != nil {
		e.dirty = true
		return err
	}
	e.dirty = false
	return nil
}

func (e *Engine) syncLedger(ctx context.Context, plan Plan, psKey string, counted []ccusage.Block) {
	if e.ledger == nil {
		return
	}
	var err error
	if plan.Strategy.Wholesale() {
		err = e.ledger.ReplacePeriod(ctx, psKey, counted)
		if err == nil {
			prevStart := period.Start(e.cfg.StartDay, plan.PeriodStart.AddDate(0, 0, -1))
			_, err = e.ledger.Prune(ctx, period.Format(prevStart))
		}
	} else {
		err = e.ledger.Record(ctx, psKey, counted)
	}
	if err != nil {
		e.logger.Warn().Err(err).Msg("ledger update failed")
	}
}

// Summary derives the counters for the period containing now.
func (e *Engine) Summary(now time.Time) Summary {
	today := period.Today(now, e.cfg.Location())
	s := Summary{
		PeriodStart:  period.Start(e.cfg.StartDay, today),
		NextRenewal:  period.NextRenewal(e.cfg.StartDay, today),
		SessionsUsed: e.st.MonthlyMeta.Sessions,
		CostUSD:      e.st.MonthlyMeta.Cost,
		TokenCeiling: e.TokenCeiling(),
	}
	if e.st.PreviousPeriod != nil {
		prev := *e.st.PreviousPeriod
		s.PreviousPeriod = &prev
	}
	s.SessionsLeft = e.cfg.TotalMonthlySessions - s.SessionsUsed
	s.DaysRemaining = period.DaysBetween(today, s.NextRenewal)
	if s.DaysRemaining > 0 {
		s.AvgSessionsPerDay = float64(s.SessionsLeft) / float64(s.DaysRemaining)
	} else {
		s.AvgSessionsPerDay = float64(s.SessionsLeft)
	}
	return s
}
