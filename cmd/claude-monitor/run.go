package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/wjarka/claude-session-monitor/internal/ccusage"
	"github.com/wjarka/claude-session-monitor/internal/config"
	"github.com/wjarka/claude-session-monitor/internal/detect"
	"github.com/wjarka/claude-session-monitor/internal/ledger"
	"github.com/wjarka/claude-session-monitor/internal/metrics"
	"github.com/wjarka/claude-session-monitor/internal/monitor"
	"github.com/wjarka/claude-session-monitor/internal/notify"
	"github.com/wjarka/claude-session-monitor/internal/period"
	"github.com/wjarka/claude-session-monitor/internal/reconcile"
	"github.com/wjarka/claude-session-monitor/internal/state"
	"github.com/wjarka/claude-session-monitor/internal/tui"
	"github.com/wjarka/claude-session-monitor/internal/version"
	"github.com/wjarka/claude-session-monitor/internal/watch"
)

const versionProbeTimeout = 5 * time.Second

func runMonitor(parent context.Context, cfg config.Config, logger zerolog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	logger.Info().Str("version", version.Version).Int("start_day", cfg.StartDay).Str("timezone", cfg.Timezone).Msg("starting monitor")
	out := os.Stdout

	store := state.NewStore(config.StatePath())
	st, err := store.Load()
	if err != nil {
		logger.Warn().Err(err).Str("path", store.Path()).Msg("state unreadable, starting fresh")
	}

	engine := reconcile.NewEngine(cfg, st, store, logger)
	if l, err := ledger.Open(config.LedgerPath()); err != nil {
		logger.Warn().Err(err).Msg("session ledger disabled")
	} else {
		defer l.Close()
		engine.SetLedger(l)
	}

	binary := cfg.Fetch.Binary
	if path := detect.FindBinary(binary); path != "" {
		binary = path
	}
	client := ccusage.NewClient(binary, cfg.FetchTimeout(), logger)
	checkCCUsage(ctx, client, out, logger)

	var rec *metrics.Recorder
	if cfg.MetricsAddr != "" {
		rec = metrics.New()
		srv := metrics.NewServer(cfg.MetricsAddr, rec, logger)
		if err := srv.Start(); err != nil {
			fmt.Fprintln(out, tui.StatusWarnStyle.Render("Metrics disabled: "+err.Error()))
		} else {
			defer func() {
				shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
				defer done()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}
	}

	mon := monitor.New(cfg, engine, client, rec, logger)

	now := time.Now()
	printPlan(out, engine.Plan(now, cfg.Recalculate))
	res := mon.Start(ctx, now, cfg.Recalculate)
	printResult(out, res, engine.TokenCeiling())

	model := tui.NewModel(ctx, cfg, mon, notify.New(), logger)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if w, err := watch.New(resolveDataDir(cfg.Fetch.ClaudeDataDir), logger); err != nil {
		logger.Debug().Err(err).Msg("file watcher unavailable, polling at fetch interval")
	} else {
		defer w.Close()
		mon.SetWatching(true)
		go w.Run(ctx)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-w.Changed():
					program.Send(tui.FilesChangedMsg{})
				}
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			program.Quit()
		case <-ctx.Done():
		}
	}()

	_, runErr := program.Run()
	if err := engine.Flush(); err != nil {
		logger.Warn().Err(err).Msg("flushing state on exit failed")
	}
	fmt.Fprintln(out, tui.StatusWarnStyle.Render("Closing monitor..."))

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("running monitor: %w", runErr)
	}
	return nil
}

// resolveDataDir keeps the configured directory when it exists and falls
// back to the first detected Claude data directory otherwise.
func resolveDataDir(configured string) string {
	if info, err := os.Stat(configured); err == nil && info.IsDir() {
		return configured
	}
	if dirs := detect.ClaudeDataDirs(); len(dirs) > 0 {
		return dirs[0]
	}
	return configured
}

func checkCCUsage(ctx context.Context, client *ccusage.Client, out io.Writer, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	v, err := client.Version(ctx)
	switch {
	case errors.Is(err, ccusage.ErrNotInstalled):
		fmt.Fprintln(out, tui.StatusErrorStyle.Render("ccusage not found; install it with: npm install -g ccusage"))
	case err != nil:
		logger.Warn().Err(err).Msg("ccusage version probe failed")
	case !ccusage.Supported(v):
		fmt.Fprintln(out, tui.StatusWarnStyle.Render(fmt.Sprintf("ccusage %s is older than %s; some fields may be missing", v, ccusage.MinVersion)))
	default:
		logger.Debug().Str("ccusage_version", v).Msg("ccusage found")
	}
}

func printPlan(out io.Writer, plan reconcile.Plan) {
	var line string
	switch {
	case plan.Strategy == reconcile.StrategyFullRescan:
		line = "Full recalculation - fetching all data..."
	case plan.Reason == reconcile.ReasonStaleWindow:
		line = fmt.Sprintf("Last update too old - rescanning period from %s...", period.Format(plan.PeriodStart))
	case plan.Strategy == reconcile.StrategyPeriodRollover:
		line = fmt.Sprintf("New billing period - fetching data from %s...", period.Format(plan.PeriodStart))
	case plan.Since != nil:
		line = fmt.Sprintf("Incremental update from %s...", period.Format(*plan.Since))
	default:
		line = "Incremental update..."
	}
	fmt.Fprintln(out, tui.StatusInfoStyle.Render(line))
}

func printResult(out io.Writer, res reconcile.Result, ceiling int64) {
	if res.FetchErr != nil {
		fmt.Fprintln(out, tui.StatusWarnStyle.Render("Could not fetch usage data; using saved totals"))
		return
	}
	if res.CeilingRaised {
		fmt.Fprintln(out, tui.StatusOKStyle.Render(fmt.Sprintf("New maximum found: %d tokens.", ceiling)))
	}
	if res.NewSessions > 0 {
		fmt.Fprintln(out, tui.StatusOKStyle.Render(fmt.Sprintf("Found %d new completed sessions.", res.NewSessions)))
	}
}
