package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wjarka/claude-session-monitor/internal/config"
	"github.com/wjarka/claude-session-monitor/internal/tui"
	"github.com/wjarka/claude-session-monitor/internal/version"
)

type options struct {
	configPath  string
	startDay    int
	recalculate bool
	testAlert   bool
	timezone    string
	metricsAddr string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, tui.StatusErrorStyle.Render("Error: "+err.Error()))
		if errors.Is(err, config.ErrInvalidTimezone) {
			fmt.Fprintln(os.Stderr, tui.StatusWarnStyle.Render("Common timezones: "+strings.Join(config.CommonTimezones, ", ")))
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts options

	root := &cobra.Command{
		Use:           "claude-monitor",
		Short:         "Monitor Claude token and cost usage against a monthly session quota.",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.testAlert {
				return runTestAlert(cmd.Context(), cmd.OutOrStdout())
			}
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger, closeLog := setupLogger()
			defer closeLog()
			return runMonitor(cmd.Context(), cfg, logger)
		},
	}
	root.SetVersionTemplate("Claude Session Monitor {{.Version}}\n")

	flags := root.Flags()
	flags.IntVar(&opts.startDay, "start-day", 1, "Day of the month the billing period starts (1-28)")
	flags.BoolVar(&opts.recalculate, "recalculate", false, "Re-scan history to rebuild stored max tokens and costs")
	flags.BoolVar(&opts.testAlert, "test-alert", false, "Send a test system notification and exit")
	flags.StringVar(&opts.timezone, "timezone", "Europe/Warsaw", "Timezone for display (e.g. 'America/New_York', 'UTC', 'Asia/Tokyo')")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	root.PersistentFlags().StringVar(&opts.configPath, "config", config.ConfigPath(), "Path to the settings file")

	root.AddCommand(newHistoryCommand(&opts))
	return root
}

// loadConfig reads the settings file, applies explicitly set flags on top
// and validates the result.
func loadConfig(cmd *cobra.Command, opts options) (config.Config, error) {
	if _, err := config.EnsureFile(opts.configPath); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), tui.StatusWarnStyle.Render("Warning: "+err.Error()))
	}
	cfg, err := config.LoadFrom(opts.configPath)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), tui.StatusWarnStyle.Render("Warning: "+err.Error()+"; using defaults"))
	}

	flags := cmd.Flags()
	if flags.Changed("start-day") {
		cfg.StartDay = opts.startDay
	}
	if flags.Changed("timezone") {
		cfg.Timezone = opts.timezone
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	cfg.Recalculate = opts.recalculate

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// setupLogger discards logs unless CLAUDE_MONITOR_DEBUG is set, since the
// terminal belongs to the live view. Debug output goes to a file instead.
func setupLogger() (zerolog.Logger, func()) {
	if os.Getenv("CLAUDE_MONITOR_DEBUG") == "" {
		return zerolog.New(io.Discard), func() {}
	}

	path := config.DebugLogPath()
	if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
		return zerolog.New(os.Stderr).With().Timestamp().Logger(), func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.New(os.Stderr).With().Timestamp().Logger(), func() {}
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: f, NoColor: true}).
		Level(zerolog.DebugLevel).
		With().Timestamp().Logger()
	return logger, func() { f.Close() }
}
