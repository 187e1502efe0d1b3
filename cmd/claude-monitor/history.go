package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/wjarka/claude-session-monitor/internal/config"
	"github.com/wjarka/claude-session-monitor/internal/ledger"
)

type historyReader interface {
	PeriodSummaries(ctx context.Context) ([]ledger.PeriodSummary, error)
	Sessions(ctx context.Context, periodStart string) ([]ledger.Session, error)
}

func newHistoryCommand(opts *options) *cobra.Command {
	var showSessions bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show counted sessions for the current and previous billing period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, *opts)
			if err != nil {
				return err
			}
			l, err := ledger.Open(config.LedgerPath())
			if err != nil {
				return err
			}
			defer l.Close()
			return printHistory(cmd.Context(), cmd.OutOrStdout(), l, cfg, showSessions)
		},
	}
	cmd.Flags().BoolVar(&showSessions, "sessions", false, "List individual sessions of each period")
	return cmd
}

func printHistory(ctx context.Context, out io.Writer, r historyReader, cfg config.Config, showSessions bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	summaries, err := r.PeriodSummaries(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No sessions recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PERIOD\tSESSIONS\tLEFT\tCOST\tMAX TOKENS")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t$%.2f\t%d\n",
			s.PeriodStart, s.Sessions, cfg.TotalMonthlySessions-s.Sessions, s.CostUSD, s.MaxTokens)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !showSessions {
		return nil
	}

	loc := cfg.Location()
	for _, s := range summaries {
		sessions, err := r.Sessions(ctx, s.PeriodStart)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s (%d tokens total)\n", s.PeriodStart,
			lo.SumBy(sessions, func(x ledger.Session) int64 { return x.TotalTokens }))
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "START\tEND\tTOKENS\tCOST")
		for _, x := range sessions {
			fmt.Fprintf(tw, "%s\t%s\t%d\t$%.2f\n",
				x.StartTime.In(loc).Format("2006-01-02 15:04"), x.EndTime.In(loc).Format("15:04"), x.TotalTokens, x.CostUSD)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
