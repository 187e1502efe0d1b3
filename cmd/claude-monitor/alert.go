package main

import (
	"context"
	"fmt"
	"io"

	"github.com/wjarka/claude-session-monitor/internal/notify"
	"github.com/wjarka/claude-session-monitor/internal/tui"
)

type sender interface {
	Send(ctx context.Context, title, message string) error
}

// runTestAlert sends one notification and reports the outcome. A failed
// delivery is reported but does not change the exit code.
func runTestAlert(ctx context.Context, out io.Writer) error {
	return sendTestAlert(ctx, out, notify.New())
}

func sendTestAlert(ctx context.Context, out io.Writer, n sender) error {
	if ctx == nil {
		ctx = context.Background()
	}
	fmt.Fprintln(out, tui.StatusInfoStyle.Render("Sending test alert..."))
	if err := n.Send(ctx, "Test Notification", "If you see this, alerts are working correctly."); err != nil {
		fmt.Fprintln(out, tui.StatusWarnStyle.Render("Alert could not be delivered: "+err.Error()))
		return nil
	}
	fmt.Fprintln(out, tui.StatusOKStyle.Render("Alert sending command executed."))
	return nil
}
