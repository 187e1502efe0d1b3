// Package notify sends best-effort desktop notifications through whatever
// notifier the host platform provides.
package notify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

var ErrNoNotifier = errors.New("notify: no notification command available")

const defaultTimeout = 10 * time.Second

type command struct {
	name string
	args []string
}

type Notifier struct {
	goos     string
	timeout  time.Duration
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
}

func New() *Notifier {
	return &Notifier{
		goos:     runtime.GOOS,
		timeout:  defaultTimeout,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// Send tries each notifier available on the platform until one succeeds.
func (n *Notifier) Send(ctx context.Context, title, message string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	var errs []error
	tried := 0
	for _, c := range n.commands(title, message) {
		if _, err := n.lookPath(c.name); err != nil {
			continue
		}
		tried++
		if err := n.run(ctx, c.name, c.args...); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		return nil
	}
	if tried == 0 {
		return fmt.Errorf("%w on %s", ErrNoNotifier, n.goos)
	}
	return errors.Join(errs...)
}

func (n *Notifier) commands(title, message string) []command {
	switch n.goos {
	case "darwin":
		return []command{
			{"terminal-notifier", []string{"-title", title, "-message", message, "-sound", "default"}},
			{"osascript", []string{"-e", fmt.Sprintf("display notification %s with title %s", appleScriptQuote(message), appleScriptQuote(title))}},
		}
	case "linux", "freebsd", "openbsd", "netbsd":
		return []command{
			{"notify-send", []string{title, message, "--urgency=normal"}},
			{"dunstify", []string{"-u", "normal", title, message}},
		}
	case "windows":
		return []command{
			{"powershell", []string{"-NoProfile", "-Command", windowsToastScript(title, message)}},
		}
	default:
		return nil
	}
}

func appleScriptQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")
	return r.Replace(s)
}

func windowsToastScript(title, message string) string {
	return `[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
$xml = New-Object Windows.Data.Xml.Dom.XmlDocument
$xml.LoadXml('<toast><visual><binding template="ToastText02"><text id="1">` + psQuote(xmlEscape(title)) + `</text><text id="2">` + psQuote(xmlEscape(message)) + `</text></binding></visual></toast>')
$toast = New-Object Windows.UI.Notifications.ToastNotification $xml
[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("Claude Monitor").Show($toast)`
}

// psQuote escapes a value embedded in a single-quoted PowerShell string.
func psQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
