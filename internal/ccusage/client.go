package ccusage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/mod/semver"

	"github.com/wjarka/claude-session-monitor/internal/period"
)

// MinVersion is the oldest ccusage release whose blocks output is known to
// carry every field the monitor reads.
const MinVersion = "v15.0.0"

var ErrNotInstalled = errors.New("ccusage: executable not found")

type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// Client runs the ccusage executable.
type Client struct {
	binary  string
	timeout time.Duration
	logger  zerolog.Logger
	run     runFunc
}

func NewClient(binary string, timeout time.Duration, logger zerolog.Logger) *Client {
	if strings.TrimSpace(binary) == "" {
		binary = "ccusage"
	}
	return &Client{
		binary:  binary,
		timeout: timeout,
		logger:  logger.With().Str("component", "ccusage").Logger(),
		run:     runCommand,
	}
}

// Fetch lists usage blocks, starting at since when it is non-nil. On any
// failure it returns an empty, non-nil slice together with the error, so the
// result is always safe to treat as "no new information".
func (c *Client) Fetch(ctx context.Context, since *time.Time) ([]Block, error) {
	args := []string{"blocks", "--json"}
	if since != nil {
		args = append(args, "--since", period.SinceArg(*since))
	}

	out, err := c.exec(ctx, args...)
	if err != nil {
		return []Block{}, err
	}

	blocks, dropped, err := Decode(out)
	if err != nil {
		return []Block{}, err
	}
	if dropped > 0 {
		c.logger.Warn().Int("dropped", dropped).Msg("skipped blocks without usable timestamps")
	}
	c.logger.Debug().Int("blocks", len(blocks)).Strs("args", args).Msg("fetched blocks")
	return blocks, nil
}

// Version returns the canonical semver of the installed ccusage.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.exec(ctx, "--version")
	if err != nil {
		return "", err
	}
	v := normalizeVersion(firstLine(string(out)))
	if v == "" {
		return "", fmt.Errorf("ccusage: unrecognized version output %q", strings.TrimSpace(string(out)))
	}
	return v, nil
}

// Supported reports whether version is at least MinVersion.
func Supported(version string) bool {
	v := normalizeVersion(version)
	if v == "" {
		return false
	}
	return semver.Compare(v, MinVersion) >= 0
}

func (c *Client) exec(ctx context.Context, args ...string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	stdout, stderr, err := c.run(ctx, c.binary, args...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotInstalled, c.binary)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("ccusage: %s: %w", args[0], ctxErr)
		}
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			return nil, fmt.Errorf("ccusage: %s: %w", args[0], err)
		}
		return nil, fmt.Errorf("ccusage: %s: %w: %s", args[0], err, msg)
	}
	return stdout, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}

func normalizeVersion(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return ""
	}
	if fields := strings.Fields(v); len(fields) > 0 {
		v = fields[len(fields)-1]
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	if semver.Prerelease(v) != "" || semver.Build(v) != "" {
		return ""
	}
	return semver.Canonical(v)
}
