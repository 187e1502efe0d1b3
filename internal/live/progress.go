package live

import (
	"time"

	"github.com/wjarka/claude-session-monitor/internal/ccusage"
)

// Progress holds the display values derived from an active block.
type Progress struct {
	Tokens       int64
	Ceiling      int64
	TokenPercent float64
	TimePercent  float64
	Remaining    time.Duration
	Elapsed      time.Duration
	// TokensPerMinute is measured from the block start.
	TokensPerMinute float64
	CostUSD         float64
}

func Measure(b ccusage.Block, now time.Time, ceiling int64) Progress {
	p := Progress{
		Tokens:    b.TotalTokens,
		Ceiling:   ceiling,
		Remaining: b.EndTime.Sub(now),
		Elapsed:   now.Sub(b.StartTime),
		CostUSD:   b.CostUSD,
	}
	if p.Remaining < 0 {
		p.Remaining = 0
	}
	if p.Elapsed < 0 {
		p.Elapsed = 0
	}
	if ceiling > 0 {
		p.TokenPercent = float64(b.TotalTokens) / float64(ceiling) * 100
	}
	if total := b.Duration(); total > 0 {
		p.TimePercent = (1 - p.Remaining.Seconds()/total.Seconds()) * 100
	}
	if mins := p.Elapsed.Minutes(); mins > 0 {
		p.TokensPerMinute = float64(b.TotalTokens) / mins
	}
	return p
}
