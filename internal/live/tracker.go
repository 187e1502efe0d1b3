// Package live tracks the currently running usage block and raises
// once-per-session alerts about it.
package live

import (
	"fmt"
	"time"

	"github.com/wjarka/claude-session-monitor/internal/ccusage"
)

const AlertTitle = "Claude Monitor"

type AlertKind string

const (
	AlertTimeRemaining AlertKind = "time_remaining"
	AlertInactivity    AlertKind = "inactivity"
)

type Alert struct {
	Kind    AlertKind
	Title   string
	Message string
}

type Thresholds struct {
	TimeRemaining time.Duration
	Inactivity    time.Duration
}

// View is the transient state of the tracked session. It is empty whenever
// no block is active.
type View struct {
	ActiveBlockID        string
	LastTokenCount       int64
	LastActivityTime     time.Time
	TimeAlertFired       bool
	InactivityAlertFired bool
}

// Update is what a single tick observed.
type Update struct {
	Active  *ccusage.Block
	Started bool
	// Ended is set on the tick where a tracked session stops matching now.
	Ended  bool
	Alerts []Alert
}

type Tracker struct {
	th   Thresholds
	view View
}

func NewTracker(th Thresholds) *Tracker {
	return &Tracker{th: th}
}

func (t *Tracker) View() View { return t.view }

// Tracking reports whether a session is currently tracked.
func (t *Tracker) Tracking() bool { return t.view.ActiveBlockID != "" }

// FindActive returns the first non-gap block whose interval contains now.
func FindActive(now time.Time, blocks []ccusage.Block) (ccusage.Block, bool) {
	for _, b := range blocks {
		if b.IsGap {
			continue
		}
		if b.Contains(now) {
			return b, true
		}
	}
	return ccusage.Block{}, false
}

// Tick advances the state machine using the latest cached blocks.
func (t *Tracker) Tick(now time.Time, blocks []ccusage.Block) Update {
	now = now.UTC()
	block, ok := FindActive(now, blocks)
	if !ok {
		if !t.Tracking() {
			return Update{}
		}
		t.view = View{}
		return Update{Ended: true}
	}

	var up Update
	up.Active = &block
	if block.ID != t.view.ActiveBlockID {
		t.view = View{
			ActiveBlockID:    block.ID,
			LastTokenCount:   block.TotalTokens,
			LastActivityTime: now,
		}
		up.Started = true
	}

	if !t.view.TimeAlertFired && block.EndTime.Sub(now) < t.th.TimeRemaining {
		t.view.TimeAlertFired = true
		up.Alerts = append(up.Alerts, Alert{
			Kind:    AlertTimeRemaining,
			Title:   AlertTitle,
			Message: fmt.Sprintf("Less than %d minutes remaining in the session.", int(t.th.TimeRemaining.Minutes())),
		})
	}

	if block.TotalTokens > t.view.LastTokenCount {
		t.view.LastTokenCount = block.TotalTokens
		t.view.LastActivityTime = now
		t.view.InactivityAlertFired = false
	} else if !t.view.InactivityAlertFired && now.Sub(t.view.LastActivityTime) > t.th.Inactivity {
		t.view.InactivityAlertFired = true
		up.Alerts = append(up.Alerts, Alert{
			Kind:    AlertInactivity,
			Title:   AlertTitle,
			Message: fmt.Sprintf("No activity for %d minutes.", int(t.th.Inactivity.Minutes())),
		})
	}
	return up
}
