package reconcile

import "time"

// Strategy decides how much history a refresh requests and how the response
// is merged into the period aggregate.
type Strategy int

const (
	// StrategyIncremental requests a short overlap window and adds only
	// sessions that were not counted yet.
	StrategyIncremental Strategy = iota
	// StrategyPeriodRollover requests the whole current period and replaces
	// the aggregate.
	StrategyPeriodRollover
	// StrategyFullRescan requests all history and replaces the aggregate.
	StrategyFullRescan
)

func (s Strategy) String() string {
	switch s {
	case StrategyIncremental:
		return "incremental"
	case StrategyPeriodRollover:
		return "period_rollover"
	case StrategyFullRescan:
		return "full_rescan"
	default:
		return "unknown"
	}
}

// Wholesale reports whether the strategy replaces the aggregate instead of
// adding to it.
func (s Strategy) Wholesale() bool {
	return s == StrategyPeriodRollover || s == StrategyFullRescan
}

type Reason string

const (
	ReasonForced       Reason = "forced"
	ReasonNoCeiling    Reason = "no_token_ceiling"
	ReasonNewPeriod    Reason = "new_period"
	ReasonStaleWindow  Reason = "stale_window"
	ReasonOverlap      Reason = "overlap_window"
	ReasonNoLastUpdate Reason = "no_last_update"
)

// Plan is the outcome of strategy selection for one refresh.
type Plan struct {
	Strategy    Strategy
	Reason      Reason
	PeriodStart time.Time
	// Since is the lower bound passed to the block source; nil means all history.
	Since *time.Time
}
