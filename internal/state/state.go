// Package state persists the usage aggregates between monitor runs.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PeriodMeta is the aggregate for one billing period.
type PeriodMeta struct {
	PeriodStart string  `json:"periodStart"`
	Cost        float64 `json:"cost"`
	Sessions    int     `json:"sessions"`
}

// State is the durable record. Unknown fields in the file are ignored and
// missing fields keep their zero value.
type State struct {
	MaxTokens             int64       `json:"maxTokens"`
	LastMaxTokensScan     string      `json:"lastMaxTokensScan,omitempty"`
	MonthlyMeta           PeriodMeta  `json:"monthlyMeta"`
	ProcessedSessionIDs   []string    `json:"processedSessionIds"`
	LastIncrementalUpdate string      `json:"lastIncrementalUpdate,omitempty"`
	PreviousPeriod        *PeriodMeta `json:"previousPeriod,omitempty"`
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.ProcessedSessionIDs = append([]string(nil), s.ProcessedSessionIDs...)
	if s.PreviousPeriod != nil {
		prev := *s.PreviousPeriod
		out.PreviousPeriod = &prev
	}
	return out
}

type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load reads the state file. A missing file is an empty state. A corrupt file
// also yields an empty state, together with the parse error.
func (s *Store) Load() (State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("state: reading %s: %w", s.path, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("state: parsing %s: %w", s.path, err)
	}
	var legacy legacyState
	if err := json.Unmarshal(data, &legacy); err == nil {
		legacy.fill(&st)
	}
	return st, nil
}

// legacyState is the snake_case layout older monitor releases wrote to the
// same file. The next Save rewrites it in the current layout.
type legacyState struct {
	MaxTokens         int64  `json:"max_tokens"`
	LastMaxTokensScan string `json:"last_max_tokens_scan"`
	MonthlyMeta       *struct {
		PeriodStart string  `json:"period_start"`
		Cost        float64 `json:"cost"`
		Sessions    int     `json:"sessions"`
	} `json:"monthly_meta"`
	ProcessedSessions     []string `json:"processed_sessions"`
	LastIncrementalUpdate string   `json:"last_incremental_update"`
}

// fill copies legacy values into fields the current layout left empty.
func (l legacyState) fill(st *State) {
	if st.MaxTokens == 0 {
		st.MaxTokens = l.MaxTokens
	}
	if st.LastMaxTokensScan == "" {
		st.LastMaxTokensScan = l.LastMaxTokensScan
	}
	if st.MonthlyMeta.PeriodStart == "" && l.MonthlyMeta != nil {
		st.MonthlyMeta = PeriodMeta{
			PeriodStart: l.MonthlyMeta.PeriodStart,
			Cost:        l.MonthlyMeta.Cost,
			Sessions:    l.MonthlyMeta.Sessions,
		}
	}
	if len(st.ProcessedSessionIDs) == 0 {
		st.ProcessedSessionIDs = l.ProcessedSessions
	}
	if st.LastIncrementalUpdate == "" {
		st.LastIncrementalUpdate = l.LastIncrementalUpdate
	}
}

// Save writes st to a temporary file next to the target and renames it into
// place, so a crash leaves either the old or the new document.
func (s *Store) Save(st State) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: creating dir: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshaling: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("state: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("state: writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("state: syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("state: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("state: replacing %s: %w", s.path, err)
	}
	return nil
}
