// Package ccusage adapts the ccusage CLI into a source of usage blocks.
package ccusage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Block is one reported usage session or an idle gap between sessions.
type Block struct {
	ID            string
	StartTime     time.Time
	EndTime       time.Time
	ActualEndTime *time.Time
	TotalTokens   int64
	CostUSD       float64
	Entries       int
	Models        []string
	IsGap         bool
	IsActive      bool
}

// Contains reports whether t falls inside the block's [start, end] interval.
func (b Block) Contains(t time.Time) bool {
	return !t.Before(b.StartTime) && !t.After(b.EndTime)
}

// Duration is the scheduled length of the block.
func (b Block) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

type payload struct {
	Blocks []json.RawMessage `json:"blocks"`
}

// Decode parses a `ccusage blocks --json` document. A missing "blocks" key
// yields an empty list. Records are decoded independently: numeric fields of
// the wrong type default to zero, and records without usable timestamps are
// skipped and counted in dropped.
func Decode(data []byte) (blocks []Block, dropped int, err error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return []Block{}, 0, fmt.Errorf("ccusage: decoding payload: %w", err)
	}

	blocks = make([]Block, 0, len(p.Blocks))
	for _, raw := range p.Blocks {
		b, ok := decodeBlock(raw)
		if !ok {
			dropped++
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks, dropped, nil
}

func decodeBlock(raw json.RawMessage) (Block, bool) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Block{}, false
	}

	start, ok := ParseTime(stringField(fields, "startTime"))
	if !ok {
		return Block{}, false
	}
	end, ok := ParseTime(stringField(fields, "endTime"))
	if !ok {
		return Block{}, false
	}

	b := Block{
		ID:          stringField(fields, "id"),
		StartTime:   start,
		EndTime:     end,
		TotalTokens: int64(numberField(fields, "totalTokens")),
		CostUSD:     numberField(fields, "costUSD"),
		Entries:     int(numberField(fields, "entries")),
		IsGap:       boolField(fields, "isGap"),
		IsActive:    boolField(fields, "isActive"),
	}
	if b.ID == "" {
		// ccusage uses the ISO start time as the block id.
		b.ID = start.Format(time.RFC3339)
	}
	if actual, ok := ParseTime(stringField(fields, "actualEndTime")); ok {
		b.ActualEndTime = &actual
	}
	if models, ok := fields["models"].([]any); ok {
		for _, m := range models {
			if s, ok := m.(string); ok && s != "" {
				b.Models = append(b.Models, s)
			}
		}
	}
	if b.TotalTokens < 0 {
		b.TotalTokens = 0
	}
	if b.CostUSD < 0 {
		b.CostUSD = 0
	}
	return b, true
}

// ParseTime reads the timestamps ccusage emits. Values without a zone are
// taken as UTC; fractional seconds are accepted either way.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if i := strings.IndexByte(s, '.'); i > 0 {
		s = s[:i]
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func numberField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}
