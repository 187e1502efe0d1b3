package ccusage

import (
	"testing"
	"time"
)

func TestDecode(t *testing.T) {
	data := []byte(`{
  "blocks": [
    {
      "id": "2024-03-15T10:00:00.000Z",
      "startTime": "2024-03-15T10:00:00.000Z",
      "endTime": "2024-03-15T15:00:00.000Z",
      "actualEndTime": "2024-03-15T12:41:09.120Z",
      "isActive": false,
      "isGap": false,
      "entries": 42,
      "totalTokens": 123456,
      "costUSD": 2.5,
      "models": ["claude-sonnet-4", ""]
    },
    {
      "id": "gap-2024-03-15T15:00:00.000Z",
      "startTime": "2024-03-15T15:00:00.000Z",
      "endTime": "2024-03-15T18:00:00.000Z",
      "isGap": true
    }
  ]
}`)

	blocks, dropped, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if dropped != 0 {
		t.Errorf("dropped = %d, want 0", dropped)
	}
	if len(blocks) != 2 {
		t.Fatalf("len(blocks) = %d, want 2", len(blocks))
	}

	b := blocks[0]
	if b.TotalTokens != 123456 || b.CostUSD != 2.5 || b.Entries != 42 {
		t.Errorf("block totals = %d/%v/%d", b.TotalTokens, b.CostUSD, b.Entries)
	}
	if want := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC); !b.StartTime.Equal(want) {
		t.Errorf("StartTime = %v, want %v", b.StartTime, want)
	}
	if b.ActualEndTime == nil || b.ActualEndTime.Minute() != 41 {
		t.Errorf("ActualEndTime = %v", b.ActualEndTime)
	}
	if len(b.Models) != 1 || b.Models[0] != "claude-sonnet-4" {
		t.Errorf("Models = %v", b.Models)
	}
	if b.Duration() != 5*time.Hour {
		t.Errorf("Duration = %v, want 5h", b.Duration())
	}

	gap := blocks[1]
	if !gap.IsGap || gap.TotalTokens != 0 || gap.CostUSD != 0 {
		t.Errorf("gap block = %+v", gap)
	}
}

func TestDecode_MissingBlocksKey(t *testing.T) {
	blocks, _, err := Decode([]byte(`{"other": 1}`))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if blocks == nil || len(blocks) != 0 {
		t.Errorf("blocks = %v, want empty non-nil", blocks)
	}
}

func TestDecode_MalformedPayload(t *testing.T) {
	blocks, _, err := Decode([]byte(`not json`))
	if err == nil {
		t.Fatal("expected error")
	}
	if blocks == nil || len(blocks) != 0 {
		t.Errorf("blocks = %v, want empty non-nil", blocks)
	}
}

func TestDecode_MalformedRecordDefaults(t *testing.T) {
	data := []byte(`{"blocks": [
    {"id": "a", "startTime": "2024-03-15T10:00:00", "endTime": "2024-03-15T15:00:00", "totalTokens": "oops", "costUSD": null},
    {"id": "b", "startTime": "2024-03-15T10:00:00Z", "endTime": "2024-03-15T15:00:00Z", "totalTokens": "900", "costUSD": -1},
    {"id": "c", "endTime": "2024-03-15T15:00:00Z"},
    "not an object"
  ]}`)

	blocks, dropped, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if len(blocks) != 2 {
		t.Fatalf("len(blocks) = %d, want 2", len(blocks))
	}
	if blocks[0].TotalTokens != 0 || blocks[0].CostUSD != 0 {
		t.Errorf("malformed numerics = %d/%v, want 0/0", blocks[0].TotalTokens, blocks[0].CostUSD)
	}
	if blocks[1].TotalTokens != 900 {
		t.Errorf("string tokens = %d, want 900", blocks[1].TotalTokens)
	}
	if blocks[1].CostUSD != 0 {
		t.Errorf("negative cost = %v, want 0", blocks[1].CostUSD)
	}
}

func TestDecode_IDFallsBackToStartTime(t *testing.T) {
	blocks, _, err := Decode([]byte(`{"blocks":[{"startTime":"2024-03-15T10:00:00Z","endTime":"2024-03-15T15:00:00Z"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 1 || blocks[0].ID != "2024-03-15T10:00:00Z" {
		t.Errorf("blocks = %+v", blocks)
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 3, 15, 10, 30, 5, 0, time.UTC)
	for _, in := range []string{
		"2024-03-15T10:30:05Z",
		"2024-03-15T10:30:05.123",
		"2024-03-15T10:30:05",
		"2024-03-15T11:30:05+01:00",
	} {
		got, ok := ParseTime(in)
		if !ok {
			t.Errorf("ParseTime(%q) failed", in)
			continue
		}
		if !got.Truncate(time.Second).Equal(want) {
			t.Errorf("ParseTime(%q) = %v, want %v", in, got, want)
		}
	}
	if _, ok := ParseTime("yesterday"); ok {
		t.Error("ParseTime(yesterday) should fail")
	}
}

func TestContains(t *testing.T) {
	start := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	b := Block{StartTime: start, EndTime: start.Add(5 * time.Hour)}
	cases := map[time.Duration]bool{
		-time.Second:    false,
		0:               true,
		2 * time.Hour:   true,
		5 * time.Hour:   true,
		5*time.Hour + 1: false,
	}
	for offset, want := range cases {
		if got := b.Contains(start.Add(offset)); got != want {
			t.Errorf("Contains(start+%v) = %v, want %v", offset, got, want)
		}
	}
}
