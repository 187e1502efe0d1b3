package ccusage

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeRunner struct {
	stdout string
	stderr string
	err    error

	gotName string
	gotArgs []string
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.gotName = name
	f.gotArgs = args
	return []byte(f.stdout), []byte(f.stderr), f.err
}

func newTestClient(f *fakeRunner) *Client {
	c := NewClient("ccusage", time.Second, zerolog.Nop())
	c.run = f.run
	return c
}

func TestFetch_Args(t *testing.T) {
	f := &fakeRunner{stdout: `{"blocks":[]}`}
	c := newTestClient(f)

	if _, err := c.Fetch(context.Background(), nil); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if want := []string{"blocks", "--json"}; !reflect.DeepEqual(f.gotArgs, want) {
		t.Errorf("args = %v, want %v", f.gotArgs, want)
	}

	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := c.Fetch(context.Background(), &since); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if want := []string{"blocks", "--json", "--since", "20240301"}; !reflect.DeepEqual(f.gotArgs, want) {
		t.Errorf("args = %v, want %v", f.gotArgs, want)
	}
}

func TestFetch_Success(t *testing.T) {
	f := &fakeRunner{stdout: `{"blocks":[{"id":"s1","startTime":"2024-03-15T10:00:00Z","endTime":"2024-03-15T15:00:00Z","totalTokens":10,"costUSD":0.5}]}`}
	blocks, err := newTestClient(f).Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(blocks) != 1 || blocks[0].ID != "s1" {
		t.Errorf("blocks = %+v", blocks)
	}
}

func TestFetch_FailuresDegradeToEmpty(t *testing.T) {
	tests := []struct {
		name    string
		runner  *fakeRunner
		wantErr error
	}{
		{"missing executable", &fakeRunner{err: &exec.Error{Name: "ccusage", Err: exec.ErrNotFound}}, ErrNotInstalled},
		{"non-zero exit", &fakeRunner{stderr: "boom", err: errors.New("exit status 1")}, nil},
		{"malformed output", &fakeRunner{stdout: "{"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks, err := newTestClient(tt.runner).Fetch(context.Background(), nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if blocks == nil || len(blocks) != 0 {
				t.Errorf("blocks = %v, want empty non-nil", blocks)
			}
		})
	}
}

func TestFetch_StderrInError(t *testing.T) {
	f := &fakeRunner{stderr: "no data directory\n", err: errors.New("exit status 2")}
	_, err := newTestClient(f).Fetch(context.Background(), nil)
	if err == nil || err.Error() != "ccusage: blocks: exit status 2: no data directory" {
		t.Errorf("err = %v", err)
	}
}

func TestVersion(t *testing.T) {
	f := &fakeRunner{stdout: "15.9.1\n"}
	v, err := newTestClient(f).Version(context.Background())
	if err != nil {
		t.Fatalf("Version() error: %v", err)
	}
	if v != "v15.9.1" {
		t.Errorf("Version() = %q, want v15.9.1", v)
	}
	if want := []string{"--version"}; !reflect.DeepEqual(f.gotArgs, want) {
		t.Errorf("args = %v, want %v", f.gotArgs, want)
	}

	f = &fakeRunner{stdout: "garbage"}
	if _, err := newTestClient(f).Version(context.Background()); err == nil {
		t.Error("expected error for unrecognized version")
	}
}

func TestSupported(t *testing.T) {
	cases := map[string]bool{
		"15.0.0":         true,
		"v16.1.2":        true,
		"ccusage 15.3.0": true,
		"14.9.9":         false,
		"15.0.0-beta.1":  false,
		"":               false,
		"latest":         false,
	}
	for in, want := range cases {
		if got := Supported(in); got != want {
			t.Errorf("Supported(%q) = %v, want %v", in, got, want)
		}
	}
}
