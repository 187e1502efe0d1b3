package version

import "testing"

func TestString(t *testing.T) {
	oldV, oldC, oldB := Version, CommitHash, BuildDate
	defer func() { Version, CommitHash, BuildDate = oldV, oldC, oldB }()

	Version, CommitHash, BuildDate = "1.2.3", "abc123", "2024-03-15"
	if got, want := String(), "1.2.3 (abc123) built 2024-03-15"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
