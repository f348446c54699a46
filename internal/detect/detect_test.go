package detect

import (
	"strings"
	"testing"
)

func TestFingerprintDeterministic(t *testing.T) {
	// WHAT: Equal content yields equal fingerprints, different content
	// different ones.
	// WHY: Fingerprint equality is the sole change signal.
	a := Fingerprint("hello world")
	b := Fingerprint("hello world")
	c := Fingerprint("hello world!")

	if a != b {
		t.Errorf("same content, different fingerprints: %s vs %s", a, b)
	}
	if a == c {
		t.Error("different content, same fingerprint")
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}
}

func TestDiffIdentical(t *testing.T) {
	// WHAT: Identical inputs produce an empty diff.
	// WHY: No-change cycles must not build diff text.
	d, err := Diff("same\ntext\n", "same\ntext\n", 4000)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if d != "" {
		t.Errorf("expected empty diff, got %q", d)
	}
}

func TestDiffShowsOldAndNew(t *testing.T) {
	// WHAT: The diff carries removed and added lines with the Old/New
	// labels.
	// WHY: The notification text is read by humans.
	d, err := Diff("alpha\nbeta\ngamma\n", "alpha\nBETA\ngamma\n", 4000)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if !strings.Contains(d, "-beta") || !strings.Contains(d, "+BETA") {
		t.Errorf("diff missing change lines:\n%s", d)
	}
	if !strings.Contains(d, "Old") || !strings.Contains(d, "New") {
		t.Errorf("diff missing file labels:\n%s", d)
	}
}

func TestDiffTruncation(t *testing.T) {
	// WHAT: The diff is hard-cut at maxLen bytes.
	// WHY: Notification backends bound message size.
	oldText := strings.Repeat("line A\n", 2000)
	newText := strings.Repeat("line B\n", 2000)

	d, err := Diff(oldText, newText, 4000)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if len(d) > 4000 {
		t.Errorf("diff length = %d, want <= 4000", len(d))
	}
	if d == "" {
		t.Error("expected non-empty diff")
	}
}

func TestDiffNoTruncationWhenDisabled(t *testing.T) {
	// WHAT: maxLen <= 0 disables the cutoff.
	// WHY: Internal callers may want the full diff.
	oldText := strings.Repeat("line A\n", 2000)
	newText := strings.Repeat("line B\n", 2000)

	d, err := Diff(oldText, newText, 0)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if len(d) <= 4000 {
		t.Errorf("expected full diff, got %d bytes", len(d))
	}
}
