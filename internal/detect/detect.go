// Package detect fingerprints tracked content and produces bounded
// human-readable diffs between two observations.
package detect

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/pmezard/go-difflib/difflib"
)

// Fingerprint returns the SHA-256 hex digest of the content bytes.
// Byte-equal fingerprints are the sole change signal: two contents are
// considered unchanged iff their fingerprints are equal.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Diff returns a line-oriented unified diff between old and new, labeled
// "Old" and "New". The result is hard-truncated at maxLen bytes (no
// summarisation); maxLen <= 0 disables truncation. Identical inputs yield
// the empty string.
func Diff(oldContent, newContent string, maxLen int) (string, error) {
	if oldContent == newContent {
		return "", nil
	}

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldContent),
		B:        difflib.SplitLines(newContent),
		FromFile: "Old",
		ToFile:   "New",
		Context:  3,
	})
	if err != nil {
		return "", err
	}

	if maxLen > 0 && len(text) > maxLen {
		text = text[:maxLen]
	}
	return text, nil
}
