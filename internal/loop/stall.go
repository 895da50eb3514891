package loop

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/churn-dev/churn/internal/types"
)

// FailureFingerprint computes the stall signature of a failed iteration
// from the primary error category and the unit being worked. Two failures
// with the same category on the same unit produce the same fingerprint.
func FailureFingerprint(category, unitID string) string {
	return shortHash(category + "\x00" + unitID)
}

// IssueFingerprint computes the signature of a single review issue.
// Issues at the same location with the same category and severity are
// the same issue regardless of message wording.
func IssueFingerprint(issue types.Issue) string {
	return shortHash(strings.Join([]string{
		issue.File,
		fmt.Sprintf("%d-%d", issue.LineStart, issue.LineEnd),
		issue.Category,
		string(issue.Severity),
	}, "\x00"))
}

// PassFingerprint computes the signature of a whole review pass from
// the set of issue fingerprints it produced. Ordering and duplicates
// do not matter: two passes reporting the same set of issues produce
// the same fingerprint.
func PassFingerprint(issues []types.Issue) string {
	seen := make(map[string]bool, len(issues))
	fps := make([]string, 0, len(issues))
	for _, issue := range issues {
		fp := IssueFingerprint(issue)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		fps = append(fps, fp)
	}
	sort.Strings(fps)
	return shortHash(strings.Join(fps, "\n"))
}

// PushFingerprint appends fp to the rolling history, keeping only the
// most recent types.FingerprintWindow entries.
func PushFingerprint(history []string, fp string) []string {
	history = append(history, fp)
	if excess := len(history) - types.FingerprintWindow; excess > 0 {
		history = history[excess:]
	}
	return history
}

// Stalled reports whether the fingerprint history shows a full window
// of identical signatures.
func Stalled(history []string) bool {
	if len(history) < types.FingerprintWindow {
		return false
	}
	first := history[0]
	for _, fp := range history[1:] {
		if fp != first {
			return false
		}
	}
	return true
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
