// Package version compares wheel version strings so listing pages keep a
// deterministic newest-first order.
package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/platform-wheels/wheelhouse/internal/wheelname"
)

// FromFilename extracts the version segment from an archive filename, e.g.
// "1.24.0" from "numpy-1.24.0-cp314-cp314-ios.whl". Returns false when the
// filename has no version segment.
func FromFilename(filename string) (string, bool) {
	_, rest, ok := wheelname.SplitIdentity(filename)
	if !ok || len(rest) == 0 {
		return "", false
	}
	if rest[0] == "" || rest[0][0] < '0' || rest[0][0] > '9' {
		return "", false
	}
	return rest[0], true
}

// Compare returns -1, 0 or 1 ordering a before, equal to, or after b.
// When both strings parse as semantic versions (two-part versions like "6.0"
// are coerced) the semver ordering applies; otherwise the comparison falls
// back to plain string ordering. Either way the result is total and
// reproducible.
func Compare(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	return strings.Compare(a, b)
}
