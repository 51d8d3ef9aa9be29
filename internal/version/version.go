// Package version compares artifact version strings.
//
// Versions that parse as semantic versions (leniently, so "1.2" and
// "2.0.0-SNAPSHOT" qualify) are compared with github.com/Masterminds/semver/v3.
// Anything else falls back to a segment-wise comparison where numeric
// segments compare numerically and the rest lexically.
package version

import (
	"strconv"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// Compare returns -1 if a < b, 0 if a == b and 1 if a > b.
func Compare(a, b string) int {
	if a == b {
		return 0
	}
	va, errA := mm.NewVersion(a)
	vb, errB := mm.NewVersion(b)
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	return compareSegments(a, b)
}

// Newer reports whether a is strictly greater than b.
func Newer(a, b string) bool {
	return Compare(a, b) > 0
}

func compareSegments(a, b string) int {
	sa, sb := segments(a), segments(b)
	for i := 0; i < len(sa) || i < len(sb); i++ {
		if i >= len(sa) {
			return -1
		}
		if i >= len(sb) {
			return 1
		}
		if c := compareSegment(sa[i], sb[i]); c != 0 {
			return c
		}
	}
	return 0
}

func compareSegment(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case errA == nil:
		// Numbers sort after qualifiers, so 1.0.1 > 1.0.beta.
		return 1
	case errB == nil:
		return -1
	}
	return strings.Compare(a, b)
}

func segments(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	})
}
