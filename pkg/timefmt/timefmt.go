// Package timefmt renders nanosecond wall-clock timestamps for logging
//
// Adjacent timestamps in a log usually share a long common prefix; the
// helpers here find where that prefix ends so repeated portions can be
// elided when printing runs of times
package timefmt

import "time"

// Format renders a wall-clock nanosecond timestamp as "HH:MM:SS.mmm"
func Format(ns int64) string {
	return time.Unix(0, ns).Format("15:04:05.000")
}

// CommonPrefixPosition returns the position where the common time prefix
// of two rendered times ends. For abbreviated printing of b, slice it at
// the returned position
func CommonPrefixPosition(a, b string) int {
	end := min(len(a), len(b))

	i := 0
	for ; i < end; i++ {
		if a[i] != b[i] {
			break
		}
	}
	if i == end {
		// one string is a prefix of the other
		return i
	}

	// back up to the delimiter before the digit group holding the
	// mismatch (or to the group's first digit after a space)
	for ; i > 0 && isDigit(a[i]) && a[i-1] != ' '; i-- {
	}
	return i
}

// UniqueSuffix returns the suffix of b not shared with a; it is empty when
// the two rendered times are identical
func UniqueSuffix(a, b string) string {
	return b[CommonPrefixPosition(a, b):]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
