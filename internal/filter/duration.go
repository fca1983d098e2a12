package filter

import (
	"strconv"
	"strings"
)

// Bucket classifies a podcast by length.
type Bucket string

const (
	BucketAny    Bucket = ""
	BucketShort  Bucket = "short"  // under 30 minutes
	BucketMedium Bucket = "medium" // 30 to 60 minutes inclusive
	BucketLong   Bucket = "long"   // over 60 minutes
)

// ParseBucket reads a bucket from a query parameter. "All", "" and unknown
// values all mean "any length".
func ParseBucket(s string) Bucket {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "short":
		return BucketShort
	case "medium":
		return BucketMedium
	case "long":
		return BucketLong
	}
	return BucketAny
}

// Active reports whether b takes part in filtering.
func (b Bucket) Active() bool {
	return b == BucketShort || b == BucketMedium || b == BucketLong
}

// ParseMinutes extracts the first run of decimal digits in a free-text
// duration ("45 min", "1h 20m" -> 1) and returns it as minutes.
// A string with no digits is 0 minutes.
func ParseMinutes(duration string) int {
	start := strings.IndexFunc(duration, isDigit)
	if start < 0 {
		return 0
	}
	end := start
	for end < len(duration) && isDigit(rune(duration[end])) {
		end++
	}
	n, err := strconv.Atoi(duration[start:end])
	if err != nil {
		// only on overflow; treat as the longest possible episode
		return int(^uint(0) >> 1)
	}
	return n
}

// BucketOf maps a length in minutes to its bucket.
func BucketOf(minutes int) Bucket {
	switch {
	case minutes < 30:
		return BucketShort
	case minutes <= 60:
		return BucketMedium
	default:
		return BucketLong
	}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
