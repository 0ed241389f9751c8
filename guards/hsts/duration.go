package hsts

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var durationRe = regexp.MustCompile(`(?i)^(-?(?:\d+)?\.?\d+) *(milliseconds?|msecs?|ms|seconds?|secs?|s|minutes?|mins?|m|hours?|hrs?|h|days?|d|weeks?|w|years?|yrs?|y)?$`)

const (
	msSecond = 1000.0
	msMinute = 60 * msSecond
	msHour   = 60 * msMinute
	msDay    = 24 * msHour
	msWeek   = 7 * msDay
	msYear   = 365.25 * msDay
)

// ParseMillis parses expressions such as "1s", "2 days" or "1.5h" into
// milliseconds. A bare number is taken as milliseconds.
func ParseMillis(s string) (float64, error) {
	if s == "" || len(s) > 100 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMaxAge, s)
	}
	m := durationRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMaxAge, s)
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMaxAge, s)
	}
	switch strings.ToLower(m[2]) {
	case "years", "year", "yrs", "yr", "y":
		return n * msYear, nil
	case "weeks", "week", "w":
		return n * msWeek, nil
	case "days", "day", "d":
		return n * msDay, nil
	case "hours", "hour", "hrs", "hr", "h":
		return n * msHour, nil
	case "minutes", "minute", "mins", "min", "m":
		return n * msMinute, nil
	case "seconds", "second", "secs", "sec", "s":
		return n * msSecond, nil
	default:
		return n, nil
	}
}
