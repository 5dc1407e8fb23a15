package imapparser

import (
	"strconv"
	"strings"
	"time"
)

var months = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// ParseSearchDate parses a SEARCH date argument, "dd-Mmm-yyyy" (spec.md
// §4.B), and returns the Unix timestamp of that calendar day at 00:00 UTC.
func ParseSearchDate(s string) (int64, error) {
	t, err := parseDDMmmYYYY(s)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

func parseDDMmmYYYY(s string) (time.Time, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return time.Time{}, &ParseError{Reason: "malformed date, expected dd-Mmm-yyyy"}
	}
	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, &ParseError{Reason: "malformed day in date"}
	}
	mon, ok := months[parts[1]]
	if !ok {
		return time.Time{}, &ParseError{Reason: "malformed month in date"}
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, &ParseError{Reason: "malformed year in date"}
	}
	return time.Date(year, mon, day, 0, 0, 0, 0, time.UTC), nil
}

// ParseAppendDate parses the APPEND/INTERNALDATE wire format,
// "dd-Mmm-yyyy HH:MM:SS +zzzz".
func ParseAppendDate(s string) (time.Time, error) {
	return time.Parse("02-Jan-2006 15:04:05 -0700", s)
}

// FormatInternalDate renders a time.Time in the APPEND/INTERNALDATE wire
// format used in FETCH responses.
func FormatInternalDate(t time.Time) string {
	return t.Format("02-Jan-2006 15:04:05 -0700")
}

// FormatStoreDate renders the on-disk internal-date format
// ("%Y-%m-%d %H:%M:%S%.3f%:z").
func FormatStoreDate(t time.Time) string {
	return t.Format("2006-01-02 15:04:05.000-07:00")
}

// ParseStoreDate parses the on-disk internal-date format back into a time.
func ParseStoreDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02 15:04:05.000-07:00", s)
}
