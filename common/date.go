package common

import (
	"strings"
	"time"

	"golang.org/x/xerrors"
)

// DateLayout is how every date leaves the service, e.g. "Mon Jan 01 2024".
const DateLayout = "Mon Jan 02 2006"

// StorageLayout is the column format used by the database.
const StorageLayout = "2006-01-02"

// inputLayouts are tried in order when parsing a submitted date.
var inputLayouts = []string{
	StorageLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	DateLayout,
	"Jan 2 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006/01/02",
	"2006-1-2",
}

// Day truncates t to its calendar day, expressed as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate reads a calendar date in any of the accepted layouts.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, xerrors.New("empty date")
	}
	for _, layout := range inputLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, xerrors.Errorf("unrecognized date %q", s)
}

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
