package movement

import (
	"fmt"
	"math"
	"time"
)

// DescribeDuration returns a human readable length of stay.
// It reports false when end is absent, either date is unset, or the range
// is inverted; validation of such records belongs to the editing side.
func DescribeDuration(start time.Time, end *time.Time) (string, bool) {
	if end == nil || start.IsZero() || end.IsZero() || end.Before(start) {
		return "", false
	}

	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	switch {
	case days == 0:
		return "same day", true
	case days == 1:
		return "1 day", true
	case days <= 7:
		return fmt.Sprintf("%d days", days), true
	case days <= 30:
		return plural(int(math.Ceil(float64(days)/7)), "week"), true
	default:
		return plural(int(math.Ceil(float64(days)/30)), "month"), true
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// DateLayout is the display format of record dates
const DateLayout = "2 Jan 2006"

// FormatDateRange renders a record's dates for popups.
func FormatDateRange(start time.Time, end *time.Time) string {
	if end == nil || sameDay(start, *end) {
		return start.Format(DateLayout)
	}
	return start.Format(DateLayout) + " - " + end.Format(DateLayout)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
