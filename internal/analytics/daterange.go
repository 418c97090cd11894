package analytics

import (
	"math"
	"time"

	appErrors "github.com/Sushil7090/moodle-backend/pkg/errors"
)

const secondsPerDay = 86400

// Range keys accepted by the resolver.
const (
	RangeToday     = "today"
	RangeYesterday = "yesterday"
	RangeWeek      = "week"
	RangeMonth     = "month"
	RangeCustom    = "custom"
)

// DateRange holds inclusive UTC epoch bounds. Bounds sit on midnight
// boundaries except the live "now" upper bound of open-ended ranges.
type DateRange struct {
	Key  string
	From int64
	To   int64
}

// TotalDays returns ceil((to-from)/86400), never less than 1.
func (r DateRange) TotalDays() int {
	days := int(math.Ceil(float64(r.To-r.From) / secondsPerDay))
	if days < 1 {
		return 1
	}
	return days
}

// Contains reports whether the epoch falls inside the inclusive bounds.
func (r DateRange) Contains(epoch int64) bool {
	return epoch >= r.From && epoch <= r.To
}

// RangeResolver normalises symbolic or custom range keys into UTC bounds.
// In lenient mode an unrecognized key falls back to yesterday instead of
// failing; strict mode is the default.
type RangeResolver struct {
	Lenient bool
	Now     func() time.Time
}

// Resolve maps a range key (and, for "custom", two YYYY-MM-DD bounds) to a
// DateRange.
func (r RangeResolver) Resolve(key, customFrom, customTo string) (DateRange, error) {
	nowFn := r.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch key {
	case RangeToday:
		return DateRange{Key: key, From: midnight.Unix(), To: now.Unix()}, nil
	case RangeYesterday:
		return DateRange{Key: key, From: midnight.AddDate(0, 0, -1).Unix(), To: midnight.Unix()}, nil
	case RangeWeek:
		return DateRange{Key: key, From: midnight.AddDate(0, 0, -7).Unix(), To: now.Unix()}, nil
	case RangeMonth:
		return DateRange{Key: key, From: midnight.AddDate(0, -1, 0).Unix(), To: now.Unix()}, nil
	case RangeCustom:
		return resolveCustom(customFrom, customTo)
	default:
		if r.Lenient {
			return DateRange{Key: RangeYesterday, From: midnight.AddDate(0, 0, -1).Unix(), To: midnight.Unix()}, nil
		}
		return DateRange{}, appErrors.Clone(appErrors.ErrInvalidRange, "unrecognized date range key")
	}
}

func resolveCustom(customFrom, customTo string) (DateRange, error) {
	if customFrom == "" || customTo == "" {
		return DateRange{}, appErrors.Clone(appErrors.ErrInvalidRange, "custom range requires from and to dates")
	}
	start, err := time.ParseInLocation("2006-01-02", customFrom, time.UTC)
	if err != nil {
		return DateRange{}, appErrors.Clone(appErrors.ErrInvalidRange, "invalid from date")
	}
	end, err := time.ParseInLocation("2006-01-02", customTo, time.UTC)
	if err != nil {
		return DateRange{}, appErrors.Clone(appErrors.ErrInvalidRange, "invalid to date")
	}
	if start.After(end) {
		return DateRange{}, appErrors.Clone(appErrors.ErrInvalidRange, "from date is after to date")
	}
	return DateRange{
		Key:  RangeCustom,
		From: start.Unix(),
		To:   end.Unix() + secondsPerDay - 1,
	}, nil
}
