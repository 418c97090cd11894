package analytics

import "math"

// UserActivity is the roster view the consistency counter consumes: the
// latest access epoch seen for a user and the number of distinct course
// memberships they hold.
type UserActivity struct {
	UserID      int64
	FullName    string
	LastAccess  int64
	CourseCount int
}

// ConsistencyRecord is one user's estimated access consistency within a
// range. Only a single last-access timestamp per course is available
// upstream, so the distinct-day count is approximated by the number of
// course memberships, capped at the range length.
type ConsistencyRecord struct {
	UserID             int64
	FullName           string
	UniqueDayCount     int
	LastAccessEpoch    int64
	ConsistencyPercent int
}

// DayBucket counts users whose estimated active-day count equals Days.
type DayBucket struct {
	Days  int
	Count int
}

// ConsistencyReport aggregates day-level access consistency over a range.
type ConsistencyReport struct {
	Range     DateRange
	TotalDays int
	Breakdown []DayBucket
	Users     []ConsistencyRecord
}

// BuildConsistencyReport selects users whose last access falls inside the
// range, estimates their active-day counts, and buckets them by exact day
// count from TotalDays down to 1. Every day-count value appears in the
// breakdown even when zero.
func BuildConsistencyReport(rng DateRange, users []UserActivity) ConsistencyReport {
	totalDays := rng.TotalDays()

	counts := make(map[int]int, totalDays)
	records := make([]ConsistencyRecord, 0, len(users))
	for _, user := range users {
		if !rng.Contains(user.LastAccess) {
			continue
		}
		days := user.CourseCount
		if days > totalDays {
			days = totalDays
		}
		if days < 1 {
			days = 1
		}
		percent := int(math.Round(float64(days) / float64(totalDays) * 100))
		records = append(records, ConsistencyRecord{
			UserID:             user.UserID,
			FullName:           user.FullName,
			UniqueDayCount:     days,
			LastAccessEpoch:    user.LastAccess,
			ConsistencyPercent: percent,
		})
		counts[days]++
	}

	breakdown := make([]DayBucket, 0, totalDays)
	for days := totalDays; days >= 1; days-- {
		breakdown = append(breakdown, DayBucket{Days: days, Count: counts[days]})
	}

	return ConsistencyReport{
		Range:     rng,
		TotalDays: totalDays,
		Breakdown: breakdown,
		Users:     records,
	}
}
