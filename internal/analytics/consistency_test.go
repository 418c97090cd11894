package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildConsistencyReportSelectsUsersInRange(t *testing.T) {
	rng := DateRange{Key: RangeCustom, From: 1000, To: 1000 + 5*86400 - 1}
	require.Equal(t, 5, rng.TotalDays())

	users := []UserActivity{
		{UserID: 1, LastAccess: 1000, CourseCount: 3},          // boundary: included
		{UserID: 2, LastAccess: 999, CourseCount: 2},           // before: excluded
		{UserID: 3, LastAccess: 1000 + 5*86400, CourseCount: 1}, // after: excluded
		{UserID: 4, LastAccess: 2000, CourseCount: 9},          // capped at range length
	}

	report := BuildConsistencyReport(rng, users)
	require.Len(t, report.Users, 2)
	assert.Equal(t, int64(1), report.Users[0].UserID)
	assert.Equal(t, 3, report.Users[0].UniqueDayCount)
	assert.Equal(t, 60, report.Users[0].ConsistencyPercent)
	assert.Equal(t, 5, report.Users[1].UniqueDayCount)
	assert.Equal(t, 100, report.Users[1].ConsistencyPercent)
}

func TestBuildConsistencyReportBreakdownCoversEveryDayCount(t *testing.T) {
	rng := DateRange{From: 0, To: 3*86400 - 1}
	require.Equal(t, 3, rng.TotalDays())

	users := []UserActivity{
		{UserID: 1, LastAccess: 100, CourseCount: 1},
		{UserID: 2, LastAccess: 100, CourseCount: 3},
		{UserID: 3, LastAccess: 100, CourseCount: 7},
	}

	report := BuildConsistencyReport(rng, users)
	require.Len(t, report.Breakdown, 3)
	assert.Equal(t, DayBucket{Days: 3, Count: 2}, report.Breakdown[0])
	assert.Equal(t, DayBucket{Days: 2, Count: 0}, report.Breakdown[1])
	assert.Equal(t, DayBucket{Days: 1, Count: 1}, report.Breakdown[2])
}

func TestBuildConsistencyReportEmptyRoster(t *testing.T) {
	rng := DateRange{From: 0, To: 86399}
	report := BuildConsistencyReport(rng, nil)
	assert.Empty(t, report.Users)
	require.Len(t, report.Breakdown, 1)
	assert.Equal(t, 0, report.Breakdown[0].Count)
}
