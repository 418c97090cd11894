package analytics

import (
	"math"
	"sort"
)

// BucketPolicy selects how completion counts map to range buckets. The two
// policies are not interchangeable and must never be mixed within one report.
type BucketPolicy string

const (
	// PolicyPercentage buckets by share of the course total into six named
	// ranges, with dedicated buckets for untouched and fully completed.
	PolicyPercentage BucketPolicy = "percentage"
	// PolicyFixedWidth buckets rounded percentages into five 20-point ranges.
	PolicyFixedWidth BucketPolicy = "fixedwidth"
)

// ParseBucketPolicy validates a policy string, defaulting to percentage.
func ParseBucketPolicy(raw string) (BucketPolicy, bool) {
	switch BucketPolicy(raw) {
	case PolicyPercentage, "":
		return PolicyPercentage, true
	case PolicyFixedWidth:
		return PolicyFixedWidth, true
	default:
		return PolicyPercentage, false
	}
}

// StudentProgress is one student's completion standing against the
// course-scoped activity total.
type StudentProgress struct {
	StudentID   int64
	FullName    string
	Email       string
	Completed   int
	Total       int
	FetchFailed bool
}

// Percent returns the completion percentage, zero when the course total is
// zero.
func (p StudentProgress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total) * 100
}

// RangeBucket is one histogram bar: a fixed key, its display label, and the
// students that landed in it.
type RangeBucket struct {
	Key      string
	Label    string
	Count    int
	Students []StudentProgress
}

var percentageBuckets = []struct{ key, label string }{
	{"0", "Not started"},
	{"low", "Below 25%"},
	{"mid", "25% - 49%"},
	{"high", "50% - 74%"},
	{"veryhigh", "75% and above"},
	{"full", "Completed"},
}

var fixedWidthBuckets = []struct{ key, label string }{
	{"0-20", "0% - 20%"},
	{"21-40", "21% - 40%"},
	{"41-60", "41% - 60%"},
	{"61-80", "61% - 80%"},
	{"81-100", "81% - 100%"},
}

// BucketKeys returns the policy's full key set in display order.
func BucketKeys(policy BucketPolicy) []string {
	defs := percentageBuckets
	if policy == PolicyFixedWidth {
		defs = fixedWidthBuckets
	}
	keys := make([]string, len(defs))
	for i, def := range defs {
		keys[i] = def.key
	}
	return keys
}

// BucketKey maps a (completed, total) pair to exactly one bucket key under
// the given policy.
func BucketKey(policy BucketPolicy, completed, total int) string {
	if policy == PolicyFixedWidth {
		return fixedWidthKey(completed, total)
	}
	return percentageKey(completed, total)
}

func percentageKey(completed, total int) string {
	if completed <= 0 {
		return "0"
	}
	if total > 0 && completed >= total {
		return "full"
	}
	var percent float64
	if total > 0 {
		percent = float64(completed) / float64(total) * 100
	}
	switch {
	case percent < 25:
		return "low"
	case percent < 50:
		return "mid"
	case percent < 75:
		return "high"
	default:
		return "veryhigh"
	}
}

func fixedWidthKey(completed, total int) string {
	var percent int
	if total > 0 {
		percent = int(math.Round(float64(completed) / float64(total) * 100))
	}
	switch {
	case percent <= 20:
		return "0-20"
	case percent <= 40:
		return "21-40"
	case percent <= 60:
		return "41-60"
	case percent <= 80:
		return "61-80"
	default:
		return "81-100"
	}
}

// BuildHistogram distributes students into the policy's buckets. Every
// bucket key is present in the result even when empty; within a bucket,
// students are ordered by descending completed count with input order
// preserved on ties.
func BuildHistogram(policy BucketPolicy, students []StudentProgress) []RangeBucket {
	defs := percentageBuckets
	if policy == PolicyFixedWidth {
		defs = fixedWidthBuckets
	}

	grouped := make(map[string][]StudentProgress, len(defs))
	for _, student := range students {
		key := BucketKey(policy, student.Completed, student.Total)
		grouped[key] = append(grouped[key], student)
	}

	buckets := make([]RangeBucket, 0, len(defs))
	for _, def := range defs {
		members := grouped[def.key]
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].Completed > members[j].Completed
		})
		if members == nil {
			members = []StudentProgress{}
		}
		buckets = append(buckets, RangeBucket{
			Key:      def.key,
			Label:    def.label,
			Count:    len(members),
			Students: members,
		})
	}
	return buckets
}
