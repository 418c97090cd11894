package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLearnerSetIntersectionAndUnion(t *testing.T) {
	set := NewLearnerSet()
	set.Add(CategoryVideo, 1)
	set.Add(CategoryVideo, 2)
	set.Add(CategoryVideo, 2) // repeat completion counts once
	set.Add(CategoryPDF, 2)
	set.Add(CategoryPDF, 3)
	set.Add(CategoryOther, 4) // ignored

	assert.Equal(t, 2, set.VideoCount())
	assert.Equal(t, 2, set.PDFCount())
	assert.Equal(t, 1, set.BothCount())
	assert.Equal(t, 3, set.EitherCount())
}

func TestLearnerSetInvariants(t *testing.T) {
	set := NewLearnerSet()
	for id := int64(1); id <= 8; id++ {
		set.Add(CategoryVideo, id)
	}
	for id := int64(5); id <= 10; id++ {
		set.Add(CategoryPDF, id)
	}

	both := set.BothCount()
	either := set.EitherCount()
	video := set.VideoCount()
	pdf := set.PDFCount()

	minVP := video
	if pdf < minVP {
		minVP = pdf
	}
	assert.LessOrEqual(t, both, minVP)
	assert.LessOrEqual(t, minVP, either)
	assert.LessOrEqual(t, either, video+pdf)
}

func TestEngagementAggregatorPerClassVsCourseWide(t *testing.T) {
	agg := NewEngagementAggregator()
	// Student 1 completes videos in two classes: counted once per class,
	// once for the course.
	agg.Record("Class A", CategoryVideo, 1)
	agg.Record("Class B", CategoryVideo, 1)
	agg.Record("Class A", CategoryPDF, 2)
	agg.Record("Class B", CategoryVideo, 3)

	classes := agg.Classes(10)
	require.Len(t, classes, 2)
	assert.Equal(t, "Class A", classes[0].ClassLabel)
	assert.Equal(t, 1, classes[0].VideoLearners)
	assert.Equal(t, 1, classes[0].PDFLearners)
	assert.Equal(t, 2, classes[1].VideoLearners)
	assert.Equal(t, 10, classes[0].TotalEnrolled)

	course := agg.Course(10)
	assert.Equal(t, 2, course.VideoLearners, "student 1 deduplicated course-wide")

	perClassSum := 0
	for _, class := range classes {
		perClassSum += class.VideoLearners
	}
	assert.LessOrEqual(t, course.VideoLearners, perClassSum)
}

func TestEngagementAggregatorIgnoresOtherCategory(t *testing.T) {
	agg := NewEngagementAggregator()
	agg.Record("Class A", CategoryOther, 1)
	assert.Empty(t, agg.Classes(5))
	assert.Equal(t, 0, agg.Course(5).EitherLearners)
}
