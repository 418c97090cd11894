package analytics

// LearnerSet tracks the unique students with at least one qualifying video
// or pdf completion.
type LearnerSet struct {
	video map[int64]struct{}
	pdf   map[int64]struct{}
}

// NewLearnerSet returns an empty learner set.
func NewLearnerSet() *LearnerSet {
	return &LearnerSet{
		video: make(map[int64]struct{}),
		pdf:   make(map[int64]struct{}),
	}
}

// Add records a qualifying completion. Categories other than video and pdf
// are ignored.
func (s *LearnerSet) Add(category Category, studentID int64) {
	switch category {
	case CategoryVideo:
		s.video[studentID] = struct{}{}
	case CategoryPDF:
		s.pdf[studentID] = struct{}{}
	}
}

// VideoCount returns the unique video learners.
func (s *LearnerSet) VideoCount() int { return len(s.video) }

// PDFCount returns the unique pdf learners.
func (s *LearnerSet) PDFCount() int { return len(s.pdf) }

// BothCount returns |video ∩ pdf|.
func (s *LearnerSet) BothCount() int {
	count := 0
	for id := range s.video {
		if _, ok := s.pdf[id]; ok {
			count++
		}
	}
	return count
}

// EitherCount returns |video ∪ pdf|.
func (s *LearnerSet) EitherCount() int {
	count := len(s.video)
	for id := range s.pdf {
		if _, ok := s.video[id]; !ok {
			count++
		}
	}
	return count
}

// ClassSummary reports unique-learner counts for one class label.
type ClassSummary struct {
	ClassLabel     string
	VideoLearners  int
	PDFLearners    int
	BothLearners   int
	EitherLearners int
	TotalEnrolled  int
}

// EngagementAggregator deduplicates completion events into per-class learner
// sets and, separately, one course-wide set. A student who completed ten
// videos across ten classes counts once per class and once for the course.
type EngagementAggregator struct {
	perClass map[string]*LearnerSet
	order    []string
	course   *LearnerSet
}

// NewEngagementAggregator returns an empty aggregator.
func NewEngagementAggregator() *EngagementAggregator {
	return &EngagementAggregator{
		perClass: make(map[string]*LearnerSet),
		course:   NewLearnerSet(),
	}
}

// Record adds one qualifying completion to the class and course sets.
func (a *EngagementAggregator) Record(classLabel string, category Category, studentID int64) {
	if category != CategoryVideo && category != CategoryPDF {
		return
	}
	set, ok := a.perClass[classLabel]
	if !ok {
		set = NewLearnerSet()
		a.perClass[classLabel] = set
		a.order = append(a.order, classLabel)
	}
	set.Add(category, studentID)
	a.course.Add(category, studentID)
}

// Classes returns one summary per class label in first-seen order.
func (a *EngagementAggregator) Classes(totalEnrolled int) []ClassSummary {
	summaries := make([]ClassSummary, 0, len(a.order))
	for _, label := range a.order {
		set := a.perClass[label]
		summaries = append(summaries, ClassSummary{
			ClassLabel:     label,
			VideoLearners:  set.VideoCount(),
			PDFLearners:    set.PDFCount(),
			BothLearners:   set.BothCount(),
			EitherLearners: set.EitherCount(),
			TotalEnrolled:  totalEnrolled,
		})
	}
	return summaries
}

// Course returns the course-wide deduplicated summary.
func (a *EngagementAggregator) Course(totalEnrolled int) ClassSummary {
	return ClassSummary{
		ClassLabel:     "All classes",
		VideoLearners:  a.course.VideoCount(),
		PDFLearners:    a.course.PDFCount(),
		BothLearners:   a.course.BothCount(),
		EitherLearners: a.course.EitherCount(),
		TotalEnrolled:  totalEnrolled,
	}
}
