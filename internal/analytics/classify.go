package analytics

import "strings"

// Category is the semantic grouping of a learning content item.
type Category string

const (
	CategoryVideo Category = "video"
	CategoryPDF   Category = "pdf"
	CategoryOther Category = "other"
)

// UnknownClassLabel is used when a section carries no display name.
const UnknownClassLabel = "Unknown Class"

// trackedModTypes is the allow-list of module types that count as learning
// content. Forums, labels, quizzes and the like are excluded before
// classification, which also drops staff accounts whose completion lists
// are empty because nothing is tracked for them.
var trackedModTypes = map[string]struct{}{
	"resource":    {},
	"url":         {},
	"page":        {},
	"folder":      {},
	"book":        {},
	"imscp":       {},
	"scorm":       {},
	"hvp":         {},
	"h5pactivity": {},
}

// directVideoModTypes force the video category regardless of the item name.
var directVideoModTypes = map[string]struct{}{
	"hvp":         {},
	"h5pactivity": {},
}

var videoNameHints = []string{"video", "lecture"}

var pdfNameHints = []string{"pdf", "document", "notes"}

// TrackedModType reports whether the module type is completion-tracked
// learning content.
func TrackedModType(modName string) bool {
	_, ok := trackedModTypes[strings.ToLower(modName)]
	return ok
}

// Classify maps a content item's display name, module type and enclosing
// section name to a category and class label. Priority: direct video module
// type, then video name hints, then document name hints, else other.
func Classify(name, modName, sectionName string) (Category, string) {
	label := sectionName
	if label == "" {
		label = UnknownClassLabel
	}

	if _, ok := directVideoModTypes[strings.ToLower(modName)]; ok {
		return CategoryVideo, label
	}

	lower := strings.ToLower(name)
	for _, hint := range videoNameHints {
		if strings.Contains(lower, hint) {
			return CategoryVideo, label
		}
	}
	for _, hint := range pdfNameHints {
		if strings.Contains(lower, hint) {
			return CategoryPDF, label
		}
	}
	return CategoryOther, label
}

// CourseModule is one content item as listed in the course structure.
type CourseModule struct {
	ID       int64
	Instance int64
	Name     string
	ModName  string
}

// CourseSection groups modules under a section display name.
type CourseSection struct {
	Name    string
	Modules []CourseModule
}

// Activity is a classified, completion-tracked content item.
type Activity struct {
	CmID       int64
	Instance   int64
	Name       string
	Category   Category
	ClassLabel string
}

// ActivityIndex resolves completion events to classified activities. Lookup
// tries the content-item identifier first and falls back to the underlying
// instance identifier because the two upstream listings do not always agree
// on identifier schemes.
type ActivityIndex struct {
	byCmID     map[int64]*Activity
	byInstance map[int64]*Activity
}

// BuildActivityIndex classifies every allow-listed module in the course
// structure. Modules outside the allow-list are skipped entirely.
func BuildActivityIndex(sections []CourseSection) *ActivityIndex {
	idx := &ActivityIndex{
		byCmID:     make(map[int64]*Activity),
		byInstance: make(map[int64]*Activity),
	}
	for _, section := range sections {
		for _, mod := range section.Modules {
			if !TrackedModType(mod.ModName) {
				continue
			}
			category, label := Classify(mod.Name, mod.ModName, section.Name)
			activity := &Activity{
				CmID:       mod.ID,
				Instance:   mod.Instance,
				Name:       mod.Name,
				Category:   category,
				ClassLabel: label,
			}
			idx.byCmID[mod.ID] = activity
			if _, exists := idx.byInstance[mod.Instance]; !exists {
				idx.byInstance[mod.Instance] = activity
			}
		}
	}
	return idx
}

// Lookup resolves an event by cmid, then by instance.
func (idx *ActivityIndex) Lookup(cmID, instance int64) (*Activity, bool) {
	if activity, ok := idx.byCmID[cmID]; ok {
		return activity, true
	}
	if activity, ok := idx.byInstance[instance]; ok {
		return activity, true
	}
	return nil, false
}

// Len returns the number of classified activities.
func (idx *ActivityIndex) Len() int {
	return len(idx.byCmID)
}
