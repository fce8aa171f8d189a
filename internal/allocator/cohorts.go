package allocator

import (
	"fmt"

	"github.com/noah-isme/exam-room-allocator/internal/models"
)

var (
	rollAliases = []string{"rollno", "roll"}
	yearAliases = []string{"year", "academicyear"}
)

// CohortIndex maps department/year/section to cohorts, in first-seen order.
type CohortIndex struct {
	cohorts []*models.Cohort
	byKey   map[models.CohortKey]*models.Cohort
	total   int
}

// IndexCohorts groups student rows into cohorts. Rows without a roll number are dropped.
func IndexCohorts(records []models.Record) (*CohortIndex, []models.Warning) {
	idx := &CohortIndex{byKey: make(map[models.CohortKey]*models.Cohort)}
	var warnings []models.Warning
	for i, rec := range records {
		student := models.Student{
			RollNo:     rec.Value(rollAliases...),
			Name:       rec.Value("name"),
			Department: rec.Value("department"),
			Year:       rec.Value(yearAliases...),
			Section:    rec.Value("section"),
		}
		if student.RollNo == "" {
			warnings = append(warnings, models.Warning{
				Kind:    models.WarningMissingRollNumber,
				Dataset: "students",
				Row:     i + 1,
				Message: "student row has no roll number and was skipped",
			})
			continue
		}
		key := models.CohortKey{Department: student.Department, Year: student.Year, Section: student.Section}
		cohort, ok := idx.byKey[key]
		if !ok {
			cohort = &models.Cohort{CohortKey: key}
			idx.byKey[key] = cohort
			idx.cohorts = append(idx.cohorts, cohort)
		}
		cohort.Students = append(cohort.Students, student)
		idx.total++
	}
	return idx, warnings
}

// Cohorts returns cohorts in enumeration order.
func (idx *CohortIndex) Cohorts() []*models.Cohort {
	return idx.cohorts
}

// Len returns the number of cohorts.
func (idx *CohortIndex) Len() int {
	return len(idx.cohorts)
}

// Students returns the number of indexed students.
func (idx *CohortIndex) Students() int {
	return idx.total
}

// SlotIndex maps date|time to exam slots, in first-seen order.
type SlotIndex struct {
	slots []*models.ExamSlot
	byKey map[models.SlotKey]*models.ExamSlot
}

// IndexSlots groups course rows into exam slots and records which department/year pairs sit
// each slot. Courses without a department or year join their slot but activate nobody.
func IndexSlots(records []models.Record) (*SlotIndex, []models.Warning) {
	idx := &SlotIndex{byKey: make(map[models.SlotKey]*models.ExamSlot)}
	var warnings []models.Warning
	for i, rec := range records {
		course := models.Course{
			Department: rec.Value("department"),
			Year:       rec.Value("year"),
			CourseCode: rec.Value("coursecode"),
			CourseName: rec.Value("coursename"),
			ExamDate:   rec.Value("examdate"),
			ExamTime:   rec.Value("examtime"),
		}
		key := models.SlotKey{Date: course.ExamDate, Time: course.ExamTime}
		slot, ok := idx.byKey[key]
		if !ok {
			slot = &models.ExamSlot{SlotKey: key}
			idx.byKey[key] = slot
			idx.slots = append(idx.slots, slot)
		}
		slot.Courses = append(slot.Courses, course)

		if course.Department == "" || course.Year == "" {
			warnings = append(warnings, models.Warning{
				Kind:    models.WarningCourseMissingCohort,
				Dataset: "courses",
				Row:     i + 1,
				Message: fmt.Sprintf("course %q has no department or year and activates no cohort", course.CourseCode),
			})
			continue
		}
		slot.Activate(models.DeptYear{Department: course.Department, Year: course.Year})
	}
	return idx, warnings
}

// Slots returns exam slots in enumeration order.
func (idx *SlotIndex) Slots() []*models.ExamSlot {
	return idx.slots
}

// Len returns the number of distinct exam slots.
func (idx *SlotIndex) Len() int {
	return len(idx.slots)
}
