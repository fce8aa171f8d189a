package models

import "strconv"

// Student is a single row of the student roster.
type Student struct {
	RollNo     string `json:"rollNo"`
	Name       string `json:"name,omitempty"`
	Department string `json:"department"`
	Year       string `json:"year"`
	Section    string `json:"section"`
}

// Course is a scheduled exam for a department/year.
type Course struct {
	Department string `json:"department"`
	Year       string `json:"year"`
	CourseCode string `json:"courseCode,omitempty"`
	CourseName string `json:"courseName,omitempty"`
	ExamDate   string `json:"examDate"`
	ExamTime   string `json:"examTime"`
}

// Room is a usable exam room. Order is the room's position in the input file.
type Room struct {
	RoomNo   string `json:"roomNo"`
	Capacity int    `json:"capacity"`
	Order    int    `json:"-"`
}

// DeptYear identifies the department/year pair a course activates.
type DeptYear struct {
	Department string `json:"department"`
	Year       string `json:"year"`
}

// CohortKey identifies a cohort.
type CohortKey struct {
	Department string `json:"department"`
	Year       string `json:"year"`
	Section    string `json:"section"`
}

// DeptYear drops the section from the key.
func (k CohortKey) DeptYear() DeptYear {
	return DeptYear{Department: k.Department, Year: k.Year}
}

// Cohort holds the students of one department/year/section in roster order.
type Cohort struct {
	CohortKey
	Students []Student `json:"students"`
}

// Size returns the number of students in the cohort.
func (c *Cohort) Size() int {
	if c == nil {
		return 0
	}
	return len(c.Students)
}

// SlotKey identifies an exam slot.
type SlotKey struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// String renders the key as date|time.
func (k SlotKey) String() string {
	return k.Date + "|" + k.Time
}

// ExamSlot groups the courses examined at the same date and time.
type ExamSlot struct {
	SlotKey
	Courses []Course `json:"courses"`
	// Cohorts lists the department/year pairs with an exam in this slot, in first-seen order.
	Cohorts []DeptYear `json:"cohorts"`

	active map[DeptYear]struct{}
}

// Activate marks a department/year as sitting an exam in this slot.
func (s *ExamSlot) Activate(pair DeptYear) {
	if s.active == nil {
		s.active = make(map[DeptYear]struct{})
	}
	if _, ok := s.active[pair]; ok {
		return
	}
	s.active[pair] = struct{}{}
	s.Cohorts = append(s.Cohorts, pair)
}

// Activates reports whether the department/year has an exam in this slot.
func (s *ExamSlot) Activates(pair DeptYear) bool {
	if s == nil || s.active == nil {
		return false
	}
	_, ok := s.active[pair]
	return ok
}

// AllocationRow records a contiguous block of a cohort seated in one room.
type AllocationRow struct {
	Department    string `csv:"Department" json:"department"`
	Year          string `csv:"Year" json:"year"`
	Section       string `csv:"Section" json:"section"`
	Room          string `csv:"Room" json:"room"`
	RollRange     string `csv:"RollRange" json:"rollRange"`
	TotalStudents int    `csv:"TotalStudents" json:"totalStudents"`
	FirstRoll     string `csv:"-" json:"firstRoll"`
	LastRoll      string `csv:"-" json:"lastRoll"`
}

// FormatRollRange renders the legacy "first - last" range label.
func FormatRollRange(first, last string) string {
	return first + " - " + last
}

// Fixed2 is a float serialised with two decimals.
type Fixed2 float64

// String implements fmt.Stringer.
func (f Fixed2) String() string {
	return strconv.FormatFloat(float64(f), 'f', 2, 64)
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (f Fixed2) MarshalCSV() (string, error) {
	return f.String(), nil
}

// MarshalJSON keeps JSON payloads consistent with the CSV output.
func (f Fixed2) MarshalJSON() ([]byte, error) {
	return []byte(f.String()), nil
}

// MetricsRow summarises one department/year group of a slot.
type MetricsRow struct {
	Department     string `csv:"Department" json:"department"`
	Year           string `csv:"Year" json:"year,omitempty"`
	Date           string `csv:"Date" json:"date"`
	Time           string `csv:"Time" json:"time"`
	Conflicts      int    `csv:"Conflicts" json:"conflicts"`
	Timeslots      int    `csv:"Timeslots" json:"timeslots"`
	AvgUtilization Fixed2 `csv:"AvgUtilization" json:"avgUtilization"`
	FairnessStdDev Fixed2 `csv:"FairnessStdDev" json:"fairnessStdDev"`
	Runtime        Fixed2 `csv:"Runtime" json:"runtime"`
}

// Shortage records a cohort that could not be fully seated in a slot.
type Shortage struct {
	Department string `csv:"Department" json:"department"`
	Year       string `csv:"Year" json:"year"`
	Section    string `csv:"Section" json:"section"`
	Date       string `csv:"Date" json:"date"`
	Time       string `csv:"Time" json:"time"`
	CohortSize int    `csv:"CohortSize" json:"cohortSize"`
	Seated     int    `csv:"Seated" json:"seated"`
	Unseated   int    `csv:"Unseated" json:"unseated"`
}

// WarningKind classifies non-fatal data integrity problems.
type WarningKind string

const (
	WarningMissingRollNumber   WarningKind = "missing_roll_number"
	WarningCourseMissingCohort WarningKind = "course_missing_cohort"
)

// Warning is a non-fatal data integrity finding. Row is 1-based and excludes the header.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Dataset string      `json:"dataset"`
	Row     int         `json:"row"`
	Message string      `json:"message"`
}
