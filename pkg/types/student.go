package types

import (
	"time"
)

// Student is an account whose coursework is observed. It is either one of
// the caller's observees or the caller's own profile.
type Student struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Term is the enrollment term a course belongs to.
type Term struct {
	Name  string     `json:"name"`
	EndAt *time.Time `json:"endAt,omitempty"`
}

// Enrollment holds the grade fields of one enrollment record. Scores and
// grades are nil when the upstream system has not computed them.
type Enrollment struct {
	Type         string   `json:"type"`
	UserID       string   `json:"userID,omitempty"`
	CurrentScore *float64 `json:"currentScore"`
	CurrentGrade *string  `json:"currentGrade"`
	FinalScore   *float64 `json:"finalScore"`
	FinalGrade   *string  `json:"finalGrade"`
}

// EnrollmentTypeStudent is the only enrollment type grade entities are
// published for.
const EnrollmentTypeStudent = "StudentEnrollment"

// Course is a course that survived filtering during a refresh.
type Course struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	CourseCode  string       `json:"courseCode,omitempty"`
	EndAt       *time.Time   `json:"endAt,omitempty"`
	Term        Term         `json:"term"`
	Enrollments []Enrollment `json:"enrollments"`
}

// StudentEnrollment returns the first student enrollment of the course.
func (c Course) StudentEnrollment() (Enrollment, bool) {
	for _, e := range c.Enrollments {
		if e.Type == EnrollmentTypeStudent {
			return e, true
		}
	}
	return Enrollment{}, false
}

// Assignment is the normalized form of an upstream assignment. DueAt is nil
// when the assignment has no (parsable) due date.
type Assignment struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	CourseName  string     `json:"courseName"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	Description string     `json:"description"`
	IsSubmitted bool       `json:"isSubmitted"`
}

// StudentSnapshot is everything collected for one student in one refresh.
type StudentSnapshot struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Courses     []Course     `json:"courses"`
	Assignments []Assignment `json:"assignments"`
}

// Snapshot is the complete result of one successful refresh cycle. It is
// never modified after it has been published.
type Snapshot struct {
	RefreshedAt time.Time         `json:"refreshedAt"`
	Students    []StudentSnapshot `json:"students"`
}

// Student returns the snapshot for the given student ID.
func (s *Snapshot) Student(id string) (StudentSnapshot, bool) {
	if s == nil {
		return StudentSnapshot{}, false
	}
	for _, st := range s.Students {
		if st.ID == id {
			return st, true
		}
	}
	return StudentSnapshot{}, false
}
