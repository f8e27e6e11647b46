package canvas

import (
	"bytes"
	"encoding/json"
)

// ID is a Canvas identifier. Canvas returns integers but some proxies and
// older endpoints stringify them, so both are accepted.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Profile is a user profile, either the caller's own or an observee.
type Profile struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
}

// Term is the enrollment term embedded in a course when include[]=term.
type Term struct {
	Name  string  `json:"name"`
	EndAt *string `json:"end_at"`
}

// Grades is the grades object of an enrollment returned by the
// course enrollments endpoint.
type Grades struct {
	CurrentScore *float64 `json:"current_score"`
	CurrentGrade *string  `json:"current_grade"`
	FinalScore   *float64 `json:"final_score"`
	FinalGrade   *string  `json:"final_grade"`
}

// Enrollment is an enrollment record. Courses embed them with computed_*
// fields (include[]=total_scores) while the enrollments endpoint returns a
// grades object instead.
type Enrollment struct {
	Type                 string   `json:"type"`
	UserID               ID       `json:"user_id"`
	CourseID             ID       `json:"course_id"`
	EnrollmentState      string   `json:"enrollment_state"`
	ComputedCurrentScore *float64 `json:"computed_current_score"`
	ComputedCurrentGrade *string  `json:"computed_current_grade"`
	ComputedFinalScore   *float64 `json:"computed_final_score"`
	ComputedFinalGrade   *string  `json:"computed_final_grade"`
	Grades               *Grades  `json:"grades"`
}

// Course is a course as returned by /users/:id/courses.
type Course struct {
	ID          ID           `json:"id"`
	Name        *string      `json:"name"`
	CourseCode  string       `json:"course_code"`
	EndAt       *string      `json:"end_at"`
	Term        *Term        `json:"term"`
	Enrollments []Enrollment `json:"enrollments"`
}

// ContextCode is the planner context code of the course.
func (c Course) ContextCode() string {
	return "course_" + string(c.ID)
}

// DisplayName is the course name or "" when it has none.
func (c Course) DisplayName() string {
	if c.Name == nil {
		return ""
	}
	return *c.Name
}

// Plannable is the object a planner item refers to.
type Plannable struct {
	ID          ID      `json:"id"`
	Title       string  `json:"title"`
	DueAt       *string `json:"due_at"`
	Description *string `json:"description"`
}

// Submissions is the submission state of a planner item. Canvas sends
// either an object or a bare false when nothing is known, anything else is
// treated as not submitted.
type Submissions struct {
	Submitted bool `json:"submitted"`
	Graded    bool `json:"graded"`
	Missing   bool `json:"missing"`
	Late      bool `json:"late"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Submissions) UnmarshalJSON(b []byte) error {
	*s = Submissions{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(b, &v); err == nil {
			s.Submitted = v
		}
	case '{':
		type plain Submissions
		var v plain
		if err := json.Unmarshal(b, &v); err == nil {
			*s = Submissions(v)
		}
	}
	return nil
}

// IsSubmitted reports whether the item was turned in or graded.
func (s Submissions) IsSubmitted() bool {
	return s.Submitted || s.Graded
}

// PlannerItem is one entry of /planner/items.
type PlannerItem struct {
	PlannableType string      `json:"plannable_type"`
	CourseID      ID          `json:"course_id"`
	ContextType   string      `json:"context_type"`
	ContextName   *string     `json:"context_name"`
	Plannable     Plannable   `json:"plannable"`
	Submissions   Submissions `json:"submissions"`
}

// PlannableTypeAssignment is the planner item type kept by the coordinator.
const PlannableTypeAssignment = "assignment"

// Submission is the submission embedded in an assignment when
// include[]=submission.
type Submission struct {
	WorkflowState string  `json:"workflow_state"`
	SubmittedAt   *string `json:"submitted_at"`
}

// IsSubmitted reports whether the submission was turned in or graded.
func (s *Submission) IsSubmitted() bool {
	if s == nil {
		return false
	}
	switch s.WorkflowState {
	case "submitted", "graded", "pending_review":
		return true
	}
	return s.SubmittedAt != nil && *s.SubmittedAt != ""
}

// Assignment is an assignment as returned by the per-course assignments
// endpoint.
type Assignment struct {
	ID          ID          `json:"id"`
	Name        string      `json:"name"`
	DueAt       *string     `json:"due_at"`
	Description *string     `json:"description"`
	Submission  *Submission `json:"submission"`
}
