package canvas

import (
	"context"

	"github.com/blackgold9/canvas-integration/pkg/types"
)

// ToStudent converts a profile into a student.
func (p Profile) ToStudent() types.Student {
	name := p.Name
	if name == "" {
		name = p.ShortName
	}
	if name == "" {
		name = "Student " + string(p.ID)
	}
	return types.Student{
		ID:   string(p.ID),
		Name: name,
	}
}

// ToEnrollment converts an enrollment, preferring the grades object over the
// computed_* fields when both are present.
func (e Enrollment) ToEnrollment() types.Enrollment {
	out := types.Enrollment{
		Type:         e.Type,
		UserID:       string(e.UserID),
		CurrentScore: e.ComputedCurrentScore,
		CurrentGrade: e.ComputedCurrentGrade,
		FinalScore:   e.ComputedFinalScore,
		FinalGrade:   e.ComputedFinalGrade,
	}
	if g := e.Grades; g != nil {
		if g.CurrentScore != nil {
			out.CurrentScore = g.CurrentScore
		}
		if g.CurrentGrade != nil {
			out.CurrentGrade = g.CurrentGrade
		}
		if g.FinalScore != nil {
			out.FinalScore = g.FinalScore
		}
		if g.FinalGrade != nil {
			out.FinalGrade = g.FinalGrade
		}
	}
	return out
}

// ToCourse converts a course along with its embedded enrollments.
func (c Course) ToCourse(ctx context.Context) types.Course {
	out := types.Course{
		ID:          string(c.ID),
		Name:        c.DisplayName(),
		CourseCode:  c.CourseCode,
		EndAt:       ParseTime(ctx, "course.end_at", c.EndAt),
		Enrollments: make([]types.Enrollment, 0, len(c.Enrollments)),
	}
	if c.Term != nil {
		out.Term = types.Term{
			Name:  c.Term.Name,
			EndAt: ParseTime(ctx, "term.end_at", c.Term.EndAt),
		}
	}
	for _, e := range c.Enrollments {
		out.Enrollments = append(out.Enrollments, e.ToEnrollment())
	}
	return out
}
