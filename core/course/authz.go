package course

import (
	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/user"
)

var (
	ErrNotInstructor = core.NewPermissionError("only the instructor of this course can do this")
	ErrNotEnrolled   = core.NewPermissionError("only students enrolled in this course can do this")
	ErrNotMember     = core.NewPermissionError("you are not a member of this course")
	ErrCannotCreate  = core.NewPermissionError("only teachers and admins can create courses")
)

// isInstructor is strict: it never honors admin capabilities.
// Grading and assignment authoring belong to the instructor of record only.
func isInstructor(actor user.User, c Course) bool {
	return actor.ID != "" && actor.ID == c.InstructorID
}

func canManage(actor user.User, c Course) bool {
	return isInstructor(actor, c) || actor.Can(user.CapManageAnyCourse)
}

func canView(actor user.User, c Course) bool {
	return canManage(actor, c) || c.HasStudent(actor.ID)
}

// redactFor strips every other student's submission data from c.
func redactFor(c Course, studentID string) Course {
	assignments := make([]Assignment, 0, len(c.Assignments))
	for _, a := range c.Assignments {
		own := Assignment{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			DueDate:     a.DueDate,
			MaxGrade:    a.MaxGrade,
			Rubric:      a.Rubric,
			CreatedAt:   a.CreatedAt,
		}.WithMaps()
		if st, ok := a.Submissions[studentID]; ok {
			own.Submissions[studentID] = st
		}
		if files, ok := a.SubmissionContent[studentID]; ok {
			own.SubmissionContent[studentID] = files
		}
		if at, ok := a.SubmissionDate[studentID]; ok {
			own.SubmissionDate[studentID] = at
		}
		if g, ok := a.Grades[studentID]; ok {
			own.Grades[studentID] = g
		}
		if cm, ok := a.TeacherComments[studentID]; ok {
			own.TeacherComments[studentID] = cm
		}
		if a.WasViewedBy(studentID) {
			own.ViewedBy = append(own.ViewedBy, studentID)
		}
		assignments = append(assignments, own)
	}
	c.Assignments = assignments
	c.Students = []string{studentID}
	return c
}
