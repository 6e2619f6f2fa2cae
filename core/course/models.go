package course

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/danielortegac/qlase/core"
)

// SubmissionStatus is the stored label of a student's submission.
// Only StatusSubmitted is ever written: lateness is derived by Classify.
type SubmissionStatus string

const (
	StatusPending   SubmissionStatus = "pending"
	StatusSubmitted SubmissionStatus = "submitted"
	StatusLate      SubmissionStatus = "late"
)

// Material types
const (
	MaterialPDF   = "pdf"
	MaterialDoc   = "doc"
	MaterialLink  = "link"
	MaterialVideo = "video"
)

type (
	RubricItem struct {
		Criteria    string `json:"criteria"`
		Description string `json:"description"`
		Points      int    `json:"points"`
	}

	Material struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		Type      string    `json:"type"`
		URL       string    `json:"url"`
		Size      int64     `json:"size"`
		CreatedAt time.Time `json:"created_at"`
	}

	Recording struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		URL       string    `json:"url"`
		Duration  string    `json:"duration"`
		Size      int64     `json:"size"`
		CreatedAt time.Time `json:"created_at"`
	}

	// Assignment is embedded in its Course. The per-student maps are keyed by student ID.
	Assignment struct {
		ID                string                      `json:"id"`
		Title             string                      `json:"title"`
		Description       string                      `json:"description"`
		DueDate           time.Time                   `json:"due_date"`
		MaxGrade          int                         `json:"max_grade"`
		Rubric            []RubricItem                `json:"rubric"`
		Submissions       map[string]SubmissionStatus `json:"submissions"`
		SubmissionContent map[string][]string         `json:"submission_content"`
		SubmissionDate    map[string]time.Time        `json:"submission_date"`
		Grades            map[string]int              `json:"grades"`
		TeacherComments   map[string]string           `json:"teacher_comments"`
		ViewedBy          []string                    `json:"viewed_by"`
		CreatedAt         time.Time                   `json:"created_at"`
	}

	Course struct {
		ID           string       `json:"id"`
		Title        string       `json:"title"`
		Description  string       `json:"description"`
		InstructorID string       `json:"instructor_id"`
		Instructor   string       `json:"instructor"`
		Students     []string     `json:"students"`
		Assignments  []Assignment `json:"assignments"`
		Materials    []Material   `json:"materials"`
		Recordings   []Recording  `json:"recordings"`
		Rubric       []RubricItem `json:"rubric"`
		CreatedAt    time.Time    `json:"created_at"`
		UpdatedAt    time.Time    `json:"updated_at"`
	}

	// Submission is the per-row view of one student's work on one assignment.
	Submission struct {
		CourseID     string           `json:"course_id"`
		AssignmentID string           `json:"assignment_id"`
		StudentID    string           `json:"student_id"`
		Status       SubmissionStatus `json:"status"`
		Files        []string         `json:"files"`
		SubmittedAt  time.Time        `json:"submitted_at"`
		Grade        *int             `json:"grade"`
		Comment      string           `json:"comment"`
	}
)

// WithMaps returns a copy of a with every per-student map allocated.
func (a Assignment) WithMaps() Assignment {
	if a.Submissions == nil {
		a.Submissions = make(map[string]SubmissionStatus)
	}
	if a.SubmissionContent == nil {
		a.SubmissionContent = make(map[string][]string)
	}
	if a.SubmissionDate == nil {
		a.SubmissionDate = make(map[string]time.Time)
	}
	if a.Grades == nil {
		a.Grades = make(map[string]int)
	}
	if a.TeacherComments == nil {
		a.TeacherComments = make(map[string]string)
	}
	if a.ViewedBy == nil {
		a.ViewedBy = []string{}
	}
	return a
}

// Submission returns the row view of studentID's work. ok is false when the student
// has neither submitted nor been graded.
func (a Assignment) Submission(courseID, studentID string) (Submission, bool) {
	sub := Submission{CourseID: courseID, AssignmentID: a.ID, StudentID: studentID, Status: StatusPending}
	status, submitted := a.Submissions[studentID]
	grade, graded := a.Grades[studentID]
	if submitted {
		sub.Status = status
		sub.Files = a.SubmissionContent[studentID]
		sub.SubmittedAt = a.SubmissionDate[studentID]
	}
	if graded {
		g := grade
		sub.Grade = &g
	}
	sub.Comment = a.TeacherComments[studentID]
	return sub, submitted || graded
}

func (c Course) HasStudent(id string) bool { return core.ContainsString(c.Students, id) }

func (c Course) Assignment(id string) (Assignment, bool) {
	for _, a := range c.Assignments {
		if a.ID == id {
			return a, true
		}
	}
	return Assignment{}, false
}

type NewCourse struct {
	Title       string       `json:"title" validate:"required,notblank"`
	Description string       `json:"description"`
	Rubric      []RubricItem `json:"rubric" validate:"omitempty,dive"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

type UpdateCourse struct {
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	Rubric      []RubricItem `json:"rubric" validate:"omitempty,dive"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Title = core.CleanString(uc.Title)
	if uc.Description != nil {
		desc := core.CleanString(*uc.Description)
		uc.Description = &desc
	}
	return validate.Struct(uc)
}

type NewMaterial struct {
	Title string `json:"title" validate:"required,notblank"`
	Type  string `json:"type" validate:"required,oneof=pdf doc link video"`
	URL   string `json:"url" validate:"required,url"`
	Size  int64  `json:"size" validate:"gte=0,lte=1099511627776"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Type = core.CleanString(nm.Type, true /* lower */)
	nm.URL = core.CleanString(nm.URL)
	return validate.Struct(nm)
}

type NewRecording struct {
	Title    string `json:"title" validate:"required,notblank"`
	URL      string `json:"url" validate:"required,url"`
	Duration string `json:"duration"`
	Size     int64  `json:"size" validate:"gte=0,lte=1099511627776"`
}

func (nr *NewRecording) Validate(validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	nr.URL = core.CleanString(nr.URL)
	nr.Duration = core.CleanString(nr.Duration)
	return validate.Struct(nr)
}

type NewAssignment struct {
	Title       string       `json:"title" validate:"required,notblank"`
	Description string       `json:"description"`
	DueDate     time.Time    `json:"due_date" validate:"required"`
	MaxGrade    int          `json:"max_grade" validate:"required,gt=0"`
	Rubric      []RubricItem `json:"rubric" validate:"omitempty,dive"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	return validate.Struct(na)
}

type SubmitAssignment struct {
	FileURLs  []string `json:"file_urls" validate:"required,min=1,dive,required"`
	TotalSize int64    `json:"total_size" validate:"gte=0,lte=1099511627776"`
}

func (sa *SubmitAssignment) Validate(validate *validator.Validate) error {
	sa.FileURLs = core.CleanStrings(sa.FileURLs)
	return validate.Struct(sa)
}

// GradeSheet carries the grades and comments to upsert. Students absent from it keep
// whatever they had.
type GradeSheet struct {
	Grades   map[string]int    `json:"grades"`
	Comments map[string]string `json:"comments"`
}

func (gs GradeSheet) IsEmpty() bool { return len(gs.Grades) == 0 && len(gs.Comments) == 0 }

type GradeStudent struct {
	Grade   int    `json:"grade" validate:"gte=0"`
	Comment string `json:"comment"`
}

type GenerateRubric struct {
	Title       string `json:"title" validate:"required,notblank"`
	Description string `json:"description"`
	MaxPoints   int    `json:"max_points" validate:"required,gt=0"`
}

func (gr *GenerateRubric) Validate(validate *validator.Validate) error {
	gr.Title = core.CleanString(gr.Title)
	gr.Description = core.CleanString(gr.Description)
	return validate.Struct(gr)
}

type EnrollStudents struct {
	Lines []string `json:"lines" validate:"required,min=1"`
}

func (es *EnrollStudents) Validate(validate *validator.Validate) error { return validate.Struct(es) }

// EnrollResult lists who got enrolled, who was invited (no account yet) and the ignored lines.
type EnrollResult struct {
	Enrolled []string `json:"enrolled"`
	Invited  []string `json:"invited"`
	Ignored  []string `json:"ignored"`
}

type QueryFilter struct {
	Search       string `query:"search"`
	InstructorID string `query:"instructor_id"`
	StudentID    string `query:"student_id"`
	// MemberID matches courses where the user is either the instructor or a student.
	MemberID string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.InstructorID = core.CleanString(qf.InstructorID)
	qf.StudentID = core.CleanString(qf.StudentID)
}

// Match reports whether c satisfies every set field of the filter.
func (qf *QueryFilter) Match(c Course) bool {
	if qf == nil {
		return true
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !(strings.Contains(strings.ToLower(c.Title), s) || strings.Contains(strings.ToLower(c.Description), s)) {
			return false
		}
	}
	if qf.InstructorID != "" && c.InstructorID != qf.InstructorID {
		return false
	}
	if qf.StudentID != "" && !c.HasStudent(qf.StudentID) {
		return false
	}
	if qf.MemberID != "" && c.InstructorID != qf.MemberID && !c.HasStudent(qf.MemberID) {
		return false
	}
	return true
}
