package course

import "time"

// State is the derived state of one (assignment, student) pair.
type State string

const (
	StatePending State = "pending"
	StateOnTime  State = "on_time"
	StateLate    State = "late"
	StateGraded  State = "graded"
)

// Classify is the single place lateness is computed.
// A grade wins over everything; otherwise a submission at or before the due date is on time.
func Classify(dueDate, submittedAt time.Time, graded bool) State {
	switch {
	case graded:
		return StateGraded
	case submittedAt.IsZero():
		return StatePending
	case submittedAt.After(dueDate):
		return StateLate
	default:
		return StateOnTime
	}
}

// StudentStatus is what the roster and the student's own view show for one student.
type StudentStatus struct {
	StudentID  string     `json:"student_id"`
	State      State      `json:"state"`
	Late       bool       `json:"late"`
	Viewed     bool       `json:"viewed"`
	Submission Submission `json:"submission"`
}

func (a Assignment) StatusOf(courseID, studentID string) StudentStatus {
	sub, _ := a.Submission(courseID, studentID)
	_, graded := a.Grades[studentID]

	var submittedAt time.Time
	if _, ok := a.Submissions[studentID]; ok {
		submittedAt = sub.SubmittedAt
	}
	st := StudentStatus{
		StudentID:  studentID,
		State:      Classify(a.DueDate, submittedAt, graded),
		Viewed:     a.WasViewedBy(studentID),
		Submission: sub,
	}
	// a graded submission can still have been late
	st.Late = !submittedAt.IsZero() && submittedAt.After(a.DueDate)
	return st
}

// Roster returns one StudentStatus per student, in the given order.
func (a Assignment) Roster(courseID string, students []string) []StudentStatus {
	roster := make([]StudentStatus, 0, len(students))
	for _, sid := range students {
		roster = append(roster, a.StatusOf(courseID, sid))
	}
	return roster
}

func (a Assignment) WasViewedBy(studentID string) bool {
	for _, id := range a.ViewedBy {
		if id == studentID {
			return true
		}
	}
	return false
}

// IsClosed reports whether studentID can no longer make a first submission.
// A student who already submitted may re-submit after the deadline.
func (a Assignment) IsClosed(studentID string, now time.Time) bool {
	_, submitted := a.Submissions[studentID]
	return !submitted && now.After(a.DueDate)
}

func RubricTotal(items []RubricItem) int {
	var total int
	for _, it := range items {
		total += it.Points
	}
	return total
}

// IsFullRubric reports whether the rubric adds up to exactly 100 points.
func IsFullRubric(items []RubricItem) bool { return RubricTotal(items) == 100 }

// DefaultRubric is the single criterion used when an assignment is created without a rubric,
// or when rubric generation fails.
func DefaultRubric(maxPoints int) []RubricItem {
	return []RubricItem{{
		Criteria:    "General evaluation",
		Description: "Overall quality, completeness and correctness of the work.",
		Points:      maxPoints,
	}}
}
