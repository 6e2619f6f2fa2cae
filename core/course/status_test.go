package course

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	due := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name        string
		submittedAt time.Time
		graded      bool
		want        State
	}{
		{name: "not submitted", want: StatePending},
		{name: "early", submittedAt: due.Add(-48 * time.Hour), want: StateOnTime},
		{name: "exactly at the deadline", submittedAt: due, want: StateOnTime},
		{name: "one second late", submittedAt: due.Add(time.Second), want: StateLate},
		{name: "graded late submission", submittedAt: due.Add(time.Hour), graded: true, want: StateGraded},
		{name: "graded without submission", graded: true, want: StateGraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(due, tt.submittedAt, tt.graded))
		})
	}
}

func TestAssignment_StatusOf(t *testing.T) {
	due := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := Assignment{
		ID:       "a1",
		DueDate:  due,
		MaxGrade: 20,
		Submissions: map[string]SubmissionStatus{
			"early": StatusSubmitted,
			"late":  StatusSubmitted,
		},
		SubmissionContent: map[string][]string{
			"early": {"https://files/early.pdf"},
			"late":  {"https://files/late.pdf"},
		},
		SubmissionDate: map[string]time.Time{
			"early": due.Add(-time.Hour),
			"late":  due.Add(time.Hour),
		},
		Grades:          map[string]int{"late": 15, "zero-no-sub": 0},
		TeacherComments: map[string]string{"late": "good, but late"},
		ViewedBy:        []string{"early"},
	}

	early := a.StatusOf("c1", "early")
	assert.Equal(t, StateOnTime, early.State)
	assert.False(t, early.Late)
	assert.True(t, early.Viewed)
	assert.Equal(t, []string{"https://files/early.pdf"}, early.Submission.Files)
	assert.Nil(t, early.Submission.Grade)

	late := a.StatusOf("c1", "late")
	assert.Equal(t, StateGraded, late.State)
	assert.True(t, late.Late)
	assert.False(t, late.Viewed)
	if assert.NotNil(t, late.Submission.Grade) {
		assert.Equal(t, 15, *late.Submission.Grade)
	}
	assert.Equal(t, "good, but late", late.Submission.Comment)

	zero := a.StatusOf("c1", "zero-no-sub")
	assert.Equal(t, StateGraded, zero.State, "a zero grade is still a grade")
	assert.False(t, zero.Late)

	pending := a.StatusOf("c1", "nobody")
	assert.Equal(t, StatePending, pending.State)
	assert.Equal(t, StatusPending, pending.Submission.Status)
	assert.True(t, pending.Submission.SubmittedAt.IsZero())

	roster := a.Roster("c1", []string{"nobody", "early"})
	if assert.Len(t, roster, 2) {
		assert.Equal(t, "nobody", roster[0].StudentID)
		assert.Equal(t, "early", roster[1].StudentID)
	}
}

func TestAssignment_IsClosed(t *testing.T) {
	due := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := Assignment{DueDate: due}.WithMaps()
	a.Submissions["s1"] = StatusSubmitted

	assert.False(t, a.IsClosed("s2", due), "deadline itself is still open")
	assert.True(t, a.IsClosed("s2", due.Add(time.Minute)))
	assert.False(t, a.IsClosed("s1", due.Add(time.Minute)), "re-submissions stay open")
}

func TestRubricHelpers(t *testing.T) {
	items := []RubricItem{{Criteria: "A", Points: 40}, {Criteria: "B", Points: 60}}
	assert.Equal(t, 100, RubricTotal(items))
	assert.True(t, IsFullRubric(items))
	assert.False(t, IsFullRubric(items[:1]))
	assert.Equal(t, 0, RubricTotal(nil))

	def := DefaultRubric(20)
	if assert.Len(t, def, 1) {
		assert.Equal(t, "General evaluation", def[0].Criteria)
		assert.Equal(t, 20, def[0].Points)
	}
}

func TestRedactFor(t *testing.T) {
	c := Course{
		ID:           "c1",
		InstructorID: "t1",
		Students:     []string{"s1", "s2"},
		Assignments: []Assignment{{
			ID:                "a1",
			Submissions:       map[string]SubmissionStatus{"s1": StatusSubmitted, "s2": StatusSubmitted},
			SubmissionContent: map[string][]string{"s1": {"f1"}, "s2": {"f2"}},
			SubmissionDate:    map[string]time.Time{"s1": time.Now(), "s2": time.Now()},
			Grades:            map[string]int{"s2": 9},
			TeacherComments:   map[string]string{"s2": "nice"},
			ViewedBy:          []string{"s1", "s2"},
		}},
	}

	got := redactFor(c, "s1")
	assert.Equal(t, []string{"s1"}, got.Students)
	a := got.Assignments[0]
	assert.Equal(t, map[string][]string{"s1": {"f1"}}, a.SubmissionContent)
	assert.Empty(t, a.Grades)
	assert.Empty(t, a.TeacherComments)
	assert.Equal(t, []string{"s1"}, a.ViewedBy)

	// the original is untouched
	assert.Len(t, c.Assignments[0].Grades, 1)
	assert.Len(t, c.Students, 2)
}
