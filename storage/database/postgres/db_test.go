package pgdb

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/course"
	"github.com/danielortegac/qlase/core/notification"
	"github.com/danielortegac/qlase/core/user"
	"github.com/danielortegac/qlase/storage/database"
)

func TestOrderClause(t *testing.T) {
	cols := map[string]string{"title": "c.title", "created_at": "c.created_at"}
	tests := []struct {
		name     string
		ordering []core.DBOrdering
		want     string
	}{
		{name: "fallback", want: " ORDER BY c.created_at DESC"},
		{name: "known", ordering: []core.DBOrdering{{Field: "title", Ascending: true}}, want: " ORDER BY c.title ASC"},
		{
			name:     "unknown fields are dropped",
			ordering: []core.DBOrdering{{Field: "title; DROP TABLE course"}, {Field: "title"}},
			want:     " ORDER BY c.title DESC",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderClause(tt.ordering, cols, core.DBOrdering{Field: "created_at"}))
		})
	}
}

func TestWhere(t *testing.T) {
	var w where
	assert.Equal(t, "", w.String())

	w.add("a = ? OR b = ?", 1, 2)
	w.add("c = ?", 3)
	assert.Equal(t, " WHERE (a = ? OR b = ?) AND (c = ?)", w.String())
	assert.Equal(t, []interface{}{1, 2, 3}, w.args)
	assert.Equal(t, `%50\%\_off%`, likePattern("50%_off"))
}

// openTestDB connects to TEST_POSTGRES_DSN, migrates it and empties every table.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db.DB))
	require.NoError(t, Truncate(context.Background(), db))
	return db
}

func TestTransactor(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)
	courses := NewCourseRepository(db)
	tx := NewTransactor(db)

	usr, err := users.CreateUser(ctx, user.User{Name: "Teacher", Email: "t@example.com", Status: user.StatusActive, CreatedAt: time.Now()})
	require.NoError(t, err)
	_, err = courses.CreateCourse(ctx, course.Course{ID: "c1", Title: "Course", InstructorID: usr.ID, CreatedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, courses.AppendAssignment(ctx, "c1", course.Assignment{ID: "a1", Title: "A", DueDate: time.Now(), MaxGrade: 10}))

	boom := errors.New("boom")
	sub := course.Submission{StudentID: "s1", Status: course.StatusSubmitted, Files: []string{"f"}, SubmittedAt: time.Now()}

	err = tx.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, courses.RecordSubmission(ctx, "c1", "a1", sub))
		require.NoError(t, users.IncrementStorage(ctx, usr.ID, 100))
		return boom
	})
	assert.Equal(t, boom, err)

	c, err := courses.GetCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, c.Assignments[0].Submissions)
	usr, err = users.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Zero(t, usr.StorageUsed)

	err = tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := courses.RecordSubmission(ctx, "c1", "a1", sub); err != nil {
			return err
		}
		return users.IncrementStorage(ctx, usr.ID, 100)
	})
	require.NoError(t, err)

	c, err = courses.GetCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"f"}, c.Assignments[0].SubmissionContent["s1"])
	usr, err = users.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(100), usr.StorageUsed)
}

func TestCourseRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	courses := NewCourseRepository(db)

	_, err := courses.CreateCourse(ctx, course.Course{ID: "c1", Title: "Course", InstructorID: "i1", CreatedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, courses.AppendAssignment(ctx, "c1", course.Assignment{ID: "a1", Title: "A", DueDate: time.Now(), MaxGrade: 10}))
	require.NoError(t, courses.AddStudents(ctx, "c1", "s1", "s2", "s1"))

	require.NoError(t, courses.RecordSubmission(ctx, "c1", "a1", course.Submission{
		StudentID: "s1", Status: course.StatusSubmitted, Files: []string{"f1"}, SubmittedAt: time.Now(),
	}))
	require.NoError(t, courses.SetGrades(ctx, "c1", "a1", map[string]int{"s1": 1, "s2": 2}, map[string]string{"s1": "one"}))
	require.NoError(t, courses.SetGrades(ctx, "c1", "a1", map[string]int{"s2": 5}, nil))
	require.NoError(t, courses.RecordSubmission(ctx, "c1", "a1", course.Submission{
		StudentID: "s1", Status: course.StatusSubmitted, Files: []string{"f2"}, SubmittedAt: time.Now(),
	}))
	require.NoError(t, courses.MarkViewed(ctx, "c1", "a1", "s2"))
	require.NoError(t, courses.MarkViewed(ctx, "c1", "a1", "s2"))

	c, err := courses.GetCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, c.Students)
	a := c.Assignments[0]
	assert.Equal(t, map[string]int{"s1": 1, "s2": 5}, a.Grades, "re-submitting keeps the grade")
	assert.Equal(t, map[string]string{"s1": "one"}, a.TeacherComments)
	assert.Equal(t, []string{"f2"}, a.SubmissionContent["s1"])
	assert.NotContains(t, a.Submissions, "s2")
	assert.Equal(t, []string{"s2"}, a.ViewedBy)

	assert.Equal(t, course.ErrAssignmentNotFound, courses.SetGrades(ctx, "c1", "nope", nil, nil))
	assert.Equal(t, course.ErrNotFound, courses.MarkViewed(ctx, "nope", "a1", "s1"))

	found, err := courses.QueryCourses(ctx, &course.QueryFilter{MemberID: "s2"}, nil)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	require.NoError(t, courses.DeleteCourse(ctx, "c1"))
	_, err = courses.GetCourse(ctx, "c1")
	assert.Equal(t, course.ErrNotFound, err)
}

func TestUserRepository_counters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)

	usr, err := users.CreateUser(ctx, user.User{Email: "u@example.com", AICredits: 2, CreatedAt: time.Now()})
	require.NoError(t, err)
	_, err = users.CreateUser(ctx, user.User{Email: "u@example.com", CreatedAt: time.Now()})
	assert.Equal(t, user.ErrEmailExists, err)

	ok, err := users.DecrementCredits(ctx, usr.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = users.DecrementCredits(ctx, usr.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = users.DecrementCredits(ctx, "missing", 1)
	assert.Equal(t, user.ErrNotFound, err)

	require.NoError(t, users.AddOwnedCourse(ctx, usr.ID, "c1"))
	require.NoError(t, users.AddOwnedCourse(ctx, usr.ID, "c1"))
	usr, err = users.GetUser(ctx, user.GetFilter{Email: "u@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, usr.OwnedCourseIDs)

	require.NoError(t, users.IncrementStorage(ctx, usr.ID, math.MaxInt64-1))
	assert.Equal(t, user.ErrStorageOverflow, users.IncrementStorage(ctx, usr.ID, 2))
	assert.Equal(t, user.ErrNotFound, users.IncrementStorage(ctx, "00000000-0000-0000-0000-000000000000", 1))
	usr, err = users.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64-1), usr.StorageUsed)
}

func TestNotificationRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewNotificationRepository(db)
	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateNotifications(ctx))
	require.NoError(t, repo.CreateNotifications(ctx,
		notification.Notification{ID: "n1", UserID: "u1", Title: "old", Type: notification.TypeSystem, CreatedAt: start},
		notification.Notification{ID: "n2", UserID: "u1", Title: "new", Type: notification.TypeSystem, CreatedAt: start.Add(time.Hour)},
	))

	ns, err := repo.QueryNotifications(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ns, 2)
	assert.Equal(t, "new", ns[0].Title)

	require.NoError(t, repo.MarkRead(ctx, "n1"))
	n, err := repo.GetNotification(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, n.Read)
	assert.Equal(t, notification.ErrNotFound, repo.MarkRead(ctx, "missing"))
}
