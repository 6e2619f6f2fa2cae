package testutil

import (
	"context"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/course"
	"github.com/danielortegac/qlase/core/notification"
	"github.com/danielortegac/qlase/core/publication"
	"github.com/danielortegac/qlase/core/user"
	"github.com/danielortegac/qlase/services/email"
	"github.com/danielortegac/qlase/services/logger"
	"github.com/danielortegac/qlase/services/metrics"
	"github.com/danielortegac/qlase/storage/database/dummy"
)

var ErrInjected = errors.New("injected failure")

// NewLogger returns a rollbar logger with reporting off. Output is discarded unless
// TEST_VERBOSE is set.
func NewLogger(conf *core.Config) core.Logger {
	var out io.Writer = io.Discard
	if os.Getenv("TEST_VERBOSE") != "" {
		out = os.Stderr
	}
	return logsvc.NewRollbarLogger(log.New(out, "TEST : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
}

// Env is a fully wired set of services over the in-memory store.
type Env struct {
	Conf    *core.Config
	DB      *dummydb.DB
	Logger  core.Logger
	Mail    *emailsvc.ConsoleServiceMock
	Metrics *metricsvc.PrometheusRecorder
	Rubrics *RubricStub

	UserRepo         user.Repository
	CourseRepo       course.Repository
	NotificationRepo *FailingNotificationRepository
	PublicationRepo  publication.Repository

	Users         user.Service
	Courses       course.Service
	Notifications notification.Dispatcher
	Publications  publication.Service
}

// NewEnv builds an Env. Each option may adjust the test config before the services are built.
func NewEnv(t *testing.T, opts ...func(conf *core.Config)) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	for _, opt := range opts {
		opt(conf)
	}
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}

	env := &Env{
		Conf:             conf,
		DB:               db,
		Logger:           NewLogger(conf),
		Metrics:          metricsvc.NewPrometheusRecorder(),
		Rubrics:          &RubricStub{},
		UserRepo:         dummydb.NewUserRepository(db),
		CourseRepo:       dummydb.NewCourseRepository(db),
		NotificationRepo: &FailingNotificationRepository{Repository: dummydb.NewNotificationRepository(db)},
		PublicationRepo:  dummydb.NewPublicationRepository(db),
	}
	env.Mail = emailsvc.NewConsoleServiceMock(conf, env.Logger)
	tx := db.Transactor()

	env.Users = user.NewService(env.UserRepo, conf, env.Logger)
	env.Notifications = notification.NewDispatcher(env.NotificationRepo, env.Users, env.Mail, conf, env.Logger, env.Metrics)
	env.Courses = course.NewService(env.CourseRepo, env.Users, env.Notifications, env.Rubrics, tx, conf, env.Logger, env.Metrics)
	env.Publications = publication.NewService(env.PublicationRepo, env.Users, tx, env.Metrics)
	return env
}

// Reload returns the stored version of usr.
func (env *Env) Reload(t *testing.T, usr user.User) user.User {
	t.Helper()
	u, err := env.Users.GetByID(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("Reload(%s): %v", usr.ID, err)
	}
	return u
}

// Assignment returns the stored version of the assignment, bypassing authorization.
func (env *Env) Assignment(t *testing.T, courseID, assignmentID string) course.Assignment {
	t.Helper()
	c, err := env.CourseRepo.GetCourse(context.Background(), courseID)
	if err != nil {
		t.Fatalf("GetCourse(%s): %v", courseID, err)
	}
	a, ok := c.Assignment(assignmentID)
	if !ok {
		t.Fatalf("assignment %s not found", assignmentID)
	}
	return a.WithMaps()
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	roles []string,
	status string,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:            name,
		Email:           email,
		Roles:           roles,
		Status:          status,
		AICredits:       10,
		LastCreditReset: tstamp,
		OwnedCourseIDs:  []string{},
		CreatedAt:       tstamp,
		UpdatedAt:       tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateTeacher(t *testing.T, repo user.Repository, name, email string) user.User {
	return CreateUser(t, repo, name, email, "", []string{user.RoleTeacher}, user.StatusActive)
}

func CreateStudent(t *testing.T, repo user.Repository, name, email string) user.User {
	return CreateUser(t, repo, name, email, "", []string{user.RoleStudent}, user.StatusActive)
}

// CreateCourse stores a course taught by instructor with the given students enrolled.
func CreateCourse(t *testing.T, repo course.Repository, title string, instructor user.User, students ...user.User) course.Course {
	t.Helper()
	now := time.Now().UTC()
	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	c, err := repo.CreateCourse(context.Background(), course.Course{
		ID:           "course-" + title,
		Title:        title,
		InstructorID: instructor.ID,
		Instructor:   instructor.Name,
		Students:     ids,
		Assignments:  []course.Assignment{},
		Materials:    []course.Material{},
		Recordings:   []course.Recording{},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("createCourse() failed: %v", err)
	}
	return c
}

func CreateAssignment(t *testing.T, repo course.Repository, courseID, title string, dueDate time.Time, maxGrade int) course.Assignment {
	t.Helper()
	a := course.Assignment{
		ID:        "assignment-" + title,
		Title:     title,
		DueDate:   dueDate.UTC(),
		MaxGrade:  maxGrade,
		Rubric:    course.DefaultRubric(maxGrade),
		CreatedAt: time.Now().UTC(),
	}.WithMaps()
	if err := repo.AppendAssignment(context.Background(), courseID, a); err != nil {
		t.Fatalf("createAssignment() failed: %v", err)
	}
	return a
}

// FailingNotificationRepository fails every write while Fail is set.
type FailingNotificationRepository struct {
	notification.Repository
	Fail atomic.Bool
}

func (repo *FailingNotificationRepository) CreateNotifications(ctx context.Context, ns ...notification.Notification) error {
	if repo.Fail.Load() {
		return ErrInjected
	}
	return repo.Repository.CreateNotifications(ctx, ns...)
}

// RubricStub is a programmable course.RubricGenerator.
type RubricStub struct {
	mu    sync.Mutex
	Items []course.RubricItem
	Err   error
	calls int
}

var _ course.RubricGenerator = (*RubricStub)(nil)

func (s *RubricStub) GenerateRubric(_ context.Context, _, _ string, _ int) ([]course.RubricItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]course.RubricItem(nil), s.Items...), nil
}

func (s *RubricStub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
