package course

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/notification"
	"github.com/danielortegac/qlase/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("course not found")
	ErrAssignmentNotFound = core.NewNotFoundError("assignment not found")
	ErrStudentNotFound    = core.NewNotFoundError("student not enrolled in this course")
	ErrDeadlinePassed     = errors.New("the deadline for this assignment has passed")
	ErrNoCredits          = errors.New("not enough AI credits")
	ErrEmptyGradeSheet    = errors.New("no grades to save")

	enrollConcurrency = 4
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		// UpdateCourse saves the course details (title, description, rubric) only.
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error
		// AddStudents adds the IDs to the roster with set semantics.
		AddStudents(ctx context.Context, id string, studentIDs ...string) error
		RemoveStudent(ctx context.Context, id, studentID string) error
		AppendAssignment(ctx context.Context, id string, a Assignment) error
		AppendMaterial(ctx context.Context, id string, m Material) error
		AppendRecording(ctx context.Context, id string, r Recording) error
		// RecordSubmission overwrites the student's status, files and date in one atomic write.
		RecordSubmission(ctx context.Context, id, assignmentID string, sub Submission) error
		// SetGrades upserts every given grade and comment. Other students are left untouched.
		SetGrades(ctx context.Context, id, assignmentID string, grades map[string]int, comments map[string]string) error
		// MarkViewed adds studentID to the assignment's viewers once.
		MarkViewed(ctx context.Context, id, assignmentID, studentID string) error
	}

	// UserService is the part of user.Service the course workflow needs.
	UserService interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		FindOrInvite(ctx context.Context, email string) (user.User, bool, error)
		ChargeStorage(ctx context.Context, ownerID string, byteDelta int64) error
		SpendCredits(ctx context.Context, id string, amount int) (bool, error)
		RefreshCredits(ctx context.Context, usr user.User) (user.User, error)
		AddOwnedCourse(ctx context.Context, id, courseID string) error
		RemoveOwnedCourse(ctx context.Context, id, courseID string) error
	}

	Notifier interface {
		Notify(ctx context.Context, userID string, d notification.Draft) error
		Broadcast(ctx context.Context, userIDs []string, d notification.Draft) error
	}

	// RubricGenerator drafts a rubric for an assignment. Its output is opaque text plus points.
	RubricGenerator interface {
		GenerateRubric(ctx context.Context, title, description string, maxPoints int) ([]RubricItem, error)
	}

	Service interface {
		Create(ctx context.Context, actor user.User, nc NewCourse) (Course, error)
		Get(ctx context.Context, actor user.User, id string) (Course, error)
		Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		UpdateDetails(ctx context.Context, actor user.User, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, actor user.User, id string) error
		EnrollStudents(ctx context.Context, actor user.User, id string, lines []string) (EnrollResult, error)
		RemoveStudent(ctx context.Context, actor user.User, id, studentID string) error
		AddMaterial(ctx context.Context, actor user.User, id string, nm NewMaterial) (Material, error)
		AddRecording(ctx context.Context, actor user.User, id string, nr NewRecording) (Recording, error)
		CreateAssignment(ctx context.Context, actor user.User, id string, na NewAssignment) (Assignment, error)
		GenerateRubric(ctx context.Context, actor user.User, gr GenerateRubric) ([]RubricItem, error)
		TrackView(ctx context.Context, actor user.User, id, assignmentID string) error
		Submit(ctx context.Context, actor user.User, id, assignmentID string, sa SubmitAssignment) (Submission, error)
		SaveGrades(ctx context.Context, actor user.User, id, assignmentID string, sheet GradeSheet) ([]StudentStatus, error)
		GradeStudent(ctx context.Context, actor user.User, id, assignmentID, studentID string, gs GradeStudent) (StudentStatus, error)
		AssignmentRoster(ctx context.Context, actor user.User, id, assignmentID string) ([]StudentStatus, error)
		MyStatus(ctx context.Context, actor user.User, id, assignmentID string) (StudentStatus, error)
	}

	service struct {
		repo     Repository
		users    UserService
		notifier Notifier
		rubrics  RubricGenerator
		tx       core.Transactor
		credits  core.CreditsConfig
		logger   core.Logger
		metrics  core.Recorder
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	users UserService,
	notifier Notifier,
	rubrics RubricGenerator,
	tx core.Transactor,
	conf *core.Config,
	logger core.Logger,
	metrics core.Recorder,
) Service {
	if tx == nil {
		tx = core.NoTx
	}
	if metrics == nil {
		metrics = core.NopRecorder
	}
	return &service{
		repo:     repo,
		users:    users,
		notifier: notifier,
		rubrics:  rubrics,
		tx:       tx,
		credits:  conf.Credits,
		logger:   logger,
		metrics:  metrics,
	}
}

// notify never fails the caller: the state change already happened.
func (svc *service) notify(ctx context.Context, userIDs []string, d notification.Draft) {
	if len(userIDs) == 0 {
		return
	}
	var err error
	if len(userIDs) == 1 {
		err = svc.notifier.Notify(ctx, userIDs[0], d)
	} else {
		err = svc.notifier.Broadcast(ctx, userIDs, d)
	}
	if err != nil {
		svc.logger.Warn("dropping "+d.Type+" notification", err, map[string]interface{}{"recipients": userIDs})
	}
}

func (svc *service) getCourse(ctx context.Context, id string) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return Course{}, ErrNotFound
		}
		return Course{}, errors.Wrap(err, "getting course")
	}
	return c, nil
}

func (svc *service) getManaged(ctx context.Context, actor user.User, id string) (Course, error) {
	c, err := svc.getCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !canManage(actor, c) {
		return Course{}, ErrNotInstructor
	}
	return c, nil
}

func (svc *service) getAssignment(ctx context.Context, id, assignmentID string) (Course, Assignment, error) {
	c, err := svc.getCourse(ctx, id)
	if err != nil {
		return Course{}, Assignment{}, err
	}
	a, ok := c.Assignment(assignmentID)
	if !ok {
		return Course{}, Assignment{}, ErrAssignmentNotFound
	}
	return c, a.WithMaps(), nil
}

func (svc *service) Create(ctx context.Context, actor user.User, nc NewCourse) (Course, error) {
	if !(actor.IsTeacher() || actor.IsAdmin()) {
		return Course{}, ErrCannotCreate
	}
	now := core.NowFunc()
	c, err := svc.repo.CreateCourse(ctx, Course{
		ID:           uuid.New().String(),
		Title:        nc.Title,
		Description:  nc.Description,
		InstructorID: actor.ID,
		Instructor:   actor.Name,
		Students:     []string{},
		Assignments:  []Assignment{},
		Materials:    []Material{},
		Recordings:   []Recording{},
		Rubric:       nc.Rubric,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	return c, errors.Wrap(err, "creating course")
}

func (svc *service) Get(ctx context.Context, actor user.User, id string) (Course, error) {
	c, err := svc.getCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !canView(actor, c) {
		return Course{}, ErrNotMember
	}
	if !canManage(actor, c) {
		c = redactFor(c, actor.ID)
	}
	return c, nil
}

func (svc *service) Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	manageAll := actor.Can(user.CapManageAnyCourse)
	if !manageAll {
		filter.MemberID = actor.ID
	}

	courses, err := svc.repo.QueryCourses(ctx, filter, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	if !manageAll {
		for i, c := range courses {
			if c.InstructorID != actor.ID {
				courses[i] = redactFor(c, actor.ID)
			}
		}
	}
	return courses, nil
}

func (svc *service) UpdateDetails(ctx context.Context, actor user.User, id string, uc UpdateCourse) (Course, error) {
	c, err := svc.getManaged(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}
	if uc.Title != "" {
		c.Title = uc.Title
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	if uc.Rubric != nil {
		c.Rubric = uc.Rubric
	}
	c.UpdatedAt = core.NowFunc()
	c, err = svc.repo.UpdateCourse(ctx, c)
	return c, errors.Wrap(err, "updating course")
}

// Delete removes the course document. Storage already charged stays charged and
// notifications pointing at the course are left in place.
func (svc *service) Delete(ctx context.Context, actor user.User, id string) error {
	if _, err := svc.getManaged(ctx, actor, id); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteCourse(ctx, id), "deleting course")
}

type enrollee struct {
	line    string // as given, trimmed
	email   string
	usr     user.User
	invited bool
	ignored bool
}

// EnrollStudents enrolls one student per line (`email[,anything]`). Unknown emails get an
// invited placeholder account. Students already on the roster are not notified again.
// Empty lines are skipped. Lines without an email, repeated emails and invalid ones are
// reported in EnrollResult.Ignored.
func (svc *service) EnrollStudents(ctx context.Context, actor user.User, id string, lines []string) (EnrollResult, error) {
	c, err := svc.getManaged(ctx, actor, id)
	if err != nil {
		return EnrollResult{}, err
	}

	seen := make(map[string]bool, len(lines))
	entries := make([]*enrollee, 0, len(lines))
	for _, line := range lines {
		line = core.CleanString(line)
		if line == "" {
			continue
		}
		email := core.CleanString(strings.SplitN(line, ",", 2)[0], true /* lower */)
		e := &enrollee{line: line, email: email, ignored: email == "" || seen[email]}
		seen[email] = true
		entries = append(entries, e)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrollConcurrency)
	for _, e := range entries {
		if e.ignored {
			continue
		}
		e := e
		g.Go(func() error {
			usr, invited, err := svc.users.FindOrInvite(gctx, e.email)
			if err != nil {
				if _, ok := errors.Cause(err).(*core.ValidationError); ok {
					e.ignored = true
					return nil
				}
				return errors.Wrap(err, "resolving "+e.email)
			}
			e.usr, e.invited = usr, invited
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return EnrollResult{}, err
	}

	result := EnrollResult{Enrolled: []string{}, Invited: []string{}, Ignored: []string{}}
	var ids, newIDs []string
	for _, e := range entries {
		if e.ignored || e.usr.ID == c.InstructorID {
			result.Ignored = append(result.Ignored, e.line)
			continue
		}
		ids = append(ids, e.usr.ID)
		result.Enrolled = append(result.Enrolled, e.usr.ID)
		if e.invited {
			result.Invited = append(result.Invited, e.email)
		}
		if !c.HasStudent(e.usr.ID) {
			newIDs = append(newIDs, e.usr.ID)
		}
	}
	if len(ids) == 0 {
		return result, nil
	}

	if err := svc.repo.AddStudents(ctx, c.ID, ids...); err != nil {
		return EnrollResult{}, errors.Wrap(err, "adding students")
	}
	for _, uid := range newIDs {
		if err := svc.users.AddOwnedCourse(ctx, uid, c.ID); err != nil {
			return EnrollResult{}, err
		}
	}

	svc.notify(ctx, newIDs, notification.Draft{
		Title:      "New course",
		Message:    fmt.Sprintf("You have been enrolled in %q. Welcome!", c.Title),
		Type:       notification.TypeInvite,
		ActionLink: c.ID,
	})
	return result, nil
}

// RemoveStudent takes the student off the roster. Their submissions and grades stay on
// the assignments.
func (svc *service) RemoveStudent(ctx context.Context, actor user.User, id, studentID string) error {
	c, err := svc.getManaged(ctx, actor, id)
	if err != nil {
		return err
	}
	if !c.HasStudent(studentID) {
		return ErrStudentNotFound
	}
	if err := svc.repo.RemoveStudent(ctx, c.ID, studentID); err != nil {
		return errors.Wrap(err, "removing student")
	}
	if err := svc.users.RemoveOwnedCourse(ctx, studentID, c.ID); err != nil && !core.IsNotFound(err) {
		return err
	}
	return nil
}

func (svc *service) AddMaterial(ctx context.Context, actor user.User, id string, nm NewMaterial) (Material, error) {
	c, err := svc.getManaged(ctx, actor, id)
	if err != nil {
		return Material{}, err
	}
	m := Material{
		ID:        uuid.New().String(),
		Title:     nm.Title,
		Type:      nm.Type,
		URL:       nm.URL,
		Size:      nm.Size,
		CreatedAt: core.NowFunc(),
	}
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.repo.AppendMaterial(ctx, c.ID, m); err != nil {
			return errors.Wrap(err, "appending material")
		}
		return svc.users.ChargeStorage(ctx, c.InstructorID, m.Size)
	})
	if err != nil {
		return Material{}, err
	}
	svc.metrics.StorageCharged(core.ChargeMaterial, m.Size)
	return m, nil
}

func (svc *service) AddRecording(ctx context.Context, actor user.User, id string, nr NewRecording) (Recording, error) {
	c, err := svc.getManaged(ctx, actor, id)
	if err != nil {
		return Recording{}, err
	}
	r := Recording{
		ID:        uuid.New().String(),
		Title:     nr.Title,
		URL:       nr.URL,
		Duration:  nr.Duration,
		Size:      nr.Size,
		CreatedAt: core.NowFunc(),
	}
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.repo.AppendRecording(ctx, c.ID, r); err != nil {
			return errors.Wrap(err, "appending recording")
		}
		return svc.users.ChargeStorage(ctx, c.InstructorID, r.Size)
	})
	if err != nil {
		return Recording{}, err
	}
	svc.metrics.StorageCharged(core.ChargeRecording, r.Size)
	return r, nil
}

func (svc *service) CreateAssignment(ctx context.Context, actor user.User, id string, na NewAssignment) (Assignment, error) {
	c, err := svc.getCourse(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if !isInstructor(actor, c) {
		return Assignment{}, ErrNotInstructor
	}
	if err := checkNewAssignment(&na); err != nil {
		return Assignment{}, err
	}

	rubric := na.Rubric
	if len(rubric) == 0 {
		rubric = DefaultRubric(na.MaxGrade)
	}
	a := Assignment{
		ID:          uuid.New().String(),
		Title:       na.Title,
		Description: na.Description,
		DueDate:     na.DueDate.UTC(),
		MaxGrade:    na.MaxGrade,
		Rubric:      rubric,
		CreatedAt:   core.NowFunc(),
	}.WithMaps()

	if err := svc.repo.AppendAssignment(ctx, c.ID, a); err != nil {
		return Assignment{}, errors.Wrap(err, "appending assignment")
	}

	svc.notify(ctx, c.Students, notification.Draft{
		Title:      "New assignment",
		Message:    fmt.Sprintf("A new assignment was published: %s", a.Title),
		Type:       notification.TypeDeadline,
		ActionLink: c.ID,
	})
	return a, nil
}

// checkNewAssignment holds the rules every caller must meet, whether or not the DTO went through Validate.
func checkNewAssignment(na *NewAssignment) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)

	var flds []core.FieldError
	if na.Title == "" {
		flds = append(flds, core.FieldError{Field: "title", Error: "this field is required"})
	}
	if na.DueDate.IsZero() {
		flds = append(flds, core.FieldError{Field: "due_date", Error: "this field is required"})
	}
	if na.MaxGrade <= 0 {
		flds = append(flds, core.FieldError{Field: "max_grade", Error: "max grade must be greater than 0"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// GenerateRubric drafts a rubric with the AI helper. Credits are only spent when the
// generator succeeds; on failure the default rubric is returned for free.
func (svc *service) GenerateRubric(ctx context.Context, actor user.User, gr GenerateRubric) ([]RubricItem, error) {
	if !(actor.IsTeacher() || actor.IsAdmin()) {
		return nil, ErrCannotCreate
	}
	usr, err := svc.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if usr, err = svc.users.RefreshCredits(ctx, usr); err != nil {
		return nil, err
	}
	cost := svc.credits.RubricCost
	if usr.AICredits < cost {
		return nil, core.NewValidationError(ErrNoCredits)
	}

	items, err := svc.rubrics.GenerateRubric(ctx, gr.Title, gr.Description, gr.MaxPoints)
	if err != nil {
		svc.logger.Warn("rubric generation failed, using default rubric", err, usr)
		return DefaultRubric(gr.MaxPoints), nil
	}

	ok, err := svc.users.SpendCredits(ctx, usr.ID, cost)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.NewValidationError(ErrNoCredits)
	}
	return items, nil
}

func (svc *service) TrackView(ctx context.Context, actor user.User, id, assignmentID string) error {
	c, a, err := svc.getAssignment(ctx, id, assignmentID)
	if err != nil {
		return err
	}
	if !c.HasStudent(actor.ID) {
		return ErrNotEnrolled
	}
	if a.WasViewedBy(actor.ID) {
		return nil
	}
	return errors.Wrap(svc.repo.MarkViewed(ctx, c.ID, a.ID, actor.ID), "marking assignment viewed")
}

// Submit records the student's files and charges their size to the course instructor.
// Both writes share a transaction; the instructor's notification is sent after commit.
func (svc *service) Submit(ctx context.Context, actor user.User, id, assignmentID string, sa SubmitAssignment) (Submission, error) {
	c, a, err := svc.getAssignment(ctx, id, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	if !c.HasStudent(actor.ID) {
		return Submission{}, ErrNotEnrolled
	}
	files := core.CleanStrings(sa.FileURLs)
	if len(files) == 0 {
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "file_urls", Error: "at least one file is required"})
	}
	if sa.TotalSize < 0 {
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "total_size", Error: "size cannot be negative"})
	}
	if sa.TotalSize > user.MaxStorageCharge {
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "total_size", Error: user.ErrChargeTooLarge.Error()})
	}

	now := core.NowFunc()
	if a.IsClosed(actor.ID, now) {
		return Submission{}, core.NewValidationError(ErrDeadlinePassed)
	}

	sub := Submission{
		CourseID:     c.ID,
		AssignmentID: a.ID,
		StudentID:    actor.ID,
		Status:       StatusSubmitted,
		Files:        files,
		SubmittedAt:  now,
	}
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.repo.RecordSubmission(ctx, c.ID, a.ID, sub); err != nil {
			return errors.Wrap(err, "recording submission")
		}
		return svc.users.ChargeStorage(ctx, c.InstructorID, sa.TotalSize)
	})
	if err != nil {
		return Submission{}, err
	}

	late := Classify(a.DueDate, now, false) == StateLate
	svc.metrics.SubmissionRecorded(late)
	svc.metrics.StorageCharged(core.ChargeSubmission, sa.TotalSize)

	svc.notify(ctx, []string{c.InstructorID}, notification.Draft{
		Title:      "New submission received",
		Message:    fmt.Sprintf("%s submitted their work for: %s", actor.Name, a.Title),
		Type:       notification.TypeGrade,
		ActionLink: c.ID,
	})

	if g, ok := a.Grades[actor.ID]; ok {
		sub.Grade = &g
	}
	sub.Comment = a.TeacherComments[actor.ID]
	return sub, nil
}

func validateGradeSheet(c Course, a Assignment, sheet GradeSheet) error {
	var flds []core.FieldError
	for sid, g := range sheet.Grades {
		switch {
		case !c.HasStudent(sid):
			flds = append(flds, core.FieldError{Field: "grades." + sid, Error: "student not enrolled in this course"})
		case g < 0 || g > a.MaxGrade:
			flds = append(flds, core.FieldError{Field: "grades." + sid, Error: fmt.Sprintf("grade must be between 0 and %d", a.MaxGrade)})
		}
	}
	for sid := range sheet.Comments {
		if !c.HasStudent(sid) {
			flds = append(flds, core.FieldError{Field: "comments." + sid, Error: "student not enrolled in this course"})
		}
	}
	if len(flds) > 0 {
		sort.Slice(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// SaveGrades upserts the given grades and comments. Students left out of the sheet keep
// their previous grade and comment. The whole sheet is rejected if any entry is invalid.
func (svc *service) SaveGrades(ctx context.Context, actor user.User, id, assignmentID string, sheet GradeSheet) ([]StudentStatus, error) {
	c, a, err := svc.getAssignment(ctx, id, assignmentID)
	if err != nil {
		return nil, err
	}
	if !isInstructor(actor, c) {
		return nil, ErrNotInstructor
	}
	if sheet.IsEmpty() {
		return nil, core.NewValidationError(ErrEmptyGradeSheet)
	}
	if err := validateGradeSheet(c, a, sheet); err != nil {
		return nil, err
	}

	if err := svc.repo.SetGrades(ctx, c.ID, a.ID, sheet.Grades, sheet.Comments); err != nil {
		return nil, errors.Wrap(err, "saving grades")
	}
	svc.metrics.GradesSaved(len(sheet.Grades))

	graded := make([]string, 0, len(sheet.Grades))
	for sid, g := range sheet.Grades {
		graded = append(graded, sid)
		a.Grades[sid] = g
	}
	for sid, cm := range sheet.Comments {
		a.TeacherComments[sid] = cm
	}
	sort.Strings(graded)
	svc.notify(ctx, graded, notification.Draft{
		Title:      "Assignment graded",
		Message:    fmt.Sprintf("Your work for %q in %q has been reviewed by your instructor.", a.Title, c.Title),
		Type:       notification.TypeGrade,
		ActionLink: c.ID,
	})
	return a.Roster(c.ID, c.Students), nil
}

func (svc *service) GradeStudent(ctx context.Context, actor user.User, id, assignmentID, studentID string, gs GradeStudent) (StudentStatus, error) {
	sheet := GradeSheet{
		Grades:   map[string]int{studentID: gs.Grade},
		Comments: map[string]string{},
	}
	if gs.Comment != "" {
		sheet.Comments[studentID] = gs.Comment
	}
	roster, err := svc.SaveGrades(ctx, actor, id, assignmentID, sheet)
	if err != nil {
		return StudentStatus{}, err
	}
	for _, st := range roster {
		if st.StudentID == studentID {
			return st, nil
		}
	}
	return StudentStatus{}, ErrStudentNotFound
}

func (svc *service) AssignmentRoster(ctx context.Context, actor user.User, id, assignmentID string) ([]StudentStatus, error) {
	c, a, err := svc.getAssignment(ctx, id, assignmentID)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, c) {
		return nil, ErrNotInstructor
	}
	return a.Roster(c.ID, c.Students), nil
}

func (svc *service) MyStatus(ctx context.Context, actor user.User, id, assignmentID string) (StudentStatus, error) {
	c, a, err := svc.getAssignment(ctx, id, assignmentID)
	if err != nil {
		return StudentStatus{}, err
	}
	if !c.HasStudent(actor.ID) {
		return StudentStatus{}, ErrNotEnrolled
	}
	return a.StatusOf(c.ID, actor.ID), nil
}
