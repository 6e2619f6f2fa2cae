package pgdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/course"
)

const courseColumns = `c.id, c.title, c.description, c.instructor_id, c.instructor, c.rubric, c.created_at, c.updated_at`

var courseOrderColumns = map[string]string{
	"title":      "c.title",
	"created_at": "c.created_at",
}

type (
	courseRow struct {
		ID           string         `db:"id"`
		Title        string         `db:"title"`
		Description  string         `db:"description"`
		InstructorID string         `db:"instructor_id"`
		Instructor   string         `db:"instructor"`
		Rubric       types.JSONText `db:"rubric"`
		CreatedAt    time.Time      `db:"created_at"`
		UpdatedAt    null.Time      `db:"updated_at"`
	}

	memberRow struct {
		ParentID  string `db:"parent_id"`
		StudentID string `db:"student_id"`
	}

	assignmentRow struct {
		ID          string         `db:"id"`
		CourseID    string         `db:"course_id"`
		Title       string         `db:"title"`
		Description string         `db:"description"`
		DueDate     time.Time      `db:"due_date"`
		MaxGrade    int            `db:"max_grade"`
		Rubric      types.JSONText `db:"rubric"`
		CreatedAt   time.Time      `db:"created_at"`
	}

	submissionRow struct {
		AssignmentID string         `db:"assignment_id"`
		StudentID    string         `db:"student_id"`
		Status       null.String    `db:"status"`
		Files        pq.StringArray `db:"files"`
		SubmittedAt  null.Time      `db:"submitted_at"`
		Grade        null.Int       `db:"grade"`
		Comment      null.String    `db:"comment"`
	}

	materialRow struct {
		ID        string    `db:"id"`
		CourseID  string    `db:"course_id"`
		Title     string    `db:"title"`
		Type      string    `db:"type"`
		URL       string    `db:"url"`
		Size      int64     `db:"size"`
		CreatedAt time.Time `db:"created_at"`
	}

	recordingRow struct {
		ID        string    `db:"id"`
		CourseID  string    `db:"course_id"`
		Title     string    `db:"title"`
		URL       string    `db:"url"`
		Duration  string    `db:"duration"`
		Size      int64     `db:"size"`
		CreatedAt time.Time `db:"created_at"`
	}
)

func rubricJSON(items []course.RubricItem) (types.JSONText, error) {
	if items == nil {
		items = []course.RubricItem{}
	}
	b, err := json.Marshal(items)
	return types.JSONText(b), err
}

func rubricItems(j types.JSONText) ([]course.RubricItem, error) {
	var items []course.RubricItem
	if len(j) == 0 {
		return items, nil
	}
	err := j.Unmarshal(&items)
	if len(items) == 0 {
		items = nil
	}
	return items, err
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	rubric, err := rubricJSON(c.Rubric)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "encoding rubric")
	}

	ex := executor(ctx, repo.db)
	q := `INSERT INTO course (id, title, description, instructor_id, instructor, rubric, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err = ex.ExecContext(ctx, q, c.ID, c.Title, c.Description, c.InstructorID, c.Instructor, rubric,
		c.CreatedAt.UTC(), nullTime(c.UpdatedAt)); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	if len(c.Students) > 0 {
		if err = repo.AddStudents(ctx, c.ID, c.Students...); err != nil {
			return course.Course{}, err
		}
	}
	for _, a := range c.Assignments {
		if err = repo.AppendAssignment(ctx, c.ID, a); err != nil {
			return course.Course{}, err
		}
	}
	for _, m := range c.Materials {
		if err = repo.AppendMaterial(ctx, c.ID, m); err != nil {
			return course.Course{}, err
		}
	}
	for _, r := range c.Recordings {
		if err = repo.AppendRecording(ctx, c.ID, r); err != nil {
			return course.Course{}, err
		}
	}
	return c, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	ex := executor(ctx, repo.db)
	var row courseRow
	if err := sqlx.GetContext(ctx, ex, &row, `SELECT `+courseColumns+` FROM course c WHERE c.id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "finding course")
	}
	courses, err := repo.hydrate(ctx, ex, []courseRow{row})
	if err != nil {
		return course.Course{}, err
	}
	return courses[0], nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	const isStudent = "EXISTS (SELECT 1 FROM course_student cs WHERE cs.course_id = c.id AND cs.student_id = ?)"

	var w where
	if filter != nil {
		if filter.Search != "" {
			pattern := likePattern(filter.Search)
			w.add("c.title ILIKE ? OR c.description ILIKE ?", pattern, pattern)
		}
		if filter.InstructorID != "" {
			w.add("c.instructor_id = ?", filter.InstructorID)
		}
		if filter.StudentID != "" {
			w.add(isStudent, filter.StudentID)
		}
		if filter.MemberID != "" {
			w.add("c.instructor_id = ? OR "+isStudent, filter.MemberID, filter.MemberID)
		}
	}

	ex := executor(ctx, repo.db)
	q := `SELECT ` + courseColumns + ` FROM course c` + w.String() +
		orderClause(ordering, courseOrderColumns, core.DBOrdering{Field: "created_at"})

	var rows []courseRow
	if err := sqlx.SelectContext(ctx, ex, &rows, ex.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return repo.hydrate(ctx, ex, rows)
}

// hydrate loads the roster, assignments, submissions, views, materials and recordings
// of every course in rows with one query per table.
func (repo *courseRepository) hydrate(ctx context.Context, ex sqlx.ExtContext, rows []courseRow) ([]course.Course, error) {
	courses := make([]course.Course, 0, len(rows))
	if len(rows) == 0 {
		return courses, nil
	}

	ids := make([]string, 0, len(rows))
	index := make(map[string]int, len(rows))
	for i, r := range rows {
		rubric, err := rubricItems(r.Rubric)
		if err != nil {
			return nil, errors.Wrap(err, "decoding course rubric")
		}
		courses = append(courses, course.Course{
			ID:           r.ID,
			Title:        r.Title,
			Description:  r.Description,
			InstructorID: r.InstructorID,
			Instructor:   r.Instructor,
			Students:     []string{},
			Assignments:  []course.Assignment{},
			Materials:    []course.Material{},
			Recordings:   []course.Recording{},
			Rubric:       rubric,
			CreatedAt:    r.CreatedAt.UTC(),
			UpdatedAt:    utc(r.UpdatedAt),
		})
		ids = append(ids, r.ID)
		index[r.ID] = i
	}
	courseIDs := pq.Array(ids)

	var students []memberRow
	q := `SELECT course_id AS parent_id, student_id FROM course_student WHERE course_id = ANY($1) ORDER BY seq`
	if err := sqlx.SelectContext(ctx, ex, &students, q, courseIDs); err != nil {
		return nil, errors.Wrap(err, "loading rosters")
	}
	for _, s := range students {
		c := &courses[index[s.ParentID]]
		c.Students = append(c.Students, s.StudentID)
	}

	var assignments []assignmentRow
	q = `SELECT id, course_id, title, description, due_date, max_grade, rubric, created_at
		FROM assignment WHERE course_id = ANY($1) ORDER BY seq`
	if err := sqlx.SelectContext(ctx, ex, &assignments, q, courseIDs); err != nil {
		return nil, errors.Wrap(err, "loading assignments")
	}
	if len(assignments) > 0 {
		if err := repo.hydrateAssignments(ctx, ex, courses, index, assignments); err != nil {
			return nil, err
		}
	}

	var materials []materialRow
	q = `SELECT id, course_id, title, type, url, size, created_at FROM material WHERE course_id = ANY($1) ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, ex, &materials, q, courseIDs); err != nil {
		return nil, errors.Wrap(err, "loading materials")
	}
	for _, m := range materials {
		c := &courses[index[m.CourseID]]
		c.Materials = append(c.Materials, course.Material{
			ID: m.ID, Title: m.Title, Type: m.Type, URL: m.URL, Size: m.Size, CreatedAt: m.CreatedAt.UTC(),
		})
	}

	var recordings []recordingRow
	q = `SELECT id, course_id, title, url, duration, size, created_at FROM recording WHERE course_id = ANY($1) ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, ex, &recordings, q, courseIDs); err != nil {
		return nil, errors.Wrap(err, "loading recordings")
	}
	for _, r := range recordings {
		c := &courses[index[r.CourseID]]
		c.Recordings = append(c.Recordings, course.Recording{
			ID: r.ID, Title: r.Title, URL: r.URL, Duration: r.Duration, Size: r.Size, CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return courses, nil
}

func (repo *courseRepository) hydrateAssignments(
	ctx context.Context,
	ex sqlx.ExtContext,
	courses []course.Course,
	index map[string]int,
	rows []assignmentRow,
) error {
	ids := make([]string, 0, len(rows))
	byID := make(map[string]*course.Assignment, len(rows))
	assignments := make([]course.Assignment, len(rows))
	for i, r := range rows {
		rubric, err := rubricItems(r.Rubric)
		if err != nil {
			return errors.Wrap(err, "decoding assignment rubric")
		}
		assignments[i] = course.Assignment{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			DueDate:     r.DueDate.UTC(),
			MaxGrade:    r.MaxGrade,
			Rubric:      rubric,
			CreatedAt:   r.CreatedAt.UTC(),
		}.WithMaps()
		byID[r.ID] = &assignments[i]
		ids = append(ids, r.ID)
	}

	var subs []submissionRow
	q := `SELECT assignment_id, student_id, status, files, submitted_at, grade, comment
		FROM submission WHERE assignment_id = ANY($1)`
	if err := sqlx.SelectContext(ctx, ex, &subs, q, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "loading submissions")
	}
	for _, s := range subs {
		a := byID[s.AssignmentID]
		if s.Status.Valid {
			a.Submissions[s.StudentID] = course.SubmissionStatus(s.Status.String)
			a.SubmissionContent[s.StudentID] = append([]string{}, s.Files...)
			a.SubmissionDate[s.StudentID] = utc(s.SubmittedAt)
		}
		if s.Grade.Valid {
			a.Grades[s.StudentID] = s.Grade.Int
		}
		if s.Comment.Valid {
			a.TeacherComments[s.StudentID] = s.Comment.String
		}
	}

	var views []memberRow
	q = `SELECT assignment_id AS parent_id, student_id FROM assignment_view WHERE assignment_id = ANY($1) ORDER BY seq`
	if err := sqlx.SelectContext(ctx, ex, &views, q, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "loading assignment views")
	}
	for _, v := range views {
		a := byID[v.ParentID]
		a.ViewedBy = append(a.ViewedBy, v.StudentID)
	}

	for i, r := range rows {
		c := &courses[index[r.CourseID]]
		c.Assignments = append(c.Assignments, assignments[i])
	}
	return nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	rubric, err := rubricJSON(c.Rubric)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "encoding rubric")
	}

	q := `UPDATE course SET title = $2, description = $3, rubric = $4, updated_at = $5 WHERE id = $1`
	res, err := executor(ctx, repo.db).ExecContext(ctx, q, c.ID, c.Title, c.Description, rubric, nullTime(c.UpdatedAt))
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if err = mustAffect(res, course.ErrNotFound); err != nil {
		return course.Course{}, err
	}
	return repo.GetCourse(ctx, c.ID)
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	res, err := executor(ctx, repo.db).ExecContext(ctx, `DELETE FROM course WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return mustAffect(res, course.ErrNotFound)
}

func (repo *courseRepository) checkCourse(ctx context.Context, ex sqlx.ExtContext, id string) error {
	var exists bool
	if err := sqlx.GetContext(ctx, ex, &exists, `SELECT EXISTS (SELECT 1 FROM course WHERE id = $1)`, id); err != nil {
		return errors.Wrap(err, "checking course")
	}
	if !exists {
		return course.ErrNotFound
	}
	return nil
}

// checkAssignment tells a missing course apart from a missing assignment.
func (repo *courseRepository) checkAssignment(ctx context.Context, ex sqlx.ExtContext, id, assignmentID string) error {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM assignment WHERE id = $1 AND course_id = $2)`
	if err := sqlx.GetContext(ctx, ex, &exists, q, assignmentID, id); err != nil {
		return errors.Wrap(err, "checking assignment")
	}
	if exists {
		return nil
	}
	if err := repo.checkCourse(ctx, ex, id); err != nil {
		return err
	}
	return course.ErrAssignmentNotFound
}

func (repo *courseRepository) AddStudents(ctx context.Context, id string, studentIDs ...string) error {
	ex := executor(ctx, repo.db)
	if err := repo.checkCourse(ctx, ex, id); err != nil {
		return err
	}
	if len(studentIDs) == 0 {
		return nil
	}
	q := `INSERT INTO course_student (course_id, student_id)
		SELECT $1, sid FROM UNNEST($2::text[]) WITH ORDINALITY AS t(sid, n) ORDER BY n
		ON CONFLICT DO NOTHING`
	_, err := ex.ExecContext(ctx, q, id, pq.Array(studentIDs))
	return errors.Wrap(err, "adding students")
}

func (repo *courseRepository) RemoveStudent(ctx context.Context, id, studentID string) error {
	ex := executor(ctx, repo.db)
	if err := repo.checkCourse(ctx, ex, id); err != nil {
		return err
	}
	_, err := ex.ExecContext(ctx, `DELETE FROM course_student WHERE course_id = $1 AND student_id = $2`, id, studentID)
	return errors.Wrap(err, "removing student")
}

func (repo *courseRepository) trapFK(err error, msg string) error {
	if pqCode(err) == codeForeignKeyViolation {
		return course.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *courseRepository) AppendAssignment(ctx context.Context, id string, a course.Assignment) error {
	rubric, err := rubricJSON(a.Rubric)
	if err != nil {
		return errors.Wrap(err, "encoding rubric")
	}
	q := `INSERT INTO assignment (id, course_id, title, description, due_date, max_grade, rubric, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = executor(ctx, repo.db).ExecContext(ctx, q,
		a.ID, id, a.Title, a.Description, a.DueDate.UTC(), a.MaxGrade, rubric, a.CreatedAt.UTC())
	if err != nil {
		return repo.trapFK(err, "inserting assignment")
	}
	return nil
}

func (repo *courseRepository) AppendMaterial(ctx context.Context, id string, m course.Material) error {
	q := `INSERT INTO material (id, course_id, title, type, url, size, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := executor(ctx, repo.db).ExecContext(ctx, q, m.ID, id, m.Title, m.Type, m.URL, m.Size, m.CreatedAt.UTC())
	if err != nil {
		return repo.trapFK(err, "inserting material")
	}
	return nil
}

func (repo *courseRepository) AppendRecording(ctx context.Context, id string, r course.Recording) error {
	q := `INSERT INTO recording (id, course_id, title, url, duration, size, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := executor(ctx, repo.db).ExecContext(ctx, q, r.ID, id, r.Title, r.URL, r.Duration, r.Size, r.CreatedAt.UTC())
	if err != nil {
		return repo.trapFK(err, "inserting recording")
	}
	return nil
}

// RecordSubmission upserts the submission columns of the student's row. Grade and comment are left as they are.
func (repo *courseRepository) RecordSubmission(ctx context.Context, id, assignmentID string, sub course.Submission) error {
	ex := executor(ctx, repo.db)
	if err := repo.checkAssignment(ctx, ex, id, assignmentID); err != nil {
		return err
	}
	files := sub.Files
	if files == nil {
		files = []string{}
	}
	q := `INSERT INTO submission (assignment_id, student_id, status, files, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (assignment_id, student_id) DO UPDATE
		SET status = EXCLUDED.status, files = EXCLUDED.files, submitted_at = EXCLUDED.submitted_at`
	_, err := ex.ExecContext(ctx, q, assignmentID, sub.StudentID, string(sub.Status), pq.Array(files), sub.SubmittedAt.UTC())
	return errors.Wrap(err, "recording submission")
}

// SetGrades upserts grades and comments in one statement. A NULL column in the input keeps the stored value.
func (repo *courseRepository) SetGrades(ctx context.Context, id, assignmentID string, grades map[string]int, comments map[string]string) error {
	ex := executor(ctx, repo.db)
	if err := repo.checkAssignment(ctx, ex, id, assignmentID); err != nil {
		return err
	}

	var (
		sids  []string
		gs    []null.Int
		cs    []null.String
		index = make(map[string]int)
	)
	row := func(sid string) int {
		i, ok := index[sid]
		if !ok {
			i = len(sids)
			index[sid] = i
			sids = append(sids, sid)
			gs = append(gs, null.Int{})
			cs = append(cs, null.String{})
		}
		return i
	}
	for sid, g := range grades {
		gs[row(sid)] = null.IntFrom(g)
	}
	for sid, cm := range comments {
		cs[row(sid)] = null.StringFrom(cm)
	}
	if len(sids) == 0 {
		return nil
	}

	q := `INSERT INTO submission (assignment_id, student_id, grade, comment)
		SELECT $1, t.sid, t.grade, t.comment FROM UNNEST($2::text[], $3::int[], $4::text[]) AS t(sid, grade, comment)
		ON CONFLICT (assignment_id, student_id) DO UPDATE
		SET grade = COALESCE(EXCLUDED.grade, submission.grade), comment = COALESCE(EXCLUDED.comment, submission.comment)`
	_, err := ex.ExecContext(ctx, q, assignmentID, pq.Array(sids), pq.Array(gs), pq.Array(cs))
	return errors.Wrap(err, "saving grades")
}

func (repo *courseRepository) MarkViewed(ctx context.Context, id, assignmentID, studentID string) error {
	ex := executor(ctx, repo.db)
	if err := repo.checkAssignment(ctx, ex, id, assignmentID); err != nil {
		return err
	}
	q := `INSERT INTO assignment_view (assignment_id, student_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err := ex.ExecContext(ctx, q, assignmentID, studentID)
	return errors.Wrap(err, "marking assignment viewed")
}
