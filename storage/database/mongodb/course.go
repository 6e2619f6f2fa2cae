package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/course"
)

var courseSortFields = map[string]string{
	"title":      "title",
	"created_at": "created_at",
}

type (
	// submissionDoc holds one student's work and grade. Each field is written on its own
	// so a re-submission never touches the grade and grading never touches the files.
	submissionDoc struct {
		Status      string    `bson:"status,omitempty"`
		Files       []string  `bson:"files,omitempty"`
		SubmittedAt time.Time `bson:"submitted_at,omitempty"`
		Grade       *int      `bson:"grade,omitempty"`
		Comment     *string   `bson:"comment,omitempty"`
	}

	assignmentDoc struct {
		ID          string                   `bson:"id"`
		Title       string                   `bson:"title"`
		Description string                   `bson:"description"`
		DueDate     time.Time                `bson:"due_date"`
		MaxGrade    int                      `bson:"max_grade"`
		Rubric      []course.RubricItem      `bson:"rubric"`
		Submissions map[string]submissionDoc `bson:"submissions"` // keyed by student ID
		ViewedBy    []string                 `bson:"viewed_by"`
		CreatedAt   time.Time                `bson:"created_at"`
	}

	materialDoc struct {
		ID        string    `bson:"id"`
		Title     string    `bson:"title"`
		Type      string    `bson:"type"`
		URL       string    `bson:"url"`
		Size      int64     `bson:"size"`
		CreatedAt time.Time `bson:"created_at"`
	}

	recordingDoc struct {
		ID        string    `bson:"id"`
		Title     string    `bson:"title"`
		URL       string    `bson:"url"`
		Duration  string    `bson:"duration"`
		Size      int64     `bson:"size"`
		CreatedAt time.Time `bson:"created_at"`
	}

	courseDoc struct {
		ID           string              `bson:"_id"`
		Title        string              `bson:"title"`
		Description  string              `bson:"description"`
		InstructorID string              `bson:"instructor_id"`
		Instructor   string              `bson:"instructor"`
		Students     []string            `bson:"students"`
		Assignments  []assignmentDoc     `bson:"assignments"`
		Materials    []materialDoc       `bson:"materials"`
		Recordings   []recordingDoc      `bson:"recordings"`
		Rubric       []course.RubricItem `bson:"rubric"`
		CreatedAt    time.Time           `bson:"created_at"`
		UpdatedAt    time.Time           `bson:"updated_at,omitempty"`
	}
)

func newAssignmentDoc(a course.Assignment) assignmentDoc {
	d := assignmentDoc{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		DueDate:     a.DueDate.UTC(),
		MaxGrade:    a.MaxGrade,
		Rubric:      a.Rubric,
		Submissions: make(map[string]submissionDoc),
		ViewedBy:    append([]string{}, a.ViewedBy...),
		CreatedAt:   a.CreatedAt.UTC(),
	}
	for sid, status := range a.Submissions {
		sub := d.Submissions[sid]
		sub.Status = string(status)
		sub.Files = a.SubmissionContent[sid]
		sub.SubmittedAt = a.SubmissionDate[sid].UTC()
		d.Submissions[sid] = sub
	}
	for sid, g := range a.Grades {
		g := g
		sub := d.Submissions[sid]
		sub.Grade = &g
		d.Submissions[sid] = sub
	}
	for sid, cm := range a.TeacherComments {
		cm := cm
		sub := d.Submissions[sid]
		sub.Comment = &cm
		d.Submissions[sid] = sub
	}
	return d
}

func (d assignmentDoc) assignment() course.Assignment {
	a := course.Assignment{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		DueDate:     utc(d.DueDate),
		MaxGrade:    d.MaxGrade,
		Rubric:      d.Rubric,
		ViewedBy:    d.ViewedBy,
		CreatedAt:   utc(d.CreatedAt),
	}.WithMaps()
	for sid, sub := range d.Submissions {
		if sub.Status != "" {
			a.Submissions[sid] = course.SubmissionStatus(sub.Status)
			a.SubmissionContent[sid] = append([]string{}, sub.Files...)
			a.SubmissionDate[sid] = utc(sub.SubmittedAt)
		}
		if sub.Grade != nil {
			a.Grades[sid] = *sub.Grade
		}
		if sub.Comment != nil {
			a.TeacherComments[sid] = *sub.Comment
		}
	}
	return a
}

func newCourseDoc(c course.Course) courseDoc {
	d := courseDoc{
		ID:           c.ID,
		Title:        c.Title,
		Description:  c.Description,
		InstructorID: c.InstructorID,
		Instructor:   c.Instructor,
		Students:     append([]string{}, c.Students...),
		Assignments:  make([]assignmentDoc, 0, len(c.Assignments)),
		Materials:    make([]materialDoc, 0, len(c.Materials)),
		Recordings:   make([]recordingDoc, 0, len(c.Recordings)),
		Rubric:       c.Rubric,
		CreatedAt:    c.CreatedAt.UTC(),
		UpdatedAt:    c.UpdatedAt.UTC(),
	}
	for _, a := range c.Assignments {
		d.Assignments = append(d.Assignments, newAssignmentDoc(a))
	}
	for _, m := range c.Materials {
		d.Materials = append(d.Materials, materialDoc(m))
	}
	for _, r := range c.Recordings {
		d.Recordings = append(d.Recordings, recordingDoc(r))
	}
	return d
}

func (d courseDoc) course() course.Course {
	c := course.Course{
		ID:           d.ID,
		Title:        d.Title,
		Description:  d.Description,
		InstructorID: d.InstructorID,
		Instructor:   d.Instructor,
		Students:     append([]string{}, d.Students...),
		Assignments:  make([]course.Assignment, 0, len(d.Assignments)),
		Materials:    make([]course.Material, 0, len(d.Materials)),
		Recordings:   make([]course.Recording, 0, len(d.Recordings)),
		Rubric:       d.Rubric,
		CreatedAt:    utc(d.CreatedAt),
		UpdatedAt:    utc(d.UpdatedAt),
	}
	for _, a := range d.Assignments {
		c.Assignments = append(c.Assignments, a.assignment())
	}
	for _, m := range d.Materials {
		m.CreatedAt = utc(m.CreatedAt)
		c.Materials = append(c.Materials, course.Material(m))
	}
	for _, r := range d.Recordings {
		r.CreatedAt = utc(r.CreatedAt)
		c.Recordings = append(c.Recordings, course.Recording(r))
	}
	return c
}

type courseRepository struct {
	col *mongo.Collection
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{col: db.col(colCourses)}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	if _, err := repo.col.InsertOne(ctx, newCourseDoc(c)); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var d courseDoc
	if err := repo.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "finding course")
	}
	return d.course(), nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	var and bson.A
	if filter != nil {
		if filter.Search != "" {
			re := contains(filter.Search)
			and = append(and, bson.M{"$or": bson.A{bson.M{"title": re}, bson.M{"description": re}}})
		}
		if filter.InstructorID != "" {
			and = append(and, bson.M{"instructor_id": filter.InstructorID})
		}
		if filter.StudentID != "" {
			and = append(and, bson.M{"students": filter.StudentID})
		}
		if filter.MemberID != "" {
			and = append(and, bson.M{"$or": bson.A{
				bson.M{"instructor_id": filter.MemberID},
				bson.M{"students": filter.MemberID},
			}})
		}
	}
	q := bson.M{}
	if len(and) > 0 {
		q["$and"] = and
	}

	opts := options.Find().SetSort(sortBy(ordering, courseSortFields, core.DBOrdering{Field: "created_at"}))
	cur, err := repo.col.Find(ctx, q, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	var docs []courseDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding courses")
	}
	courses := make([]course.Course, 0, len(docs))
	for _, d := range docs {
		courses = append(courses, d.course())
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	update := bson.M{"$set": bson.M{
		"title":       c.Title,
		"description": c.Description,
		"rubric":      c.Rubric,
		"updated_at":  c.UpdatedAt.UTC(),
	}}
	res, err := repo.col.UpdateOne(ctx, bson.M{"_id": c.ID}, update)
	if err = mustMatch(res, err, course.ErrNotFound, "updating course"); err != nil {
		return course.Course{}, err
	}
	return repo.GetCourse(ctx, c.ID)
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	res, err := repo.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if res.DeletedCount == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo *courseRepository) update(ctx context.Context, id string, update bson.M, msg string) error {
	res, err := repo.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	return mustMatch(res, err, course.ErrNotFound, msg)
}

func (repo *courseRepository) AddStudents(ctx context.Context, id string, studentIDs ...string) error {
	return repo.update(ctx, id, bson.M{"$addToSet": bson.M{"students": bson.M{"$each": studentIDs}}}, "adding students")
}

func (repo *courseRepository) RemoveStudent(ctx context.Context, id, studentID string) error {
	return repo.update(ctx, id, bson.M{"$pull": bson.M{"students": studentID}}, "removing student")
}

func (repo *courseRepository) AppendAssignment(ctx context.Context, id string, a course.Assignment) error {
	return repo.update(ctx, id, bson.M{"$push": bson.M{"assignments": newAssignmentDoc(a)}}, "appending assignment")
}

func (repo *courseRepository) AppendMaterial(ctx context.Context, id string, m course.Material) error {
	m.CreatedAt = m.CreatedAt.UTC()
	return repo.update(ctx, id, bson.M{"$push": bson.M{"materials": materialDoc(m)}}, "appending material")
}

func (repo *courseRepository) AppendRecording(ctx context.Context, id string, r course.Recording) error {
	r.CreatedAt = r.CreatedAt.UTC()
	return repo.update(ctx, id, bson.M{"$push": bson.M{"recordings": recordingDoc(r)}}, "appending recording")
}

// updateAssignment applies update to one embedded assignment through the positional operator.
func (repo *courseRepository) updateAssignment(ctx context.Context, id, assignmentID string, update bson.M, msg string) error {
	res, err := repo.col.UpdateOne(ctx, assignmentFilter(id, assignmentID), update)
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	return repo.missing(ctx, id)
}

func assignmentFilter(id, assignmentID string) bson.M {
	return bson.M{"_id": id, "assignments.id": assignmentID}
}

// missing tells a missing course apart from a missing assignment.
func (repo *courseRepository) missing(ctx context.Context, id string) error {
	found, err := exists(ctx, repo.col, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "checking course")
	}
	if !found {
		return course.ErrNotFound
	}
	return course.ErrAssignmentNotFound
}

func submissionPath(studentID, field string) string {
	return "assignments.$.submissions." + studentID + "." + field
}

func (repo *courseRepository) RecordSubmission(ctx context.Context, id, assignmentID string, sub course.Submission) error {
	files := sub.Files
	if files == nil {
		files = []string{}
	}
	set := bson.M{
		submissionPath(sub.StudentID, "status"):       string(sub.Status),
		submissionPath(sub.StudentID, "files"):        files,
		submissionPath(sub.StudentID, "submitted_at"): sub.SubmittedAt.UTC(),
	}
	return repo.updateAssignment(ctx, id, assignmentID, bson.M{"$set": set}, "recording submission")
}

func (repo *courseRepository) SetGrades(ctx context.Context, id, assignmentID string, grades map[string]int, comments map[string]string) error {
	set := bson.M{}
	for sid, g := range grades {
		set[submissionPath(sid, "grade")] = g
	}
	for sid, cm := range comments {
		set[submissionPath(sid, "comment")] = cm
	}
	if len(set) == 0 {
		found, err := exists(ctx, repo.col, assignmentFilter(id, assignmentID))
		if err != nil {
			return errors.Wrap(err, "checking assignment")
		}
		if found {
			return nil
		}
		return repo.missing(ctx, id)
	}
	return repo.updateAssignment(ctx, id, assignmentID, bson.M{"$set": set}, "saving grades")
}

func (repo *courseRepository) MarkViewed(ctx context.Context, id, assignmentID, studentID string) error {
	update := bson.M{"$addToSet": bson.M{"assignments.$.viewed_by": studentID}}
	return repo.updateAssignment(ctx, id, assignmentID, update, "marking assignment viewed")
}
