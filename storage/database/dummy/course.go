package dummydb

import (
	"context"
	"strings"
	"time"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) t() *courseTable { return repo.db.course }

func cloneAssignment(a course.Assignment) course.Assignment {
	cp := a
	cp.Rubric = append([]course.RubricItem(nil), a.Rubric...)
	cp.Submissions = make(map[string]course.SubmissionStatus, len(a.Submissions))
	for k, v := range a.Submissions {
		cp.Submissions[k] = v
	}
	cp.SubmissionContent = make(map[string][]string, len(a.SubmissionContent))
	for k, v := range a.SubmissionContent {
		cp.SubmissionContent[k] = append([]string(nil), v...)
	}
	cp.SubmissionDate = make(map[string]time.Time, len(a.SubmissionDate))
	for k, v := range a.SubmissionDate {
		cp.SubmissionDate[k] = v
	}
	cp.Grades = make(map[string]int, len(a.Grades))
	for k, v := range a.Grades {
		cp.Grades[k] = v
	}
	cp.TeacherComments = make(map[string]string, len(a.TeacherComments))
	for k, v := range a.TeacherComments {
		cp.TeacherComments[k] = v
	}
	cp.ViewedBy = append([]string{}, a.ViewedBy...)
	return cp
}

func cloneCourse(c course.Course) course.Course {
	cp := c
	cp.Students = append([]string{}, c.Students...)
	cp.Assignments = make([]course.Assignment, 0, len(c.Assignments))
	for _, a := range c.Assignments {
		cp.Assignments = append(cp.Assignments, cloneAssignment(a))
	}
	cp.Materials = append([]course.Material{}, c.Materials...)
	cp.Recordings = append([]course.Recording{}, c.Recordings...)
	cp.Rubric = append([]course.RubricItem(nil), c.Rubric...)
	return cp
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	tbl := repo.t()
	tbl.Lock()
	defer tbl.Unlock()

	cp := cloneCourse(c)
	tbl.table[c.ID] = &cp
	return cloneCourse(c), nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	tbl := repo.t()
	tbl.RLock()
	defer tbl.RUnlock()

	if c, ok := tbl.table[id]; ok {
		return cloneCourse(*c), nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	tbl := repo.t()
	tbl.RLock()
	defer tbl.RUnlock()

	var courses []course.Course
	for _, c := range tbl.table {
		if filter.Match(*c) {
			courses = append(courses, cloneCourse(*c))
		}
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	orderBy(courses, ordering, map[string]func(i, j int) int{
		"title":      func(i, j int) int { return strings.Compare(courses[i].Title, courses[j].Title) },
		"created_at": func(i, j int) int { return compareTimes(courses[i].CreatedAt, courses[j].CreatedAt) },
	})
	return courses, nil
}

// update applies fn to the stored course under the write lock.
func (repo *courseRepository) update(id string, fn func(c *course.Course) error) error {
	tbl := repo.t()
	tbl.Lock()
	defer tbl.Unlock()

	c, ok := tbl.table[id]
	if !ok {
		return course.ErrNotFound
	}
	return fn(c)
}

// updateAssignment applies fn to one assignment of the stored course under the write lock.
func (repo *courseRepository) updateAssignment(id, assignmentID string, fn func(a *course.Assignment)) error {
	return repo.update(id, func(c *course.Course) error {
		for i := range c.Assignments {
			if c.Assignments[i].ID == assignmentID {
				c.Assignments[i] = c.Assignments[i].WithMaps()
				fn(&c.Assignments[i])
				return nil
			}
		}
		return course.ErrAssignmentNotFound
	})
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	var updated course.Course
	err := repo.update(c.ID, func(orig *course.Course) error {
		orig.Title = c.Title
		orig.Description = c.Description
		orig.Rubric = append([]course.RubricItem(nil), c.Rubric...)
		orig.UpdatedAt = c.UpdatedAt
		updated = cloneCourse(*orig)
		return nil
	})
	return updated, err
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	tbl := repo.t()
	tbl.Lock()
	defer tbl.Unlock()

	if _, ok := tbl.table[id]; !ok {
		return course.ErrNotFound
	}
	delete(tbl.table, id)
	return nil
}

func (repo *courseRepository) AddStudents(ctx context.Context, id string, studentIDs ...string) error {
	return repo.update(id, func(c *course.Course) error {
		for _, sid := range studentIDs {
			if !core.ContainsString(c.Students, sid) {
				c.Students = append(c.Students, sid)
			}
		}
		return nil
	})
}

func (repo *courseRepository) RemoveStudent(ctx context.Context, id, studentID string) error {
	return repo.update(id, func(c *course.Course) error {
		c.Students = removeString(c.Students, studentID)
		return nil
	})
}

// undoUpdate registers the inverse of an update made inside a transaction.
// A course deleted in the meantime is left alone.
func (repo *courseRepository) undoUpdate(ctx context.Context, id string, fn func(c *course.Course) error) {
	onRollback(ctx, func() { _ = repo.update(id, fn) })
}

func (repo *courseRepository) AppendAssignment(ctx context.Context, id string, a course.Assignment) error {
	err := repo.update(id, func(c *course.Course) error {
		c.Assignments = append(c.Assignments, cloneAssignment(a.WithMaps()))
		return nil
	})
	if err == nil {
		repo.undoUpdate(ctx, id, func(c *course.Course) error {
			for i := range c.Assignments {
				if c.Assignments[i].ID == a.ID {
					c.Assignments = append(c.Assignments[:i], c.Assignments[i+1:]...)
					break
				}
			}
			return nil
		})
	}
	return err
}

func (repo *courseRepository) AppendMaterial(ctx context.Context, id string, m course.Material) error {
	err := repo.update(id, func(c *course.Course) error {
		c.Materials = append(c.Materials, m)
		return nil
	})
	if err == nil {
		repo.undoUpdate(ctx, id, func(c *course.Course) error {
			for i := range c.Materials {
				if c.Materials[i].ID == m.ID {
					c.Materials = append(c.Materials[:i], c.Materials[i+1:]...)
					break
				}
			}
			return nil
		})
	}
	return err
}

func (repo *courseRepository) AppendRecording(ctx context.Context, id string, r course.Recording) error {
	err := repo.update(id, func(c *course.Course) error {
		c.Recordings = append(c.Recordings, r)
		return nil
	})
	if err == nil {
		repo.undoUpdate(ctx, id, func(c *course.Course) error {
			for i := range c.Recordings {
				if c.Recordings[i].ID == r.ID {
					c.Recordings = append(c.Recordings[:i], c.Recordings[i+1:]...)
					break
				}
			}
			return nil
		})
	}
	return err
}

func (repo *courseRepository) RecordSubmission(ctx context.Context, id, assignmentID string, sub course.Submission) error {
	var (
		prevStatus  course.SubmissionStatus
		prevFiles   []string
		prevDate    time.Time
		hadPrevious bool
	)
	err := repo.updateAssignment(id, assignmentID, func(a *course.Assignment) {
		prevStatus, hadPrevious = a.Submissions[sub.StudentID]
		prevFiles = a.SubmissionContent[sub.StudentID]
		prevDate = a.SubmissionDate[sub.StudentID]

		a.Submissions[sub.StudentID] = sub.Status
		a.SubmissionContent[sub.StudentID] = append([]string(nil), sub.Files...)
		a.SubmissionDate[sub.StudentID] = sub.SubmittedAt
	})
	if err == nil {
		onRollback(ctx, func() {
			_ = repo.updateAssignment(id, assignmentID, func(a *course.Assignment) {
				if !hadPrevious {
					delete(a.Submissions, sub.StudentID)
					delete(a.SubmissionContent, sub.StudentID)
					delete(a.SubmissionDate, sub.StudentID)
					return
				}
				a.Submissions[sub.StudentID] = prevStatus
				a.SubmissionContent[sub.StudentID] = prevFiles
				a.SubmissionDate[sub.StudentID] = prevDate
			})
		})
	}
	return err
}

func (repo *courseRepository) SetGrades(ctx context.Context, id, assignmentID string, grades map[string]int, comments map[string]string) error {
	return repo.updateAssignment(id, assignmentID, func(a *course.Assignment) {
		for sid, g := range grades {
			a.Grades[sid] = g
		}
		for sid, cm := range comments {
			a.TeacherComments[sid] = cm
		}
	})
}

func (repo *courseRepository) MarkViewed(ctx context.Context, id, assignmentID, studentID string) error {
	return repo.updateAssignment(id, assignmentID, func(a *course.Assignment) {
		if !core.ContainsString(a.ViewedBy, studentID) {
			a.ViewedBy = append(a.ViewedBy, studentID)
		}
	})
}
