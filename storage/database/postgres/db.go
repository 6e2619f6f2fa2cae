package pgdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/danielortegac/qlase/core"
)

// postgres error codes
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type txKey struct{}

// executor returns the transaction held by ctx, or db when there is none.
func executor(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

// NewTransactor runs fn inside a single SQL transaction. Nested calls join the outer one.
func NewTransactor(db *sqlx.DB) core.Transactor {
	return core.TransactorFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
		if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
			return fn(ctx)
		}

		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "beginning transaction")
		}
		defer func() {
			if p := recover(); p != nil {
				_ = tx.Rollback()
				panic(p)
			}
		}()

		if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
			_ = tx.Rollback()
			return err
		}
		return errors.Wrap(tx.Commit(), "committing transaction")
	})
}

func pqCode(err error) string {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return string(pqErr.Code)
	}
	return ""
}

// where accumulates AND-ed conditions written with "?" placeholders.
type where struct {
	clauses []string
	args    []interface{}
}

func (w *where) add(clause string, args ...interface{}) {
	w.clauses = append(w.clauses, "("+clause+")")
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// orderClause maps the requested orderings onto known columns; unknown fields are ignored.
func orderClause(ordering []core.DBOrdering, columns map[string]string, fallback ...core.DBOrdering) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		parts = append(parts, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(parts) == 0 {
		for _, ord := range fallback {
			parts = append(parts, core.DBOrdering{Field: columns[ord.Field], Ascending: ord.Ascending}.String())
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return fmt.Sprintf("%%%s%%", r.Replace(s))
}

// Truncate empties every application table. Tests use it between cases.
func Truncate(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `TRUNCATE "user", owned_course, course, course_student, assignment,
		submission, assignment_view, material, recording, notification, publication CASCADE`)
	return errors.Wrap(err, "truncating tables")
}
