package pgdb

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/user"
)

const userColumns = `u.id, u.name, u.email, u.roles, u.status, u.is_premium, u.storage_used, u.ai_credits,
	u.last_credit_reset, u.password_hash, u.created_at, u.updated_at, u.last_login,
	ARRAY(SELECT o.course_id FROM owned_course o WHERE o.user_id = u.id ORDER BY o.seq) AS owned_course_ids`

var userOrderColumns = map[string]string{
	"name":       "u.name",
	"email":      "u.email",
	"status":     "u.status",
	"created_at": "u.created_at",
}

type userRow struct {
	ID              string         `db:"id"`
	Name            string         `db:"name"`
	Email           string         `db:"email"`
	Roles           pq.StringArray `db:"roles"`
	Status          string         `db:"status"`
	IsPremium       bool           `db:"is_premium"`
	StorageUsed     int64          `db:"storage_used"`
	AICredits       int            `db:"ai_credits"`
	LastCreditReset null.Time      `db:"last_credit_reset"`
	PasswordHash    null.Bytes     `db:"password_hash"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       null.Time      `db:"updated_at"`
	LastLogin       null.Time      `db:"last_login"`
	OwnedCourseIDs  pq.StringArray `db:"owned_course_ids"`
}

func (r userRow) user() user.User {
	usr := user.User{
		ID:              r.ID,
		Name:            r.Name,
		Email:           r.Email,
		Roles:           []string(r.Roles),
		Status:          r.Status,
		IsPremium:       r.IsPremium,
		StorageUsed:     r.StorageUsed,
		AICredits:       r.AICredits,
		LastCreditReset: utc(r.LastCreditReset),
		OwnedCourseIDs:  []string(r.OwnedCourseIDs),
		PasswordHash:    r.PasswordHash.Bytes,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       utc(r.UpdatedAt),
		LastLogin:       utc(r.LastLogin),
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	if usr.OwnedCourseIDs == nil {
		usr.OwnedCourseIDs = []string{}
	}
	return usr
}

func utc(t null.Time) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

func nullTime(t time.Time) null.Time {
	return null.NewTime(t.UTC(), !t.IsZero())
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

// trapErr maps "no rows" to user.ErrNotFound and unique violations to user.ErrEmailExists
func (repo *userRepository) trapErr(err error, msg string) error {
	switch {
	case err == sql.ErrNoRows:
		return user.ErrNotFound
	case pqCode(err) == codeUniqueViolation:
		return user.ErrEmailExists
	case pqCode(err) == codeForeignKeyViolation:
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	ids := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		ids = append(ids, u.ID)
	}

	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM "user" WHERE email = $1 AND NOT (id = ANY($2)))`
	if err := sqlx.GetContext(ctx, executor(ctx, repo.db), &exists, q, email, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	if usr.Roles == nil {
		usr.Roles = []string{}
	}

	q := `INSERT INTO "user" (id, name, email, roles, status, is_premium, storage_used, ai_credits,
		last_credit_reset, password_hash, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := executor(ctx, repo.db).ExecContext(ctx, q,
		usr.ID, usr.Name, usr.Email, pq.Array(usr.Roles), usr.Status, usr.IsPremium, usr.StorageUsed, usr.AICredits,
		nullTime(usr.LastCreditReset), null.BytesFrom(usr.PasswordHash), usr.CreatedAt.UTC(),
		nullTime(usr.UpdatedAt), nullTime(usr.LastLogin),
	)
	if err != nil {
		return user.User{}, repo.trapErr(err, "inserting user")
	}
	for _, cid := range usr.OwnedCourseIDs {
		if err = repo.AddOwnedCourse(ctx, usr.ID, cid); err != nil {
			return user.User{}, err
		}
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			pattern := likePattern(filter.Search)
			w.add("u.name ILIKE ? OR u.email ILIKE ?", pattern, pattern)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			prefixes := make([]string, 0, len(filter.Roles))
			for _, r := range filter.Roles {
				prefixes = append(prefixes, r+"%")
			}
			w.add("EXISTS (SELECT 1 FROM UNNEST(u.roles) user_role WHERE user_role LIKE ANY(?))", pq.Array(prefixes))
		}
		if filter.Status != "" {
			w.add("u.status = ?", filter.Status)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("u.created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("u.created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	ex := executor(ctx, repo.db)
	q := `SELECT ` + userColumns + ` FROM "user" u` + w.String() +
		orderClause(ordering, userOrderColumns, core.DBOrdering{Field: "created_at"})

	var rows []userRow
	if err := sqlx.SelectContext(ctx, ex, &rows, ex.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		col string
		val string
	)
	switch {
	case filter.ID != "":
		col, val = "u.id", filter.ID
	case filter.Email != "":
		col, val = "u.email", filter.Email
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := `SELECT ` + userColumns + ` FROM "user" u WHERE ` + col + ` = $1`
	if err := sqlx.GetContext(ctx, executor(ctx, repo.db), &row, q, val); err != nil {
		return user.User{}, repo.trapErr(err, "finding user")
	}
	return row.user(), nil
}

func (repo *userRepository) GetUsersByID(ctx context.Context, ids ...string) ([]user.User, error) {
	if len(ids) == 0 {
		return []user.User{}, nil
	}

	var rows []userRow
	q := `SELECT ` + userColumns + ` FROM "user" u WHERE u.id = ANY($1)`
	if err := sqlx.SelectContext(ctx, executor(ctx, repo.db), &rows, q, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "finding users")
	}

	byID := make(map[string]user.User, len(rows))
	for _, r := range rows {
		byID[r.ID] = r.user()
	}
	users := make([]user.User, 0, len(rows))
	for _, id := range ids {
		if usr, ok := byID[id]; ok {
			users = append(users, usr)
			delete(byID, id)
		}
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.Roles == nil {
		usr.Roles = []string{}
	}

	q := `UPDATE "user" SET name = $2, email = $3, roles = $4, status = $5, is_premium = $6,
		password_hash = COALESCE($7, password_hash), last_login = $8, updated_at = $9
		WHERE id = $1`
	res, err := executor(ctx, repo.db).ExecContext(ctx, q,
		usr.ID, usr.Name, usr.Email, pq.Array(usr.Roles), usr.Status, usr.IsPremium,
		null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil), nullTime(usr.LastLogin), nullTime(usr.UpdatedAt),
	)
	if err != nil {
		return user.User{}, repo.trapErr(err, "updating user")
	}
	if err = mustAffect(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (repo *userRepository) DeleteUsers(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := executor(ctx, repo.db).ExecContext(ctx, `DELETE FROM "user" WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting users")
}

func (repo *userRepository) IncrementStorage(ctx context.Context, id string, delta int64) error {
	ex := executor(ctx, repo.db)
	q := `UPDATE "user" SET storage_used = storage_used + $2 WHERE id = $1 AND storage_used <= $3`
	res, err := ex.ExecContext(ctx, q, id, delta, math.MaxInt64-delta)
	if err != nil {
		return errors.Wrap(err, "incrementing storage")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "incrementing storage")
	} else if n == 1 {
		return nil
	}

	// the sum would overflow, or no such user
	var exists bool
	if err = sqlx.GetContext(ctx, ex, &exists, `SELECT EXISTS (SELECT 1 FROM "user" WHERE id = $1)`, id); err != nil {
		return errors.Wrap(err, "checking user")
	}
	if !exists {
		return user.ErrNotFound
	}
	return user.ErrStorageOverflow
}

func (repo *userRepository) DecrementCredits(ctx context.Context, id string, amount int) (bool, error) {
	ex := executor(ctx, repo.db)
	q := `UPDATE "user" SET ai_credits = ai_credits - $2 WHERE id = $1 AND ai_credits >= $2`
	res, err := ex.ExecContext(ctx, q, id, amount)
	if err != nil {
		return false, errors.Wrap(err, "decrementing credits")
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, errors.Wrap(err, "decrementing credits")
	} else if n == 1 {
		return true, nil
	}

	// not enough credits, or no such user
	var exists bool
	if err = sqlx.GetContext(ctx, ex, &exists, `SELECT EXISTS (SELECT 1 FROM "user" WHERE id = $1)`, id); err != nil {
		return false, errors.Wrap(err, "checking user")
	}
	if !exists {
		return false, user.ErrNotFound
	}
	return false, nil
}

func (repo *userRepository) ResetCredits(ctx context.Context, id string, credits int, at time.Time) error {
	q := `UPDATE "user" SET ai_credits = $2, last_credit_reset = $3 WHERE id = $1`
	res, err := executor(ctx, repo.db).ExecContext(ctx, q, id, credits, nullTime(at))
	if err != nil {
		return errors.Wrap(err, "resetting credits")
	}
	return mustAffect(res, user.ErrNotFound)
}

func (repo *userRepository) AddOwnedCourse(ctx context.Context, id, courseID string) error {
	q := `INSERT INTO owned_course (user_id, course_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err := executor(ctx, repo.db).ExecContext(ctx, q, id, courseID)
	if err != nil {
		return repo.trapErr(err, "adding owned course")
	}
	return nil
}

func (repo *userRepository) RemoveOwnedCourse(ctx context.Context, id, courseID string) error {
	ex := executor(ctx, repo.db)
	var exists bool
	if err := sqlx.GetContext(ctx, ex, &exists, `SELECT EXISTS (SELECT 1 FROM "user" WHERE id = $1)`, id); err != nil {
		return errors.Wrap(err, "checking user")
	}
	if !exists {
		return user.ErrNotFound
	}
	_, err := ex.ExecContext(ctx, `DELETE FROM owned_course WHERE user_id = $1 AND course_id = $2`, id, courseID)
	return errors.Wrap(err, "removing owned course")
}

// mustAffect returns notFound when the statement touched no row.
func mustAffect(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}
