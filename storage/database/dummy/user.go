package dummydb

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) t() *userTable { return repo.db.user }

func cloneUser(u user.User) user.User {
	u.Roles = append([]string(nil), u.Roles...)
	u.OwnedCourseIDs = append([]string{}, u.OwnedCourseIDs...)
	u.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return u
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.t().table))
	for _, u := range repo.t().table {
		users = append(users, cloneUser(*u))
	}
	return users
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	tbl := repo.t()
	tbl.RLock()
	defer tbl.RUnlock()

	for _, usr := range tbl.table {
		if usr.Email == email && !isExcluded(*usr, excludedUsers) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	tbl := repo.t()
	tbl.Lock()
	defer tbl.Unlock()

	for _, u := range tbl.table {
		if u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	usr.ID = uuid.New().String()
	cp := cloneUser(usr)
	tbl.table[usr.ID] = &cp
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	tbl := repo.t()
	tbl.RLock()
	defer tbl.RUnlock()

	var users []user.User
	for _, u := range repo.query() {
		if filter.Match(u) {
			users = append(users, u)
		}
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	orderBy(users, ordering, map[string]func(i, j int) int{
		"name":       func(i, j int) int { return strings.Compare(users[i].Name, users[j].Name) },
		"email":      func(i, j int) int { return strings.Compare(users[i].Email, users[j].Email) },
		"status":     func(i, j int) int { return strings.Compare(users[i].Status, users[j].Status) },
		"created_at": func(i, j int) int { return compareTimes(users[i].CreatedAt, users[j].CreatedAt) },
	})
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	tbl := repo.t()
	tbl.RLock()
	defer tbl.RUnlock()

	if filter.ID != "" {
		if usr, ok := tbl.table[filter.ID]; ok {
			return cloneUser(*usr), nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.Email != "" {
		for _, usr := range tbl.table {
			if usr.Email == filter.Email {
				return cloneUser(*usr), nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUsersByID(ctx context.Context, ids ...string) ([]user.User, error) {
	tbl := repo.t()
	tbl.RLock()
	defer tbl.RUnlock()

	users := make([]user.User, 0, len(ids))
	for _, id := range ids {
		if usr, ok := tbl.table[id]; ok {
			users = append(users, cloneUser(*usr))
		}
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	tbl := repo.t()
	tbl.Lock()
	defer tbl.Unlock()

	orig, ok := tbl.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	orig.Name = usr.Name
	orig.Email = usr.Email
	orig.Roles = append([]string(nil), usr.Roles...)
	orig.Status = usr.Status
	orig.IsPremium = usr.IsPremium
	if usr.PasswordHash != nil {
		orig.PasswordHash = append([]byte(nil), usr.PasswordHash...)
	}
	orig.LastLogin = usr.LastLogin
	orig.UpdatedAt = usr.UpdatedAt
	return cloneUser(*orig), nil
}

func (repo *userRepository) DeleteUsers(ctx context.Context, ids ...string) error {
	tbl := repo.t()
	tbl.Lock()
	defer tbl.Unlock()
	for _, id := range ids {
		delete(tbl.table, id)
	}
	return nil
}

func (repo *userRepository) IncrementStorage(ctx context.Context, id string, delta int64) error {
	tbl := repo.t()
	tbl.Lock()
	defer tbl.Unlock()

	usr, ok := tbl.table[id]
	if !ok {
		return user.ErrNotFound
	}
	if delta > 0 && usr.StorageUsed > math.MaxInt64-delta {
		return user.ErrStorageOverflow
	}
	usr.StorageUsed += delta
	onRollback(ctx, func() {
		tbl.Lock()
		defer tbl.Unlock()
		if usr, ok := tbl.table[id]; ok {
			usr.StorageUsed -= delta
		}
	})
	return nil
}

func (repo *userRepository) DecrementCredits(ctx context.Context, id string, amount int) (bool, error) {
	tbl := repo.t()
	tbl.Lock()
	defer tbl.Unlock()

	usr, ok := tbl.table[id]
	if !ok {
		return false, user.ErrNotFound
	}
	if usr.AICredits < amount {
		return false, nil
	}
	usr.AICredits -= amount
	onRollback(ctx, func() {
		tbl.Lock()
		defer tbl.Unlock()
		if usr, ok := tbl.table[id]; ok {
			usr.AICredits += amount
		}
	})
	return true, nil
}

func (repo *userRepository) ResetCredits(ctx context.Context, id string, credits int, at time.Time) error {
	tbl := repo.t()
	tbl.Lock()
	defer tbl.Unlock()

	usr, ok := tbl.table[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.AICredits = credits
	usr.LastCreditReset = at
	return nil
}

func (repo *userRepository) AddOwnedCourse(ctx context.Context, id, courseID string) error {
	tbl := repo.t()
	tbl.Lock()
	defer tbl.Unlock()

	usr, ok := tbl.table[id]
	if !ok {
		return user.ErrNotFound
	}
	if !core.ContainsString(usr.OwnedCourseIDs, courseID) {
		usr.OwnedCourseIDs = append(usr.OwnedCourseIDs, courseID)
	}
	return nil
}

func (repo *userRepository) RemoveOwnedCourse(ctx context.Context, id, courseID string) error {
	tbl := repo.t()
	tbl.Lock()
	defer tbl.Unlock()

	usr, ok := tbl.table[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.OwnedCourseIDs = removeString(usr.OwnedCourseIDs, courseID)
	return nil
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, u := range excludedUsers {
		if u.ID == usr.ID {
			return true
		}
	}
	return false
}

func removeString(ss []string, s string) []string {
	kept := make([]string, 0, len(ss))
	for _, v := range ss {
		if v != s {
			kept = append(kept, v)
		}
	}
	return kept
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

// orderBy stable-sorts xs along the orderings. Fields without a comparator are ignored.
func orderBy(xs interface{}, ordering []core.DBOrdering, cmp map[string]func(i, j int) int) {
	sort.SliceStable(xs, func(i, j int) bool {
		for _, ord := range ordering {
			c, ok := cmp[ord.Field]
			if !ok {
				continue
			}
			if r := c(i, j); r != 0 {
				if ord.Ascending {
					return r < 0
				}
				return r > 0
			}
		}
		return false
	})
}
