package mongodb

import (
	"context"
	"math"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/user"
)

var userSortFields = map[string]string{
	"name":       "name",
	"email":      "email",
	"status":     "status",
	"created_at": "created_at",
}

type userDoc struct {
	ID              string    `bson:"_id"`
	Name            string    `bson:"name"`
	Email           string    `bson:"email"`
	Roles           []string  `bson:"roles"`
	Status          string    `bson:"status"`
	IsPremium       bool      `bson:"is_premium"`
	StorageUsed     int64     `bson:"storage_used"`
	AICredits       int       `bson:"ai_credits"`
	LastCreditReset time.Time `bson:"last_credit_reset,omitempty"`
	OwnedCourseIDs  []string  `bson:"owned_course_ids"`
	PasswordHash    []byte    `bson:"password_hash,omitempty"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at,omitempty"`
	LastLogin       time.Time `bson:"last_login,omitempty"`
}

func newUserDoc(usr user.User) userDoc {
	d := userDoc{
		ID:              usr.ID,
		Name:            usr.Name,
		Email:           usr.Email,
		Roles:           usr.Roles,
		Status:          usr.Status,
		IsPremium:       usr.IsPremium,
		StorageUsed:     usr.StorageUsed,
		AICredits:       usr.AICredits,
		LastCreditReset: usr.LastCreditReset.UTC(),
		OwnedCourseIDs:  usr.OwnedCourseIDs,
		PasswordHash:    usr.PasswordHash,
		CreatedAt:       usr.CreatedAt.UTC(),
		UpdatedAt:       usr.UpdatedAt.UTC(),
		LastLogin:       usr.LastLogin.UTC(),
	}
	if d.Roles == nil {
		d.Roles = []string{}
	}
	if d.OwnedCourseIDs == nil {
		d.OwnedCourseIDs = []string{}
	}
	return d
}

func (d userDoc) user() user.User {
	usr := user.User{
		ID:              d.ID,
		Name:            d.Name,
		Email:           d.Email,
		Roles:           d.Roles,
		Status:          d.Status,
		IsPremium:       d.IsPremium,
		StorageUsed:     d.StorageUsed,
		AICredits:       d.AICredits,
		LastCreditReset: utc(d.LastCreditReset),
		OwnedCourseIDs:  d.OwnedCourseIDs,
		PasswordHash:    d.PasswordHash,
		CreatedAt:       utc(d.CreatedAt),
		UpdatedAt:       utc(d.UpdatedAt),
		LastLogin:       utc(d.LastLogin),
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	if usr.OwnedCourseIDs == nil {
		usr.OwnedCourseIDs = []string{}
	}
	return usr
}

// utc keeps zero times zero: the driver decodes a missing date as the zero time in Local.
func utc(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC()
}

type userRepository struct {
	col *mongo.Collection
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{col: db.col(colUsers)}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	ids := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		ids = append(ids, u.ID)
	}
	found, err := exists(ctx, repo.col, bson.M{"email": email, "_id": bson.M{"$nin": ids}})
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if found {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	if _, err := repo.col.InsertOne(ctx, newUserDoc(usr)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	q := bson.M{}
	if filter != nil {
		if filter.Search != "" {
			re := contains(filter.Search)
			q["$or"] = bson.A{bson.M{"name": re}, bson.M{"email": re}}
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			prefixes := make(bson.A, 0, len(filter.Roles))
			for _, r := range filter.Roles {
				prefixes = append(prefixes, primitive.Regex{Pattern: "^" + regexp.QuoteMeta(r)})
			}
			q["roles"] = bson.M{"$in": prefixes}
		}
		if filter.Status != "" {
			q["status"] = filter.Status
		}
		created := bson.M{}
		if !filter.CreatedFrom.IsZero() {
			created["$gte"] = filter.CreatedFrom.UTC()
		}
		if !filter.CreatedTo.IsZero() {
			created["$lte"] = filter.CreatedTo.UTC()
		}
		if len(created) > 0 {
			q["created_at"] = created
		}
	}

	opts := options.Find().SetSort(sortBy(ordering, userSortFields, core.DBOrdering{Field: "created_at"}))
	return repo.find(ctx, q, opts)
}

func (repo *userRepository) find(ctx context.Context, q interface{}, opts ...*options.FindOptions) ([]user.User, error) {
	cur, err := repo.col.Find(ctx, q, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	var docs []userDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding users")
	}
	users := make([]user.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.user())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var q bson.M
	switch {
	case filter.ID != "":
		q = bson.M{"_id": filter.ID}
	case filter.Email != "":
		q = bson.M{"email": filter.Email}
	default:
		return user.User{}, user.ErrNotFound
	}

	var d userDoc
	if err := repo.col.FindOne(ctx, q).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "finding user")
	}
	return d.user(), nil
}

func (repo *userRepository) GetUsersByID(ctx context.Context, ids ...string) ([]user.User, error) {
	if len(ids) == 0 {
		return []user.User{}, nil
	}
	found, err := repo.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]user.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	users := make([]user.User, 0, len(found))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			users = append(users, u)
			delete(byID, id)
		}
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	set := bson.M{
		"name":       usr.Name,
		"email":      usr.Email,
		"roles":      roles,
		"status":     usr.Status,
		"is_premium": usr.IsPremium,
		"last_login": usr.LastLogin.UTC(),
		"updated_at": usr.UpdatedAt.UTC(),
	}
	if usr.PasswordHash != nil {
		set["password_hash"] = usr.PasswordHash
	}

	res, err := repo.col.UpdateOne(ctx, bson.M{"_id": usr.ID}, bson.M{"$set": set})
	if mongo.IsDuplicateKeyError(err) {
		return user.User{}, user.ErrEmailExists
	}
	if err = mustMatch(res, err, user.ErrNotFound, "updating user"); err != nil {
		return user.User{}, err
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (repo *userRepository) DeleteUsers(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	return errors.Wrap(err, "deleting users")
}

func (repo *userRepository) IncrementStorage(ctx context.Context, id string, delta int64) error {
	filter := bson.M{"_id": id, "storage_used": bson.M{"$lte": math.MaxInt64 - delta}}
	res, err := repo.col.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"storage_used": delta}})
	if err != nil {
		return errors.Wrap(err, "incrementing storage")
	}
	if res.MatchedCount == 1 {
		return nil
	}

	// the sum would overflow, or no such user
	found, err := exists(ctx, repo.col, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "checking user")
	}
	if !found {
		return user.ErrNotFound
	}
	return user.ErrStorageOverflow
}

func (repo *userRepository) DecrementCredits(ctx context.Context, id string, amount int) (bool, error) {
	filter := bson.M{"_id": id, "ai_credits": bson.M{"$gte": amount}}
	res, err := repo.col.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"ai_credits": -amount}})
	if err != nil {
		return false, errors.Wrap(err, "decrementing credits")
	}
	if res.MatchedCount == 1 {
		return true, nil
	}

	// not enough credits, or no such user
	found, err := exists(ctx, repo.col, bson.M{"_id": id})
	if err != nil {
		return false, errors.Wrap(err, "checking user")
	}
	if !found {
		return false, user.ErrNotFound
	}
	return false, nil
}

func (repo *userRepository) ResetCredits(ctx context.Context, id string, credits int, at time.Time) error {
	update := bson.M{"$set": bson.M{"ai_credits": credits, "last_credit_reset": at.UTC()}}
	res, err := repo.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	return mustMatch(res, err, user.ErrNotFound, "resetting credits")
}

func (repo *userRepository) AddOwnedCourse(ctx context.Context, id, courseID string) error {
	res, err := repo.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$addToSet": bson.M{"owned_course_ids": courseID}})
	return mustMatch(res, err, user.ErrNotFound, "adding owned course")
}

func (repo *userRepository) RemoveOwnedCourse(ctx context.Context, id, courseID string) error {
	res, err := repo.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$pull": bson.M{"owned_course_ids": courseID}})
	return mustMatch(res, err, user.ErrNotFound, "removing owned course")
}
