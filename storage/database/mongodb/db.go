package mongodb

import (
	"context"
	"regexp"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/danielortegac/qlase/core"
)

// Collections
const (
	colUsers         = "users"
	colCourses       = "courses"
	colNotifications = "notifications"
	colPublications  = "publications"
)

type DB struct {
	client       *mongo.Client
	db           *mongo.Database
	transactions bool
}

// Open connects to conf.Database.MongoURI and pings the primary.
func Open(ctx context.Context, conf *core.Config) (*DB, error) {
	ctx, cancel := context.WithTimeout(ctx, conf.Database.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.Database.MongoURI))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongodb")
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "pinging mongodb")
	}
	return &DB{
		client:       client,
		db:           client.Database(conf.Database.Name),
		transactions: conf.Database.MongoTransactions,
	}, nil
}

func (db *DB) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

func (db *DB) col(name string) *mongo.Collection { return db.db.Collection(name) }

// EnsureIndexes creates the indexes the repositories rely on. It is idempotent.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		colCourses: {
			{Keys: bson.D{{Key: "instructor_id", Value: 1}}},
			{Keys: bson.D{{Key: "students", Value: 1}}},
		},
		colNotifications: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colPublications: {
			{Keys: bson.D{{Key: "author_id", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := db.col(name).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "creating %s indexes", name)
		}
	}
	return nil
}

// Drop removes the whole database. Tests use it between cases.
func (db *DB) Drop(ctx context.Context) error {
	return db.db.Drop(ctx)
}

// Transactor runs fn in a multi-document transaction when transactions are enabled
// (they need a replica set). Otherwise each write stands alone.
func (db *DB) Transactor() core.Transactor {
	if !db.transactions {
		return core.NoTx
	}
	return core.TransactorFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
		if mongo.SessionFromContext(ctx) != nil {
			return fn(ctx)
		}

		sess, err := db.client.StartSession()
		if err != nil {
			return errors.Wrap(err, "starting session")
		}
		defer sess.EndSession(ctx)

		_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			return nil, fn(sc)
		})
		return err
	})
}

// contains builds a case-insensitive "contains" regex.
func contains(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// sortBy maps the requested orderings onto known fields; unknown fields are ignored.
func sortBy(ordering []core.DBOrdering, fields map[string]string, fallback core.DBOrdering) bson.D {
	sort := make(bson.D, 0, len(ordering))
	for _, ord := range ordering {
		f, ok := fields[ord.Field]
		if !ok {
			continue
		}
		sort = append(sort, bson.E{Key: f, Value: direction(ord)})
	}
	if len(sort) == 0 {
		sort = append(sort, bson.E{Key: fields[fallback.Field], Value: direction(fallback)})
	}
	return sort
}

func direction(ord core.DBOrdering) int {
	if ord.Ascending {
		return 1
	}
	return -1
}

// mustMatch returns notFound when the update matched no document.
func mustMatch(res *mongo.UpdateResult, err error, notFound error, msg string) error {
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if res.MatchedCount == 0 {
		return notFound
	}
	return nil
}

func exists(ctx context.Context, col *mongo.Collection, filter interface{}) (bool, error) {
	n, err := col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	return n > 0, err
}
