package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/course"
	"github.com/danielortegac/qlase/core/notification"
	"github.com/danielortegac/qlase/core/publication"
	"github.com/danielortegac/qlase/core/user"
	"github.com/danielortegac/qlase/storage/database"
	"github.com/danielortegac/qlase/storage/database/dummy"
	"github.com/danielortegac/qlase/storage/database/mongodb"
	"github.com/danielortegac/qlase/storage/database/postgres"
)

// Store bundles the repositories of one backend.
type Store struct {
	Users         user.Repository
	Courses       course.Repository
	Notifications notification.Repository
	Publications  publication.Repository
	Tx            core.Transactor

	// SQL is only set for the postgres engine.
	SQL *sqlx.DB

	close func(ctx context.Context) error
}

func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// Open connects to the engine named by conf.Database.Engine and prepares it
// (database creation and migrations for postgres, indexes for mongodb).
func Open(ctx context.Context, conf *core.Config, logger core.Logger) (*Store, error) {
	switch conf.Database.Engine {
	case core.EngineMemory:
		logger.Warn("using the in-memory store: nothing will be persisted")
		return openMemory()
	case core.EnginePostgres:
		return openPostgres(ctx, conf)
	case core.EngineMongo:
		return openMongo(ctx, conf)
	default:
		return nil, fmt.Errorf("unknown database engine %q", conf.Database.Engine)
	}
}

func openMemory() (*Store, error) {
	db, err := dummydb.Open()
	if err != nil {
		return nil, err
	}
	return &Store{
		Users:         dummydb.NewUserRepository(db),
		Courses:       dummydb.NewCourseRepository(db),
		Notifications: dummydb.NewNotificationRepository(db),
		Publications:  dummydb.NewPublicationRepository(db),
		Tx:            db.Transactor(),
	}, nil
}

func openPostgres(ctx context.Context, conf *core.Config) (*Store, error) {
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{
		Users:         pgdb.NewUserRepository(db),
		Courses:       pgdb.NewCourseRepository(db),
		Notifications: pgdb.NewNotificationRepository(db),
		Publications:  pgdb.NewPublicationRepository(db),
		Tx:            pgdb.NewTransactor(db),
		SQL:           db,
		close:         func(context.Context) error { return db.Close() },
	}, nil
}

func openMongo(ctx context.Context, conf *core.Config) (*Store, error) {
	db, err := mongodb.Open(ctx, conf)
	if err != nil {
		return nil, err
	}
	if err = db.EnsureIndexes(ctx); err != nil {
		_ = db.Close(context.Background())
		return nil, errors.Wrap(err, "ensuring indexes")
	}
	return &Store{
		Users:         mongodb.NewUserRepository(db),
		Courses:       mongodb.NewCourseRepository(db),
		Notifications: mongodb.NewNotificationRepository(db),
		Publications:  mongodb.NewPublicationRepository(db),
		Tx:            db.Transactor(),
		close:         db.Close,
	}, nil
}
