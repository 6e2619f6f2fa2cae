package dummydb

import (
	"context"
	"sync"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/course"
	"github.com/danielortegac/qlase/core/notification"
	"github.com/danielortegac/qlase/core/publication"
	"github.com/danielortegac/qlase/core/user"
)

type (
	// DB is an in-memory store for tests and local development.
	DB struct {
		txMu         sync.Mutex
		user         *userTable
		course       *courseTable
		notification *notificationTable
		publication  *publicationTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	courseTable struct {
		sync.RWMutex
		table map[string]*course.Course
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*notification.Notification
	}

	publicationTable struct {
		sync.RWMutex
		table map[string]*publication.Publication
	}
)

func Open() (*DB, error) {
	db := &DB{}
	db.Reset()
	return db, nil
}

// Reset empties every table.
func (db *DB) Reset() {
	db.user = &userTable{table: make(map[string]*user.User)}
	db.course = &courseTable{table: make(map[string]*course.Course)}
	db.notification = &notificationTable{table: make(map[string]*notification.Notification)}
	db.publication = &publicationTable{table: make(map[string]*publication.Publication)}
}

type txKey struct{}

// undoLog holds the inverse of every write made inside one transaction.
type undoLog struct {
	undo []func()
}

// onRollback registers fn to run if the transaction carried by ctx fails.
// Outside a transaction it does nothing.
func onRollback(ctx context.Context, fn func()) {
	if log, ok := ctx.Value(txKey{}).(*undoLog); ok {
		log.undo = append(log.undo, fn)
	}
}

// Transactor serializes transactions. When fn fails, only the writes fn made are undone,
// newest first. Counters are restored by applying the opposite delta, so writes made
// outside the transaction in the meantime survive the rollback.
func (db *DB) Transactor() core.Transactor {
	return core.TransactorFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
		db.txMu.Lock()
		defer db.txMu.Unlock()

		log := &undoLog{}
		if err := fn(context.WithValue(ctx, txKey{}, log)); err != nil {
			for i := len(log.undo) - 1; i >= 0; i-- {
				log.undo[i]()
			}
			return err
		}
		return nil
	})
}
