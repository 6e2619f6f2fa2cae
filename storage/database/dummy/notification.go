package dummydb

import (
	"context"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) t() *notificationTable { return repo.db.notification }

func (repo *notificationRepository) CreateNotifications(ctx context.Context, ns ...notification.Notification) error {
	tbl := repo.t()
	tbl.Lock()
	defer tbl.Unlock()

	for _, n := range ns {
		n := n
		tbl.table[n.ID] = &n
	}
	onRollback(ctx, func() {
		tbl.Lock()
		defer tbl.Unlock()
		for _, n := range ns {
			delete(tbl.table, n.ID)
		}
	})
	return nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, userID string) ([]notification.Notification, error) {
	tbl := repo.t()
	tbl.RLock()
	defer tbl.RUnlock()

	ns := make([]notification.Notification, 0)
	for _, n := range tbl.table {
		if n.UserID == userID {
			ns = append(ns, *n)
		}
	}
	orderBy(ns, []core.DBOrdering{{Field: "created_at"}, {Field: "id", Ascending: true}}, map[string]func(i, j int) int{
		"created_at": func(i, j int) int { return compareTimes(ns[i].CreatedAt, ns[j].CreatedAt) },
		"id": func(i, j int) int {
			switch {
			case ns[i].ID < ns[j].ID:
				return -1
			case ns[i].ID > ns[j].ID:
				return 1
			}
			return 0
		},
	})
	return ns, nil
}

func (repo *notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	tbl := repo.t()
	tbl.RLock()
	defer tbl.RUnlock()

	if n, ok := tbl.table[id]; ok {
		return *n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) MarkRead(ctx context.Context, id string) error {
	tbl := repo.t()
	tbl.Lock()
	defer tbl.Unlock()

	n, ok := tbl.table[id]
	if !ok {
		return notification.ErrNotFound
	}
	n.Read = true
	return nil
}

// CountNotifications returns the number of stored notifications, optionally of the given type only.
func (db *DB) CountNotifications(kind ...string) int {
	tbl := db.notification
	tbl.RLock()
	defer tbl.RUnlock()

	var count int
	for _, n := range tbl.table {
		if len(kind) == 0 || n.Type == kind[0] {
			count++
		}
	}
	return count
}
