package pgdb

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/danielortegac/qlase/core/notification"
)

type notificationRow struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	Title      string    `db:"title"`
	Message    string    `db:"message"`
	Type       string    `db:"type"`
	ActionLink string    `db:"action_link"`
	Read       bool      `db:"read"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r notificationRow) notification() notification.Notification {
	return notification.Notification{
		ID:         r.ID,
		UserID:     r.UserID,
		Title:      r.Title,
		Message:    r.Message,
		Type:       r.Type,
		ActionLink: r.ActionLink,
		Read:       r.Read,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{db: db}
}

// CreateNotifications writes every record with a single multi-row INSERT.
func (repo *notificationRepository) CreateNotifications(ctx context.Context, ns ...notification.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	rows := make([]notificationRow, 0, len(ns))
	for _, n := range ns {
		rows = append(rows, notificationRow{
			ID:         n.ID,
			UserID:     n.UserID,
			Title:      n.Title,
			Message:    n.Message,
			Type:       n.Type,
			ActionLink: n.ActionLink,
			Read:       n.Read,
			CreatedAt:  n.CreatedAt.UTC(),
		})
	}

	q := `INSERT INTO notification (id, user_id, title, message, type, action_link, read, created_at)
		VALUES (:id, :user_id, :title, :message, :type, :action_link, :read, :created_at)`
	_, err := sqlx.NamedExecContext(ctx, executor(ctx, repo.db), q, rows)
	return errors.Wrap(err, "inserting notifications")
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, userID string) ([]notification.Notification, error) {
	var rows []notificationRow
	q := `SELECT id, user_id, title, message, type, action_link, read, created_at
		FROM notification WHERE user_id = $1 ORDER BY created_at DESC, id`
	if err := sqlx.SelectContext(ctx, executor(ctx, repo.db), &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	ns := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		ns = append(ns, r.notification())
	}
	return ns, nil
}

func (repo *notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	var row notificationRow
	q := `SELECT id, user_id, title, message, type, action_link, read, created_at FROM notification WHERE id = $1`
	if err := sqlx.GetContext(ctx, executor(ctx, repo.db), &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "finding notification")
	}
	return row.notification(), nil
}

func (repo *notificationRepository) MarkRead(ctx context.Context, id string) error {
	res, err := executor(ctx, repo.db).ExecContext(ctx, `UPDATE notification SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return mustAffect(res, notification.ErrNotFound)
}
