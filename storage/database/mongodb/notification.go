package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/danielortegac/qlase/core/notification"
)

type notificationDoc struct {
	ID         string    `bson:"_id"`
	UserID     string    `bson:"user_id"`
	Title      string    `bson:"title"`
	Message    string    `bson:"message"`
	Type       string    `bson:"type"`
	ActionLink string    `bson:"action_link,omitempty"`
	Read       bool      `bson:"read"`
	CreatedAt  time.Time `bson:"created_at"`
}

func (d notificationDoc) notification() notification.Notification {
	n := notification.Notification(d)
	n.CreatedAt = utc(d.CreatedAt)
	return n
}

type notificationRepository struct {
	col *mongo.Collection
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{col: db.col(colNotifications)}
}

// CreateNotifications writes every record with a single InsertMany.
func (repo *notificationRepository) CreateNotifications(ctx context.Context, ns ...notification.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(ns))
	for _, n := range ns {
		d := notificationDoc(n)
		d.CreatedAt = d.CreatedAt.UTC()
		docs = append(docs, d)
	}
	_, err := repo.col.InsertMany(ctx, docs)
	return errors.Wrap(err, "inserting notifications")
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, userID string) ([]notification.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := repo.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	var docs []notificationDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding notifications")
	}
	ns := make([]notification.Notification, 0, len(docs))
	for _, d := range docs {
		ns = append(ns, d.notification())
	}
	return ns, nil
}

func (repo *notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	var d notificationDoc
	if err := repo.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "finding notification")
	}
	return d.notification(), nil
}

func (repo *notificationRepository) MarkRead(ctx context.Context, id string) error {
	res, err := repo.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"read": true}})
	return mustMatch(res, err, notification.ErrNotFound, "marking notification read")
}
