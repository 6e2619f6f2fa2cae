package notification

import (
	"context"
	"time"
)

// Types
const (
	TypeInvite   = "invite"
	TypeGrade    = "grade"
	TypeSystem   = "system"
	TypeDeadline = "deadline"
)

type Notification struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Type       string    `json:"type"`
	ActionLink string    `json:"action_link,omitempty"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

// Draft is the recipient-independent part of a Notification.
type Draft struct {
	Title      string
	Message    string
	Type       string
	ActionLink string
}

type Repository interface {
	// CreateNotifications appends all records in a single batch.
	CreateNotifications(ctx context.Context, ns ...Notification) error
	// QueryNotifications returns userID's notifications, newest first.
	QueryNotifications(ctx context.Context, userID string) ([]Notification, error)
	GetNotification(ctx context.Context, id string) (Notification, error)
	MarkRead(ctx context.Context, id string) error
}
