// Package notifications stores per-user inbox messages.
package notifications

import (
	"context"
	"time"
)

// Notification is stored as a MongoDB document keyed by its string id.
type Notification struct {
	ID          string    `json:"id" bson:"id"`
	RecipientID string    `json:"recipientId" bson:"recipientId"`
	Kind        string    `json:"kind" bson:"kind"`
	Title       string    `json:"title" bson:"title"`
	Message     string    `json:"message" bson:"message"`
	WorkflowID  string    `json:"workflowId,omitempty" bson:"workflowId,omitempty"`
	Read        bool      `json:"read" bson:"read"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// Repository persists notifications.
type Repository interface {
	Insert(ctx context.Context, n *Notification) error
	// ListFor returns the recipient's notifications, newest first.
	ListFor(ctx context.Context, recipient string, unreadOnly bool, offset, limit int) ([]*Notification, int, error)
	// MarkRead flags one notification as read. It only matches rows owned by recipient.
	MarkRead(ctx context.Context, recipient, id string) error
}
