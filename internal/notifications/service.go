package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/query"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Notify stores a message for recipient. It satisfies approval.Notifier.
func (s *Service) Notify(ctx context.Context, recipient, kind, title, message, workflowID string) error {
	if recipient == "" {
		return apperr.Field("recipientId", "is required")
	}
	return s.repo.Insert(ctx, &Notification{
		ID:          uuid.NewString(),
		RecipientID: recipient,
		Kind:        kind,
		Title:       title,
		Message:     message,
		WorkflowID:  workflowID,
		CreatedAt:   s.now(),
	})
}

func (s *Service) ListMine(ctx context.Context, recipient string, unreadOnly bool, p query.Page) ([]*Notification, int, error) {
	return s.repo.ListFor(ctx, recipient, unreadOnly, p.Offset(), p.PerPage)
}

func (s *Service) MarkRead(ctx context.Context, recipient, id string) error {
	return s.repo.MarkRead(ctx, recipient, id)
}
