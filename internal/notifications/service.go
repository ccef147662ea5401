package notifications

import (
	"context"
	"log/slog"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
)

// Service handles notification inbox logic.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Inbox returns the actor's notifications, newest first.
func (s *Service) Inbox(ctx context.Context, actor authz.Identity, limit int) ([]Notification, error) {
	return s.repo.ListForUser(ctx, actor.ID, limit)
}

// UnreadCount reports the actor's unread total for the navigation badge and
// dashboard.
func (s *Service) UnreadCount(ctx context.Context, actor authz.Identity) (int, error) {
	return s.repo.CountUnread(ctx, actor.ID)
}

// MarkRead acknowledges one notification. The repository scopes the update
// to the actor, so a foreign id simply comes back as not found.
func (s *Service) MarkRead(ctx context.Context, actor authz.Identity, id string) error {
	return s.repo.MarkRead(ctx, actor.ID, id)
}

// MarkAllRead acknowledges the whole inbox.
func (s *Service) MarkAllRead(ctx context.Context, actor authz.Identity) error {
	return s.repo.MarkAllRead(ctx, actor.ID)
}

// Notify stores a single notification outside the fan-out path, e.g. a
// direct system message.
func (s *Service) Notify(ctx context.Context, n Notification) error {
	return s.repo.Insert(ctx, n)
}
