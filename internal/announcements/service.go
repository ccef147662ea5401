package announcements

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
)

// ErrValidation indicates the submitted announcement fields are incomplete.
var ErrValidation = errors.New("announcement validation failed")

// Enqueuer schedules background work triggered by announcement changes.
type Enqueuer interface {
	EnqueueAnnouncementPublished(ctx context.Context, announcementID string) error
}

// AuditRecorder persists content mutations.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles announcement business logic. Every mutation passes the
// acting identity through the access evaluator before touching storage.
type Service struct {
	repo     Repository
	guard    *authz.Guard
	resolver authz.Resolver
	enqueuer Enqueuer
	audit    AuditRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a Service instance.
func NewService(repo Repository, guard *authz.Guard, enqueuer Enqueuer, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		guard:    guard,
		resolver: guard.Resolver,
		enqueuer: enqueuer,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// ListFor returns the announcements the actor may see: published entries for
// everyone, plus drafts for authors and the full set for announcement
// managers.
func (s *Service) ListFor(ctx context.Context, actor authz.Identity) ([]Announcement, error) {
	filter := ListFilter{PublishedOnly: true}
	switch {
	case s.resolver.HasPermission(actor.Role, authz.PermManageAnnouncements, actor.PermissionOverride):
		filter = ListFilter{}
	case actor.Role == authz.RoleHelper:
		filter.DraftsBy = actor.ID
	}
	return s.repo.List(ctx, filter)
}

// Get fetches one announcement, hiding drafts from readers who could not see
// them in a listing.
func (s *Service) Get(ctx context.Context, actor authz.Identity, id string) (Announcement, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return Announcement{}, err
	}
	if !item.IsPublished() && !s.canSeeDraft(actor, item) {
		return Announcement{}, shared.ErrNotFound
	}
	return item, nil
}

// Input carries the editable announcement fields.
type Input struct {
	Title string
	Body  string
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Body) == "" {
		return ErrValidation
	}
	return nil
}

// Create stores a new draft authored by the actor.
func (s *Service) Create(ctx context.Context, actor authz.Identity, input Input) (Announcement, error) {
	if err := s.guard.RequireActionAt(ctx, actor, authz.ActionCreate, nil, s.now()); err != nil {
		return Announcement{}, err
	}
	if err := input.validate(); err != nil {
		return Announcement{}, err
	}
	created, err := s.repo.Create(ctx, Announcement{
		Title:     strings.TrimSpace(input.Title),
		Body:      strings.TrimSpace(input.Body),
		Status:    StatusDraft,
		CreatedBy: actor.ID,
	})
	if err != nil {
		return Announcement{}, err
	}
	s.record(ctx, actor.ID, "announcement.create", created.ID, nil)
	return created, nil
}

// Update rewrites an existing announcement.
func (s *Service) Update(ctx context.Context, actor authz.Identity, id string, input Input) error {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	ref := item.PermissionAttributes()
	if err := s.guard.RequireActionAt(ctx, actor, authz.ActionEdit, &ref, s.now()); err != nil {
		return err
	}
	if err := input.validate(); err != nil {
		return err
	}
	item.Title = strings.TrimSpace(input.Title)
	item.Body = strings.TrimSpace(input.Body)
	if err := s.repo.Update(ctx, item); err != nil {
		return err
	}
	s.record(ctx, actor.ID, "announcement.update", id, nil)
	return nil
}

// Delete removes an announcement.
func (s *Service) Delete(ctx context.Context, actor authz.Identity, id string) error {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	ref := item.PermissionAttributes()
	if err := s.guard.RequireActionAt(ctx, actor, authz.ActionDelete, &ref, s.now()); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor.ID, "announcement.delete", id, nil)
	return nil
}

// Publish makes the announcement visible to every user and fans out
// notifications in the background.
func (s *Service) Publish(ctx context.Context, actor authz.Identity, id string) error {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	ref := item.PermissionAttributes()
	if err := s.guard.RequireActionAt(ctx, actor, authz.ActionPublish, &ref, s.now()); err != nil {
		return err
	}
	if err := s.repo.SetStatus(ctx, id, StatusPublished); err != nil {
		return err
	}
	s.record(ctx, actor.ID, "announcement.publish", id, nil)
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueAnnouncementPublished(ctx, id); err != nil {
			// Publication already happened; fan-out failure is not fatal.
			s.logger.Warn("enqueue announcement fan-out", slog.String("announcement_id", id), slog.Any("error", err))
		}
	}
	return nil
}

// Archive retires a published announcement without deleting it.
func (s *Service) Archive(ctx context.Context, actor authz.Identity, id string) error {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	ref := item.PermissionAttributes()
	// Archiving changes publication state, so it takes the same gate as publish.
	if err := s.guard.RequireActionAt(ctx, actor, authz.ActionPublish, &ref, s.now()); err != nil {
		return err
	}
	if err := s.repo.SetStatus(ctx, id, StatusArchived); err != nil {
		return err
	}
	s.record(ctx, actor.ID, "announcement.archive", id, nil)
	return nil
}

// CountPublished reports how many announcements are live, for the dashboard.
func (s *Service) CountPublished(ctx context.Context) (int, error) {
	return s.repo.CountPublished(ctx)
}

// AvailableActions lists what the actor may do with the announcement, for
// rendering action buttons.
func (s *Service) AvailableActions(actor authz.Identity, item Announcement) []authz.Action {
	ref := item.PermissionAttributes()
	return s.guard.Evaluator.AvailableActionsAt(actor, &ref, s.now())
}

func (s *Service) canSeeDraft(actor authz.Identity, item Announcement) bool {
	if s.resolver.HasPermission(actor.Role, authz.PermManageAnnouncements, actor.PermissionOverride) {
		return true
	}
	return actor.Role == authz.RoleHelper && item.CreatedBy == actor.ID
}

func (s *Service) record(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "announcement",
		EntityID: entityID,
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
