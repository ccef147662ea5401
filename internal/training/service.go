package training

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
)

// ErrValidation indicates the submitted video fields are incomplete.
var ErrValidation = errors.New("training video validation failed")

// AuditRecorder persists content mutations.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles training video business logic.
type Service struct {
	repo     Repository
	guard    *authz.Guard
	resolver authz.Resolver
	audit    AuditRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a Service instance.
func NewService(repo Repository, guard *authz.Guard, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		guard:    guard,
		resolver: guard.Resolver,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// ListFor returns the videos the actor may see.
func (s *Service) ListFor(ctx context.Context, actor authz.Identity) ([]Video, error) {
	filter := ListFilter{PublishedOnly: true}
	switch {
	case actor.Role == authz.RoleAdmin:
		filter.PublishedOnly = false
	case s.resolver.HasPermission(actor.Role, authz.PermManageTrainingVideos, actor.PermissionOverride):
		filter.DraftsBy = actor.ID
	}
	return s.repo.List(ctx, filter)
}

// Get fetches one video, hiding drafts from plain viewers.
func (s *Service) Get(ctx context.Context, actor authz.Identity, id string) (Video, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return Video{}, err
	}
	if !item.IsPublished() {
		canSee := actor.Role == authz.RoleAdmin ||
			(item.CreatedBy == actor.ID &&
				s.resolver.HasPermission(actor.Role, authz.PermManageTrainingVideos, actor.PermissionOverride))
		if !canSee {
			return Video{}, shared.ErrNotFound
		}
	}
	return item, nil
}

// Input carries the editable video fields.
type Input struct {
	Title           string
	Description     string
	VideoURL        string
	DurationMinutes int
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.VideoURL) == "" {
		return ErrValidation
	}
	parsed, err := url.Parse(strings.TrimSpace(in.VideoURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return ErrValidation
	}
	if in.DurationMinutes < 0 {
		return ErrValidation
	}
	return nil
}

// Create stores a new draft video authored by the actor.
func (s *Service) Create(ctx context.Context, actor authz.Identity, input Input) (Video, error) {
	if err := s.guard.RequireActionAt(ctx, actor, authz.ActionCreate, nil, s.now()); err != nil {
		return Video{}, err
	}
	if err := input.validate(); err != nil {
		return Video{}, err
	}
	created, err := s.repo.Create(ctx, Video{
		Title:           strings.TrimSpace(input.Title),
		Description:     strings.TrimSpace(input.Description),
		VideoURL:        strings.TrimSpace(input.VideoURL),
		DurationMinutes: input.DurationMinutes,
		Status:          StatusDraft,
		CreatedBy:       actor.ID,
	})
	if err != nil {
		return Video{}, err
	}
	s.record(ctx, actor.ID, "training_video.create", created.ID)
	return created, nil
}

// Update rewrites an existing video.
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
	item.Description = strings.TrimSpace(input.Description)
	item.VideoURL = strings.TrimSpace(input.VideoURL)
	item.DurationMinutes = input.DurationMinutes
	if err := s.repo.Update(ctx, item); err != nil {
		return err
	}
	s.record(ctx, actor.ID, "training_video.update", id)
	return nil
}

// Delete removes a video.
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
	s.record(ctx, actor.ID, "training_video.delete", id)
	return nil
}

// Publish makes the video visible to every user.
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
	s.record(ctx, actor.ID, "training_video.publish", id)
	return nil
}

// Unpublish returns the video to draft.
func (s *Service) Unpublish(ctx context.Context, actor authz.Identity, id string) error {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	ref := item.PermissionAttributes()
	if err := s.guard.RequireActionAt(ctx, actor, authz.ActionPublish, &ref, s.now()); err != nil {
		return err
	}
	if err := s.repo.SetStatus(ctx, id, StatusDraft); err != nil {
		return err
	}
	s.record(ctx, actor.ID, "training_video.unpublish", id)
	return nil
}

func (s *Service) record(ctx context.Context, actorID, action, entityID string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "training_video",
		EntityID: entityID,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
