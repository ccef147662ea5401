package resources

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

// ErrValidation indicates the submitted resource fields are incomplete or
// the URL does not parse.
var ErrValidation = errors.New("resource validation failed")

// AuditRecorder persists content mutations.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles resource business logic.
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

// ListFor returns the resources visible to the actor: active entries for
// readers, everything for resource managers, own drafts for helpers.
func (s *Service) ListFor(ctx context.Context, actor authz.Identity, category string) ([]Resource, error) {
	filter := ListFilter{ActiveOnly: true, Category: category}
	switch {
	case actor.Role == authz.RoleAdmin:
		filter.ActiveOnly = false
	case s.resolver.HasPermission(actor.Role, authz.PermManageResources, actor.PermissionOverride):
		filter.DraftsBy = actor.ID
	}
	return s.repo.List(ctx, filter)
}

// Get fetches one resource, hiding non-active entries from plain readers.
func (s *Service) Get(ctx context.Context, actor authz.Identity, id string) (Resource, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return Resource{}, err
	}
	if !item.IsActive() && !s.canSeeInactive(actor, item) {
		return Resource{}, shared.ErrNotFound
	}
	return item, nil
}

// Input carries the editable resource fields.
type Input struct {
	Title       string
	Description string
	URL         string
	Category    string
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.URL) == "" {
		return ErrValidation
	}
	parsed, err := url.Parse(strings.TrimSpace(in.URL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return ErrValidation
	}
	return nil
}

// Create stores a new draft resource authored by the actor.
func (s *Service) Create(ctx context.Context, actor authz.Identity, input Input) (Resource, error) {
	if err := s.guard.RequireActionAt(ctx, actor, authz.ActionCreate, nil, s.now()); err != nil {
		return Resource{}, err
	}
	if err := input.validate(); err != nil {
		return Resource{}, err
	}
	created, err := s.repo.Create(ctx, Resource{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		URL:         strings.TrimSpace(input.URL),
		Category:    strings.TrimSpace(input.Category),
		Status:      StatusDraft,
		CreatedBy:   actor.ID,
	})
	if err != nil {
		return Resource{}, err
	}
	s.record(ctx, actor.ID, "resource.create", created.ID)
	return created, nil
}

// Update rewrites an existing resource.
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
	item.URL = strings.TrimSpace(input.URL)
	item.Category = strings.TrimSpace(input.Category)
	if err := s.repo.Update(ctx, item); err != nil {
		return err
	}
	s.record(ctx, actor.ID, "resource.update", id)
	return nil
}

// Delete removes a resource.
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
	s.record(ctx, actor.ID, "resource.delete", id)
	return nil
}

// Activate makes the resource visible to everyone. Like publishing an
// announcement, switching visibility is an administrator call.
func (s *Service) Activate(ctx context.Context, actor authz.Identity, id string) error {
	return s.setStatus(ctx, actor, id, StatusActive, "resource.activate")
}

// Deactivate hides the resource from readers without deleting it.
func (s *Service) Deactivate(ctx context.Context, actor authz.Identity, id string) error {
	return s.setStatus(ctx, actor, id, StatusInactive, "resource.deactivate")
}

func (s *Service) setStatus(ctx context.Context, actor authz.Identity, id, status, auditAction string) error {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	ref := item.PermissionAttributes()
	if err := s.guard.RequireActionAt(ctx, actor, authz.ActionPublish, &ref, s.now()); err != nil {
		return err
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		return err
	}
	s.record(ctx, actor.ID, auditAction, id)
	return nil
}

// CountActive reports how many resources are live, for the dashboard.
func (s *Service) CountActive(ctx context.Context) (int, error) {
	return s.repo.Count(ctx, true)
}

// AvailableActions lists what the actor may do with the resource.
func (s *Service) AvailableActions(actor authz.Identity, item Resource) []authz.Action {
	ref := item.PermissionAttributes()
	return s.guard.Evaluator.AvailableActionsAt(actor, &ref, s.now())
}

func (s *Service) canSeeInactive(actor authz.Identity, item Resource) bool {
	if actor.Role == authz.RoleAdmin {
		return true
	}
	return s.resolver.HasPermission(actor.Role, authz.PermManageResources, actor.PermissionOverride) &&
		item.CreatedBy == actor.ID
}

func (s *Service) record(ctx context.Context, actorID, action, entityID string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "resource",
		EntityID: entityID,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
