package calendar

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
)

// ErrValidation indicates the submitted event fields are incomplete or the
// times are inverted.
var ErrValidation = errors.New("event validation failed")

// Enqueuer schedules background work triggered by calendar changes.
type Enqueuer interface {
	EnqueueEventReminder(ctx context.Context, eventID string, remindAt time.Time) error
}

// AuditRecorder persists content mutations.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Reminders go out the day before an event starts.
const reminderLead = 24 * time.Hour

// Service handles calendar business logic.
type Service struct {
	repo     Repository
	guard    *authz.Guard
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
		enqueuer: enqueuer,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// Month returns all events overlapping the month containing the given day.
func (s *Service) Month(ctx context.Context, day time.Time) ([]Event, error) {
	first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	next := first.AddDate(0, 1, 0)
	return s.repo.ListBetween(ctx, first, next)
}

// Get fetches one event. Events are visible to every signed-in user.
func (s *Service) Get(ctx context.Context, id string) (Event, error) {
	return s.repo.Get(ctx, id)
}

// Input carries the editable event fields.
type Input struct {
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	EndsAt      time.Time
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Title) == "" || in.StartsAt.IsZero() {
		return ErrValidation
	}
	if !in.EndsAt.IsZero() && in.EndsAt.Before(in.StartsAt) {
		return ErrValidation
	}
	return nil
}

// Create schedules a new event and queues its reminder.
func (s *Service) Create(ctx context.Context, actor authz.Identity, input Input) (Event, error) {
	if err := s.guard.RequireActionAt(ctx, actor, authz.ActionCreate, nil, s.now()); err != nil {
		return Event{}, err
	}
	if err := input.validate(); err != nil {
		return Event{}, err
	}
	endsAt := input.EndsAt
	if endsAt.IsZero() {
		endsAt = input.StartsAt.Add(time.Hour)
	}
	created, err := s.repo.Create(ctx, Event{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Location:    strings.TrimSpace(input.Location),
		StartsAt:    input.StartsAt,
		EndsAt:      endsAt,
		Status:      StatusScheduled,
		CreatedBy:   actor.ID,
	})
	if err != nil {
		return Event{}, err
	}
	s.record(ctx, actor.ID, "event.create", created.ID)
	s.scheduleReminder(ctx, created)
	return created, nil
}

// Update rewrites an existing event.
func (s *Service) Update(ctx context.Context, actor authz.Identity, id string, input Input) error {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	ref := event.PermissionAttributes()
	if err := s.guard.RequireActionAt(ctx, actor, authz.ActionEdit, &ref, s.now()); err != nil {
		return err
	}
	if err := input.validate(); err != nil {
		return err
	}
	rescheduled := !event.StartsAt.Equal(input.StartsAt)
	event.Title = strings.TrimSpace(input.Title)
	event.Description = strings.TrimSpace(input.Description)
	event.Location = strings.TrimSpace(input.Location)
	event.StartsAt = input.StartsAt
	event.EndsAt = input.EndsAt
	if event.EndsAt.IsZero() {
		event.EndsAt = event.StartsAt.Add(time.Hour)
	}
	if err := s.repo.Update(ctx, event); err != nil {
		return err
	}
	s.record(ctx, actor.ID, "event.update", id)
	if rescheduled {
		s.scheduleReminder(ctx, event)
	}
	return nil
}

// Delete removes an event.
func (s *Service) Delete(ctx context.Context, actor authz.Identity, id string) error {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	ref := event.PermissionAttributes()
	if err := s.guard.RequireActionAt(ctx, actor, authz.ActionDelete, &ref, s.now()); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor.ID, "event.delete", id)
	return nil
}

// Cancel calls the event off while keeping it on the calendar.
func (s *Service) Cancel(ctx context.Context, actor authz.Identity, id string) error {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	ref := event.PermissionAttributes()
	if err := s.guard.RequireActionAt(ctx, actor, authz.ActionEdit, &ref, s.now()); err != nil {
		return err
	}
	if err := s.repo.SetStatus(ctx, id, StatusCancelled); err != nil {
		return err
	}
	s.record(ctx, actor.ID, "event.cancel", id)
	return nil
}

// CountUpcoming reports how many scheduled events lie ahead, for the dashboard.
func (s *Service) CountUpcoming(ctx context.Context) (int, error) {
	return s.repo.CountUpcoming(ctx, s.now())
}

func (s *Service) scheduleReminder(ctx context.Context, event Event) {
	if s.enqueuer == nil {
		return
	}
	remindAt := event.StartsAt.Add(-reminderLead)
	if remindAt.Before(s.now()) {
		return
	}
	if err := s.enqueuer.EnqueueEventReminder(ctx, event.ID, remindAt); err != nil {
		s.logger.Warn("enqueue event reminder", slog.String("event_id", event.ID), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actorID, action, entityID string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "event",
		EntityID: entityID,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
