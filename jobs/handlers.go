package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/portal-sekolah/portal-sekolah/internal/announcements"
	"github.com/portal-sekolah/portal-sekolah/internal/calendar"
	jobmetrics "github.com/portal-sekolah/portal-sekolah/internal/jobs"
	"github.com/portal-sekolah/portal-sekolah/internal/notifications"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
)

// AnnouncementSource loads announcements for fan-out.
type AnnouncementSource interface {
	Get(ctx context.Context, id string) (announcements.Announcement, error)
}

// EventSource loads calendar events for reminders.
type EventSource interface {
	Get(ctx context.Context, id string) (calendar.Event, error)
}

// NotificationSink writes inbox notifications.
type NotificationSink interface {
	InsertForAllActiveUsers(ctx context.Context, template notifications.Notification) (int, error)
	DeleteOlderThan(ctx context.Context, days int) (int, error)
}

// SessionPurger removes expired login sessions.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// IdempotencyGuard deduplicates fan-out deliveries.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// Retention windows applied by the nightly maintenance job.
const (
	notificationRetentionDays = 90
	idempotencyRetention      = 30 * 24 * time.Hour
)

// Registry bundles the dependencies the portal job handlers need.
type Registry struct {
	Announcements AnnouncementSource
	Events        EventSource
	Notifications NotificationSink
	Sessions      SessionPurger
	Idempotency   IdempotencyGuard
	Metrics       *jobmetrics.Metrics
	Logger        *slog.Logger
}

// NewRegistry constructs a Registry instance.
func NewRegistry(announcementSource AnnouncementSource, eventSource EventSource, sink NotificationSink, sessions SessionPurger, idempotency IdempotencyGuard, metrics *jobmetrics.Metrics, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		Announcements: announcementSource,
		Events:        eventSource,
		Notifications: sink,
		Sessions:      sessions,
		Idempotency:   idempotency,
		Metrics:       metrics,
		Logger:        logger,
	}
}

// Handlers returns the task handlers to register on the worker.
func (reg *Registry) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskAnnouncementPublished, Handler: reg.HandleAnnouncementPublished},
		{Type: TaskEventReminder, Handler: reg.HandleEventReminder},
		{Type: TaskMaintenance, Handler: reg.HandleMaintenance},
	}
}

// Cron returns the scheduled task registrations.
func (reg *Registry) Cron() []CronRegistration {
	return []CronRegistration{
		{Spec: "0 3 * * *", Task: NewMaintenanceTask()},
	}
}

// HandleAnnouncementPublished writes an inbox notification for every active
// user. The idempotency key keeps retries and double-publishes from spamming
// inboxes.
func (reg *Registry) HandleAnnouncementPublished(ctx context.Context, t *asynq.Task) error {
	tracker := reg.Metrics.Track("announcement_fanout")
	var payload AnnouncementPublishedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(errors.Join(err, asynq.SkipRetry))
	}
	item, err := reg.Announcements.Get(ctx, payload.AnnouncementID)
	if errors.Is(err, shared.ErrNotFound) {
		reg.Logger.Warn("fan-out skipped, announcement gone", slog.String("announcement_id", payload.AnnouncementID))
		return tracker.End(nil)
	}
	if err != nil {
		return tracker.End(err)
	}
	if !item.IsPublished() {
		reg.Logger.Info("fan-out skipped, announcement no longer published", slog.String("announcement_id", item.ID))
		return tracker.End(nil)
	}

	key := "announcement:" + item.ID
	err = reg.Idempotency.CheckAndInsert(ctx, key, "notifications")
	if errors.Is(err, shared.ErrIdempotencyConflict) {
		reg.Logger.Info("fan-out already delivered", slog.String("announcement_id", item.ID))
		return tracker.End(nil)
	}
	if err != nil {
		return tracker.End(err)
	}

	count, err := reg.Notifications.InsertForAllActiveUsers(ctx, notifications.Notification{
		Kind:  notifications.KindAnnouncement,
		Title: "Pengumuman baru: " + item.Title,
		Body:  truncate(item.Body, 200),
		Link:  "/announcements/" + item.ID,
	})
	if err != nil {
		// Release the key so the retry can deliver.
		if delErr := reg.Idempotency.Delete(ctx, key); delErr != nil {
			reg.Logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", delErr))
		}
		return tracker.End(err)
	}
	reg.Metrics.AddFanout(notifications.KindAnnouncement, count)
	reg.Logger.Info("announcement fan-out delivered",
		slog.String("announcement_id", item.ID),
		slog.Int("recipients", count))
	return tracker.End(nil)
}

// truncate shortens inbox previews so a long announcement body does not blow
// up the notification table.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

// HandleEventReminder delivers the day-before reminder for a scheduled event.
func (reg *Registry) HandleEventReminder(ctx context.Context, t *asynq.Task) error {
	tracker := reg.Metrics.Track("event_reminder")
	var payload EventReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(errors.Join(err, asynq.SkipRetry))
	}
	event, err := reg.Events.Get(ctx, payload.EventID)
	if errors.Is(err, shared.ErrNotFound) {
		reg.Logger.Warn("reminder skipped, event gone", slog.String("event_id", payload.EventID))
		return tracker.End(nil)
	}
	if err != nil {
		return tracker.End(err)
	}
	if event.IsCancelled() {
		reg.Logger.Info("reminder skipped, event cancelled", slog.String("event_id", event.ID))
		return tracker.End(nil)
	}

	key := "event-reminder:" + event.ID
	err = reg.Idempotency.CheckAndInsert(ctx, key, "notifications")
	if errors.Is(err, shared.ErrIdempotencyConflict) {
		return tracker.End(nil)
	}
	if err != nil {
		return tracker.End(err)
	}

	body := "Kegiatan dimulai " + event.StartsAt.Format("02 Jan 2006 15:04")
	if event.Location != "" {
		body += " di " + event.Location
	}
	count, err := reg.Notifications.InsertForAllActiveUsers(ctx, notifications.Notification{
		Kind:  notifications.KindEventReminder,
		Title: "Pengingat: " + event.Title,
		Body:  body,
		Link:  "/calendar?month=" + event.StartsAt.Format("2006-01"),
	})
	if err != nil {
		if delErr := reg.Idempotency.Delete(ctx, key); delErr != nil {
			reg.Logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", delErr))
		}
		return tracker.End(err)
	}
	reg.Metrics.AddFanout(notifications.KindEventReminder, count)
	reg.Logger.Info("event reminder delivered",
		slog.String("event_id", event.ID),
		slog.Int("recipients", count))
	return tracker.End(nil)
}

// HandleMaintenance runs the nightly cleanup: expired sessions, stale
// notifications and old idempotency keys.
func (reg *Registry) HandleMaintenance(ctx context.Context, t *asynq.Task) error {
	tracker := reg.Metrics.Track("maintenance")
	var errs []error

	if reg.Sessions != nil {
		purged, err := reg.Sessions.PurgeExpiredSessions(ctx)
		if err != nil {
			errs = append(errs, err)
		} else if purged > 0 {
			reg.Logger.Info("expired sessions purged", slog.Int64("count", purged))
		}
	}
	if reg.Notifications != nil {
		removed, err := reg.Notifications.DeleteOlderThan(ctx, notificationRetentionDays)
		if err != nil {
			errs = append(errs, err)
		} else if removed > 0 {
			reg.Logger.Info("stale notifications pruned", slog.Int("count", removed))
		}
	}
	if err := reg.Idempotency.Cleanup(ctx, idempotencyRetention); err != nil {
		errs = append(errs, err)
	}
	return tracker.End(errors.Join(errs...))
}
