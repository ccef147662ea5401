package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskAnnouncementPublished fans a published announcement out to every
	// active user's inbox.
	TaskAnnouncementPublished = "announcement:published"
	// TaskEventReminder delivers the day-before reminder for one event.
	TaskEventReminder = "event:reminder"
	// TaskMaintenance runs the nightly cleanup pass.
	TaskMaintenance = "portal:maintenance"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// AnnouncementPublishedPayload identifies the announcement to fan out.
type AnnouncementPublishedPayload struct {
	AnnouncementID string `json:"announcement_id"`
}

// NewAnnouncementPublishedTask constructs the fan-out task.
func NewAnnouncementPublishedTask(announcementID string) (*asynq.Task, error) {
	data, err := json.Marshal(AnnouncementPublishedPayload{AnnouncementID: announcementID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnnouncementPublished, data, asynq.Queue(QueueDefault)), nil
}

// EventReminderPayload identifies the event to remind about.
type EventReminderPayload struct {
	EventID string `json:"event_id"`
}

// NewEventReminderTask constructs the reminder task.
func NewEventReminderTask(eventID string) (*asynq.Task, error) {
	data, err := json.Marshal(EventReminderPayload{EventID: eventID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEventReminder, data, asynq.Queue(QueueDefault)), nil
}

// NewMaintenanceTask constructs the nightly cleanup task.
func NewMaintenanceTask() *asynq.Task {
	return asynq.NewTask(TaskMaintenance, nil, asynq.Queue(QueueDefault))
}

// EnqueueAnnouncementPublished submits the fan-out task.
func (c *Client) EnqueueAnnouncementPublished(ctx context.Context, announcementID string) error {
	task, err := NewAnnouncementPublishedTask(announcementID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.MaxRetry(5))
	return err
}

// EnqueueEventReminder schedules the reminder to run at the given time.
func (c *Client) EnqueueEventReminder(ctx context.Context, eventID string, remindAt time.Time) error {
	task, err := NewEventReminderTask(eventID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.ProcessAt(remindAt), asynq.MaxRetry(3))
	return err
}
