package notifications

import "time"

// Notification kinds delivered by the portal.
const (
	KindAnnouncement  = "announcement"
	KindEventReminder = "event_reminder"
	KindSystem        = "system"
)

// Notification is a per-user message shown in the portal inbox.
type Notification struct {
	ID        string
	UserID    string
	Kind      string
	Title     string
	Body      string
	Link      string
	ReadAt    *time.Time
	CreatedAt time.Time
}

// IsRead reports whether the user opened the notification.
func (n Notification) IsRead() bool {
	return n.ReadAt != nil
}

// KindLabel returns the Indonesian label for the notification kind.
func (n Notification) KindLabel() string {
	switch n.Kind {
	case KindAnnouncement:
		return "Pengumuman"
	case KindEventReminder:
		return "Pengingat kegiatan"
	default:
		return "Sistem"
	}
}
