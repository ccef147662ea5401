package admin

import "time"

// AuditEntry is one row of the administrative activity trail.
type AuditEntry struct {
	ID         int64
	ActorID    string
	ActorName  string
	Action     string
	Entity     string
	EntityID   string
	Meta       string
	OccurredAt time.Time
}

// EntityLabel returns the Indonesian label for the audited entity.
func (e AuditEntry) EntityLabel() string {
	switch e.Entity {
	case "user":
		return "Pengguna"
	case "announcement":
		return "Pengumuman"
	case "resource":
		return "Sumber Daya"
	case "training_video":
		return "Video Pelatihan"
	case "calendar_event":
		return "Kegiatan"
	default:
		return e.Entity
	}
}
