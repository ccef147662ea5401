package calendar

import (
	"time"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
)

// Lifecycle states of a calendar event.
const (
	StatusScheduled = "scheduled"
	StatusCancelled = "cancelled"
)

// Event is a school activity shown on the shared calendar.
type Event struct {
	ID          string
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	EndsAt      time.Time
	Status      string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PermissionAttributes exposes the fields the access evaluator consults.
func (e Event) PermissionAttributes() authz.ResourceRef {
	return authz.ResourceRef{ID: e.ID, CreatedBy: e.CreatedBy, Status: e.Status}
}

// IsCancelled reports whether the event was called off.
func (e Event) IsCancelled() bool {
	return e.Status == StatusCancelled
}

// StatusLabel returns the Indonesian label for the event state.
func (e Event) StatusLabel() string {
	if e.IsCancelled() {
		return "Dibatalkan"
	}
	return "Terjadwal"
}
