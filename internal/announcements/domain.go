package announcements

import (
	"time"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
)

// Lifecycle states of an announcement.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Announcement is a school-wide notice shown on the portal.
type Announcement struct {
	ID            string
	Title         string
	Body          string
	Status        string
	CreatedBy     string
	CreatedByName string
	PublishedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PermissionAttributes exposes the fields the access evaluator consults.
func (a Announcement) PermissionAttributes() authz.ResourceRef {
	return authz.ResourceRef{ID: a.ID, CreatedBy: a.CreatedBy, Status: a.Status}
}

// IsPublished reports whether the announcement is visible to everyone.
func (a Announcement) IsPublished() bool {
	return a.Status == StatusPublished
}

// StatusLabel returns the Indonesian label for the lifecycle state.
func (a Announcement) StatusLabel() string {
	switch a.Status {
	case StatusPublished:
		return "Terbit"
	case StatusArchived:
		return "Arsip"
	default:
		return "Draf"
	}
}
