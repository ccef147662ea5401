package training

import (
	"time"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
)

// Lifecycle states of a training video.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Video is a training recording linked from the portal.
type Video struct {
	ID              string
	Title           string
	Description     string
	VideoURL        string
	DurationMinutes int
	Status          string
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PermissionAttributes exposes the fields the access evaluator consults.
func (v Video) PermissionAttributes() authz.ResourceRef {
	return authz.ResourceRef{ID: v.ID, CreatedBy: v.CreatedBy, Status: v.Status}
}

// IsPublished reports whether the video is visible to every user.
func (v Video) IsPublished() bool {
	return v.Status == StatusPublished
}

// StatusLabel returns the Indonesian label for the lifecycle state.
func (v Video) StatusLabel() string {
	if v.IsPublished() {
		return "Terbit"
	}
	return "Draf"
}
