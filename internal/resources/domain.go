package resources

import (
	"time"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
)

// Lifecycle states of a resource link.
const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Resource is a shared link or document the school publishes for its users.
type Resource struct {
	ID          string
	Title       string
	Description string
	URL         string
	Category    string
	Status      string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PermissionAttributes exposes the fields the access evaluator consults.
func (r Resource) PermissionAttributes() authz.ResourceRef {
	return authz.ResourceRef{ID: r.ID, CreatedBy: r.CreatedBy, Status: r.Status}
}

// IsActive reports whether the resource is visible to every user.
func (r Resource) IsActive() bool {
	return r.Status == StatusActive
}

// StatusLabel returns the Indonesian label for the lifecycle state.
func (r Resource) StatusLabel() string {
	switch r.Status {
	case StatusActive:
		return "Aktif"
	case StatusInactive:
		return "Nonaktif"
	default:
		return "Draf"
	}
}
