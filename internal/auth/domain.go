package auth

import (
	"time"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
)

// User represents an authenticated portal account.
type User struct {
	ID                 string
	Email              string
	Name               string
	PasswordHash       string
	Role               string
	PermissionOverride string
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Identity converts the stored account into the authorization view. The raw
// role string from the database is validated here, at the boundary; it never
// travels further as a plain string.
func (u *User) Identity() (authz.Identity, error) {
	role, err := authz.ParseRole(u.Role)
	if err != nil {
		return authz.Identity{}, err
	}
	return authz.Identity{
		ID:                 u.ID,
		Role:               role,
		PermissionOverride: u.PermissionOverride,
	}, nil
}
