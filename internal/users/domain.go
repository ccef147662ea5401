package users

import (
	"time"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
)

// Account is a portal user as seen by the administration screens.
type Account struct {
	ID                 string
	Email              string
	Name               string
	Role               authz.Role
	PermissionOverride string
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RoleLabel returns the Indonesian display name for the account role.
func (a Account) RoleLabel() string {
	return a.Role.DisplayName()
}

// HasOverride reports whether the account carries an explicit permission set.
func (a Account) HasOverride() bool {
	return a.PermissionOverride != ""
}

func roleFromStorage(raw string) authz.Role {
	role, err := authz.ParseRole(raw)
	if err != nil {
		return authz.Role(raw)
	}
	return role
}
