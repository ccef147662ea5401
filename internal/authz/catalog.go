// Package authz implements the portal's authorization engine: a static
// role/permission catalog, per-user permission overrides, and an
// attribute-based evaluator for resource-scoped actions.
package authz

import (
	"fmt"
	"strings"
)

// Role is a closed enumeration of account tiers.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleHelper Role = "HELPER"
	RoleGuest  Role = "GUEST"
)

// Permission is an atomic capability token from the fixed catalog.
type Permission string

const (
	PermManageWebsite        Permission = "MANAGE_WEBSITE"
	PermManageUsers          Permission = "MANAGE_USERS"
	PermManageSystemSettings Permission = "MANAGE_SYSTEM_SETTINGS"
	PermViewAnalytics        Permission = "VIEW_ANALYTICS"
	PermManageAnnouncements  Permission = "MANAGE_ANNOUNCEMENTS"
	PermManageITSystem       Permission = "MANAGE_IT_SYSTEM"
	PermManageResources      Permission = "MANAGE_RESOURCES"
	PermManageTrainingVideos Permission = "MANAGE_TRAINING_VIDEOS"
	PermManageTasks          Permission = "MANAGE_TASKS"
	PermManageActivities     Permission = "MANAGE_ACTIVITIES"
	PermManageCalendar       Permission = "MANAGE_CALENDAR"
	PermViewTrainingVideos   Permission = "VIEW_TRAINING_VIDEOS"
	PermViewResources        Permission = "VIEW_RESOURCES"
	PermViewDashboard        Permission = "VIEW_DASHBOARD"
	PermViewCalendar         Permission = "VIEW_CALENDAR"
	PermViewTeamInfo         Permission = "VIEW_TEAM_INFO"
)

// guestPermissions is the read-only floor shared by every role.
var guestPermissions = []Permission{
	PermViewTrainingVideos,
	PermViewResources,
	PermViewDashboard,
	PermViewCalendar,
	PermViewTeamInfo,
}

// helperPermissions adds management of portal content on top of the guest floor.
var helperPermissions = append([]Permission{
	PermManageITSystem,
	PermManageResources,
	PermManageTrainingVideos,
	PermManageTasks,
	PermManageActivities,
	PermManageCalendar,
}, guestPermissions...)

// adminPermissions is the full catalog: site administration plus everything HELPER has.
var adminPermissions = append([]Permission{
	PermManageWebsite,
	PermManageUsers,
	PermManageSystemSettings,
	PermViewAnalytics,
	PermManageAnnouncements,
}, helperPermissions...)

// rolePermissions maps each role to its default grant set. Built once at
// process start and read-only afterwards; permission changes ship as a deploy.
var rolePermissions = map[Role]map[Permission]struct{}{
	RoleAdmin:  permissionSet(adminPermissions),
	RoleHelper: permissionSet(helperPermissions),
	RoleGuest:  permissionSet(guestPermissions),
}

func permissionSet(perms []Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// ParseRole validates a raw role string from the identity store. STUDENT is a
// legacy alias for the self-registration tier and resolves to GUEST.
func ParseRole(raw string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "ADMIN":
		return RoleAdmin, nil
	case "HELPER":
		return RoleHelper, nil
	case "GUEST", "STUDENT":
		return RoleGuest, nil
	default:
		return "", fmt.Errorf("authz: unknown role %q", raw)
	}
}

// ParsePermission validates a raw permission token against the catalog.
func ParsePermission(raw string) (Permission, error) {
	p := Permission(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := rolePermissions[RoleAdmin][p]; !ok {
		return "", fmt.Errorf("authz: unknown permission %q", raw)
	}
	return p, nil
}

// AllPermissions returns the full catalog in declaration order.
func AllPermissions() []Permission {
	out := make([]Permission, len(adminPermissions))
	copy(out, adminPermissions)
	return out
}

// RolePermissions returns a copy of the default grant list for a role.
func RolePermissions(role Role) []Permission {
	set, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	out := make([]Permission, 0, len(set))
	for _, p := range adminPermissions {
		if _, granted := set[p]; granted {
			out = append(out, p)
		}
	}
	return out
}

// DisplayName returns a human readable role label for templates.
func (r Role) DisplayName() string {
	switch r {
	case RoleAdmin:
		return "Administrator Sistem"
	case RoleHelper:
		return "Asisten IT"
	case RoleGuest:
		return "Pengguna Tamu"
	default:
		return "Peran Tidak Dikenal"
	}
}

// Description returns a short explanation of what the role may do.
func (r Role) Description() string {
	switch r {
	case RoleAdmin:
		return "Mengelola seluruh situs dan fitur sistem IT"
	case RoleHelper:
		return "Mengelola sistem IT tanpa akses administrasi situs"
	case RoleGuest:
		return "Akses baca untuk materi pelatihan dan informasi"
	default:
		return ""
	}
}
