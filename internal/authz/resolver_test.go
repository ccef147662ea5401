package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPermissionRoleDefaults(t *testing.T) {
	r := Resolver{}

	assert.True(t, r.HasPermission(RoleAdmin, PermManageWebsite, ""))
	assert.True(t, r.HasPermission(RoleHelper, PermManageITSystem, ""))
	assert.False(t, r.HasPermission(RoleHelper, PermManageWebsite, ""))
	assert.True(t, r.HasPermission(RoleGuest, PermViewResources, ""))
	assert.False(t, r.HasPermission(RoleGuest, PermManageResources, ""))
	assert.False(t, r.HasPermission(Role("OPERATOR"), PermViewResources, ""))
}

// A non-empty override fully replaces the role defaults, never merges.
func TestOverrideReplacesRoleDefaults(t *testing.T) {
	r := Resolver{}
	override := `["MANAGE_WEBSITE"]`

	// A guest with an override grant gains the permission...
	assert.True(t, r.HasPermission(RoleGuest, PermManageWebsite, override))
	// ...and loses everything not in the override, even role defaults.
	assert.False(t, r.HasPermission(RoleGuest, PermViewDashboard, override))

	// Same override yields the same answers regardless of role.
	assert.True(t, r.HasPermission(RoleAdmin, PermManageWebsite, override))
	assert.False(t, r.HasPermission(RoleAdmin, PermManageUsers, override))
}

func TestMalformedOverrideFallsBack(t *testing.T) {
	r := Resolver{}
	malformed := []string{
		"{not json",
		`{"a":1}`,
		`["NOT_A_PERMISSION"]`,
		`[42]`,
		"null,",
	}
	for _, override := range malformed {
		for _, perm := range []Permission{PermViewDashboard, PermManageWebsite, PermManageITSystem} {
			for _, role := range []Role{RoleAdmin, RoleHelper, RoleGuest} {
				got := r.HasPermission(role, perm, override)
				want := r.HasPermission(role, perm, "")
				assert.Equal(t, want, got,
					"override=%q role=%s perm=%s must match role default", override, role, perm)
			}
		}
	}
}

func TestEmptyOverrideVariantsUseRoleDefault(t *testing.T) {
	r := Resolver{}
	for _, override := range []string{"", "   ", "[]", "null"} {
		assert.True(t, r.HasPermission(RoleHelper, PermManageITSystem, override), "override=%q", override)
		assert.False(t, r.HasPermission(RoleHelper, PermManageWebsite, override), "override=%q", override)
	}
}

func TestDecodeOverride(t *testing.T) {
	perms, err := DecodeOverride(`["VIEW_DASHBOARD","MANAGE_CALENDAR"]`)
	require.NoError(t, err)
	assert.Equal(t, []Permission{PermViewDashboard, PermManageCalendar}, perms)

	perms, err = DecodeOverride("")
	require.NoError(t, err)
	assert.Nil(t, perms)

	_, err = DecodeOverride(`["BOGUS"]`)
	assert.Error(t, err)
}

func TestEncodeDecodeOverrideRoundTrip(t *testing.T) {
	encoded, err := EncodeOverride([]Permission{PermViewCalendar, PermManageTasks})
	require.NoError(t, err)
	decoded, err := DecodeOverride(encoded)
	require.NoError(t, err)
	assert.Equal(t, []Permission{PermViewCalendar, PermManageTasks}, decoded)

	empty, err := EncodeOverride(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEffectivePermissions(t *testing.T) {
	r := Resolver{}

	assert.ElementsMatch(t, RolePermissions(RoleGuest), r.EffectivePermissions(RoleGuest, ""))
	assert.ElementsMatch(t,
		[]Permission{PermManageCalendar},
		r.EffectivePermissions(RoleAdmin, `["MANAGE_CALENDAR"]`))
	// Malformed falls back to role defaults.
	assert.ElementsMatch(t, RolePermissions(RoleHelper), r.EffectivePermissions(RoleHelper, "{broken"))
}

func TestCanAccessAdmin(t *testing.T) {
	r := Resolver{}

	assert.True(t, r.CanAccessAdmin(RoleAdmin, ""))
	assert.False(t, r.CanAccessAdmin(RoleHelper, ""))
	assert.False(t, r.CanAccessAdmin(RoleGuest, ""))
	// Explicit override grant opens the admin area for any role.
	assert.True(t, r.CanAccessAdmin(RoleGuest, `["MANAGE_WEBSITE"]`))
	// Malformed override never grants.
	assert.False(t, r.CanAccessAdmin(RoleGuest, `[MANAGE_WEBSITE]`))
}

func TestCanManageITSystem(t *testing.T) {
	r := Resolver{}

	assert.True(t, r.CanManageITSystem(RoleAdmin, ""))
	assert.True(t, r.CanManageITSystem(RoleHelper, ""))
	assert.False(t, r.CanManageITSystem(RoleGuest, ""))
	assert.True(t, r.CanManageITSystem(RoleGuest, `["MANAGE_IT_SYSTEM"]`))
}

func TestHasAnyAllPermissions(t *testing.T) {
	r := Resolver{}

	assert.True(t, r.HasAnyPermission(RoleGuest, "", PermManageWebsite, PermViewDashboard))
	assert.False(t, r.HasAnyPermission(RoleGuest, "", PermManageWebsite, PermManageUsers))
	assert.False(t, r.HasAnyPermission(RoleAdmin, ""))

	assert.True(t, r.HasAllPermissions(RoleAdmin, "", PermManageWebsite, PermManageUsers))
	assert.False(t, r.HasAllPermissions(RoleHelper, "", PermManageITSystem, PermManageWebsite))
	assert.False(t, r.HasAllPermissions(RoleAdmin, ""))
}
