package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	cases := []struct {
		raw     string
		want    Role
		wantErr bool
	}{
		{raw: "ADMIN", want: RoleAdmin},
		{raw: "admin", want: RoleAdmin},
		{raw: " Helper ", want: RoleHelper},
		{raw: "GUEST", want: RoleGuest},
		{raw: "STUDENT", want: RoleGuest},
		{raw: "student", want: RoleGuest},
		{raw: "", wantErr: true},
		{raw: "SUPERUSER", wantErr: true},
	}
	for _, tc := range cases {
		role, err := ParseRole(tc.raw)
		if tc.wantErr {
			assert.Error(t, err, "raw=%q", tc.raw)
			continue
		}
		require.NoError(t, err, "raw=%q", tc.raw)
		assert.Equal(t, tc.want, role, "raw=%q", tc.raw)
	}
}

func TestParsePermission(t *testing.T) {
	p, err := ParsePermission("manage_it_system")
	require.NoError(t, err)
	assert.Equal(t, PermManageITSystem, p)

	_, err = ParsePermission("LAUNCH_MISSILES")
	assert.Error(t, err)
}

// ADMIN's grant set must contain every permission any role has.
func TestAdminIsSuperset(t *testing.T) {
	adminSet := make(map[Permission]struct{})
	for _, p := range RolePermissions(RoleAdmin) {
		adminSet[p] = struct{}{}
	}
	for _, role := range []Role{RoleAdmin, RoleHelper, RoleGuest} {
		for _, p := range RolePermissions(role) {
			_, ok := adminSet[p]
			assert.True(t, ok, "permission %s of role %s missing from ADMIN", p, role)
		}
	}
}

func TestHelperContainsGuestFloor(t *testing.T) {
	helperSet := make(map[Permission]struct{})
	for _, p := range RolePermissions(RoleHelper) {
		helperSet[p] = struct{}{}
	}
	for _, p := range RolePermissions(RoleGuest) {
		_, ok := helperSet[p]
		assert.True(t, ok, "guest permission %s missing from HELPER", p)
	}
}

func TestGuestIsViewOnly(t *testing.T) {
	for _, p := range RolePermissions(RoleGuest) {
		assert.Contains(t, string(p), "VIEW_", "guest permission %s is not a view grant", p)
	}
}

func TestRolePermissionsReturnsCopy(t *testing.T) {
	first := RolePermissions(RoleGuest)
	first[0] = PermManageWebsite
	second := RolePermissions(RoleGuest)
	assert.NotEqual(t, PermManageWebsite, second[0])
}

func TestRolePermissionsUnknownRole(t *testing.T) {
	assert.Nil(t, RolePermissions(Role("OPERATOR")))
}
