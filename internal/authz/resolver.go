package authz

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Identity is the authorization view of a user, produced by the identity
// resolver at the request boundary. PermissionOverride is the raw serialized
// override list; decoding happens inside the engine so its failure mode stays
// under the engine's control.
type Identity struct {
	ID                 string
	Role               Role
	PermissionOverride string
}

// DecodeOverride parses a serialized override list into catalog permissions.
// The stored format is a JSON array of permission tokens. An empty string
// means "no override". Any other shape, or a token outside the catalog, is a
// decode error.
func DecodeOverride(raw string) ([]Permission, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var tokens []string
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		return nil, fmt.Errorf("authz: decode override: %w", err)
	}
	perms := make([]Permission, 0, len(tokens))
	for _, token := range tokens {
		p, err := ParsePermission(token)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, nil
}

// EncodeOverride serializes a permission list for storage on the user row.
func EncodeOverride(perms []Permission) (string, error) {
	if len(perms) == 0 {
		return "", nil
	}
	data, err := json.Marshal(perms)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Resolver answers coarse role/permission questions. A non-empty override
// fully replaces the role's default grant set; it is never merged. Malformed
// overrides fall back to the role defaults with a warning and never grant
// access on their own.
type Resolver struct {
	Logger *slog.Logger
}

// HasPermission reports whether the role (or its override) grants perm.
func (r Resolver) HasPermission(role Role, perm Permission, override string) bool {
	if perms, ok := r.decode(role, override); ok {
		for _, p := range perms {
			if p == perm {
				return true
			}
		}
		return false
	}
	_, granted := rolePermissions[role][perm]
	return granted
}

// HasAnyPermission reports whether at least one of perms is granted.
func (r Resolver) HasAnyPermission(role Role, override string, perms ...Permission) bool {
	for _, p := range perms {
		if r.HasPermission(role, p, override) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every one of perms is granted.
func (r Resolver) HasAllPermissions(role Role, override string, perms ...Permission) bool {
	if len(perms) == 0 {
		return false
	}
	for _, p := range perms {
		if !r.HasPermission(role, p, override) {
			return false
		}
	}
	return true
}

// EffectivePermissions returns the grant set in effect for the role, taking
// a valid override into account.
func (r Resolver) EffectivePermissions(role Role, override string) []Permission {
	if perms, ok := r.decode(role, override); ok {
		out := make([]Permission, len(perms))
		copy(out, perms)
		return out
	}
	return RolePermissions(role)
}

// CanAccessAdmin reports whether the user may enter the website admin area.
func (r Resolver) CanAccessAdmin(role Role, override string) bool {
	return r.HasPermission(role, PermManageWebsite, override)
}

// CanManageITSystem reports whether the user may manage the IT system area.
func (r Resolver) CanManageITSystem(role Role, override string) bool {
	return r.HasPermission(role, PermManageITSystem, override)
}

// IsReadOnly reports whether the role is the view-only tier.
func (r Resolver) IsReadOnly(role Role) bool {
	return role == RoleGuest
}

// decode returns (perms, true) when a non-empty override decoded cleanly.
// The false return covers both "no override" and "malformed override"; the
// latter is logged so corrupt rows surface in monitoring.
func (r Resolver) decode(role Role, override string) ([]Permission, bool) {
	if strings.TrimSpace(override) == "" {
		return nil, false
	}
	perms, err := DecodeOverride(override)
	if err != nil {
		if r.Logger != nil {
			r.Logger.Warn("malformed permission override, using role defaults",
				slog.String("role", string(role)),
				slog.Any("error", err))
		}
		return nil, false
	}
	if len(perms) == 0 {
		return nil, false
	}
	return perms, true
}
