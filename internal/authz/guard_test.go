package authz_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
	_ "github.com/portal-sekolah/portal-sekolah/testing"
)

type stubIdentities struct {
	current  *authz.Identity
	err      error
	byToken  map[string]*authz.Identity
	tokenErr error
}

func (s *stubIdentities) CurrentUser(ctx context.Context) (*authz.Identity, error) {
	return s.current, s.err
}

func (s *stubIdentities) UserFromToken(ctx context.Context, token string) (*authz.Identity, error) {
	if s.tokenErr != nil {
		return nil, s.tokenErr
	}
	user, ok := s.byToken[token]
	if !ok {
		return nil, authz.ErrUnauthenticated
	}
	return user, nil
}

func newGuard(identities *stubIdentities) *authz.Guard {
	return authz.NewGuard(identities, nil, nil)
}

func TestRequirePageRedirectsAnonymous(t *testing.T) {
	guard := newGuard(&stubIdentities{})

	req := httptest.NewRequest(http.MethodGet, "/announcements", nil)
	res := httptest.NewRecorder()

	user, ok := guard.RequirePage(res, req)
	assert.False(t, ok)
	assert.Nil(t, user)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/welcome", res.Header().Get("Location"))
}

func TestRequirePageYieldsUser(t *testing.T) {
	guard := newGuard(&stubIdentities{current: &authz.Identity{ID: "u1", Role: authz.RoleGuest}})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()

	user, ok := guard.RequirePage(res, req)
	require.True(t, ok)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequirePermissionPageRedirectsDenied(t *testing.T) {
	guard := newGuard(&stubIdentities{current: &authz.Identity{ID: "g1", Role: authz.RoleGuest}})

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	res := httptest.NewRecorder()

	_, ok := guard.RequirePermissionPage(res, req, authz.PermManageUsers)
	assert.False(t, ok)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/unauthorized", res.Header().Get("Location"))
}

func TestRequirePermissionPageHonorsOverride(t *testing.T) {
	guard := newGuard(&stubIdentities{current: &authz.Identity{
		ID:                 "g1",
		Role:               authz.RoleGuest,
		PermissionOverride: `["MANAGE_USERS"]`,
	}})

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	res := httptest.NewRecorder()

	user, ok := guard.RequirePermissionPage(res, req, authz.PermManageUsers)
	require.True(t, ok)
	assert.Equal(t, "g1", user.ID)
}

func TestRequireAdminPage(t *testing.T) {
	guard := newGuard(&stubIdentities{current: &authz.Identity{ID: "h1", Role: authz.RoleHelper}})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	res := httptest.NewRecorder()

	_, ok := guard.RequireAdminPage(res, req)
	assert.False(t, ok)
	assert.Equal(t, "/unauthorized", res.Header().Get("Location"))
}

func TestRequirePageRedirectsOnResolverError(t *testing.T) {
	guard := newGuard(&stubIdentities{err: errors.New("store down")})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()

	_, ok := guard.RequirePage(res, req)
	assert.False(t, ok)
	assert.Equal(t, "/welcome", res.Header().Get("Location"))
}

func TestRequireAPIWithoutToken(t *testing.T) {
	guard := newGuard(&stubIdentities{})

	_, err := guard.RequireAPI(context.Background(), http.Header{})
	assert.ErrorIs(t, err, authz.ErrUnauthenticated)
}

func TestRequireAPIUnknownToken(t *testing.T) {
	guard := newGuard(&stubIdentities{byToken: map[string]*authz.Identity{}})

	header := http.Header{}
	header.Set(authz.SessionTokenHeader, "expired")
	_, err := guard.RequireAPI(context.Background(), header)
	assert.ErrorIs(t, err, authz.ErrUnauthenticated)
}

func TestRequireAPIInsufficientPermissions(t *testing.T) {
	guard := newGuard(&stubIdentities{byToken: map[string]*authz.Identity{
		"tok": {ID: "g1", Role: authz.RoleGuest},
	}})

	header := http.Header{}
	header.Set(authz.SessionTokenHeader, "tok")
	_, err := guard.RequireAPI(context.Background(), header, authz.PermManageWebsite)
	require.Error(t, err)
	assert.True(t, authz.IsPermissionDenied(err))
	assert.NotErrorIs(t, err, authz.ErrUnauthenticated)
}

func TestRequireAPISuccess(t *testing.T) {
	guard := newGuard(&stubIdentities{byToken: map[string]*authz.Identity{
		"tok": {ID: "a1", Role: authz.RoleAdmin},
	}})

	header := http.Header{}
	header.Set(authz.SessionTokenHeader, "tok")
	user, err := guard.RequireAPI(context.Background(), header, authz.PermManageWebsite)
	require.NoError(t, err)
	assert.Equal(t, "a1", user.ID)
}

func TestRequireActionDeniesWithReason(t *testing.T) {
	guard := newGuard(&stubIdentities{})

	err := guard.RequireAction(context.Background(),
		authz.Identity{ID: "h1", Role: authz.RoleHelper},
		authz.ActionPublish,
		&authz.ResourceRef{ID: "r9", CreatedBy: "h1", Status: "draft"})

	var perr *authz.PermissionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, authz.ActionPublish, perr.Action)
	assert.Equal(t, authz.ReasonPublish, perr.Reason)
	assert.Equal(t, "r9", perr.ResourceID)
	// The boundary message must not leak resource details.
	assert.NotContains(t, perr.Error(), "r9")
}

func TestRequireAnyMiddleware(t *testing.T) {
	identities := &stubIdentities{current: &authz.Identity{ID: "h1", Role: authz.RoleHelper}}
	guard := newGuard(identities)

	var reached bool
	handler := guard.RequireAny(authz.PermManageITSystem)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/it", nil))
	assert.True(t, reached)

	// Same route denies a guest with a redirect.
	identities.current = &authz.Identity{ID: "g1", Role: authz.RoleGuest}
	reached = false
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/it", nil))
	assert.False(t, reached)
	assert.Equal(t, "/unauthorized", res.Header().Get("Location"))
}

func TestRequireAllMiddleware(t *testing.T) {
	guard := newGuard(&stubIdentities{current: &authz.Identity{ID: "h1", Role: authz.RoleHelper}})

	handler := guard.RequireAll(authz.PermManageITSystem, authz.PermManageWebsite)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/it", nil))
	assert.Equal(t, "/unauthorized", res.Header().Get("Location"))
}
