package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portal-sekolah/portal-sekolah/internal/auth"
	"github.com/portal-sekolah/portal-sekolah/internal/authz"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
)

type identityRepo struct {
	users   map[string]*auth.User
	byToken map[string]*auth.User
	idHits  int
}

func (r *identityRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *identityRepo) FindByID(ctx context.Context, id string) (*auth.User, error) {
	r.idHits++
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (r *identityRepo) FindBySessionToken(ctx context.Context, token string) (*auth.User, error) {
	u, ok := r.byToken[token]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (r *identityRepo) CreateSession(ctx context.Context, id string, userID string, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (r *identityRepo) DeleteSession(ctx context.Context, id string) error { return nil }

func (r *identityRepo) DeleteExpiredSessions(ctx context.Context) (int64, error) { return 0, nil }

func sessionContext(userID string) context.Context {
	sess := &shared.Session{ID: "sess-1"}
	sess.SetUser(userID)
	ctx := shared.ContextWithSession(context.Background(), sess)
	return shared.ContextWithIdentityCache(ctx)
}

func TestCurrentUserResolvesIdentity(t *testing.T) {
	repo := &identityRepo{users: map[string]*auth.User{
		"u1": {ID: "u1", Role: "helper", PermissionOverride: `["VIEW_DASHBOARD"]`, IsActive: true},
	}}
	svc := auth.NewService(repo, nil)

	user, err := svc.CurrentUser(sessionContext("u1"))
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, authz.RoleHelper, user.Role)
	assert.Equal(t, `["VIEW_DASHBOARD"]`, user.PermissionOverride)
}

func TestCurrentUserMemoizedPerRequest(t *testing.T) {
	repo := &identityRepo{users: map[string]*auth.User{
		"u1": {ID: "u1", Role: "ADMIN", IsActive: true},
	}}
	svc := auth.NewService(repo, nil)

	ctx := sessionContext("u1")
	for i := 0; i < 5; i++ {
		_, err := svc.CurrentUser(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, repo.idHits, "identity lookup must hit the store once per request")

	// A new request context resolves again.
	_, err := svc.CurrentUser(sessionContext("u1"))
	require.NoError(t, err)
	assert.Equal(t, 2, repo.idHits)
}

func TestCurrentUserAnonymous(t *testing.T) {
	svc := auth.NewService(&identityRepo{}, nil)

	user, err := svc.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestCurrentUserInactiveAccount(t *testing.T) {
	repo := &identityRepo{users: map[string]*auth.User{
		"u1": {ID: "u1", Role: "ADMIN", IsActive: false},
	}}
	svc := auth.NewService(repo, nil)

	user, err := svc.CurrentUser(sessionContext("u1"))
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestCurrentUserInvalidRoleFails(t *testing.T) {
	repo := &identityRepo{users: map[string]*auth.User{
		"u1": {ID: "u1", Role: "WIZARD", IsActive: true},
	}}
	svc := auth.NewService(repo, nil)

	_, err := svc.CurrentUser(sessionContext("u1"))
	assert.Error(t, err)
}

func TestUserFromToken(t *testing.T) {
	repo := &identityRepo{byToken: map[string]*auth.User{
		"tok": {ID: "u2", Role: "STUDENT", IsActive: true},
	}}
	svc := auth.NewService(repo, nil)

	user, err := svc.UserFromToken(context.Background(), "tok")
	require.NoError(t, err)
	require.NotNil(t, user)
	// Legacy STUDENT tier resolves to the guest floor.
	assert.Equal(t, authz.RoleGuest, user.Role)

	_, err = svc.UserFromToken(context.Background(), "unknown")
	assert.ErrorIs(t, err, authz.ErrUnauthenticated)

	_, err = svc.UserFromToken(context.Background(), "")
	assert.ErrorIs(t, err, authz.ErrUnauthenticated)
}
