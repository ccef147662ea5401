package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
)

type stubRepo struct {
	accounts  []Account
	created   []Account
	hashes    []string
	roles     map[string]string
	overrides map[string]string
	active    map[string]bool
}

func newStubRepo(accounts ...Account) *stubRepo {
	return &stubRepo{
		accounts:  accounts,
		roles:     map[string]string{},
		overrides: map[string]string{},
		active:    map[string]bool{},
	}
}

func (s *stubRepo) List(ctx context.Context) ([]Account, error) { return s.accounts, nil }

func (s *stubRepo) Get(ctx context.Context, id string) (Account, error) {
	for _, account := range s.accounts {
		if account.ID == id {
			return account, nil
		}
	}
	return Account{}, shared.ErrNotFound
}

func (s *stubRepo) Create(ctx context.Context, account Account, passwordHash string) (Account, error) {
	account.ID = "created-1"
	s.created = append(s.created, account)
	s.hashes = append(s.hashes, passwordHash)
	return account, nil
}

func (s *stubRepo) UpdateRole(ctx context.Context, id, role string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	s.roles[id] = role
	return nil
}

func (s *stubRepo) UpdateOverride(ctx context.Context, id, override string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	s.overrides[id] = override
	return nil
}

func (s *stubRepo) SetActive(ctx context.Context, id string, active bool) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	s.active[id] = active
	return nil
}

type stubAudit struct {
	logs []shared.AuditLog
}

func (s *stubAudit) Record(ctx context.Context, log shared.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func TestListSortsByName(t *testing.T) {
	repo := newStubRepo(
		Account{ID: "1", Name: "candra"},
		Account{ID: "2", Name: "Budi"},
		Account{ID: "3", Name: "ani"},
	)
	service := NewService(repo, nil, nil)

	accounts, err := service.List(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, "ani", accounts[0].Name)
	assert.Equal(t, "Budi", accounts[1].Name)
	assert.Equal(t, "candra", accounts[2].Name)
}

func TestCreateHashesPasswordAndAudits(t *testing.T) {
	repo := newStubRepo()
	audit := &stubAudit{}
	service := NewService(repo, audit, nil)

	created, err := service.Create(context.Background(), "admin-1", CreateInput{
		Email:    " Guru@Sekolah.ID ",
		Name:     "Guru Baru",
		Password: "rahasia-sekali",
		Role:     "helper",
	})
	require.NoError(t, err)
	assert.Equal(t, authz.RoleHelper, created.Role)
	assert.True(t, created.IsActive)

	require.Len(t, repo.created, 1)
	assert.Equal(t, "guru@sekolah.id", repo.created[0].Email)
	require.Len(t, repo.hashes, 1)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.hashes[0]), []byte("rahasia-sekali")))

	require.Len(t, audit.logs, 1)
	assert.Equal(t, "user.create", audit.logs[0].Action)
	assert.Equal(t, "admin-1", audit.logs[0].ActorID)
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	service := NewService(newStubRepo(), nil, nil)

	_, err := service.Create(context.Background(), "admin-1", CreateInput{
		Email:    "x@y.id",
		Name:     "X",
		Password: "password123",
		Role:     "SUPERUSER",
	})
	assert.Error(t, err)
}

func TestChangeRole(t *testing.T) {
	repo := newStubRepo(Account{ID: "u1", Name: "Target"})
	audit := &stubAudit{}
	service := NewService(repo, audit, nil)

	require.NoError(t, service.ChangeRole(context.Background(), "admin-1", "u1", "student"))
	// STUDENT is stored under its canonical alias.
	assert.Equal(t, "GUEST", repo.roles["u1"])
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "user.change_role", audit.logs[0].Action)

	err := service.ChangeRole(context.Background(), "admin-1", "admin-1", "GUEST")
	assert.ErrorIs(t, err, ErrSelfRoleChange)
}

func TestSetOverrideCanonicalizes(t *testing.T) {
	repo := newStubRepo(Account{ID: "u1"})
	service := NewService(repo, nil, nil)

	err := service.SetOverride(context.Background(), "admin-1", "u1", ` ["VIEW_DASHBOARD", "MANAGE_CALENDAR"] `)
	require.NoError(t, err)
	assert.Equal(t, `["VIEW_DASHBOARD","MANAGE_CALENDAR"]`, repo.overrides["u1"])

	// Clearing restores role defaults.
	require.NoError(t, service.SetOverride(context.Background(), "admin-1", "u1", ""))
	assert.Equal(t, "", repo.overrides["u1"])

	// An empty list clears rather than storing a deny-all set.
	require.NoError(t, service.SetOverride(context.Background(), "admin-1", "u1", "[]"))
	assert.Equal(t, "", repo.overrides["u1"])

	err = service.SetOverride(context.Background(), "admin-1", "u1", `["NOT_A_PERMISSION"]`)
	assert.ErrorIs(t, err, ErrInvalidOverride)
}

func TestSetActiveGuardsSelfLockout(t *testing.T) {
	repo := newStubRepo(Account{ID: "admin-1"}, Account{ID: "u2"})
	service := NewService(repo, nil, nil)

	assert.Error(t, service.SetActive(context.Background(), "admin-1", "admin-1", false))
	require.NoError(t, service.SetActive(context.Background(), "admin-1", "u2", false))
	assert.False(t, repo.active["u2"])
}
