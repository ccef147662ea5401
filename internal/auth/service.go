package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
)

// Service wraps authentication business rules and doubles as the identity
// resolver feeding the authorization guards.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID string, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// PurgeExpiredSessions removes stale session rows; run from the worker.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx)
}

// CurrentUser resolves the authorization identity of the session user. The
// result is memoized in the request's identity cache so repeated guard
// checks during one request hit the database once.
func (s *Service) CurrentUser(ctx context.Context) (*authz.Identity, error) {
	if cache := shared.IdentityCacheFromContext(ctx); cache != nil {
		return cache.Resolve(func() (*authz.Identity, error) {
			return s.lookupSessionUser(ctx)
		})
	}
	return s.lookupSessionUser(ctx)
}

// UserFromToken resolves a user from an explicit session token, independent
// of any request-scoped state.
func (s *Service) UserFromToken(ctx context.Context, token string) (*authz.Identity, error) {
	if token == "" {
		return nil, authz.ErrUnauthenticated
	}
	user, err := s.repo.FindBySessionToken(ctx, token)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, authz.ErrUnauthenticated
		}
		return nil, err
	}
	return s.identityOf(user)
}

func (s *Service) lookupSessionUser(ctx context.Context) (*authz.Identity, error) {
	sess := shared.SessionFromContext(ctx)
	if sess == nil || sess.User() == "" {
		return nil, nil
	}
	user, err := s.repo.FindByID(ctx, sess.User())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.identityOf(user)
}

func (s *Service) identityOf(user *User) (*authz.Identity, error) {
	if !user.IsActive {
		return nil, nil
	}
	identity, err := user.Identity()
	if err != nil {
		if s.logger != nil {
			s.logger.Error("user has invalid role", slog.String("user_id", user.ID), slog.Any("error", err))
		}
		return nil, err
	}
	return &identity, nil
}

var _ authz.IdentityResolver = (*Service)(nil)
