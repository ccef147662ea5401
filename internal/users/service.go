package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
)

// ErrSelfRoleChange indicates an admin tried to change their own role.
var ErrSelfRoleChange = errors.New("cannot change own role")

// ErrInvalidOverride indicates the submitted permission override does not
// decode to a known permission list.
var ErrInvalidOverride = errors.New("invalid permission override")

// AuditRecorder persists administrative actions.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles account management logic.
type Service struct {
	repo     Repository
	audit    AuditRecorder
	logger   *slog.Logger
	collator *collate.Collator
}

// NewService builds a Service instance.
func NewService(repo Repository, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		audit:    audit,
		logger:   logger,
		collator: collate.New(language.Indonesian, collate.IgnoreCase),
	}
}

// List returns all accounts sorted by display name.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	s.collator.Sort(accountsByName(accounts))
	return accounts, nil
}

// Get fetches one account.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	if strings.TrimSpace(id) == "" {
		return Account{}, shared.ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// CreateInput carries the fields of a new account.
type CreateInput struct {
	Email    string `validate:"required,email"`
	Name     string `validate:"required,min=2"`
	Password string `validate:"required,min=8"`
	Role     string `validate:"required"`
}

// Create registers a new account with a hashed password.
func (s *Service) Create(ctx context.Context, actorID string, input CreateInput) (Account, error) {
	role, err := authz.ParseRole(input.Role)
	if err != nil {
		return Account{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}
	account := Account{
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		Name:     strings.TrimSpace(input.Name),
		Role:     role,
		IsActive: true,
	}
	created, err := s.repo.Create(ctx, account, string(hash))
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, actorID, "user.create", created.ID, map[string]any{"role": string(role)})
	return created, nil
}

// ChangeRole assigns a new role. Admins cannot change their own role so the
// portal always keeps at least the acting administrator.
func (s *Service) ChangeRole(ctx context.Context, actorID, userID, rawRole string) error {
	if actorID == userID {
		return ErrSelfRoleChange
	}
	role, err := authz.ParseRole(rawRole)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateRole(ctx, userID, string(role)); err != nil {
		return err
	}
	s.record(ctx, actorID, "user.change_role", userID, map[string]any{"role": string(role)})
	return nil
}

// SetOverride stores an explicit permission set for the account. The raw
// value must decode to known permissions; an empty value clears the override
// and restores role defaults.
func (s *Service) SetOverride(ctx context.Context, actorID, userID, raw string) error {
	raw = strings.TrimSpace(raw)
	canonical := ""
	if raw != "" {
		perms, err := authz.DecodeOverride(raw)
		if err != nil {
			return errors.Join(ErrInvalidOverride, err)
		}
		if len(perms) > 0 {
			canonical, err = authz.EncodeOverride(perms)
			if err != nil {
				return err
			}
		}
	}
	if err := s.repo.UpdateOverride(ctx, userID, canonical); err != nil {
		return err
	}
	s.record(ctx, actorID, "user.set_override", userID, map[string]any{"override": canonical})
	return nil
}

// SetActive enables or disables sign-in for the account.
func (s *Service) SetActive(ctx context.Context, actorID, userID string, active bool) error {
	if actorID == userID && !active {
		return errors.New("cannot deactivate own account")
	}
	if err := s.repo.SetActive(ctx, userID, active); err != nil {
		return err
	}
	s.record(ctx, actorID, "user.set_active", userID, map[string]any{"active": active})
	return nil
}

func (s *Service) record(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: entityID,
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

type accountsByName []Account

func (a accountsByName) Len() int           { return len(a) }
func (a accountsByName) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a accountsByName) Bytes(i int) []byte { return []byte(a[i].Name) }
