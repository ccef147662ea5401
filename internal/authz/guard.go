package authz

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// SessionTokenHeader carries the session token for non-browser callers so
// the API guard can run without ambient request state.
const SessionTokenHeader = "X-Session-Token"

// IdentityResolver produces the authenticated user for a request. Both
// lookups are owned by the surrounding system; the engine only consumes the
// resulting Identity.
type IdentityResolver interface {
	// CurrentUser resolves the user attached to the request context
	// (session cookie flow). A nil Identity with nil error means
	// "no user logged in".
	CurrentUser(ctx context.Context) (*Identity, error)
	// UserFromToken resolves a user from an explicit session token
	// (header flow). Returns ErrUnauthenticated when the token is
	// unknown or expired.
	UserFromToken(ctx context.Context, token string) (*Identity, error)
}

// Guard adapts the resolver and evaluator to the two entry-point shapes:
// redirecting page guards and error-returning API guards. All call sites
// funnel into the same decision core.
type Guard struct {
	Identities IdentityResolver
	Resolver   Resolver
	Evaluator  Evaluator
	Logger     *slog.Logger

	// LoginURL receives anonymous visitors; DeniedURL receives
	// authenticated users that fail a check.
	LoginURL  string
	DeniedURL string
}

// NewGuard constructs a Guard with the portal's default destinations.
func NewGuard(identities IdentityResolver, logger *slog.Logger, recorder DecisionRecorder) *Guard {
	return &Guard{
		Identities: identities,
		Resolver:   Resolver{Logger: logger},
		Evaluator:  Evaluator{Logger: logger, Recorder: recorder},
		Logger:     logger,
		LoginURL:   "/welcome",
		DeniedURL:  "/unauthorized",
	}
}

// RequirePage resolves the current user for a rendered page. On failure it
// performs a redirect and returns ok=false; it never errors to the caller.
func (g *Guard) RequirePage(w http.ResponseWriter, r *http.Request) (*Identity, bool) {
	user, err := g.Identities.CurrentUser(r.Context())
	if err != nil {
		if g.Logger != nil {
			g.Logger.Error("resolve current user", slog.Any("error", err))
		}
		http.Redirect(w, r, g.LoginURL, http.StatusSeeOther)
		return nil, false
	}
	if user == nil {
		http.Redirect(w, r, g.LoginURL, http.StatusSeeOther)
		return nil, false
	}
	return user, true
}

// RequirePermissionPage is RequirePage plus a coarse permission check.
func (g *Guard) RequirePermissionPage(w http.ResponseWriter, r *http.Request, perms ...Permission) (*Identity, bool) {
	user, ok := g.RequirePage(w, r)
	if !ok {
		return nil, false
	}
	if !g.Resolver.HasAnyPermission(user.Role, user.PermissionOverride, perms...) {
		http.Redirect(w, r, g.DeniedURL, http.StatusSeeOther)
		return nil, false
	}
	return user, true
}

// RequireAdminPage admits only users that may enter the admin area.
func (g *Guard) RequireAdminPage(w http.ResponseWriter, r *http.Request) (*Identity, bool) {
	user, ok := g.RequirePage(w, r)
	if !ok {
		return nil, false
	}
	if !g.Resolver.CanAccessAdmin(user.Role, user.PermissionOverride) {
		http.Redirect(w, r, g.DeniedURL, http.StatusSeeOther)
		return nil, false
	}
	return user, true
}

// RequireITSystemPage admits ADMIN and HELPER tiers (or an override grant).
func (g *Guard) RequireITSystemPage(w http.ResponseWriter, r *http.Request) (*Identity, bool) {
	user, ok := g.RequirePage(w, r)
	if !ok {
		return nil, false
	}
	if !g.Resolver.CanManageITSystem(user.Role, user.PermissionOverride) {
		http.Redirect(w, r, g.DeniedURL, http.StatusSeeOther)
		return nil, false
	}
	return user, true
}

// RequireAPI resolves a user purely from the supplied headers, so it can run
// in API handlers and background jobs alike. It returns ErrUnauthenticated
// when no user resolves and a *PermissionError when the coarse check fails.
func (g *Guard) RequireAPI(ctx context.Context, header http.Header, perms ...Permission) (*Identity, error) {
	token := header.Get(SessionTokenHeader)
	if token == "" {
		return nil, ErrUnauthenticated
	}
	user, err := g.Identities.UserFromToken(ctx, token)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}
	if len(perms) > 0 && !g.Resolver.HasAnyPermission(user.Role, user.PermissionOverride, perms...) {
		return nil, &PermissionError{Action: ActionView, Reason: ReasonRole}
	}
	return user, nil
}

// RequireAction evaluates a resource-scoped action through the ABAC
// evaluator and converts a denial into a *PermissionError.
func (g *Guard) RequireAction(ctx context.Context, user Identity, action Action, resource *ResourceRef) error {
	return g.RequireActionAt(ctx, user, action, resource, time.Time{})
}

// RequireActionAt is RequireAction with an explicit clock.
func (g *Guard) RequireActionAt(ctx context.Context, user Identity, action Action, resource *ResourceRef, now time.Time) error {
	decision := g.Evaluator.Evaluate(Context{User: user, Resource: resource, Action: action, Now: now})
	if decision.Allowed {
		return nil
	}
	perr := &PermissionError{Action: action, Reason: decision.Reason}
	if resource != nil {
		perr.ResourceID = resource.ID
	}
	return perr
}

// RequireAny is a chi-style middleware admitting users holding at least one
// of the permissions. Used for route groups; page handlers use the
// RequirePage family for per-request decisions.
func (g *Guard) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := g.RequirePermissionPage(w, r, perms...); !ok {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAll admits only users holding every listed permission.
func (g *Guard) RequireAll(perms ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := g.RequirePage(w, r)
			if !ok {
				return
			}
			if !g.Resolver.HasAllPermissions(user.Role, user.PermissionOverride, perms...) {
				http.Redirect(w, r, g.DeniedURL, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
