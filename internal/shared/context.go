package shared

import (
	"context"
	"sync"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
)

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

type identityCacheKey struct{}

// IdentityCache memoizes the resolved user for the lifetime of one request.
// It is installed by the middleware stack and never shared across requests,
// so a role or override change takes effect on the next request at latest.
type IdentityCache struct {
	once sync.Once
	user *authz.Identity
	err  error
}

// Resolve runs fn at most once and returns the cached result afterwards.
func (c *IdentityCache) Resolve(fn func() (*authz.Identity, error)) (*authz.Identity, error) {
	c.once.Do(func() {
		c.user, c.err = fn()
	})
	return c.user, c.err
}

// ContextWithIdentityCache installs a fresh per-request identity cache.
func ContextWithIdentityCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, identityCacheKey{}, &IdentityCache{})
}

// IdentityCacheFromContext extracts the request's identity cache, if any.
func IdentityCacheFromContext(ctx context.Context) *IdentityCache {
	cache, _ := ctx.Value(identityCacheKey{}).(*IdentityCache)
	return cache
}
