package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portal-sekolah/portal-sekolah/internal/announcements"
	"github.com/portal-sekolah/portal-sekolah/internal/authz"
)

type stubIdentities struct {
	byToken map[string]authz.Identity
}

func (s *stubIdentities) CurrentUser(ctx context.Context) (*authz.Identity, error) {
	return nil, nil
}

func (s *stubIdentities) UserFromToken(ctx context.Context, token string) (*authz.Identity, error) {
	id, ok := s.byToken[token]
	if !ok {
		return nil, authz.ErrUnauthenticated
	}
	return &id, nil
}

type stubLister struct {
	items []announcements.Announcement
}

func (s *stubLister) ListFor(ctx context.Context, actor authz.Identity) ([]announcements.Announcement, error) {
	return s.items, nil
}

type stubCounter struct {
	unread int
}

func (s *stubCounter) UnreadCount(ctx context.Context, actor authz.Identity) (int, error) {
	return s.unread, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	identities := &stubIdentities{byToken: map[string]authz.Identity{
		"guest-token": {ID: "u-guest", Role: authz.RoleGuest},
	}}
	guard := authz.NewGuard(identities, logger, nil)
	handler := NewHandler(logger, guard,
		&stubLister{items: []announcements.Announcement{{ID: "a1", Title: "Libur", Status: "published"}}},
		&stubCounter{unread: 2})
	r := chi.NewRouter()
	r.Route("/api/v1", handler.MountRoutes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set(authz.SessionTokenHeader, token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestMeReturnsIdentity(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv.URL+"/api/v1/me", "guest-token")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ID          string   `json:"id"`
		Role        string   `json:"role"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "u-guest", body.ID)
	assert.Equal(t, "GUEST", body.Role)
	assert.Contains(t, body.Permissions, "VIEW_DASHBOARD")
	assert.NotContains(t, body.Permissions, "MANAGE_USERS")
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv.URL+"/api/v1/me", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = get(t, srv.URL+"/api/v1/announcements", "unknown-token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListAnnouncements(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv.URL+"/api/v1/announcements", "guest-token")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Items []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"items"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Libur", body.Items[0].Title)
}

func TestUnreadCount(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv.URL+"/api/v1/notifications/unread", "guest-token")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body["unread"])
}
