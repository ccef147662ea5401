// Package api serves the JSON surface for non-browser clients such as the
// mobile wrapper and scripted integrations. Callers authenticate with an
// explicit session token header instead of the cookie flow.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/portal-sekolah/portal-sekolah/internal/announcements"
	"github.com/portal-sekolah/portal-sekolah/internal/authz"
	"github.com/portal-sekolah/portal-sekolah/internal/platform/httpx"
)

// AnnouncementLister scopes announcements to the acting identity.
type AnnouncementLister interface {
	ListFor(ctx context.Context, actor authz.Identity) ([]announcements.Announcement, error)
}

// UnreadCounter reports the actor's unread notification total.
type UnreadCounter interface {
	UnreadCount(ctx context.Context, actor authz.Identity) (int, error)
}

// Handler serves the /api/v1 endpoints.
type Handler struct {
	logger        *slog.Logger
	guard         *authz.Guard
	announcements AnnouncementLister
	notifications UnreadCounter
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, guard *authz.Guard, lister AnnouncementLister, counter UnreadCounter) *Handler {
	return &Handler{logger: logger, guard: guard, announcements: lister, notifications: counter}
}

// MountRoutes registers the API routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.me)
	r.Get("/announcements", h.listAnnouncements)
	r.Get("/notifications/unread", h.unreadCount)
}

type identityResponse struct {
	ID          string   `json:"id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.guard.RequireAPI(r.Context(), r.Header)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	perms := h.guard.Resolver.EffectivePermissions(user.Role, user.PermissionOverride)
	tokens := make([]string, 0, len(perms))
	for _, p := range perms {
		tokens = append(tokens, string(p))
	}
	httpx.JSON(w, http.StatusOK, identityResponse{
		ID:          user.ID,
		Role:        string(user.Role),
		Permissions: tokens,
	})
}

type announcementResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Status      string     `json:"status"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

func (h *Handler) listAnnouncements(w http.ResponseWriter, r *http.Request) {
	user, err := h.guard.RequireAPI(r.Context(), r.Header, authz.PermViewDashboard)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.announcements.ListFor(r.Context(), *user)
	if err != nil {
		h.logger.Error("api list announcements", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]announcementResponse, 0, len(items))
	for _, item := range items {
		out = append(out, announcementResponse{
			ID:          item.ID,
			Title:       item.Title,
			Body:        item.Body,
			Status:      item.Status,
			PublishedAt: item.PublishedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	user, err := h.guard.RequireAPI(r.Context(), r.Header)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	count, err := h.notifications.UnreadCount(r.Context(), *user)
	if err != nil {
		h.logger.Error("api unread count", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"unread": count})
}
