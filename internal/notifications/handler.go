package notifications

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
	"github.com/portal-sekolah/portal-sekolah/internal/view"
)

// Handler serves the notification inbox pages.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     *authz.Guard
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard *authz.Guard, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, templates: templates, csrf: csrf}
}

// MountRoutes registers notification routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.inbox)
	r.Post("/{id}/read", h.markRead)
	r.Post("/read-all", h.markAllRead)
}

func (h *Handler) inbox(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.guard.RequirePage(w, r)
	if !ok {
		return
	}
	items, err := h.service.Inbox(r.Context(), *actor, 50)
	if err != nil {
		h.logger.Error("load inbox failed", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	unread, err := h.service.UnreadCount(r.Context(), *actor)
	if err != nil {
		h.logger.Warn("count unread failed", slog.Any("error", err))
	}
	h.render(w, r, map[string]any{"Items": items, "Unread": unread})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.guard.RequirePage(w, r)
	if !ok {
		return
	}
	err := h.service.MarkRead(r.Context(), *actor, chi.URLParam(r, "id"))
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error("mark read failed", slog.Any("error", err))
	}
	http.Redirect(w, r, "/notifications", http.StatusSeeOther)
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.guard.RequirePage(w, r)
	if !ok {
		return
	}
	if err := h.service.MarkAllRead(r.Context(), *actor); err != nil {
		h.logger.Error("mark all read failed", slog.Any("error", err))
	}
	http.Redirect(w, r, "/notifications", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data map[string]any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Notifikasi", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	if err := h.templates.Render(w, "pages/notifications/inbox.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}
