package admin

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
	"github.com/portal-sekolah/portal-sekolah/internal/view"
)

// Handler serves the admin area pages.
type Handler struct {
	logger    *slog.Logger
	repo      Repository
	guard     *authz.Guard
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo Repository, guard *authz.Guard, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, repo: repo, guard: guard, templates: templates, csrf: csrf}
}

// MountRoutes registers the admin routes. The activity trail counts as
// analytics, so it takes that permission rather than the broader admin gate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(authz.PermViewAnalytics))
		r.Get("/audit", h.auditTrail)
	})
}

func (h *Handler) auditTrail(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	filter := ListFilter{
		Entity: r.URL.Query().Get("entity"),
		Page:   page,
	}
	items, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list audit trail", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	data := view.TemplateData{
		Title:       "Jejak Aktivitas",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data: map[string]any{
			"Items":      items,
			"Entity":     filter.Entity,
			"Pagination": shared.NewPagination(filter.Page, 20, total),
		},
	}
	if err := h.templates.Render(w, "pages/admin/audit.html", data); err != nil {
		h.logger.Error("render audit trail", slog.Any("error", err))
	}
}
