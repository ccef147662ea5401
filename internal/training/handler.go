package training

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
	"github.com/portal-sekolah/portal-sekolah/internal/view"
)

// Handler serves the training video pages.
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

// MountRoutes registers training routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(authz.PermViewTrainingVideos, authz.PermManageTrainingVideos))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(authz.PermManageTrainingVideos))
		r.Get("/new", h.showCreateForm)
		r.Post("/", h.create)
		r.Get("/{id}/edit", h.showEditForm)
		r.Post("/{id}", h.update)
		r.Post("/{id}/delete", h.delete)
		r.Post("/{id}/publish", h.publish)
		r.Post("/{id}/unpublish", h.unpublish)
	})
}

type formErrors map[string]string

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.guard.RequirePage(w, r)
	if !ok {
		return
	}
	items, err := h.service.ListFor(r.Context(), *actor)
	if err != nil {
		h.logger.Error("list training videos failed", slog.Any("error", err))
		h.render(w, r, "pages/training/list.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	canManage := h.guard.Resolver.HasPermission(actor.Role, authz.PermManageTrainingVideos, actor.PermissionOverride)
	h.render(w, r, "pages/training/list.html", map[string]any{
		"Items":     items,
		"CanManage": canManage,
		"IsAdmin":   actor.Role == authz.RoleAdmin,
	}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/training/form.html", map[string]any{
		"Form":   Input{},
		"Errors": formErrors{},
	}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.guard.RequirePage(w, r)
	if !ok {
		return
	}
	input := h.formInput(r)
	if _, err := h.service.Create(r.Context(), *actor, input); err != nil {
		h.handleMutationError(w, r, err, map[string]any{"Form": input})
		return
	}
	h.redirectWithFlash(w, r, "/training", "success", "Video pelatihan tersimpan sebagai draf")
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.guard.RequirePage(w, r)
	if !ok {
		return
	}
	item, err := h.service.Get(r.Context(), *actor, chi.URLParam(r, "id"))
	if errors.Is(err, shared.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/training/form.html", map[string]any{
		"Form": Input{
			Title:           item.Title,
			Description:     item.Description,
			VideoURL:        item.VideoURL,
			DurationMinutes: item.DurationMinutes,
		},
		"Item":   item,
		"Errors": formErrors{},
	}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.guard.RequirePage(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	input := h.formInput(r)
	if err := h.service.Update(r.Context(), *actor, id, input); err != nil {
		h.handleMutationError(w, r, err, map[string]any{"Form": input})
		return
	}
	h.redirectWithFlash(w, r, "/training", "success", "Video pelatihan diperbarui")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.Delete, "Video pelatihan dihapus")
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.Publish, "Video pelatihan diterbitkan")
}

func (h *Handler) unpublish(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.Unpublish, "Video pelatihan dikembalikan ke draf")
}

func (h *Handler) formInput(r *http.Request) Input {
	duration, _ := strconv.Atoi(r.PostFormValue("duration_minutes"))
	return Input{
		Title:           r.PostFormValue("title"),
		Description:     r.PostFormValue("description"),
		VideoURL:        r.PostFormValue("video_url"),
		DurationMinutes: duration,
	}
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actor authz.Identity, id string) error, message string) {
	actor, ok := h.guard.RequirePage(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	err := op(r.Context(), *actor, id)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		http.NotFound(w, r)
	case authz.IsPermissionDenied(err):
		http.Redirect(w, r, h.guard.DeniedURL, http.StatusSeeOther)
	case err != nil:
		h.logger.Error("training lifecycle failed", slog.String("video_id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/training", "error", shared.UserSafeMessage(err))
	default:
		h.redirectWithFlash(w, r, "/training", "success", message)
	}
}

func (h *Handler) handleMutationError(w http.ResponseWriter, r *http.Request, err error, data map[string]any) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		http.NotFound(w, r)
	case authz.IsPermissionDenied(err):
		http.Redirect(w, r, h.guard.DeniedURL, http.StatusSeeOther)
	case errors.Is(err, ErrValidation):
		data["Errors"] = formErrors{"general": "Judul wajib diisi dan tautan video harus http(s)"}
		h.render(w, r, "pages/training/form.html", data, http.StatusBadRequest)
	default:
		h.logger.Error("training mutation failed", slog.Any("error", err))
		data["Errors"] = formErrors{"general": shared.UserSafeMessage(err)}
		h.render(w, r, "pages/training/form.html", data, http.StatusInternalServerError)
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Pelatihan", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
