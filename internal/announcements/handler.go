package announcements

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
	"github.com/portal-sekolah/portal-sekolah/internal/view"
)

// Handler serves the announcement pages.
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

// MountRoutes registers announcement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/new", h.showCreateForm)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Get("/{id}/edit", h.showEditForm)
	r.Post("/{id}", h.update)
	r.Post("/{id}/delete", h.delete)
	r.Post("/{id}/publish", h.publish)
	r.Post("/{id}/archive", h.archive)
}

type formErrors map[string]string

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.guard.RequirePage(w, r)
	if !ok {
		return
	}
	items, err := h.service.ListFor(r.Context(), *actor)
	if err != nil {
		h.logger.Error("list announcements failed", slog.Any("error", err))
		h.render(w, r, "pages/announcements/list.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	canCreate := h.guard.Evaluator.CanAccess(authz.Context{User: *actor, Action: authz.ActionCreate})
	h.render(w, r, "pages/announcements/list.html", map[string]any{
		"Items":     items,
		"CanCreate": canCreate,
	}, http.StatusOK)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
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
		h.logger.Error("load announcement failed", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	actions := map[authz.Action]bool{}
	for _, action := range h.service.AvailableActions(*actor, item) {
		actions[action] = true
	}
	h.render(w, r, "pages/announcements/show.html", map[string]any{
		"Item":       item,
		"CanEdit":    actions[authz.ActionEdit],
		"CanDelete":  actions[authz.ActionDelete],
		"CanPublish": actions[authz.ActionPublish],
	}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.guard.RequirePage(w, r)
	if !ok {
		return
	}
	if !h.guard.Evaluator.CanAccess(authz.Context{User: *actor, Action: authz.ActionCreate}) {
		http.Redirect(w, r, h.guard.DeniedURL, http.StatusSeeOther)
		return
	}
	h.render(w, r, "pages/announcements/form.html", map[string]any{
		"Form":   Input{},
		"Errors": formErrors{},
	}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.guard.RequirePage(w, r)
	if !ok {
		return
	}
	input := Input{Title: r.PostFormValue("title"), Body: r.PostFormValue("body")}
	created, err := h.service.Create(r.Context(), *actor, input)
	if err != nil {
		h.handleMutationError(w, r, err, "pages/announcements/form.html", map[string]any{"Form": input})
		return
	}
	h.redirectWithFlash(w, r, "/announcements/"+created.ID, "success", "Pengumuman tersimpan sebagai draf")
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
	h.render(w, r, "pages/announcements/form.html", map[string]any{
		"Form":   Input{Title: item.Title, Body: item.Body},
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
	input := Input{Title: r.PostFormValue("title"), Body: r.PostFormValue("body")}
	if err := h.service.Update(r.Context(), *actor, id, input); err != nil {
		h.handleMutationError(w, r, err, "pages/announcements/form.html", map[string]any{"Form": input})
		return
	}
	h.redirectWithFlash(w, r, "/announcements/"+id, "success", "Pengumuman diperbarui")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.Delete, "/announcements", "Pengumuman dihapus")
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.lifecycle(w, r, h.service.Publish, "/announcements/"+id, "Pengumuman diterbitkan")
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.lifecycle(w, r, h.service.Archive, "/announcements/"+id, "Pengumuman diarsipkan")
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actor authz.Identity, id string) error, location, message string) {
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
		h.logger.Error("announcement lifecycle failed", slog.String("announcement_id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/announcements", "error", shared.UserSafeMessage(err))
	default:
		h.redirectWithFlash(w, r, location, "success", message)
	}
}

func (h *Handler) handleMutationError(w http.ResponseWriter, r *http.Request, err error, template string, data map[string]any) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		http.NotFound(w, r)
	case authz.IsPermissionDenied(err):
		http.Redirect(w, r, h.guard.DeniedURL, http.StatusSeeOther)
	case errors.Is(err, ErrValidation):
		data["Errors"] = formErrors{"general": "Judul dan isi wajib diisi"}
		h.render(w, r, template, data, http.StatusBadRequest)
	default:
		h.logger.Error("announcement mutation failed", slog.Any("error", err))
		data["Errors"] = formErrors{"general": shared.UserSafeMessage(err)}
		h.render(w, r, template, data, http.StatusInternalServerError)
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Pengumuman", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
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
