package calendar

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
	"github.com/portal-sekolah/portal-sekolah/internal/view"
)

// Handler serves the calendar pages.
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

// MountRoutes registers calendar routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(authz.PermViewCalendar, authz.PermManageCalendar))
		r.Get("/", h.month)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(authz.PermManageCalendar))
		r.Get("/new", h.showCreateForm)
		r.Post("/", h.create)
		r.Get("/{id}/edit", h.showEditForm)
		r.Post("/{id}", h.update)
		r.Post("/{id}/delete", h.delete)
		r.Post("/{id}/cancel", h.cancel)
	})
}

type formErrors map[string]string

const dateTimeLayout = "2006-01-02T15:04"

func (h *Handler) month(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.guard.RequirePage(w, r)
	if !ok {
		return
	}
	day := time.Now()
	if raw := r.URL.Query().Get("month"); raw != "" {
		if parsed, err := time.ParseInLocation("2006-01", raw, time.Local); err == nil {
			day = parsed
		}
	}
	events, err := h.service.Month(r.Context(), day)
	if err != nil {
		h.logger.Error("list events failed", slog.Any("error", err))
		h.render(w, r, "pages/calendar/month.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	canManage := h.guard.Resolver.HasPermission(actor.Role, authz.PermManageCalendar, actor.PermissionOverride)
	h.render(w, r, "pages/calendar/month.html", map[string]any{
		"Events":    events,
		"Month":     day.Format("January 2006"),
		"Prev":      day.AddDate(0, -1, 0).Format("2006-01"),
		"Next":      day.AddDate(0, 1, 0).Format("2006-01"),
		"CanManage": canManage,
	}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/calendar/form.html", map[string]any{
		"Form":   map[string]string{},
		"Errors": formErrors{},
	}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.guard.RequirePage(w, r)
	if !ok {
		return
	}
	input, raw := h.formInput(r)
	if _, err := h.service.Create(r.Context(), *actor, input); err != nil {
		h.handleMutationError(w, r, err, map[string]any{"Form": raw})
		return
	}
	h.redirectWithFlash(w, r, "/calendar", "success", "Kegiatan dijadwalkan")
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.guard.RequirePage(w, r); !ok {
		return
	}
	event, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, shared.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/calendar/form.html", map[string]any{
		"Form": map[string]string{
			"Title":       event.Title,
			"Description": event.Description,
			"Location":    event.Location,
			"StartsAt":    event.StartsAt.Format(dateTimeLayout),
			"EndsAt":      event.EndsAt.Format(dateTimeLayout),
		},
		"Item":   event,
		"Errors": formErrors{},
	}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.guard.RequirePage(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	input, raw := h.formInput(r)
	if err := h.service.Update(r.Context(), *actor, id, input); err != nil {
		h.handleMutationError(w, r, err, map[string]any{"Form": raw})
		return
	}
	h.redirectWithFlash(w, r, "/calendar", "success", "Kegiatan diperbarui")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.Delete, "Kegiatan dihapus")
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.Cancel, "Kegiatan dibatalkan")
}

func (h *Handler) formInput(r *http.Request) (Input, map[string]string) {
	raw := map[string]string{
		"Title":       r.PostFormValue("title"),
		"Description": r.PostFormValue("description"),
		"Location":    r.PostFormValue("location"),
		"StartsAt":    r.PostFormValue("starts_at"),
		"EndsAt":      r.PostFormValue("ends_at"),
	}
	input := Input{
		Title:       raw["Title"],
		Description: raw["Description"],
		Location:    raw["Location"],
	}
	if t, err := time.ParseInLocation(dateTimeLayout, raw["StartsAt"], time.Local); err == nil {
		input.StartsAt = t
	}
	if t, err := time.ParseInLocation(dateTimeLayout, raw["EndsAt"], time.Local); err == nil {
		input.EndsAt = t
	}
	return input, raw
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
		h.logger.Error("event lifecycle failed", slog.String("event_id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/calendar", "error", shared.UserSafeMessage(err))
	default:
		h.redirectWithFlash(w, r, "/calendar", "success", message)
	}
}

func (h *Handler) handleMutationError(w http.ResponseWriter, r *http.Request, err error, data map[string]any) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		http.NotFound(w, r)
	case authz.IsPermissionDenied(err):
		http.Redirect(w, r, h.guard.DeniedURL, http.StatusSeeOther)
	case errors.Is(err, ErrValidation):
		data["Errors"] = formErrors{"general": "Judul dan waktu mulai wajib diisi; waktu selesai tidak boleh mendahului"}
		h.render(w, r, "pages/calendar/form.html", data, http.StatusBadRequest)
	default:
		h.logger.Error("event mutation failed", slog.Any("error", err))
		data["Errors"] = formErrors{"general": shared.UserSafeMessage(err)}
		h.render(w, r, "pages/calendar/form.html", data, http.StatusInternalServerError)
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Kalender", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
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
