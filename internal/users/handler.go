package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
	"github.com/portal-sekolah/portal-sekolah/internal/view"
)

// Handler manages the account administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     *authz.Guard
	templates *view.Engine
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard *authz.Guard, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		guard:     guard,
		templates: templates,
		csrf:      csrf,
		validator: validator.New(),
	}
}

// MountRoutes registers account management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(authz.PermManageUsers))
		r.Get("/", h.list)
		r.Get("/new", h.showCreateForm)
		r.Post("/", h.create)
		r.Get("/{id}/edit", h.showEditForm)
		r.Post("/{id}/role", h.changeRole)
		r.Post("/{id}/override", h.setOverride)
		r.Post("/{id}/active", h.setActive)
	})
}

type formErrors map[string]string

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list accounts failed", slog.Any("error", err))
		h.render(w, r, "pages/users/list.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/users/list.html", map[string]any{"Accounts": accounts}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/users/form.html", map[string]any{
		"Form":   CreateInput{Role: string(authz.RoleGuest)},
		"Roles":  roleOptions(),
		"Errors": formErrors{},
	}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.guard.RequirePage(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	form := CreateInput{
		Email:    r.PostFormValue("email"),
		Name:     r.PostFormValue("name"),
		Password: r.PostFormValue("password"),
		Role:     r.PostFormValue("role"),
	}
	errs := formErrors{}
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = "Nilai tidak valid"
			}
		}
	}
	if len(errs) == 0 {
		_, err := h.service.Create(r.Context(), actor.ID, form)
		switch {
		case errors.Is(err, ErrEmailTaken):
			errs["Email"] = "Email sudah terdaftar"
		case err != nil:
			h.logger.Error("create account failed", slog.Any("error", err))
			errs["general"] = shared.UserSafeMessage(err)
		default:
			h.redirectWithFlash(w, r, "/users", "success", "Akun berhasil dibuat")
			return
		}
	}
	form.Password = ""
	h.render(w, r, "pages/users/form.html", map[string]any{
		"Form":   form,
		"Roles":  roleOptions(),
		"Errors": errs,
	}, http.StatusBadRequest)
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, shared.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("load account failed", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/users/edit.html", map[string]any{
		"Account":     account,
		"Roles":       roleOptions(),
		"Permissions": authz.AllPermissions(),
		"Errors":      formErrors{},
	}, http.StatusOK)
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.guard.RequirePage(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	err := h.service.ChangeRole(r.Context(), actor.ID, id, r.PostFormValue("role"))
	switch {
	case errors.Is(err, ErrSelfRoleChange):
		h.redirectWithFlash(w, r, "/users", "error", "Tidak dapat mengubah peran sendiri")
	case errors.Is(err, shared.ErrNotFound):
		http.NotFound(w, r)
	case err != nil:
		h.logger.Error("change role failed", slog.String("user_id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/users", "error", shared.UserSafeMessage(err))
	default:
		h.redirectWithFlash(w, r, "/users", "success", "Peran berhasil diperbarui")
	}
}

func (h *Handler) setOverride(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.guard.RequirePage(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	err := h.service.SetOverride(r.Context(), actor.ID, id, r.PostFormValue("override"))
	switch {
	case errors.Is(err, ErrInvalidOverride):
		h.redirectWithFlash(w, r, "/users/"+id+"/edit", "error", "Override izin tidak valid")
	case errors.Is(err, shared.ErrNotFound):
		http.NotFound(w, r)
	case err != nil:
		h.logger.Error("set override failed", slog.String("user_id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/users/"+id+"/edit", "error", shared.UserSafeMessage(err))
	default:
		h.redirectWithFlash(w, r, "/users/"+id+"/edit", "success", "Izin berhasil diperbarui")
	}
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.guard.RequirePage(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	active := r.PostFormValue("active") == "1"
	if err := h.service.SetActive(r.Context(), actor.ID, id, active); err != nil {
		h.logger.Error("toggle account failed", slog.String("user_id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/users", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/users", "success", "Status akun diperbarui")
}

type roleOption struct {
	Value string
	Label string
}

func roleOptions() []roleOption {
	options := make([]roleOption, 0, 3)
	for _, role := range []authz.Role{authz.RoleAdmin, authz.RoleHelper, authz.RoleGuest} {
		options = append(options, roleOption{Value: string(role), Label: role.DisplayName()})
	}
	return options
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Manajemen Pengguna", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
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
