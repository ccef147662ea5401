package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/portal-sekolah/portal-sekolah/internal/admin"
	"github.com/portal-sekolah/portal-sekolah/internal/announcements"
	"github.com/portal-sekolah/portal-sekolah/internal/api"
	"github.com/portal-sekolah/portal-sekolah/internal/auth"
	"github.com/portal-sekolah/portal-sekolah/internal/calendar"
	"github.com/portal-sekolah/portal-sekolah/internal/notifications"
	"github.com/portal-sekolah/portal-sekolah/internal/observability"
	"github.com/portal-sekolah/portal-sekolah/internal/resources"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
	"github.com/portal-sekolah/portal-sekolah/internal/training"
	"github.com/portal-sekolah/portal-sekolah/internal/users"
	"github.com/portal-sekolah/portal-sekolah/internal/view"
	"github.com/portal-sekolah/portal-sekolah/jobs"
	"github.com/portal-sekolah/portal-sekolah/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	Home                 *HomeHandler
	AuthHandler          *auth.Handler
	UsersHandler         *users.Handler
	AnnouncementsHandler *announcements.Handler
	ResourcesHandler     *resources.Handler
	TrainingHandler      *training.Handler
	CalendarHandler      *calendar.Handler
	NotificationsHandler *notifications.Handler
	AdminHandler         *admin.Handler
	APIHandler           *api.Handler
	JobHandler           *jobs.Handler
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Landing page for unauthenticated visitors.
	r.Get("/welcome", func(w http.ResponseWriter, r *http.Request) {
		renderStatic(params, w, r, "Portal Sekolah", "pages/landing.html")
	})

	// Destination for authenticated users that fail an access check.
	r.Get("/unauthorized", func(w http.ResponseWriter, r *http.Request) {
		renderStatic(params, w, r, "Akses Ditolak", "pages/unauthorized.html")
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			http.Redirect(w, r, "/welcome", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/home", http.StatusSeeOther)
	})

	if params.Home != nil {
		r.Get("/home", params.Home.ServeHTTP)
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.AnnouncementsHandler != nil {
		r.Route("/announcements", params.AnnouncementsHandler.MountRoutes)
	}
	if params.ResourcesHandler != nil {
		r.Route("/resources", params.ResourcesHandler.MountRoutes)
	}
	if params.TrainingHandler != nil {
		r.Route("/training", params.TrainingHandler.MountRoutes)
	}
	if params.CalendarHandler != nil {
		r.Route("/calendar", params.CalendarHandler.MountRoutes)
	}
	if params.NotificationsHandler != nil {
		r.Route("/notifications", params.NotificationsHandler.MountRoutes)
	}
	if params.AdminHandler != nil {
		r.Route("/admin", params.AdminHandler.MountRoutes)
	}
	if params.APIHandler != nil {
		r.Route("/api/v1", params.APIHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		// Static assets skip the session machinery entirely.
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

func renderStatic(params RouterParams, w http.ResponseWriter, r *http.Request, title, template string) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	data := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
	}
	if err := params.Templates.Render(w, template, data); err != nil {
		params.Logger.Error("render page", slog.String("template", template), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
