package app

import (
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/portal-sekolah/portal-sekolah/internal/announcements"
	"github.com/portal-sekolah/portal-sekolah/internal/authz"
	"github.com/portal-sekolah/portal-sekolah/internal/calendar"
	"github.com/portal-sekolah/portal-sekolah/internal/notifications"
	"github.com/portal-sekolah/portal-sekolah/internal/resources"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
	"github.com/portal-sekolah/portal-sekolah/internal/users"
	"github.com/portal-sekolah/portal-sekolah/internal/view"
)

// HomeHandler renders the dashboard shown after login.
type HomeHandler struct {
	Logger        *slog.Logger
	Guard         *authz.Guard
	Users         *users.Service
	Announcements *announcements.Service
	Resources     *resources.Service
	Calendar      *calendar.Service
	Notifications *notifications.Service
	Templates     *view.Engine
	CSRF          *shared.CSRFManager
}

// ServeHTTP renders the dashboard. The four counters are independent queries,
// so they run concurrently.
func (h *HomeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Guard.RequirePage(w, r)
	if !ok {
		return
	}

	var (
		account          users.Account
		announcementsCnt int
		resourcesCnt     int
		eventsCnt        int
		unreadCnt        int
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		account, err = h.Users.Get(ctx, actor.ID)
		return err
	})
	g.Go(func() (err error) {
		announcementsCnt, err = h.Announcements.CountPublished(ctx)
		return err
	})
	g.Go(func() (err error) {
		resourcesCnt, err = h.Resources.CountActive(ctx)
		return err
	})
	g.Go(func() (err error) {
		eventsCnt, err = h.Calendar.CountUpcoming(ctx)
		return err
	})
	g.Go(func() (err error) {
		unreadCnt, err = h.Notifications.UnreadCount(ctx, *actor)
		return err
	})
	if err := g.Wait(); err != nil {
		h.Logger.Error("load dashboard", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.CSRF.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	data := view.TemplateData{
		Title:       "Beranda",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data: map[string]any{
			"UserName":                account.Name,
			"RoleLabel":               account.RoleLabel(),
			"AnnouncementCount":       announcementsCnt,
			"ResourceCount":           resourcesCnt,
			"UpcomingEventCount":      eventsCnt,
			"UnreadNotificationCount": unreadCnt,
		},
	}
	if err := h.Templates.Render(w, "pages/home.html", data); err != nil {
		h.Logger.Error("render home", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
