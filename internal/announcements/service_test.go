package announcements

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portal-sekolah/portal-sekolah/internal/authz"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
)

type stubRepo struct {
	items      map[string]Announcement
	lastFilter ListFilter
	statuses   map[string]string
	deleted    []string
	seq        int
}

func newStubRepo(items ...Announcement) *stubRepo {
	repo := &stubRepo{items: map[string]Announcement{}, statuses: map[string]string{}}
	for _, item := range items {
		repo.items[item.ID] = item
	}
	return repo
}

func (s *stubRepo) List(ctx context.Context, filter ListFilter) ([]Announcement, error) {
	s.lastFilter = filter
	var out []Announcement
	for _, item := range s.items {
		visible := item.Status == StatusPublished ||
			!filter.PublishedOnly ||
			(filter.DraftsBy != "" && item.CreatedBy == filter.DraftsBy)
		if visible {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *stubRepo) Get(ctx context.Context, id string) (Announcement, error) {
	item, ok := s.items[id]
	if !ok {
		return Announcement{}, shared.ErrNotFound
	}
	return item, nil
}

func (s *stubRepo) Create(ctx context.Context, a Announcement) (Announcement, error) {
	s.seq++
	a.ID = "ann-1"
	s.items[a.ID] = a
	return a, nil
}

func (s *stubRepo) Update(ctx context.Context, a Announcement) error {
	if _, ok := s.items[a.ID]; !ok {
		return shared.ErrNotFound
	}
	s.items[a.ID] = a
	return nil
}

func (s *stubRepo) Delete(ctx context.Context, id string) error {
	if _, ok := s.items[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.items, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubRepo) SetStatus(ctx context.Context, id, status string) error {
	item, ok := s.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	item.Status = status
	s.items[id] = item
	s.statuses[id] = status
	return nil
}

func (s *stubRepo) CountPublished(ctx context.Context) (int, error) {
	count := 0
	for _, item := range s.items {
		if item.Status == StatusPublished {
			count++
		}
	}
	return count, nil
}

type stubEnqueuer struct {
	published []string
}

func (s *stubEnqueuer) EnqueueAnnouncementPublished(ctx context.Context, id string) error {
	s.published = append(s.published, id)
	return nil
}

func workHours() time.Time {
	return time.Date(2026, time.March, 10, 10, 0, 0, 0, time.Local)
}

func newService(repo Repository, enqueuer Enqueuer) *Service {
	service := NewService(repo, authz.NewGuard(nil, nil, nil), enqueuer, nil, nil)
	service.now = workHours
	return service
}

var (
	admin  = authz.Identity{ID: "a1", Role: authz.RoleAdmin}
	helper = authz.Identity{ID: "h1", Role: authz.RoleHelper}
	guest  = authz.Identity{ID: "g1", Role: authz.RoleGuest}
)

func TestListForScopesByRole(t *testing.T) {
	repo := newStubRepo()
	service := newService(repo, nil)

	_, err := service.ListFor(context.Background(), guest)
	require.NoError(t, err)
	assert.Equal(t, ListFilter{PublishedOnly: true}, repo.lastFilter)

	_, err = service.ListFor(context.Background(), helper)
	require.NoError(t, err)
	assert.Equal(t, ListFilter{PublishedOnly: true, DraftsBy: "h1"}, repo.lastFilter)

	_, err = service.ListFor(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, ListFilter{}, repo.lastFilter)
}

func TestGetHidesForeignDrafts(t *testing.T) {
	repo := newStubRepo(Announcement{ID: "d1", Status: StatusDraft, CreatedBy: "h1"})
	service := newService(repo, nil)

	_, err := service.Get(context.Background(), guest, "d1")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	item, err := service.Get(context.Background(), helper, "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1", item.ID)

	_, err = service.Get(context.Background(), admin, "d1")
	assert.NoError(t, err)
}

func TestCreateStartsAsDraft(t *testing.T) {
	repo := newStubRepo()
	service := newService(repo, nil)

	created, err := service.Create(context.Background(), helper, Input{Title: " Ujian Semester ", Body: "Jadwal terlampir."})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, created.Status)
	assert.Equal(t, "Ujian Semester", created.Title)
	assert.Equal(t, "h1", created.CreatedBy)
}

func TestCreateDeniedForGuest(t *testing.T) {
	service := newService(newStubRepo(), nil)

	_, err := service.Create(context.Background(), guest, Input{Title: "X", Body: "Y"})
	assert.True(t, authz.IsPermissionDenied(err))
}

func TestCreateValidatesInput(t *testing.T) {
	service := newService(newStubRepo(), nil)

	_, err := service.Create(context.Background(), helper, Input{Title: "  ", Body: ""})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateEnforcesOwnership(t *testing.T) {
	repo := newStubRepo(Announcement{ID: "d1", Status: StatusDraft, CreatedBy: "someone-else"})
	service := newService(repo, nil)

	err := service.Update(context.Background(), helper, "d1", Input{Title: "X", Body: "Y"})
	assert.True(t, authz.IsPermissionDenied(err))

	// The admin may edit regardless of authorship.
	require.NoError(t, service.Update(context.Background(), admin, "d1", Input{Title: "X", Body: "Y"}))
}

func TestUpdatePublishedRequiresAdmin(t *testing.T) {
	repo := newStubRepo(Announcement{ID: "p1", Status: StatusPublished, CreatedBy: "h1"})
	service := newService(repo, nil)

	err := service.Update(context.Background(), helper, "p1", Input{Title: "X", Body: "Y"})
	assert.True(t, authz.IsPermissionDenied(err))
}

func TestPublishFansOutNotifications(t *testing.T) {
	repo := newStubRepo(Announcement{ID: "d1", Status: StatusDraft, CreatedBy: "h1"})
	enqueuer := &stubEnqueuer{}
	service := newService(repo, enqueuer)

	require.NoError(t, service.Publish(context.Background(), admin, "d1"))
	assert.Equal(t, StatusPublished, repo.statuses["d1"])
	assert.Equal(t, []string{"d1"}, enqueuer.published)
}

func TestPublishDeniedForHelper(t *testing.T) {
	repo := newStubRepo(Announcement{ID: "d1", Status: StatusDraft, CreatedBy: "h1"})
	enqueuer := &stubEnqueuer{}
	service := newService(repo, enqueuer)

	err := service.Publish(context.Background(), helper, "d1")
	assert.True(t, authz.IsPermissionDenied(err))
	assert.Empty(t, enqueuer.published)
}

func TestDeleteOwnDraftOutsideWorkHours(t *testing.T) {
	repo := newStubRepo(Announcement{ID: "d1", Status: StatusDraft, CreatedBy: "h1"})
	service := newService(repo, nil)
	service.now = func() time.Time {
		return time.Date(2026, time.March, 10, 5, 0, 0, 0, time.Local)
	}

	err := service.Delete(context.Background(), helper, "d1")
	assert.True(t, authz.IsPermissionDenied(err))

	// The same deletion succeeds during work hours.
	service.now = workHours
	require.NoError(t, service.Delete(context.Background(), helper, "d1"))
	assert.Equal(t, []string{"d1"}, repo.deleted)
}

func TestArchivePublishedAnnouncement(t *testing.T) {
	repo := newStubRepo(Announcement{ID: "p1", Status: StatusPublished, CreatedBy: "h1"})
	service := newService(repo, nil)

	err := service.Archive(context.Background(), helper, "p1")
	assert.True(t, authz.IsPermissionDenied(err))

	require.NoError(t, service.Archive(context.Background(), admin, "p1"))
	assert.Equal(t, StatusArchived, repo.statuses["p1"])
}
