package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portal-sekolah/portal-sekolah/internal/announcements"
	"github.com/portal-sekolah/portal-sekolah/internal/calendar"
	jobmetrics "github.com/portal-sekolah/portal-sekolah/internal/jobs"
	"github.com/portal-sekolah/portal-sekolah/internal/notifications"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
)

type stubAnnouncements struct {
	items map[string]announcements.Announcement
}

func (s *stubAnnouncements) Get(_ context.Context, id string) (announcements.Announcement, error) {
	item, ok := s.items[id]
	if !ok {
		return announcements.Announcement{}, shared.ErrNotFound
	}
	return item, nil
}

type stubEvents struct {
	items map[string]calendar.Event
}

func (s *stubEvents) Get(_ context.Context, id string) (calendar.Event, error) {
	item, ok := s.items[id]
	if !ok {
		return calendar.Event{}, shared.ErrNotFound
	}
	return item, nil
}

type stubSink struct {
	inserted  []notifications.Notification
	insertErr error
	pruned    int
}

func (s *stubSink) InsertForAllActiveUsers(_ context.Context, template notifications.Notification) (int, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	s.inserted = append(s.inserted, template)
	return 3, nil
}

func (s *stubSink) DeleteOlderThan(_ context.Context, days int) (int, error) {
	s.pruned++
	return 2, nil
}

type stubIdempotency struct {
	keys map[string]bool
}

func (s *stubIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	if s.keys == nil {
		s.keys = map[string]bool{}
	}
	if s.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	s.keys[key] = true
	return nil
}

func (s *stubIdempotency) Delete(_ context.Context, key string) error {
	delete(s.keys, key)
	return nil
}

func (s *stubIdempotency) Cleanup(_ context.Context, _ time.Duration) error { return nil }

type stubSessions struct {
	purged   int64
	purgeErr error
}

func (s *stubSessions) PurgeExpiredSessions(_ context.Context) (int64, error) {
	if s.purgeErr != nil {
		return 0, s.purgeErr
	}
	return s.purged, nil
}

func newRegistry(ann *stubAnnouncements, events *stubEvents, sink *stubSink, sessions *stubSessions) *Registry {
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	return NewRegistry(ann, events, sink, sessions, &stubIdempotency{}, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAnnouncementFanoutDeliversOnce(t *testing.T) {
	ann := &stubAnnouncements{items: map[string]announcements.Announcement{
		"a1": {ID: "a1", Title: "Rapat wali murid", Body: "Sabtu pukul 09.00", Status: announcements.StatusPublished},
	}}
	sink := &stubSink{}
	reg := newRegistry(ann, &stubEvents{}, sink, &stubSessions{})

	task, err := NewAnnouncementPublishedTask("a1")
	require.NoError(t, err)

	require.NoError(t, reg.HandleAnnouncementPublished(context.Background(), task))
	require.Len(t, sink.inserted, 1)
	assert.Equal(t, notifications.KindAnnouncement, sink.inserted[0].Kind)
	assert.Equal(t, "Pengumuman baru: Rapat wali murid", sink.inserted[0].Title)
	assert.Equal(t, "/announcements/a1", sink.inserted[0].Link)

	// The second delivery hits the idempotency key and writes nothing new.
	require.NoError(t, reg.HandleAnnouncementPublished(context.Background(), task))
	assert.Len(t, sink.inserted, 1)
}

func TestAnnouncementFanoutSkipsUnpublished(t *testing.T) {
	ann := &stubAnnouncements{items: map[string]announcements.Announcement{
		"a1": {ID: "a1", Title: "Draf", Body: "Belum terbit", Status: announcements.StatusDraft},
	}}
	sink := &stubSink{}
	reg := newRegistry(ann, &stubEvents{}, sink, &stubSessions{})

	task, err := NewAnnouncementPublishedTask("a1")
	require.NoError(t, err)
	require.NoError(t, reg.HandleAnnouncementPublished(context.Background(), task))
	assert.Empty(t, sink.inserted)
}

func TestAnnouncementFanoutMissingAnnouncementIsNotRetried(t *testing.T) {
	reg := newRegistry(&stubAnnouncements{}, &stubEvents{}, &stubSink{}, &stubSessions{})
	task, err := NewAnnouncementPublishedTask("gone")
	require.NoError(t, err)
	assert.NoError(t, reg.HandleAnnouncementPublished(context.Background(), task))
}

func TestAnnouncementFanoutReleasesKeyOnFailure(t *testing.T) {
	ann := &stubAnnouncements{items: map[string]announcements.Announcement{
		"a1": {ID: "a1", Title: "Libur", Body: "Senin", Status: announcements.StatusPublished},
	}}
	sink := &stubSink{insertErr: errors.New("db down")}
	reg := newRegistry(ann, &stubEvents{}, sink, &stubSessions{})

	task, err := NewAnnouncementPublishedTask("a1")
	require.NoError(t, err)
	require.Error(t, reg.HandleAnnouncementPublished(context.Background(), task))

	// After the failure the key is released, so a retry delivers.
	sink.insertErr = nil
	require.NoError(t, reg.HandleAnnouncementPublished(context.Background(), task))
	assert.Len(t, sink.inserted, 1)
}

func TestEventReminderDelivers(t *testing.T) {
	starts := time.Date(2026, 3, 11, 10, 0, 0, 0, time.Local)
	events := &stubEvents{items: map[string]calendar.Event{
		"e1": {ID: "e1", Title: "Upacara bendera", Location: "Lapangan utama", StartsAt: starts, Status: calendar.StatusScheduled},
	}}
	sink := &stubSink{}
	reg := newRegistry(&stubAnnouncements{}, events, sink, &stubSessions{})

	task, err := NewEventReminderTask("e1")
	require.NoError(t, err)
	require.NoError(t, reg.HandleEventReminder(context.Background(), task))
	require.Len(t, sink.inserted, 1)
	assert.Equal(t, notifications.KindEventReminder, sink.inserted[0].Kind)
	assert.Equal(t, "Pengingat: Upacara bendera", sink.inserted[0].Title)
	assert.Contains(t, sink.inserted[0].Body, "Lapangan utama")
	assert.Equal(t, "/calendar?month=2026-03", sink.inserted[0].Link)
}

func TestEventReminderSkipsCancelled(t *testing.T) {
	events := &stubEvents{items: map[string]calendar.Event{
		"e1": {ID: "e1", Title: "Batal", Status: calendar.StatusCancelled},
	}}
	sink := &stubSink{}
	reg := newRegistry(&stubAnnouncements{}, events, sink, &stubSessions{})

	task, err := NewEventReminderTask("e1")
	require.NoError(t, err)
	require.NoError(t, reg.HandleEventReminder(context.Background(), task))
	assert.Empty(t, sink.inserted)
}

func TestMaintenanceRunsAllSweeps(t *testing.T) {
	sink := &stubSink{}
	sessions := &stubSessions{purged: 4}
	reg := newRegistry(&stubAnnouncements{}, &stubEvents{}, sink, sessions)

	require.NoError(t, reg.HandleMaintenance(context.Background(), NewMaintenanceTask()))
	assert.Equal(t, 1, sink.pruned)
}

func TestMaintenanceReportsSweepFailure(t *testing.T) {
	sink := &stubSink{}
	sessions := &stubSessions{purgeErr: errors.New("pg unavailable")}
	reg := newRegistry(&stubAnnouncements{}, &stubEvents{}, sink, sessions)

	err := reg.HandleMaintenance(context.Background(), NewMaintenanceTask())
	require.Error(t, err)
	// The failing sweep does not stop the others.
	assert.Equal(t, 1, sink.pruned)
}
