package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"

	"roadwatch/internal/domain"
	"roadwatch/internal/service"
	mock_service "roadwatch/internal/service/mocks"
	"roadwatch/pkg/e"
)

func expiredIncident(now time.Time, photos ...string) *domain.Incident {
	return &domain.Incident{
		ID:           uuid.New(),
		Type:         domain.IncidentCarAccident,
		CreationDate: now.Add(-2 * time.Hour),
		Lifetime:     now.Add(-time.Minute),
		Photos:       photos,
		Reporters:    []string{"u1"},
	}
}

func TestExpiryReaper_Sweep_DeletesExpiredWithCommentsAndPhotos(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	repo := mock_service.NewMockIncidentRepository(ctrl)
	storage := mock_service.NewMockObjectStorage(ctrl)
	cache := mock_service.NewMockIncidentCache(ctrl)
	events := mock_service.NewMockEventQueue(ctrl)

	now := mustTime(t)
	inc := expiredIncident(now, "http://minio/roadwatch/uploads/u1/a.jpg")
	comment := &domain.Comment{ID: uuid.New(), IncidentID: inc.ID, Photos: []string{"http://minio/roadwatch/incidents/c.jpg"}}
	stray := "http://minio/roadwatch/" + service.IncidentPhotoPrefix(inc.ID) + "stray.png"

	repo.EXPECT().ListExpired(gomock.Any(), now).Return([]*domain.Incident{inc}, nil)
	repo.EXPECT().ListComments(gomock.Any(), inc.ID).Return([]*domain.Comment{comment}, nil)

	gomock.InOrder(
		repo.EXPECT().DeleteExpired(gomock.Any(), inc.ID, now).Return(nil),
		storage.EXPECT().ListUnder(gomock.Any(), service.IncidentPhotoPrefix(inc.ID)).Return([]string{stray}, nil),
	)

	deleted := map[string]bool{}
	storage.EXPECT().
		Delete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, url string) error {
			deleted[url] = true
			return nil
		}).
		Times(3)

	cache.EXPECT().Invalidate(gomock.Any()).Return(nil)
	events.EXPECT().
		Enqueue(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev domain.LifecycleEvent) error {
			if ev.Kind != domain.EventIncidentReaped || ev.IncidentID != inc.ID {
				t.Fatalf("unexpected event: %+v", ev)
			}
			return nil
		})

	reaper := service.NewExpiryReaper(repo, storage, cache, events, newTestLogger())
	report, err := reaper.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(report.DeletedIncidentIDs) != 1 || report.DeletedIncidentIDs[0] != inc.ID {
		t.Fatalf("unexpected deleted ids: %v", report.DeletedIncidentIDs)
	}
	if len(report.Failures) != 0 {
		t.Fatalf("unexpected failures: %+v", report.Failures)
	}
	for _, url := range []string{inc.Photos[0], comment.Photos[0], stray} {
		if !deleted[url] {
			t.Fatalf("photo %s was not deleted", url)
		}
	}
}

func TestExpiryReaper_Sweep_NothingExpired(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	repo := mock_service.NewMockIncidentRepository(ctrl)
	cache := mock_service.NewMockIncidentCache(ctrl)

	now := mustTime(t)
	repo.EXPECT().ListExpired(gomock.Any(), now).Return([]*domain.Incident{}, nil)
	// cache must stay untouched

	reaper := service.NewExpiryReaper(repo, nil, cache, nil, newTestLogger())
	report, err := reaper.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(report.DeletedIncidentIDs) != 0 || len(report.Failures) != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestExpiryReaper_Sweep_FailureOnOneIncidentDoesNotStopSweep(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	repo := mock_service.NewMockIncidentRepository(ctrl)

	now := mustTime(t)
	broken := expiredIncident(now)
	healthy := expiredIncident(now)

	repo.EXPECT().ListExpired(gomock.Any(), now).Return([]*domain.Incident{broken, healthy}, nil)
	repo.EXPECT().ListComments(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)

	repo.EXPECT().
		DeleteExpired(gomock.Any(), broken.ID, now).
		Return(fmt.Errorf("postgres.Incident.DeleteExpired: %w", e.ErrStoreUnavailable))
	// broken: photos must not be touched

	repo.EXPECT().DeleteExpired(gomock.Any(), healthy.ID, now).Return(nil)

	reaper := service.NewExpiryReaper(repo, nil, nil, nil, newTestLogger())
	report, err := reaper.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(report.DeletedIncidentIDs) != 1 || report.DeletedIncidentIDs[0] != healthy.ID {
		t.Fatalf("expected only healthy incident deleted, got %v", report.DeletedIncidentIDs)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected one failure, got %+v", report.Failures)
	}
	f := report.Failures[0]
	if f.IncidentID != broken.ID || f.Step != "delete_incident" {
		t.Fatalf("unexpected failure: %+v", f)
	}
}

func TestExpiryReaper_Sweep_ExtendedIncidentIsSkipped(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	repo := mock_service.NewMockIncidentRepository(ctrl)
	storage := mock_service.NewMockObjectStorage(ctrl)
	events := mock_service.NewMockEventQueue(ctrl)

	now := mustTime(t)
	inc := expiredIncident(now, "http://minio/roadwatch/uploads/u1/a.jpg")

	repo.EXPECT().ListExpired(gomock.Any(), now).Return([]*domain.Incident{inc}, nil)
	repo.EXPECT().ListComments(gomock.Any(), inc.ID).Return(nil, nil)
	repo.EXPECT().
		DeleteExpired(gomock.Any(), inc.ID, now).
		Return(fmt.Errorf("postgres.Incident.DeleteExpired: %w", e.ErrNotFound))
	// photos and events must be left alone

	reaper := service.NewExpiryReaper(repo, storage, nil, events, newTestLogger())
	report, err := reaper.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(report.DeletedIncidentIDs) != 0 || len(report.Failures) != 0 {
		t.Fatalf("expected skip without failure, got %+v", report)
	}
}

func TestExpiryReaper_Sweep_PhotoFailureReportedAfterDelete(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	repo := mock_service.NewMockIncidentRepository(ctrl)
	storage := mock_service.NewMockObjectStorage(ctrl)

	now := mustTime(t)
	inc := expiredIncident(now, "http://minio/roadwatch/uploads/u1/a.jpg")

	repo.EXPECT().ListExpired(gomock.Any(), now).Return([]*domain.Incident{inc}, nil)
	repo.EXPECT().ListComments(gomock.Any(), inc.ID).Return(nil, nil)
	repo.EXPECT().DeleteExpired(gomock.Any(), inc.ID, now).Return(nil)
	storage.EXPECT().ListUnder(gomock.Any(), gomock.Any()).Return(nil, nil)
	storage.EXPECT().Delete(gomock.Any(), inc.Photos[0]).Return(e.ErrObjectStoreUnavailable)

	reaper := service.NewExpiryReaper(repo, storage, nil, nil, newTestLogger())
	report, err := reaper.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(report.DeletedIncidentIDs) != 1 {
		t.Fatalf("incident must count as deleted, got %+v", report)
	}
	if len(report.Failures) != 1 || report.Failures[0].Step != "delete_photo" {
		t.Fatalf("expected delete_photo failure, got %+v", report.Failures)
	}
}

func TestExpiryReaper_Sweep_ListExpiredError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	repo := mock_service.NewMockIncidentRepository(ctrl)

	repo.EXPECT().ListExpired(gomock.Any(), gomock.Any()).Return(nil, e.ErrStoreUnavailable)

	reaper := service.NewExpiryReaper(repo, nil, nil, nil, newTestLogger())
	_, err := reaper.Sweep(context.Background(), mustTime(t))
	if !errors.Is(err, e.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestExpiryReaper_Sweep_ListCommentsFailureKeepsIncident(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	repo := mock_service.NewMockIncidentRepository(ctrl)
	storage := mock_service.NewMockObjectStorage(ctrl)

	now := mustTime(t)
	inc := expiredIncident(now, "http://minio/roadwatch/uploads/u1/a.jpg")

	repo.EXPECT().ListExpired(gomock.Any(), now).Return([]*domain.Incident{inc}, nil)
	repo.EXPECT().ListComments(gomock.Any(), inc.ID).Return(nil, e.ErrStoreUnavailable)
	// no delete and no photo calls: the next sweep retries

	reaper := service.NewExpiryReaper(repo, storage, nil, nil, newTestLogger())
	report, err := reaper.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(report.DeletedIncidentIDs) != 0 {
		t.Fatalf("incident must survive, got %+v", report)
	}
	if len(report.Failures) != 1 || report.Failures[0].Step != "list_comments" {
		t.Fatalf("expected list_comments failure, got %+v", report.Failures)
	}
}
