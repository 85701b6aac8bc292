package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"roadwatch/internal/domain"
	"roadwatch/pkg/e"

	"github.com/google/uuid"
)

const (
	stepListComments   = "list_comments"
	stepDeleteIncident = "delete_incident"
	stepListPhotos     = "list_photos"
	stepDeletePhoto    = "delete_photo"
)

// IncidentPhotoPrefix is the object-storage prefix holding an incident's photos.
func IncidentPhotoPrefix(id uuid.UUID) string {
	return fmt.Sprintf("incidents/%s/", id)
}

// ExpiryReaper deletes incidents whose lifetime has passed together with
// their comments, comment authors and photos.
type ExpiryReaper struct {
	repo    IncidentRepository
	storage ObjectStorage
	cache   IncidentCache
	events  EventQueue
	logger  *slog.Logger
}

func NewExpiryReaper(repo IncidentRepository, storage ObjectStorage, cache IncidentCache, events EventQueue, logger *slog.Logger) *ExpiryReaper {
	return &ExpiryReaper{
		repo:    repo,
		storage: storage,
		cache:   cache,
		events:  events,
		logger:  logger,
	}
}

// Sweep removes every incident with lifetime < now. A failure on one incident
// is recorded in the report and does not stop the sweep.
func (r *ExpiryReaper) Sweep(ctx context.Context, now time.Time) (domain.ReapReport, error) {
	const op = "service.ExpiryReaper.Sweep"

	report := domain.ReapReport{DeletedIncidentIDs: []uuid.UUID{}}

	expired, err := r.repo.ListExpired(ctx, now)
	if err != nil {
		r.logger.Error("list expired failed", slog.String("op", op), slog.Any("error", err))
		return report, e.Wrap(op, err)
	}
	if len(expired) == 0 {
		return report, nil
	}

	for _, inc := range expired {
		if ctx.Err() != nil {
			return report, e.WrapError(ctx, op, ctx.Err())
		}

		deleted, failures := r.reap(ctx, inc, now)
		report.Failures = append(report.Failures, failures...)
		for _, f := range failures {
			r.logger.Warn("reap step failed",
				slog.String("incident_id", f.IncidentID.String()),
				slog.String("step", f.Step),
				slog.String("error", f.Error),
			)
		}
		if !deleted {
			continue
		}

		report.DeletedIncidentIDs = append(report.DeletedIncidentIDs, inc.ID)
		r.publish(ctx, inc, now)
	}

	if len(report.DeletedIncidentIDs) > 0 && r.cache != nil {
		if err := r.cache.Invalidate(ctx); err != nil {
			r.logger.Warn("cache invalidate failed", slog.Any("error", err))
		}
	}

	r.logger.Info("sweep finished",
		slog.Int("expired", len(expired)),
		slog.Int("deleted", len(report.DeletedIncidentIDs)),
		slog.Int("failures", len(report.Failures)),
	)
	return report, nil
}

// reap runs the deletion sequence for one incident. Photos go last: a crash
// before that leaves orphaned objects under the incident prefix, never an
// incident pointing at deleted photos.
func (r *ExpiryReaper) reap(ctx context.Context, inc *domain.Incident, now time.Time) (bool, []domain.ReapFailure) {
	var failures []domain.ReapFailure
	fail := func(step string, err error) {
		failures = append(failures, domain.ReapFailure{IncidentID: inc.ID, Step: step, Error: err.Error()})
	}

	photos := make(map[string]struct{}, len(inc.Photos))
	for _, p := range inc.Photos {
		photos[p] = struct{}{}
	}

	comments, err := r.repo.ListComments(ctx, inc.ID)
	if err != nil {
		// deleting now would lose the only reference to comment photos
		fail(stepListComments, err)
		return false, failures
	}
	for _, c := range comments {
		for _, p := range c.Photos {
			photos[p] = struct{}{}
		}
	}

	if err := r.repo.DeleteExpired(ctx, inc.ID, now); err != nil {
		if errors.Is(err, e.ErrNotFound) {
			// extended by a merge or already gone
			return false, failures
		}
		fail(stepDeleteIncident, err)
		return false, failures
	}

	if r.storage == nil {
		return true, failures
	}

	stored, err := r.storage.ListUnder(ctx, IncidentPhotoPrefix(inc.ID))
	if err != nil {
		fail(stepListPhotos, err)
	}
	for _, p := range stored {
		photos[p] = struct{}{}
	}
	for p := range photos {
		if err := r.storage.Delete(ctx, p); err != nil {
			fail(stepDeletePhoto, fmt.Errorf("%s: %w", p, err))
		}
	}

	return true, failures
}

func (r *ExpiryReaper) publish(ctx context.Context, inc *domain.Incident, now time.Time) {
	if r.events == nil {
		return
	}
	ev := domain.LifecycleEvent{
		Kind:       domain.EventIncidentReaped,
		IncidentID: inc.ID,
		Type:       inc.Type,
		Lat:        inc.Lat,
		Lng:        inc.Lng,
		Lifetime:   inc.Lifetime,
		At:         now,
	}
	if err := r.events.Enqueue(ctx, ev); err != nil {
		r.logger.Error("enqueue event failed", slog.String("kind", string(ev.Kind)), slog.Any("error", err))
	}
}
