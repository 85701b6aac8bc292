package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"roadwatch/internal/domain"
	"roadwatch/internal/geo"
	"roadwatch/pkg/e"
	"roadwatch/pkg/validator"

	"github.com/google/uuid"
)

var allowedPhotoTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// IncidentService serves reads, comments, likes and photo uploads.
type IncidentService struct {
	repo     IncidentRepository
	ledger   *ReputationLedger
	storage  ObjectStorage
	cache    IncidentCache
	events   EventQueue
	clock    Clock
	logger   *slog.Logger
	cacheTTL time.Duration
}

func NewIncidentService(
	repo IncidentRepository,
	ledger *ReputationLedger,
	storage ObjectStorage,
	cache IncidentCache,
	events EventQueue,
	clock Clock,
	logger *slog.Logger,
	cacheTTL time.Duration,
) *IncidentService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &IncidentService{
		repo:     repo,
		ledger:   ledger,
		storage:  storage,
		cache:    cache,
		events:   events,
		clock:    clock,
		logger:   logger,
		cacheTTL: cacheTTL,
	}
}

// Get returns an active incident. Expired incidents awaiting the reaper are
// reported as ErrNotFound.
func (s *IncidentService) Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error) {
	const op = "service.IncidentService.Get"

	inc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if !inc.Active(s.clock.Now()) {
		return nil, fmt.Errorf("%s: %w", op, e.ErrNotFound)
	}
	return inc, nil
}

func (s *IncidentService) List(ctx context.Context, page, limit int) ([]*domain.Incident, int64, error) {
	return s.repo.List(ctx, page, limit)
}

// ListActive returns incidents with now < lifetime, optionally limited to a
// region. Expired entries are filtered even when served from the cache.
func (s *IncidentService) ListActive(ctx context.Context, region *domain.Region) ([]domain.CachedIncident, error) {
	const op = "service.IncidentService.ListActive"

	if region != nil {
		if err := validator.ValidateStruct(region); err != nil {
			return nil, e.Wrap(op, err)
		}
	}

	now := s.clock.Now()

	all, err := s.activeSet(ctx, now)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	out := make([]domain.CachedIncident, 0, len(all))
	var box geo.Box
	if region != nil {
		box = geo.BoundingBox(geo.Point{Lat: region.Lat, Lng: region.Lng}, region.RadiusKM)
	}
	for _, inc := range all {
		if !now.Before(inc.Lifetime) {
			continue
		}
		if region != nil {
			p := geo.Point{Lat: inc.Lat, Lng: inc.Lng}
			if !box.Contains(p) || geo.Distance(p, geo.Point{Lat: region.Lat, Lng: region.Lng}) > region.RadiusKM {
				continue
			}
		}
		out = append(out, inc)
	}
	return out, nil
}

func (s *IncidentService) activeSet(ctx context.Context, now time.Time) ([]domain.CachedIncident, error) {
	if s.cache != nil {
		cached, err := s.cache.GetActive(ctx)
		if err != nil {
			s.logger.Warn("cache.GetActive failed", slog.Any("error", err))
		} else if cached != nil {
			return cached, nil
		}
	}

	incidents, err := s.repo.ListActive(ctx, now)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CachedIncident, 0, len(incidents))
	for _, inc := range incidents {
		out = append(out, domain.ToCached(inc))
	}

	if s.cache != nil {
		if err := s.cache.SetActive(ctx, out, s.cacheTTL); err != nil {
			s.logger.Warn("cache.SetActive failed", slog.Any("error", err))
		}
	}
	return out, nil
}

func (s *IncidentService) ListComments(ctx context.Context, incidentID uuid.UUID) ([]*domain.Comment, error) {
	const op = "service.IncidentService.ListComments"

	if _, err := s.Get(ctx, incidentID); err != nil {
		return nil, e.Wrap(op, err)
	}
	comments, err := s.repo.ListComments(ctx, incidentID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return comments, nil
}

func (s *IncidentService) AddComment(ctx context.Context, incidentID uuid.UUID, req domain.AddCommentRequest) (*domain.Comment, error) {
	const op = "service.IncidentService.AddComment"

	if err := validator.ValidateStruct(req); err != nil {
		return nil, e.Wrap(op, err)
	}
	if strings.TrimSpace(req.Text) == "" && len(req.Photos) == 0 {
		return nil, fmt.Errorf("%s: empty comment: %w", op, e.ErrInvalidInput)
	}

	now := s.clock.Now()
	c := &domain.Comment{
		ID:         uuid.New(),
		IncidentID: incidentID,
		AuthorID:   req.AuthorID,
		AuthorName: s.ledger.DisplayName(ctx, req.AuthorID),
		Text:       req.Text,
		Photos:     nonNil(req.Photos),
		Timestamp:  now,
	}
	if err := s.repo.AddComment(ctx, c, now); err != nil {
		return nil, e.Wrap(op, err)
	}

	s.invalidate(ctx)
	return c, nil
}

// Like records "this helped me". Reporters are credited only the first time
// a given non-reporter likes the incident.
func (s *IncidentService) Like(ctx context.Context, incidentID uuid.UUID, req domain.LikeRequest) (domain.LikeResult, error) {
	const op = "service.IncidentService.Like"

	if err := validator.ValidateStruct(req); err != nil {
		return domain.LikeResult{}, e.Wrap(op, err)
	}

	now := s.clock.Now()
	inc, err := s.repo.Get(ctx, incidentID)
	if err != nil {
		return domain.LikeResult{}, e.Wrap(op, err)
	}
	if !inc.Active(now) {
		return domain.LikeResult{}, fmt.Errorf("%s: %w", op, e.ErrNotFound)
	}

	added, err := s.repo.AddLike(ctx, incidentID, req.UserID, now)
	if err != nil {
		return domain.LikeResult{}, e.Wrap(op, err)
	}
	if !added {
		return domain.LikeResult{Added: false}, nil
	}

	if !inc.HasReporter(req.UserID) {
		if err := s.ledger.CreditThanks(ctx, req.UserID, incidentID); err != nil {
			s.logger.Error("credit thanks failed",
				slog.String("incident_id", incidentID.String()),
				slog.String("user_id", req.UserID),
				slog.Any("error", err),
			)
		}
	}

	s.invalidate(ctx)
	if s.events != nil {
		ev := domain.LifecycleEvent{
			Kind:       domain.EventIncidentLiked,
			IncidentID: incidentID,
			Type:       inc.Type,
			UserID:     req.UserID,
			Lat:        inc.Lat,
			Lng:        inc.Lng,
			Lifetime:   inc.Lifetime,
			At:         now,
		}
		if err := s.events.Enqueue(ctx, ev); err != nil {
			s.logger.Error("enqueue event failed", slog.String("kind", string(ev.Kind)), slog.Any("error", err))
		}
	}
	return domain.LikeResult{Added: true}, nil
}

// UploadPhoto stores a photo under the incident prefix so the reaper can find
// it even if no comment references it.
func (s *IncidentService) UploadPhoto(ctx context.Context, incidentID uuid.UUID, filename, contentType string, size int64, r io.Reader) (string, error) {
	const op = "service.IncidentService.UploadPhoto"

	inc, err := s.repo.Get(ctx, incidentID)
	if err != nil {
		return "", e.Wrap(op, err)
	}
	if !inc.Active(s.clock.Now()) {
		return "", fmt.Errorf("%s: %w", op, e.ErrNotFound)
	}

	key, err := photoKey(IncidentPhotoPrefix(incidentID), filename, contentType)
	if err != nil {
		return "", e.Wrap(op, err)
	}
	return s.upload(ctx, op, key, contentType, size, r)
}

// UploadReportPhoto stores a photo for a report that has no incident yet.
func (s *IncidentService) UploadReportPhoto(ctx context.Context, userID, filename, contentType string, size int64, r io.Reader) (string, error) {
	const op = "service.IncidentService.UploadReportPhoto"

	if userID == "" || strings.ContainsAny(userID, "/\\") {
		return "", fmt.Errorf("%s: %w", op, e.ErrInvalidUserID)
	}
	key, err := photoKey(fmt.Sprintf("uploads/%s/", userID), filename, contentType)
	if err != nil {
		return "", e.Wrap(op, err)
	}
	return s.upload(ctx, op, key, contentType, size, r)
}

func (s *IncidentService) upload(ctx context.Context, op, key, contentType string, size int64, r io.Reader) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("%s: %w", op, e.ErrObjectStoreUnavailable)
	}
	url, err := s.storage.Upload(ctx, key, r, size, contentType)
	if err != nil {
		s.logger.Error("photo upload failed", slog.String("op", op), slog.String("key", key), slog.Any("error", err))
		return "", e.Wrap(op, err)
	}
	return url, nil
}

func (s *IncidentService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("cache invalidate failed", slog.Any("error", err))
	}
}

func photoKey(prefix, filename, contentType string) (string, error) {
	ext, ok := allowedPhotoTypes[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported content type %q: %w", contentType, e.ErrInvalidInput)
	}
	if fe := strings.ToLower(path.Ext(filename)); fe == ext || (ext == ".jpg" && fe == ".jpeg") {
		ext = fe
	}
	return prefix + uuid.NewString() + ext, nil
}
