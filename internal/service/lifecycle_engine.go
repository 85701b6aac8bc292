package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"roadwatch/internal/domain"
	"roadwatch/internal/geo"
	"roadwatch/pkg/e"
	"roadwatch/pkg/validator"

	"github.com/google/uuid"
)

const duplicateReportNotice = "duplicate report"

type EngineOptions struct {
	MergeRadiusM   float64
	MergeWindow    time.Duration
	MaxLifetime    time.Duration // 0 means no cap
	CellSizeDeg    float64
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		MergeRadiusM:   100,
		MergeWindow:    30 * time.Minute,
		CellSizeDeg:    0.01,
		RetryAttempts:  3,
		RetryBaseDelay: 100 * time.Millisecond,
	}
}

// LifecycleEngine turns reports into incidents: a report within the merge
// radius of an active incident extends it, anything else opens a new one.
type LifecycleEngine struct {
	repo   IncidentRepository
	ledger *ReputationLedger
	locker CellLocker
	cache  IncidentCache
	events EventQueue
	clock  Clock
	logger *slog.Logger
	opts   EngineOptions
}

// NewLifecycleEngine wires the engine. locker, cache and events may be nil.
func NewLifecycleEngine(
	repo IncidentRepository,
	ledger *ReputationLedger,
	locker CellLocker,
	cache IncidentCache,
	events EventQueue,
	clock Clock,
	logger *slog.Logger,
	opts EngineOptions,
) *LifecycleEngine {
	if clock == nil {
		clock = SystemClock{}
	}
	if opts.MergeRadiusM <= 0 {
		opts.MergeRadiusM = 100
	}
	if opts.MergeWindow <= 0 {
		opts.MergeWindow = 30 * time.Minute
	}
	return &LifecycleEngine{
		repo:   repo,
		ledger: ledger,
		locker: locker,
		cache:  cache,
		events: events,
		clock:  clock,
		logger: logger,
		opts:   opts,
	}
}

func (s *LifecycleEngine) ReportIncident(ctx context.Context, req domain.ReportIncidentRequest) (domain.ReportResult, error) {
	const op = "service.LifecycleEngine.ReportIncident"

	if err := validator.ValidateStruct(req); err != nil {
		s.logger.Warn("report rejected", slog.String("op", op), slog.Any("error", err))
		return domain.ReportResult{}, e.Wrap(op, err)
	}

	point := geo.Point{Lat: req.Lat, Lng: req.Lng}
	name := s.ledger.DisplayName(ctx, req.ReporterID)

	var (
		res      domain.ReportResult
		incident *domain.Incident
	)
	err := withRetry(ctx, s.logger, op, s.opts.RetryAttempts, s.opts.RetryBaseDelay, func(ctx context.Context) error {
		var err error
		res, incident, err = s.report(ctx, req, point, name)
		return err
	})
	if err != nil {
		if errors.Is(err, e.ErrDuplicateReporter) {
			s.logger.Info("duplicate reporter",
				slog.String("reporter_id", req.ReporterID),
				slog.Float64("lat", req.Lat),
				slog.Float64("lng", req.Lng),
			)
		} else {
			s.logger.Error("report failed", slog.String("op", op), slog.Any("error", err))
		}
		return domain.ReportResult{}, e.Wrap(op, err)
	}

	s.afterCommit(ctx, req.ReporterID, res, incident)
	return res, nil
}

// report makes the merge-or-create decision and writes it. It is the unit
// retried on transient store failures.
func (s *LifecycleEngine) report(ctx context.Context, req domain.ReportIncidentRequest, point geo.Point, name string) (domain.ReportResult, *domain.Incident, error) {
	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, geo.Cell(point, s.opts.CellSizeDeg))
		if err != nil {
			return domain.ReportResult{}, nil, err
		}
		defer unlock()
	}

	now := s.clock.Now()

	candidates, err := s.repo.ListActiveNear(ctx, point, s.opts.MergeRadiusM/1000, now)
	if err != nil {
		return domain.ReportResult{}, nil, err
	}

	for _, inc := range candidates {
		if inc.HasReporter(req.ReporterID) {
			return domain.ReportResult{}, nil, e.ErrDuplicateReporter
		}
		// the store over-fetches slightly; haversine decides the merge
		if geo.DistanceMeters(inc.Location(), point) >= s.opts.MergeRadiusM {
			continue
		}

		merged, err := s.merge(ctx, inc, req, name, now)
		if errors.Is(err, e.ErrNotFound) {
			// reaped or expired since ListActiveNear
			s.logger.Info("merge target gone, creating new incident", slog.String("incident_id", inc.ID.String()))
			break
		}
		if err != nil {
			return domain.ReportResult{}, nil, err
		}
		return domain.ReportResult{Outcome: domain.ReportMerged, IncidentID: merged.ID}, merged, nil
	}

	created, err := s.create(ctx, req, name, now)
	if err != nil {
		return domain.ReportResult{}, nil, err
	}
	return domain.ReportResult{Outcome: domain.ReportCreated, IncidentID: created.ID}, created, nil
}

func (s *LifecycleEngine) merge(ctx context.Context, inc *domain.Incident, req domain.ReportIncidentRequest, name string, now time.Time) (*domain.Incident, error) {
	comments := []domain.Comment{{
		ID:            uuid.New(),
		IncidentID:    inc.ID,
		AuthorID:      req.ReporterID,
		AuthorName:    name,
		Text:          duplicateReportNotice,
		Photos:        []string{},
		Timestamp:     now,
		SystemComment: true,
	}}
	if req.Description != "" || len(req.Photos) > 0 {
		comments = append(comments, domain.Comment{
			ID:         uuid.New(),
			IncidentID: inc.ID,
			AuthorID:   req.ReporterID,
			AuthorName: name,
			Text:       req.Description,
			Photos:     nonNil(req.Photos),
			Timestamp:  now,
		})
	}

	return s.repo.Merge(ctx, domain.MergeParams{
		IncidentID:  inc.ID,
		ReporterID:  req.ReporterID,
		Now:         now,
		NewLifetime: s.lifetime(inc.CreationDate, now),
		Photos:      nonNil(req.Photos),
		Comments:    comments,
	})
}

func (s *LifecycleEngine) create(ctx context.Context, req domain.ReportIncidentRequest, name string, now time.Time) (*domain.Incident, error) {
	inc := &domain.Incident{
		ID:           uuid.New(),
		Type:         req.Type,
		Lat:          req.Lat,
		Lng:          req.Lng,
		Address:      req.Address,
		Description:  req.Description,
		Photos:       nonNil(req.Photos),
		CreatedBy:    name,
		CreationDate: now,
		Lifetime:     s.lifetime(now, now),
		CommentCount: 0,
		UsersLiked:   []string{req.ReporterID},
		Reporters:    []string{req.ReporterID},
	}
	if err := s.repo.Create(ctx, inc); err != nil {
		return nil, err
	}
	return inc, nil
}

// lifetime resets expiry to now+MergeWindow, bounded by MaxLifetime after
// creation when a cap is configured.
func (s *LifecycleEngine) lifetime(created, now time.Time) time.Time {
	next := now.Add(s.opts.MergeWindow)
	if s.opts.MaxLifetime > 0 {
		if limit := created.Add(s.opts.MaxLifetime); next.After(limit) {
			next = limit
		}
	}
	if next.Before(created) {
		next = created
	}
	return next
}

// afterCommit applies the follow-up steps of a committed report. None of them
// can undo the report, so failures are logged only.
func (s *LifecycleEngine) afterCommit(ctx context.Context, reporterID string, res domain.ReportResult, inc *domain.Incident) {
	var (
		creditErr error
		kind      domain.EventKind
	)
	switch res.Outcome {
	case domain.ReportCreated:
		creditErr = s.ledger.CreditNewReport(ctx, reporterID)
		kind = domain.EventIncidentCreated
	case domain.ReportMerged:
		creditErr = s.ledger.CreditDuplicateReport(ctx, reporterID)
		kind = domain.EventIncidentMerged
	}
	if creditErr != nil {
		s.logger.Error("reputation credit failed",
			slog.String("reporter_id", reporterID),
			slog.String("incident_id", res.IncidentID.String()),
			slog.Any("error", creditErr),
		)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("cache invalidate failed", slog.Any("error", err))
		}
	}

	if s.events != nil && inc != nil {
		ev := domain.LifecycleEvent{
			Kind:       kind,
			IncidentID: inc.ID,
			Type:       inc.Type,
			UserID:     reporterID,
			Lat:        inc.Lat,
			Lng:        inc.Lng,
			Lifetime:   inc.Lifetime,
			At:         s.clock.Now(),
		}
		if err := s.events.Enqueue(ctx, ev); err != nil {
			s.logger.Error("enqueue event failed", slog.String("kind", string(kind)), slog.Any("error", err))
		}
	}

	s.logger.Info("incident reported",
		slog.String("outcome", string(res.Outcome)),
		slog.String("incident_id", res.IncidentID.String()),
		slog.String("reporter_id", reporterID),
	)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
