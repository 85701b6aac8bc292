package service

import (
	"context"
	"io"
	"time"

	"roadwatch/internal/domain"

	"github.com/google/uuid"
)

// Use-case surfaces consumed by the HTTP layer.

type IncidentReporter interface {
	ReportIncident(ctx context.Context, req domain.ReportIncidentRequest) (domain.ReportResult, error)
}

type IncidentReader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error)
	List(ctx context.Context, page, limit int) ([]*domain.Incident, int64, error)
	ListActive(ctx context.Context, region *domain.Region) ([]domain.CachedIncident, error)
	ListComments(ctx context.Context, incidentID uuid.UUID) ([]*domain.Comment, error)
}

type IncidentInteractor interface {
	AddComment(ctx context.Context, incidentID uuid.UUID, req domain.AddCommentRequest) (*domain.Comment, error)
	Like(ctx context.Context, incidentID uuid.UUID, req domain.LikeRequest) (domain.LikeResult, error)
	UploadPhoto(ctx context.Context, incidentID uuid.UUID, filename, contentType string, size int64, r io.Reader) (string, error)
	UploadReportPhoto(ctx context.Context, userID, filename, contentType string, size int64, r io.Reader) (string, error)
}

type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (domain.ReapReport, error)
}

type Profiles interface {
	Profile(ctx context.Context, userID string) (*domain.UserProfile, error)
	SyncProfile(ctx context.Context, userID, displayName string) error
}

type StatsService interface {
	GetStats(ctx context.Context, req domain.StatsRequest) (*domain.IncidentStats, error)
}

type Service struct {
	Engine    *LifecycleEngine
	Incidents *IncidentService
	Reaper    *ExpiryReaper
	Ledger    *ReputationLedger
	Stats     StatsService
}

func NewService(
	engine *LifecycleEngine,
	incidents *IncidentService,
	reaper *ExpiryReaper,
	ledger *ReputationLedger,
	stats StatsService,
) *Service {
	return &Service{
		Engine:    engine,
		Incidents: incidents,
		Reaper:    reaper,
		Ledger:    ledger,
		Stats:     stats,
	}
}
