package service

import (
	"context"
	"io"
	"time"

	"roadwatch/internal/domain"
	"roadwatch/internal/geo"

	"github.com/google/uuid"
)

//go:generate mockgen -source=ports.go -destination=mocks/mock.go

// IncidentRepository is the durable incident store. Merge, AddComment,
// AddLike and DeleteExpired are atomic per incident; DeleteExpired only
// touches an incident that is still expired at now.
type IncidentRepository interface {
	Create(ctx context.Context, incident *domain.Incident) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error)
	List(ctx context.Context, page, limit int) ([]*domain.Incident, int64, error)
	ListActive(ctx context.Context, now time.Time) ([]*domain.Incident, error)
	ListActiveNear(ctx context.Context, p geo.Point, radiusKM float64, now time.Time) ([]*domain.Incident, error)
	ListExpired(ctx context.Context, now time.Time) ([]*domain.Incident, error)
	Merge(ctx context.Context, params domain.MergeParams) (*domain.Incident, error)
	AddComment(ctx context.Context, comment *domain.Comment, now time.Time) error
	ListComments(ctx context.Context, incidentID uuid.UUID) ([]*domain.Comment, error)
	AddLike(ctx context.Context, incidentID uuid.UUID, userID string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, incidentID uuid.UUID, now time.Time) error
}

type StatsRepository interface {
	Stats(ctx context.Context, now, since time.Time) (*domain.IncidentStats, error)
}

// ProfileRepository moves user counters. Users without a profile are skipped;
// IncrementMany writes the remaining ones atomically.
type ProfileRepository interface {
	Get(ctx context.Context, userID string) (*domain.UserProfile, error)
	Upsert(ctx context.Context, userID, displayName string) error
	Increment(ctx context.Context, userID string, diff domain.ProfileDiff) error
	IncrementMany(ctx context.Context, userIDs []string, diff domain.ProfileDiff) error
}

type ObjectStorage interface {
	Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) (string, error)
	ListUnder(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, url string) error
}

// IncidentCache returns nil, nil on a miss.
type IncidentCache interface {
	GetActive(ctx context.Context) ([]domain.CachedIncident, error)
	SetActive(ctx context.Context, incidents []domain.CachedIncident, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// CellLocker serializes writes inside one geo cell.
type CellLocker interface {
	Lock(ctx context.Context, cell string) (unlock func(), err error)
}

type EventQueue interface {
	Enqueue(ctx context.Context, event domain.LifecycleEvent) error
}
