package postgres

import (
	"context"
	"log/slog"
	"time"

	"roadwatch/internal/domain"
	"roadwatch/pkg/e"

	"github.com/jackc/pgx/v5/pgxpool"
)

type StatsRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewStats(pool *pgxpool.Pool, logger *slog.Logger) *StatsRepo {
	return &StatsRepo{pool: pool, logger: logger}
}

// Stats counts active incidents at now and activity since the given moment.
// A reporter is either the creator of an incident (reporters[1]) or the
// author of a duplicate-report notice.
func (p *StatsRepo) Stats(ctx context.Context, now, since time.Time) (*domain.IncidentStats, error) {
	const op = "postgres.Stats.Get"

	const query = `
		SELECT
			(SELECT COUNT(*) FROM incidents WHERE lifetime > $1),
			(SELECT COUNT(*) FROM incidents WHERE creation_date >= $2),
			(SELECT COUNT(*) FROM comments WHERE created_at >= $2 AND NOT system_comment),
			(SELECT COUNT(DISTINCT reporter) FROM (
				SELECT reporters[1] AS reporter FROM incidents WHERE creation_date >= $2
				UNION
				SELECT author_id FROM comments WHERE created_at >= $2 AND system_comment
			) r WHERE reporter IS NOT NULL)
	`

	var s domain.IncidentStats
	if err := p.pool.QueryRow(ctx, query, now, since).Scan(
		&s.ActiveIncidents,
		&s.IncidentsCreated,
		&s.CommentsPosted,
		&s.DistinctReporters,
	); err != nil {
		p.logger.Error("db queryrow scan failed",
			slog.String("op", op),
			slog.Any("error", err),
			slog.Time("since", since),
		)
		return nil, e.WrapError(ctx, op, err)
	}

	return &s, nil
}
