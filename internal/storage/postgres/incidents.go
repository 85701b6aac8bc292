package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"roadwatch/internal/domain"
	"roadwatch/internal/geo"
	"roadwatch/pkg/e"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type IncidentRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewIncidentRepo(pool *pgxpool.Pool, logger *slog.Logger) *IncidentRepo {
	return &IncidentRepo{pool: pool, logger: logger}
}

func (p *IncidentRepo) Create(ctx context.Context, incident *domain.Incident) error {
	const op = "postgres.Incident.Create"

	const query = `
		INSERT INTO incidents (
			id, type, geo_point, address, description, photos,
			created_by, creation_date, lifetime, comment_count, users_liked, reporters
		)
		VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	if incident.ID == uuid.Nil {
		incident.ID = uuid.New()
	}

	_, err := p.pool.Exec(ctx, query,
		incident.ID,
		incident.Type,
		incident.Lng,
		incident.Lat,
		incident.Address,
		incident.Description,
		nonNil(incident.Photos),
		incident.CreatedBy,
		incident.CreationDate,
		incident.Lifetime,
		incident.CommentCount,
		nonNil(incident.UsersLiked),
		nonNil(incident.Reporters),
	)
	if err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err))
		return e.WrapError(ctx, op, err)
	}

	return nil
}

func (p *IncidentRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error) {
	const op = "postgres.Incident.Get"

	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`

	inc, err := scanIncident(p.pool.QueryRow(ctx, query, id))
	if err != nil {
		if !isExpected(err) {
			p.logger.Error("db queryrow scan failed", slog.String("op", op), slog.Any("error", err), slog.String("id", id.String()))
		}
		return nil, e.WrapError(ctx, op, err)
	}

	return inc, nil
}

func (p *IncidentRepo) List(ctx context.Context, page, limit int) ([]*domain.Incident, int64, error) {
	const op = "postgres.Incident.List"

	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	const countQuery = `SELECT COUNT(*) FROM incidents`

	var total int64
	if err := p.pool.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		p.logger.Error("db count failed", slog.String("op", op), slog.Any("error", err))
		return nil, 0, e.WrapError(ctx, op, err)
	}

	listQuery := `SELECT ` + incidentColumns + `
		FROM incidents
		ORDER BY creation_date DESC, id
		LIMIT $1 OFFSET $2`

	rows, err := p.pool.Query(ctx, listQuery, limit, offset)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, 0, e.WrapError(ctx, op, err)
	}

	incidents, err := scanIncidents(rows)
	if err != nil {
		p.logger.Error("row scan failed", slog.String("op", op), slog.Any("error", err))
		return nil, 0, e.WrapError(ctx, op, err)
	}

	return incidents, total, nil
}

func (p *IncidentRepo) ListActive(ctx context.Context, now time.Time) ([]*domain.Incident, error) {
	const op = "postgres.Incident.ListActive"

	query := `SELECT ` + incidentColumns + `
		FROM incidents
		WHERE lifetime > $1
		ORDER BY creation_date DESC, id`

	return p.query(ctx, op, query, now)
}

// nearPadding widens the sphere search so that every incident the haversine
// check would accept is returned. Callers apply the exact radius.
const nearPadding = 1.01

// ListActiveNear returns active incidents within about radiusKM of pt, oldest
// first so that the merge decision is stable. Distances are measured on a
// sphere to agree with geo.Distance rather than on the WGS84 spheroid.
func (p *IncidentRepo) ListActiveNear(ctx context.Context, pt geo.Point, radiusKM float64, now time.Time) ([]*domain.Incident, error) {
	const op = "postgres.Incident.ListActiveNear"

	if !pt.Valid() || radiusKM <= 0 {
		return nil, fmt.Errorf("%s: %w", op, e.ErrInvalidCoordinates)
	}

	query := `SELECT ` + incidentColumns + `
		FROM incidents
		WHERE lifetime > $4
		  AND ST_DWithin(
			geo_point,
			ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
			$3::float8 * 1000 * $5::float8,
			false
		  )
		ORDER BY creation_date ASC, id`

	return p.query(ctx, op, query, pt.Lng, pt.Lat, radiusKM, now, nearPadding)
}

func (p *IncidentRepo) ListExpired(ctx context.Context, now time.Time) ([]*domain.Incident, error) {
	const op = "postgres.Incident.ListExpired"

	query := `SELECT ` + incidentColumns + `
		FROM incidents
		WHERE lifetime < $1
		ORDER BY lifetime ASC, id`

	return p.query(ctx, op, query, now)
}

func (p *IncidentRepo) query(ctx context.Context, op, query string, args ...any) ([]*domain.Incident, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}

	incidents, err := scanIncidents(rows)
	if err != nil {
		p.logger.Error("row scan failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	return incidents, nil
}

// Merge folds a duplicate report into an active incident in one transaction.
// It returns ErrNotFound when the incident expired or was reaped and
// ErrDuplicateReporter when the reporter got there first.
func (p *IncidentRepo) Merge(ctx context.Context, params domain.MergeParams) (*domain.Incident, error) {
	const op = "postgres.Incident.Merge"

	var merged *domain.Incident
	err := p.inTx(ctx, func(tx pgx.Tx) error {
		lockQuery := `SELECT ` + incidentColumns + `
			FROM incidents
			WHERE id = $1 AND lifetime > $2
			FOR UPDATE`

		current, err := scanIncident(tx.QueryRow(ctx, lockQuery, params.IncidentID, params.Now))
		if err != nil {
			return err
		}
		if current.HasReporter(params.ReporterID) {
			return e.ErrDuplicateReporter
		}

		updateQuery := `UPDATE incidents
			SET lifetime      = $2,
				photos        = photos || $3::text[],
				reporters     = array_append(reporters, $4),
				comment_count = comment_count + $5
			WHERE id = $1
			RETURNING ` + incidentColumns

		merged, err = scanIncident(tx.QueryRow(ctx, updateQuery,
			params.IncidentID,
			params.NewLifetime,
			nonNil(params.Photos),
			params.ReporterID,
			len(params.Comments),
		))
		if err != nil {
			return err
		}

		for i := range params.Comments {
			if err := insertComment(ctx, tx, &params.Comments[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if !isExpected(err) {
			p.logger.Error("merge failed", slog.String("op", op), slog.Any("error", err), slog.String("id", params.IncidentID.String()))
		}
		return nil, wrapTxError(ctx, op, err)
	}

	return merged, nil
}

// AddComment attaches a comment to an active incident, bumps its counter and
// appends the comment photos to the incident.
func (p *IncidentRepo) AddComment(ctx context.Context, comment *domain.Comment, now time.Time) error {
	const op = "postgres.Incident.AddComment"

	const bumpQuery = `
		UPDATE incidents
		SET comment_count = comment_count + 1,
		    photos = photos || $3::text[]
		WHERE id = $1 AND lifetime > $2
	`

	err := p.inTx(ctx, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, bumpQuery, comment.IncidentID, now, nonNil(comment.Photos))
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return e.ErrNotFound
		}
		return insertComment(ctx, tx, comment)
	})
	if err != nil {
		if !isExpected(err) {
			p.logger.Error("add comment failed", slog.String("op", op), slog.Any("error", err))
		}
		return wrapTxError(ctx, op, err)
	}

	return nil
}

func (p *IncidentRepo) ListComments(ctx context.Context, incidentID uuid.UUID) ([]*domain.Comment, error) {
	const op = "postgres.Incident.ListComments"

	query := `SELECT ` + commentColumns + `
		FROM comments
		WHERE incident_id = $1
		ORDER BY created_at ASC, id`

	rows, err := p.pool.Query(ctx, query, incidentID)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	defer rows.Close()

	comments := make([]*domain.Comment, 0, 8)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			p.logger.Error("row scan failed", slog.String("op", op), slog.Any("error", err))
			return nil, e.WrapError(ctx, op, err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		p.logger.Error("rows err", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}

	return comments, nil
}

// AddLike adds userID to users_liked once. It reports whether the like is new.
func (p *IncidentRepo) AddLike(ctx context.Context, incidentID uuid.UUID, userID string, now time.Time) (bool, error) {
	const op = "postgres.Incident.AddLike"

	const likeQuery = `
		UPDATE incidents
		SET users_liked = array_append(users_liked, $2)
		WHERE id = $1 AND lifetime > $3 AND NOT ($2 = ANY(users_liked))
	`

	cmd, err := p.pool.Exec(ctx, likeQuery, incidentID, userID, now)
	if err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err))
		return false, e.WrapError(ctx, op, err)
	}
	if cmd.RowsAffected() == 1 {
		return true, nil
	}

	const existsQuery = `SELECT EXISTS (SELECT 1 FROM incidents WHERE id = $1 AND lifetime > $2)`

	var active bool
	if err := p.pool.QueryRow(ctx, existsQuery, incidentID, now).Scan(&active); err != nil {
		p.logger.Error("db queryrow scan failed", slog.String("op", op), slog.Any("error", err))
		return false, e.WrapError(ctx, op, err)
	}
	if !active {
		return false, fmt.Errorf("%s: %w", op, e.ErrNotFound)
	}

	return false, nil
}

// DeleteExpired removes an expired incident with its comments and comment
// authors in one transaction. The row is locked first, so a concurrent merge
// either extends it before the lock (ErrNotFound here) or waits and then finds
// it gone.
func (p *IncidentRepo) DeleteExpired(ctx context.Context, incidentID uuid.UUID, now time.Time) error {
	const op = "postgres.Incident.DeleteExpired"

	const lockQuery = `SELECT id FROM incidents WHERE id = $1 AND lifetime < $2 FOR UPDATE`
	const commentsQuery = `DELETE FROM comments WHERE incident_id = $1`
	const authorsQuery = `DELETE FROM comment_authors WHERE incident_id = $1`
	const incidentQuery = `DELETE FROM incidents WHERE id = $1`

	err := p.inTx(ctx, func(tx pgx.Tx) error {
		var id uuid.UUID
		if err := tx.QueryRow(ctx, lockQuery, incidentID, now).Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return e.ErrNotFound
			}
			return err
		}
		if _, err := tx.Exec(ctx, commentsQuery, incidentID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, authorsQuery, incidentID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, incidentQuery, incidentID)
		return err
	})
	if err != nil {
		if !isExpected(err) {
			p.logger.Error("delete expired failed", slog.String("op", op), slog.Any("error", err), slog.String("id", incidentID.String()))
		}
		return wrapTxError(ctx, op, err)
	}

	return nil
}

func (p *IncidentRepo) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, p.pool, fn)
}

func insertComment(ctx context.Context, tx pgx.Tx, c *domain.Comment) error {
	const commentQuery = `
		INSERT INTO comments (id, incident_id, author_id, author_name, text, photos, created_at, system_comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	const authorQuery = `
		INSERT INTO comment_authors (incident_id, author_id, author_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (incident_id, author_id) DO UPDATE SET author_name = EXCLUDED.author_name
	`

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	if _, err := tx.Exec(ctx, commentQuery,
		c.ID,
		c.IncidentID,
		c.AuthorID,
		c.AuthorName,
		c.Text,
		nonNil(c.Photos),
		c.Timestamp,
		c.SystemComment,
	); err != nil {
		return err
	}

	_, err := tx.Exec(ctx, authorQuery, c.IncidentID, c.AuthorID, c.AuthorName)
	return err
}
