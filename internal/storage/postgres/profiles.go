package postgres

import (
	"context"
	"log/slog"
	"slices"

	"roadwatch/internal/domain"
	"roadwatch/pkg/e"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ProfileRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewProfileRepo(pool *pgxpool.Pool, logger *slog.Logger) *ProfileRepo {
	return &ProfileRepo{pool: pool, logger: logger}
}

const incrementQuery = `
	UPDATE user_profiles
	SET experience         = experience + $2,
		reports_count      = reports_count + $3,
		thanks_count       = thanks_count + $4,
		thanks_given_count = thanks_given_count + $5
`

func (p *ProfileRepo) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	const op = "postgres.Profile.Get"

	const query = `
		SELECT user_id, display_name, experience, reports_count, thanks_count, thanks_given_count
		FROM user_profiles
		WHERE user_id = $1
	`

	var u domain.UserProfile
	err := p.pool.QueryRow(ctx, query, userID).Scan(
		&u.UserID,
		&u.DisplayName,
		&u.Experience,
		&u.ReportsCount,
		&u.ThanksCount,
		&u.ThanksGivenCount,
	)
	if err != nil {
		if !isExpected(err) {
			p.logger.Error("db queryrow scan failed", slog.String("op", op), slog.Any("error", err), slog.String("user_id", userID))
		}
		return nil, e.WrapError(ctx, op, err)
	}

	return &u, nil
}

func (p *ProfileRepo) Upsert(ctx context.Context, userID, displayName string) error {
	const op = "postgres.Profile.Upsert"

	const query = `
		INSERT INTO user_profiles (user_id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET display_name = EXCLUDED.display_name
	`

	if _, err := p.pool.Exec(ctx, query, userID, displayName); err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err))
		return e.WrapError(ctx, op, err)
	}
	return nil
}

func (p *ProfileRepo) Increment(ctx context.Context, userID string, diff domain.ProfileDiff) error {
	const op = "postgres.Profile.Increment"

	if diff.Empty() {
		return nil
	}

	cmd, err := p.pool.Exec(ctx, incrementQuery+` WHERE user_id = $1`,
		userID, diff.Experience, diff.ReportsCount, diff.ThanksCount, diff.ThanksGivenCount)
	if err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err))
		return e.WrapError(ctx, op, err)
	}
	if cmd.RowsAffected() == 0 {
		p.logger.Info("no profile to credit", slog.String("op", op), slog.String("user_id", userID))
	}
	return nil
}

// IncrementMany applies diff to every listed user that has a profile, in one
// statement. Users without a profile are skipped.
func (p *ProfileRepo) IncrementMany(ctx context.Context, userIDs []string, diff domain.ProfileDiff) error {
	const op = "postgres.Profile.IncrementMany"

	ids := slices.Clone(userIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) == 0 || diff.Empty() {
		return nil
	}

	cmd, err := p.pool.Exec(ctx, incrementQuery+` WHERE user_id = ANY($1)`,
		ids, diff.Experience, diff.ReportsCount, diff.ThanksCount, diff.ThanksGivenCount)
	if err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err))
		return e.WrapError(ctx, op, err)
	}
	if skipped := int64(len(ids)) - cmd.RowsAffected(); skipped > 0 {
		p.logger.Info("profiles missing, skipped", slog.String("op", op), slog.Int64("skipped", skipped))
	}
	return nil
}
