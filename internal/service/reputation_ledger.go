package service

import (
	"context"
	"errors"
	"log/slog"

	"roadwatch/internal/domain"
	"roadwatch/pkg/e"

	"github.com/google/uuid"
)

var (
	newReportCredit       = domain.ProfileDiff{Experience: 2, ReportsCount: 1}
	duplicateReportCredit = domain.ProfileDiff{Experience: 1, ReportsCount: 1}
	thanksReceivedCredit  = domain.ProfileDiff{Experience: 1, ThanksCount: 1}
	thanksGivenCredit     = domain.ProfileDiff{ThanksGivenCount: 1}
)

type ReputationLedger struct {
	profiles  ProfileRepository
	incidents IncidentRepository
	logger    *slog.Logger
}

func NewReputationLedger(profiles ProfileRepository, incidents IncidentRepository, logger *slog.Logger) *ReputationLedger {
	return &ReputationLedger{profiles: profiles, incidents: incidents, logger: logger}
}

func (l *ReputationLedger) CreditNewReport(ctx context.Context, userID string) error {
	const op = "service.ReputationLedger.CreditNewReport"

	if err := l.profiles.Increment(ctx, userID, newReportCredit); err != nil {
		return e.Wrap(op, err)
	}
	return nil
}

func (l *ReputationLedger) CreditDuplicateReport(ctx context.Context, userID string) error {
	const op = "service.ReputationLedger.CreditDuplicateReport"

	if err := l.profiles.Increment(ctx, userID, duplicateReportCredit); err != nil {
		return e.Wrap(op, err)
	}
	return nil
}

// CreditThanks rewards every reporter of the incident in one atomic write,
// then counts the thanks given by likerID.
func (l *ReputationLedger) CreditThanks(ctx context.Context, likerID string, incidentID uuid.UUID) error {
	const op = "service.ReputationLedger.CreditThanks"

	inc, err := l.incidents.Get(ctx, incidentID)
	if err != nil {
		return e.Wrap(op, err)
	}

	if len(inc.Reporters) > 0 {
		if err := l.profiles.IncrementMany(ctx, inc.Reporters, thanksReceivedCredit); err != nil {
			return e.Wrap(op, err)
		}
	}

	if err := l.profiles.Increment(ctx, likerID, thanksGivenCredit); err != nil {
		return e.Wrap(op, err)
	}

	l.logger.Debug("thanks credited",
		slog.String("incident_id", incidentID.String()),
		slog.String("liker_id", likerID),
		slog.Int("reporters", len(inc.Reporters)),
	)
	return nil
}

func (l *ReputationLedger) Profile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	return l.profiles.Get(ctx, userID)
}

func (l *ReputationLedger) SyncProfile(ctx context.Context, userID, displayName string) error {
	if userID == "" || displayName == "" {
		return e.ErrInvalidInput
	}
	return l.profiles.Upsert(ctx, userID, displayName)
}

// DisplayName returns the user's current display name, falling back to the id.
func (l *ReputationLedger) DisplayName(ctx context.Context, userID string) string {
	p, err := l.profiles.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, e.ErrNotFound) {
			l.logger.Warn("profile lookup failed", slog.String("user_id", userID), slog.Any("error", err))
		}
		return userID
	}
	if p.DisplayName == "" {
		return userID
	}
	return p.DisplayName
}
