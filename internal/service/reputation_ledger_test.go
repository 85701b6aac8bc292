package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"

	"roadwatch/internal/domain"
	"roadwatch/internal/service"
	mock_service "roadwatch/internal/service/mocks"
	"roadwatch/pkg/e"
)

func TestReputationLedger_CreditThanks_AllReportersInOneWrite(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	profiles := mock_service.NewMockProfileRepository(ctrl)
	repo := mock_service.NewMockIncidentRepository(ctrl)

	id := uuid.New()
	repo.EXPECT().
		Get(gomock.Any(), id).
		Return(&domain.Incident{ID: id, Reporters: []string{"A", "B", "C"}}, nil)

	gomock.InOrder(
		profiles.EXPECT().
			IncrementMany(gomock.Any(), []string{"A", "B", "C"}, domain.ProfileDiff{Experience: 1, ThanksCount: 1}).
			Return(nil).
			Times(1),
		profiles.EXPECT().
			Increment(gomock.Any(), "D", domain.ProfileDiff{ThanksGivenCount: 1}).
			Return(nil).
			Times(1),
	)

	ledger := service.NewReputationLedger(profiles, repo, newTestLogger())
	if err := ledger.CreditThanks(context.Background(), "D", id); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestReputationLedger_CreditThanks_BatchFailureSkipsLiker(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	profiles := mock_service.NewMockProfileRepository(ctrl)
	repo := mock_service.NewMockIncidentRepository(ctrl)

	id := uuid.New()
	repo.EXPECT().Get(gomock.Any(), id).Return(&domain.Incident{ID: id, Reporters: []string{"A", "B"}}, nil)
	profiles.EXPECT().
		IncrementMany(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(e.ErrStoreUnavailable)
	// Increment for the liker must not run

	ledger := service.NewReputationLedger(profiles, repo, newTestLogger())
	err := ledger.CreditThanks(context.Background(), "D", id)
	if !errors.Is(err, e.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestReputationLedger_CreditReports(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	profiles := mock_service.NewMockProfileRepository(ctrl)

	profiles.EXPECT().Increment(gomock.Any(), "u1", domain.ProfileDiff{Experience: 2, ReportsCount: 1}).Return(nil)
	profiles.EXPECT().Increment(gomock.Any(), "u2", domain.ProfileDiff{Experience: 1, ReportsCount: 1}).Return(nil)

	ledger := service.NewReputationLedger(profiles, nil, newTestLogger())
	if err := ledger.CreditNewReport(context.Background(), "u1"); err != nil {
		t.Fatalf("new report: %v", err)
	}
	if err := ledger.CreditDuplicateReport(context.Background(), "u2"); err != nil {
		t.Fatalf("duplicate report: %v", err)
	}
}

func TestReputationLedger_CreditNewReport_StoreFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	profiles := mock_service.NewMockProfileRepository(ctrl)
	profiles.EXPECT().Increment(gomock.Any(), "u1", gomock.Any()).Return(e.ErrStoreUnavailable)

	ledger := service.NewReputationLedger(profiles, nil, newTestLogger())
	if err := ledger.CreditNewReport(context.Background(), "u1"); !errors.Is(err, e.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

// A reporter without a profile is skipped by the store; the rest are still
// credited and the liker is counted.
func TestReputationLedger_CreditThanks_MissingReporterProfile(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	profiles := mock_service.NewMockProfileRepository(ctrl)
	repo := mock_service.NewMockIncidentRepository(ctrl)

	id := uuid.New()
	repo.EXPECT().Get(gomock.Any(), id).Return(&domain.Incident{ID: id, Reporters: []string{"A", "B", "C"}}, nil)
	profiles.EXPECT().
		IncrementMany(gomock.Any(), []string{"A", "B", "C"}, domain.ProfileDiff{Experience: 1, ThanksCount: 1}).
		Return(nil)
	profiles.EXPECT().
		Increment(gomock.Any(), "D", domain.ProfileDiff{ThanksGivenCount: 1}).
		Return(nil)

	ledger := service.NewReputationLedger(profiles, repo, newTestLogger())
	if err := ledger.CreditThanks(context.Background(), "D", id); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestReputationLedger_DisplayName(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	profiles := mock_service.NewMockProfileRepository(ctrl)

	profiles.EXPECT().Get(gomock.Any(), "u1").Return(&domain.UserProfile{UserID: "u1", DisplayName: "Olena"}, nil)
	profiles.EXPECT().Get(gomock.Any(), "u2").Return(nil, e.ErrNotFound)
	profiles.EXPECT().Get(gomock.Any(), "u3").Return(nil, e.ErrStoreUnavailable)
	profiles.EXPECT().Get(gomock.Any(), "u4").Return(&domain.UserProfile{UserID: "u4"}, nil)

	ledger := service.NewReputationLedger(profiles, nil, newTestLogger())

	cases := map[string]string{"u1": "Olena", "u2": "u2", "u3": "u3", "u4": "u4"}
	for id, want := range cases {
		if got := ledger.DisplayName(context.Background(), id); got != want {
			t.Fatalf("DisplayName(%s) = %q, want %q", id, got, want)
		}
	}
}

func TestReputationLedger_SyncProfile(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	profiles := mock_service.NewMockProfileRepository(ctrl)
	profiles.EXPECT().Upsert(gomock.Any(), "u1", "Olena").Return(nil)

	ledger := service.NewReputationLedger(profiles, nil, newTestLogger())
	if err := ledger.SyncProfile(context.Background(), "u1", "Olena"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := ledger.SyncProfile(context.Background(), "", "Olena"); !errors.Is(err, e.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
