package firestoredb

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"roadwatch/internal/config"
	"roadwatch/internal/domain"
	"roadwatch/pkg/e"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type profileDoc struct {
	DisplayName      string `firestore:"display_name"`
	Experience       int64  `firestore:"experience"`
	ReportsCount     int64  `firestore:"reports_count"`
	ThanksCount      int64  `firestore:"thanks_count"`
	ThanksGivenCount int64  `firestore:"thanks_given_count"`
}

// ProfileRepo stores user profiles in a Firestore collection keyed by user id.
type ProfileRepo struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

// NewClient opens a Firestore client. creds is base64 encoded service
// account JSON; empty means application default credentials.
func NewClient(ctx context.Context, cfg config.ProfilesConfig, logger *slog.Logger) (*firestore.Client, error) {
	const op = "firestoredb.NewClient"

	var opts []option.ClientOption
	if cfg.FirestoreCreds != "" {
		creds, err := base64.StdEncoding.DecodeString(cfg.FirestoreCreds)
		if err != nil {
			return nil, fmt.Errorf("%s: decode credentials: %w", op, err)
		}
		opts = append(opts, option.WithCredentialsJSON(creds))
	}

	client, err := firestore.NewClient(ctx, cfg.FirestoreProject, opts...)
	if err != nil {
		logger.Error("Failed to create Firestore client", slog.String("error", err.Error()))
		return nil, e.Wrap(op, err)
	}
	logger.Info("Firestore client created", slog.String("project", cfg.FirestoreProject))
	return client, nil
}

func NewProfileRepo(client *firestore.Client, collection string, logger *slog.Logger) *ProfileRepo {
	return &ProfileRepo{client: client, collection: collection, logger: logger}
}

func (r *ProfileRepo) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	const op = "firestoredb.Profile.Get"

	snap, err := r.client.Collection(r.collection).Doc(userID).Get(ctx)
	if err != nil {
		return nil, r.wrap(ctx, op, err)
	}

	var doc profileDoc
	if err := snap.DataTo(&doc); err != nil {
		r.logger.Error("decode profile failed", slog.String("op", op), slog.String("user_id", userID), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %v: %w", op, err, e.ErrInternal)
	}

	return &domain.UserProfile{
		UserID:           userID,
		DisplayName:      doc.DisplayName,
		Experience:       doc.Experience,
		ReportsCount:     doc.ReportsCount,
		ThanksCount:      doc.ThanksCount,
		ThanksGivenCount: doc.ThanksGivenCount,
	}, nil
}

func (r *ProfileRepo) Upsert(ctx context.Context, userID, displayName string) error {
	const op = "firestoredb.Profile.Upsert"

	_, err := r.client.Collection(r.collection).Doc(userID).Set(ctx, map[string]interface{}{
		"display_name": displayName,
	}, firestore.MergeAll)
	if err != nil {
		return r.wrap(ctx, op, err)
	}
	return nil
}

func (r *ProfileRepo) Increment(ctx context.Context, userID string, diff domain.ProfileDiff) error {
	const op = "firestoredb.Profile.Increment"

	updates := Updates(diff)
	if len(updates) == 0 {
		return nil
	}
	if _, err := r.client.Collection(r.collection).Doc(userID).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			r.logger.Info("no profile to credit", slog.String("op", op), slog.String("user_id", userID))
			return nil
		}
		return r.wrap(ctx, op, err)
	}
	return nil
}

// IncrementMany reads every profile inside one transaction and credits the
// ones that exist. Users without a profile are skipped.
func (r *ProfileRepo) IncrementMany(ctx context.Context, userIDs []string, diff domain.ProfileDiff) error {
	const op = "firestoredb.Profile.IncrementMany"

	updates := Updates(diff)
	if len(updates) == 0 || len(userIDs) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(userIDs))
	refs := make([]*firestore.DocumentRef, 0, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, r.client.Collection(r.collection).Doc(id))
	}

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.GetAll(refs)
		if err != nil {
			return err
		}
		for _, s := range snaps {
			if !s.Exists() {
				r.logger.Info("profile missing, skipped", slog.String("op", op), slog.String("user_id", s.Ref.ID))
				continue
			}
			if err := tx.Update(s.Ref, updates); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return r.wrap(ctx, op, err)
	}
	return nil
}

// Updates turns a diff into server-side increments, skipping zero fields.
func Updates(diff domain.ProfileDiff) []firestore.Update {
	fields := []struct {
		path  string
		delta int64
	}{
		{"experience", diff.Experience},
		{"reports_count", diff.ReportsCount},
		{"thanks_count", diff.ThanksCount},
		{"thanks_given_count", diff.ThanksGivenCount},
	}

	updates := make([]firestore.Update, 0, len(fields))
	for _, f := range fields {
		if f.delta == 0 {
			continue
		}
		updates = append(updates, firestore.Update{Path: f.path, Value: firestore.Increment(f.delta)})
	}
	return updates
}

func (r *ProfileRepo) wrap(ctx context.Context, op string, err error) error {
	mapped := MapError(err)
	if !errors.Is(mapped, e.ErrNotFound) {
		r.logger.Error("firestore call failed", slog.String("op", op), slog.Any("error", err))
	}
	if ctx.Err() != nil {
		return e.WrapError(ctx, op, ctx.Err())
	}
	return fmt.Errorf("%s: %w", op, mapped)
}

// MapError translates gRPC status codes into domain errors.
func MapError(err error) error {
	if errors.Is(err, e.ErrNotFound) {
		return e.ErrNotFound
	}
	switch status.Code(err) {
	case codes.NotFound:
		return e.ErrNotFound
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return fmt.Errorf("%v: %w", err, e.ErrStoreUnavailable)
	case codes.InvalidArgument:
		return fmt.Errorf("%v: %w", err, e.ErrInvalidInput)
	default:
		return fmt.Errorf("%v: %w", err, e.ErrInternal)
	}
}
