package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"roadwatch/internal/domain"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type AdminIncidents interface {
	List(ctx context.Context, page, limit int) ([]*domain.Incident, int64, error)
}

type Sweeper interface {
	RunOnce(ctx context.Context) (domain.ReapReport, error)
}

type StatsGetter interface {
	GetStats(ctx context.Context, req domain.StatsRequest) (*domain.IncidentStats, error)
}

type ProfileSync interface {
	SyncProfile(ctx context.Context, userID, displayName string) error
}

type Handler struct {
	logger   *slog.Logger
	Admin    AdminIncidents
	Stats    StatsGetter
	Sweeper  Sweeper
	Profiles ProfileSync
}

func NewHandler(logger *slog.Logger, admin AdminIncidents, stats StatsGetter, sweeper Sweeper, profiles ProfileSync) *Handler {
	return &Handler{
		logger:   logger,
		Admin:    admin,
		Stats:    stats,
		Sweeper:  sweeper,
		Profiles: profiles,
	}
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	reqID := chimw.GetReqID(r.Context())
	if reqID == "" {
		return h.logger
	}
	return h.logger.With(slog.String("request_id", reqID))
}

func (h *Handler) AdminIncidentList(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("AdminIncidentList", slog.String("query", r.URL.RawQuery), slog.String("remote", r.RemoteAddr))

	page := parseInt(r.URL.Query().Get("page"), 1)
	if page < 1 {
		page = 1
	}
	limit := parseInt(r.URL.Query().Get("limit"), 20)
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
		l.Warn("limit capped", slog.Int("limit", limit))
	}

	incidents, total, err := h.Admin.List(r.Context(), page, limit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("incidents listed", slog.Int("count", len(incidents)), slog.Int64("total", total))
	h.writeJSON(w, http.StatusOK, domain.ListIncidentsResponse{
		Incidents: incidents,
		Total:     total,
		Page:      page,
		Limit:     limit,
	})
}

// AdminSweep runs one expiry pass right away, next to the scheduled ones.
func (h *Handler) AdminSweep(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("AdminSweep", slog.String("remote", r.RemoteAddr))

	report, err := h.Sweeper.RunOnce(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("sweep done",
		slog.Int("deleted", len(report.DeletedIncidentIDs)),
		slog.Int("failures", len(report.Failures)),
	)
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("AdminStats", slog.String("query", r.URL.RawQuery), slog.String("remote", r.RemoteAddr))

	minutesStr := r.URL.Query().Get("minutes")
	if minutesStr == "" {
		minutesStr = "60"
	}

	minutes, err := strconv.Atoi(minutesStr)
	if err != nil || minutes <= 0 || minutes > 1440 {
		l.Warn("invalid minutes", slog.String("minutes", minutesStr))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "minutes must be 1-1440"})
		return
	}

	stats, err := h.Stats.GetStats(r.Context(), domain.StatsRequest{Minutes: minutes})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("stats success", slog.Int("minutes", minutes))
	h.writeJSON(w, http.StatusOK, stats)
}

// AdminProfileSync mirrors a display name pushed by the identity side.
func (h *Handler) AdminProfileSync(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("AdminProfileSync", slog.String("remote", r.RemoteAddr))

	userID := chi.URLParam(r, "id")

	var req domain.SyncProfileRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		l.Warn("invalid JSON", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.DisplayName == "" || len(req.DisplayName) > 64 {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "display_name must be 1-64 characters"})
		return
	}

	if err := h.Profiles.SyncProfile(r.Context(), userID, req.DisplayName); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
