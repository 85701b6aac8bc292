package public

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"roadwatch/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type Reporter interface {
	ReportIncident(ctx context.Context, req domain.ReportIncidentRequest) (domain.ReportResult, error)
}

type Incidents interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error)
	ListActive(ctx context.Context, region *domain.Region) ([]domain.CachedIncident, error)
	ListComments(ctx context.Context, incidentID uuid.UUID) ([]*domain.Comment, error)
}

type Interactions interface {
	AddComment(ctx context.Context, incidentID uuid.UUID, req domain.AddCommentRequest) (*domain.Comment, error)
	Like(ctx context.Context, incidentID uuid.UUID, req domain.LikeRequest) (domain.LikeResult, error)
	UploadPhoto(ctx context.Context, incidentID uuid.UUID, filename, contentType string, size int64, r io.Reader) (string, error)
	UploadReportPhoto(ctx context.Context, userID, filename, contentType string, size int64, r io.Reader) (string, error)
}

type Profiles interface {
	Profile(ctx context.Context, userID string) (*domain.UserProfile, error)
}

type Handler struct {
	logger         *slog.Logger
	Reporter       Reporter
	Incidents      Incidents
	Interactions   Interactions
	Profiles       Profiles
	maxUploadBytes int64
}

func NewHandler(logger *slog.Logger, reporter Reporter, incidents Incidents, interactions Interactions, profiles Profiles, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Handler{
		logger:         logger,
		Reporter:       reporter,
		Incidents:      incidents,
		Interactions:   interactions,
		Profiles:       profiles,
		maxUploadBytes: maxUploadBytes,
	}
}

// ReportIncident answers 201 when a new incident was opened and 200 when the
// report was merged into an existing one.
func (h *Handler) ReportIncident(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)

	var req domain.ReportIncidentRequest
	if err := decodeJSON(r, &req); err != nil {
		l.Warn("invalid JSON", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	res, err := h.Reporter.ReportIncident(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Outcome == domain.ReportCreated {
		status = http.StatusCreated
	}
	l.Info("report accepted", slog.String("outcome", string(res.Outcome)), slog.String("incident_id", res.IncidentID.String()))
	h.writeJSON(w, status, res)
}

// ListActive returns every active incident, or only those inside the circle
// given by lat, lng and radius_km.
func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)

	region, err := parseRegion(r)
	if err != nil {
		l.Warn("invalid region", slog.String("query", r.URL.RawQuery))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat, lng and radius_km must be numbers"})
		return
	}

	incidents, err := h.Incidents.ListActive(r.Context(), region)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, domain.ActiveIncidentsResponse{Incidents: incidents, Count: len(incidents)})
}

func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := h.incidentID(w, r)
	if !ok {
		return
	}

	inc, err := h.Incidents.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, domain.ToCached(inc))
}

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.incidentID(w, r)
	if !ok {
		return
	}

	comments, err := h.Incidents.ListComments(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)

	id, ok := h.incidentID(w, r)
	if !ok {
		return
	}

	var req domain.AddCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		l.Warn("invalid JSON", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	comment, err := h.Interactions.AddComment(r.Context(), id, req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, comment)
}

func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)

	id, ok := h.incidentID(w, r)
	if !ok {
		return
	}

	var req domain.LikeRequest
	if err := decodeJSON(r, &req); err != nil {
		l.Warn("invalid JSON", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	res, err := h.Interactions.Like(r.Context(), id, req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// UploadIncidentPhoto stores a multipart "photo" part under the incident.
func (h *Handler) UploadIncidentPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := h.incidentID(w, r)
	if !ok {
		return
	}

	part, ok := h.readPhoto(w, r)
	if !ok {
		return
	}
	defer part.Close()

	url, err := h.Interactions.UploadPhoto(r.Context(), id, part.filename, part.contentType, part.size, part)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, domain.UploadResponse{URL: url})
}

// UploadReportPhoto stores a photo before the report that will reference it.
// The form must carry user_id next to the "photo" part.
func (h *Handler) UploadReportPhoto(w http.ResponseWriter, r *http.Request) {
	part, ok := h.readPhoto(w, r)
	if !ok {
		return
	}
	defer part.Close()

	userID := r.FormValue("user_id")
	url, err := h.Interactions.UploadReportPhoto(r.Context(), userID, part.filename, part.contentType, part.size, part)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, domain.UploadResponse{URL: url})
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}

	profile, err := h.Profiles.Profile(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) incidentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.log(r).Warn("invalid id", slog.String("id", idStr), slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func parseRegion(r *http.Request) (*domain.Region, error) {
	q := r.URL.Query()
	latStr, lngStr, radiusStr := q.Get("lat"), q.Get("lng"), q.Get("radius_km")
	if latStr == "" && lngStr == "" && radiusStr == "" {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, err
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return nil, err
	}
	radius, err := strconv.ParseFloat(radiusStr, 64)
	if err != nil {
		return nil, err
	}
	return &domain.Region{Lat: lat, Lng: lng, RadiusKM: radius}, nil
}
