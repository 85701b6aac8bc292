package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReportIncidentRequest struct {
	ReporterID  string       `json:"reporter_id" validate:"required,max=128"`
	Type        IncidentType `json:"type" validate:"required,incident_type"`
	Description string       `json:"description" validate:"max=2000"`
	Address     string       `json:"address" validate:"max=512"`
	Lat         float64      `json:"lat" validate:"lat"`
	Lng         float64      `json:"lng" validate:"lng"`
	Photos      []string     `json:"photos" validate:"max=10,dive,url"`
}

type ReportOutcome string

const (
	ReportCreated ReportOutcome = "created"
	ReportMerged  ReportOutcome = "merged"
)

type ReportResult struct {
	Outcome    ReportOutcome `json:"outcome"`
	IncidentID uuid.UUID     `json:"incident_id"`
}

// MergeParams describes one duplicate report folded into an existing incident.
type MergeParams struct {
	IncidentID  uuid.UUID
	ReporterID  string
	Now         time.Time
	NewLifetime time.Time
	Photos      []string
	Comments    []Comment
}

type AddCommentRequest struct {
	AuthorID string   `json:"author_id" validate:"required,max=128"`
	Text     string   `json:"text" validate:"max=2000"`
	Photos   []string `json:"photos" validate:"max=10,dive,url"`
}

type LikeRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
}

type LikeResult struct {
	Added bool `json:"added"`
}

type Region struct {
	Lat      float64 `json:"lat" validate:"lat"`
	Lng      float64 `json:"lng" validate:"lng"`
	RadiusKM float64 `json:"radius_km" validate:"gt=0,max=100"`
}

type ListIncidentsResponse struct {
	Incidents []*Incident `json:"incidents"`
	Page      int         `json:"page"`
	Limit     int         `json:"limit"`
	Total     int64       `json:"total"`
}

type UploadResponse struct {
	URL string `json:"url"`
}

type ActiveIncidentsResponse struct {
	Incidents []CachedIncident `json:"incidents"`
	Count     int              `json:"count"`
}
