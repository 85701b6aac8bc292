package domain

import "github.com/google/uuid"

type ReapFailure struct {
	IncidentID uuid.UUID `json:"incident_id"`
	Step       string    `json:"step"`
	Error      string    `json:"error"`
}

type ReapReport struct {
	DeletedIncidentIDs []uuid.UUID   `json:"deleted_incident_ids"`
	Failures           []ReapFailure `json:"failures,omitempty"`
}
