package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventIncidentCreated EventKind = "incident_created"
	EventIncidentMerged  EventKind = "incident_merged"
	EventIncidentReaped  EventKind = "incident_reaped"
	EventIncidentLiked   EventKind = "incident_liked"
)

// LifecycleEvent is pushed to subscribers whenever an incident changes state.
type LifecycleEvent struct {
	Kind       EventKind    `json:"kind"`
	IncidentID uuid.UUID    `json:"incident_id"`
	Type       IncidentType `json:"type,omitempty"`
	UserID     string       `json:"user_id,omitempty"`
	Lat        float64      `json:"lat,omitempty"`
	Lng        float64      `json:"lng,omitempty"`
	Lifetime   time.Time    `json:"lifetime,omitempty"`
	At         time.Time    `json:"at"`
}
