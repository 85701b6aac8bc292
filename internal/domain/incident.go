package domain

import (
	"slices"
	"time"

	"roadwatch/internal/geo"

	"github.com/google/uuid"
)

type IncidentType string

const (
	IncidentCarAccident       IncidentType = "car_accident"
	IncidentRoadblock         IncidentType = "roadblock"
	IncidentWeather           IncidentType = "weather"
	IncidentTrafficJam        IncidentType = "traffic_jam"
	IncidentRoadWorks         IncidentType = "road_works"
	IncidentPoliceActivity    IncidentType = "police_activity"
	IncidentBrokenDownVehicle IncidentType = "broken_down_vehicle"
	IncidentFlooding          IncidentType = "flooding"
	IncidentFireNearRoad      IncidentType = "fire_near_road"
	IncidentObstacleOnRoad    IncidentType = "obstacle_on_road"
	IncidentSOS               IncidentType = "sos"
	IncidentOther             IncidentType = "other"
)

var IncidentTypes = []IncidentType{
	IncidentCarAccident,
	IncidentRoadblock,
	IncidentWeather,
	IncidentTrafficJam,
	IncidentRoadWorks,
	IncidentPoliceActivity,
	IncidentBrokenDownVehicle,
	IncidentFlooding,
	IncidentFireNearRoad,
	IncidentObstacleOnRoad,
	IncidentSOS,
	IncidentOther,
}

func (t IncidentType) Valid() bool {
	return slices.Contains(IncidentTypes, t)
}

// Incident is a reported road condition. It is active while now < Lifetime.
type Incident struct {
	ID           uuid.UUID    `json:"id"`
	Type         IncidentType `json:"type"`
	Lat          float64      `json:"lat"`
	Lng          float64      `json:"lng"`
	Address      string       `json:"address"`
	Description  string       `json:"description"`
	Photos       []string     `json:"photos"`
	CreatedBy    string       `json:"created_by"`
	CreationDate time.Time    `json:"creation_date"`
	Lifetime     time.Time    `json:"lifetime"`
	CommentCount int          `json:"comment_count"`
	UsersLiked   []string     `json:"users_liked"`
	Reporters    []string     `json:"reporters"`
}

func (i *Incident) Location() geo.Point {
	return geo.Point{Lat: i.Lat, Lng: i.Lng}
}

func (i *Incident) Active(now time.Time) bool {
	return now.Before(i.Lifetime)
}

func (i *Incident) HasReporter(userID string) bool {
	return slices.Contains(i.Reporters, userID)
}

func (i *Incident) LikedBy(userID string) bool {
	return slices.Contains(i.UsersLiked, userID)
}

// Comment belongs to exactly one incident. SystemComment marks notices
// generated by the engine, e.g. a duplicate report.
type Comment struct {
	ID            uuid.UUID `json:"id"`
	IncidentID    uuid.UUID `json:"incident_id"`
	AuthorID      string    `json:"author_id"`
	AuthorName    string    `json:"author_name"`
	Text          string    `json:"text"`
	Photos        []string  `json:"photos"`
	Timestamp     time.Time `json:"timestamp"`
	SystemComment bool      `json:"system_comment"`
}

// CachedIncident is the slim projection kept in the active-incident cache.
type CachedIncident struct {
	ID           uuid.UUID    `json:"id"`
	Type         IncidentType `json:"type"`
	Lat          float64      `json:"lat"`
	Lng          float64      `json:"lng"`
	Address      string       `json:"address"`
	Description  string       `json:"description"`
	Photos       []string     `json:"photos"`
	CreatedBy    string       `json:"created_by"`
	CreationDate time.Time    `json:"creation_date"`
	Lifetime     time.Time    `json:"lifetime"`
	CommentCount int          `json:"comment_count"`
	LikesCount   int          `json:"likes_count"`
}

func ToCached(inc *Incident) CachedIncident {
	return CachedIncident{
		ID:           inc.ID,
		Type:         inc.Type,
		Lat:          inc.Lat,
		Lng:          inc.Lng,
		Address:      inc.Address,
		Description:  inc.Description,
		Photos:       inc.Photos,
		CreatedBy:    inc.CreatedBy,
		CreationDate: inc.CreationDate,
		Lifetime:     inc.Lifetime,
		CommentCount: inc.CommentCount,
		LikesCount:   len(inc.UsersLiked),
	}
}
