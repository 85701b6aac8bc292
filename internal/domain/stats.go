package domain

type IncidentStats struct {
	ActiveIncidents   int64 `json:"active_incidents"`
	IncidentsCreated  int64 `json:"incidents_created"`
	CommentsPosted    int64 `json:"comments_posted"`
	DistinctReporters int64 `json:"distinct_reporters"`
}

type StatsRequest struct {
	Minutes int `query:"minutes" validate:"min=1,max=1440"`
}
