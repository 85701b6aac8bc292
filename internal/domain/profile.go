package domain

// UserProfile is owned by the identity side; the service only moves counters.
type UserProfile struct {
	UserID           string `json:"user_id"`
	DisplayName      string `json:"display_name"`
	Experience       int64  `json:"experience"`
	ReportsCount     int64  `json:"reports_count"`
	ThanksCount      int64  `json:"thanks_count"`
	ThanksGivenCount int64  `json:"thanks_given_count"`
}

// ProfileDiff is a set of counter increments applied atomically.
type ProfileDiff struct {
	Experience       int64
	ReportsCount     int64
	ThanksCount      int64
	ThanksGivenCount int64
}

func (d ProfileDiff) Empty() bool {
	return d == ProfileDiff{}
}

type SyncProfileRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=64"`
}
