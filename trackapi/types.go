package trackapi

import "time"

// UpdateResponse is the result of POST /update. The update block is nil on
// the very first update of a user, when there is no prior snapshot to diff
// against.
type UpdateResponse struct {
	Username    string          `json:"username"`
	Mode        int             `json:"mode"`
	Exists      bool            `json:"exists"`
	First       bool            `json:"first"`
	Update      *StatsDelta     `json:"update"`
	NewHiscores []RecordedScore `json:"newhs"`
}

// StatsDelta carries the change since the previous snapshot. Fields are
// pointers because the API omits unchanged values.
type StatsDelta struct {
	PPRaw       *float64 `json:"pp_raw"`
	PPRank      *int     `json:"pp_rank"`
	CountryRank *int     `json:"pp_country_rank"`
	Accuracy    *float64 `json:"accuracy"`
	PlayCount   *int     `json:"playcount"`
	RankedScore *int64   `json:"ranked_score"`
}

// StatsPoint is one historical snapshot from GET /stats_history.
type StatsPoint struct {
	PPRaw     float64 `json:"pp_raw"`
	PPRank    int     `json:"pp_rank"`
	Accuracy  float64 `json:"accuracy"`
	PlayCount int     `json:"playcount"`
	Timestamp string  `json:"timestamp"`
}

// Time parses the snapshot timestamp. The API emits RFC 3339 without a zone
// suffix; treat it as UTC.
func (p StatsPoint) Time() (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", p.Timestamp)
}

// RecordedScore is one top play from GET /hiscores or the newhs block of an
// update.
type RecordedScore struct {
	BeatmapID string  `json:"beatmap_id"`
	PP        float64 `json:"pp"`
	Rank      string  `json:"rank"`
	Ranking   int     `json:"ranking"`
	ScoreTime string  `json:"score_time"`
}
