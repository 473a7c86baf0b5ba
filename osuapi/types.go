package osuapi

// User is an osu! account as returned by /api/v2/me and /api/v2/users.
type User struct {
	ID          int             `json:"id"`
	Username    string          `json:"username"`
	CountryCode string          `json:"country_code"`
	AvatarURL   string          `json:"avatar_url"`
	IsOnline    bool            `json:"is_online"`
	Playmode    string          `json:"playmode"`
	Statistics  *UserStatistics `json:"statistics"`
}

// UserStatistics carries the per-mode performance block of a user.
// Rank fields are pointers because the API omits them for inactive accounts.
type UserStatistics struct {
	PP          float64 `json:"pp"`
	GlobalRank  *int    `json:"global_rank"`
	CountryRank *int    `json:"country_rank"`
	HitAccuracy float64 `json:"hit_accuracy"`
	PlayCount   int     `json:"play_count"`
	Level       Level   `json:"level"`
}

type Level struct {
	Current  int `json:"current"`
	Progress int `json:"progress"`
}

// Beatmap is a single difficulty of a beatmapset.
type Beatmap struct {
	ID               int         `json:"id"`
	BeatmapsetID     int         `json:"beatmapset_id"`
	Version          string      `json:"version"`
	DifficultyRating float64     `json:"difficulty_rating"`
	Mode             string      `json:"mode"`
	Status           string      `json:"status"`
	TotalLength      int         `json:"total_length"`
	BPM              float64     `json:"bpm"`
	CS               float64     `json:"cs"`
	AR               float64     `json:"ar"`
	Accuracy         float64     `json:"accuracy"`
	Drain            float64     `json:"drain"`
	MaxCombo         int         `json:"max_combo"`
	URL              string      `json:"url"`
	Beatmapset       *Beatmapset `json:"beatmapset"`
}

// Beatmapset groups the difficulties of one mapset.
type Beatmapset struct {
	ID             int       `json:"id"`
	Artist         string    `json:"artist"`
	Title          string    `json:"title"`
	Creator        string    `json:"creator"`
	Status         string    `json:"status"`
	PlayCount      int       `json:"play_count"`
	FavouriteCount int       `json:"favourite_count"`
	BPM            float64   `json:"bpm"`
	Covers         Covers    `json:"covers"`
	Beatmaps       []Beatmap `json:"beatmaps"`
}

type Covers struct {
	Cover string `json:"cover"`
	Card  string `json:"card"`
	List  string `json:"list"`
}

// SearchResult is the paged response of /api/v2/beatmapsets/search.
type SearchResult struct {
	Beatmapsets []Beatmapset `json:"beatmapsets"`
	Total       int          `json:"total"`
}
