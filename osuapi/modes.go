package osuapi

import "fmt"

// Ruleset names accepted by the v2 API.
const (
	ModeOsu    = "osu"
	ModeTaiko  = "taiko"
	ModeFruits = "fruits"
	ModeMania  = "mania"
)

// OAuth scopes used by the bot.
const (
	ScopePublic      = "public"
	ScopeIdentify    = "identify"
	ScopeFriendsRead = "friends.read"
)

var trackModes = map[string]int{
	ModeOsu:    0,
	ModeTaiko:  1,
	ModeFruits: 2,
	ModeMania:  3,
}

// ValidateMode checks a user-supplied ruleset name. Empty means the
// account's default mode and is accepted.
func ValidateMode(mode string) error {
	if mode == "" {
		return nil
	}
	if _, ok := trackModes[mode]; !ok {
		return fmt.Errorf("unknown mode %q (use osu, taiko, fruits or mania)", mode)
	}
	return nil
}

// TrackMode maps a ruleset name to the numeric mode id used by the
// osu!track API. Empty defaults to osu.
func TrackMode(mode string) (int, error) {
	if mode == "" {
		return 0, nil
	}
	n, ok := trackModes[mode]
	if !ok {
		return 0, fmt.Errorf("unknown mode %q", mode)
	}
	return n, nil
}
