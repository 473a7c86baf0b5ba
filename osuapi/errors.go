package osuapi

import "errors"

var (
	// ErrNotFound is returned when the API reports 404 for a user or beatmap.
	ErrNotFound = errors.New("osu api: not found")
	// ErrUnauthorized is returned when the access token is rejected.
	ErrUnauthorized = errors.New("osu api: unauthorized")
)
