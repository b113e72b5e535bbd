package model

import "time"

// PlaybackLogEntry is an append-only proof-of-play record. Identifiers are
// copied verbatim from the reporting device and never checked.
type PlaybackLogEntry struct {
	ID              int64     `db:"id"               json:"id,omitempty"`
	DeviceID        string    `db:"device_id"        json:"deviceId"   validate:"required"`
	AssetID         string    `db:"asset_id"         json:"assetId"    validate:"required"`
	PlaylistID      *string   `db:"playlist_id"      json:"playlistId,omitempty"`
	StartTime       time.Time `db:"start_time"       json:"startTime"  validate:"required"`
	EndTime         time.Time `db:"end_time"         json:"endTime"    validate:"required,gtefield=StartTime"`
	DurationSeconds int       `db:"duration_seconds" json:"durationSeconds" validate:"gte=0"`
	LoggedAt        time.Time `db:"logged_at"        json:"loggedAt"`
}

type PlaybackFilter struct {
	DeviceID   string
	AssetID    string
	PlaylistID string
	From       time.Time
	To         time.Time
	Page       Page
}
