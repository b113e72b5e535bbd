package model

import "time"

type DisplayStatus string

const (
	DisplayOnline      DisplayStatus = "online"
	DisplayOffline     DisplayStatus = "offline"
	DisplayMaintenance DisplayStatus = "maintenance"
)

func (s DisplayStatus) Valid() bool {
	switch s {
	case DisplayOnline, DisplayOffline, DisplayMaintenance:
		return true
	}
	return false
}

// Display represents a signage player device.
type Display struct {
	ID                 string        `db:"id"                   json:"id"`
	Name               string        `db:"name"                 json:"name"`
	DeviceID           string        `db:"device_id"            json:"deviceId"`
	Location           string        `db:"location"             json:"location"`
	Status             DisplayStatus `db:"status"               json:"status"`
	Resolution         string        `db:"resolution"           json:"resolution"`
	PlaylistID         *string       `db:"playlist_id"          json:"playlistId"`
	OwnerID            string        `db:"owner_id"             json:"ownerId"`
	LastActiveAt       *time.Time    `db:"last_active_at"       json:"lastActiveAt"`
	TotalActiveMinutes int           `db:"total_active_minutes" json:"totalActiveMinutes"`
	CreatedAt          time.Time     `db:"created_at"           json:"createdAt"`
	UpdatedAt          time.Time     `db:"updated_at"           json:"updatedAt"`
}

type DisplayFilter struct {
	OwnerID string
	Status  DisplayStatus
	Search  string
	Page    Page
}
