package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// MaxCampaignsPerPlaylist caps how many campaigns one playlist may reference.
const MaxCampaignsPerPlaylist = 7

type PlaylistStatus string

const (
	PlaylistActive    PlaylistStatus = "active"
	PlaylistInactive  PlaylistStatus = "inactive"
	PlaylistScheduled PlaylistStatus = "scheduled"
)

func (s PlaylistStatus) Valid() bool {
	switch s {
	case PlaylistActive, PlaylistInactive, PlaylistScheduled:
		return true
	}
	return false
}

// Playlist references campaigns (expanded as contiguous blocks) followed by
// direct assets. LegacyItems is only read when neither produces anything.
type Playlist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	OwnerID     string         `json:"ownerId"`
	Status      PlaylistStatus `json:"status"`
	CampaignIDs []string       `json:"campaignIds"`
	AssetIDs    []string       `json:"assetIds"`
	Schedule    *Schedule      `json:"schedule,omitempty"`
	LegacyItems LegacyItems    `json:"legacyItems,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Schedule is informational; expansion does not evaluate it.
type Schedule struct {
	StartDate  *time.Time `json:"startDate,omitempty"`
	EndDate    *time.Time `json:"endDate,omitempty"`
	DaysOfWeek []int      `json:"daysOfWeek,omitempty"`
	StartTime  string     `json:"startTime,omitempty"`
	EndTime    string     `json:"endTime,omitempty"`
}

func (s *Schedule) Validate() error {
	if s == nil {
		return nil
	}
	for _, d := range s.DaysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("daysOfWeek entries must be within 0..6, got %d", d)
		}
	}
	if s.StartDate != nil && s.EndDate != nil && s.EndDate.Before(*s.StartDate) {
		return errors.New("schedule endDate is before startDate")
	}
	for _, t := range []string{s.StartTime, s.EndTime} {
		if t == "" {
			continue
		}
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("invalid schedule time %q, expected HH:MM", t)
		}
	}
	return nil
}

func (s Schedule) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	return string(b), err
}

func (s *Schedule) Scan(src any) error {
	return scanJSON(src, s)
}

// LegacyItem is the pre-campaign playlist entry shape.
type LegacyItem struct {
	AssetID          string `json:"assetId"`
	DurationOverride *int   `json:"durationOverride,omitempty"`
	Order            int    `json:"order"`
}

// UnmarshalJSON also accepts the older "duration" key.
func (li *LegacyItem) UnmarshalJSON(b []byte) error {
	var raw struct {
		AssetID          string `json:"assetId"`
		DurationOverride *int   `json:"durationOverride"`
		Duration         *int   `json:"duration"`
		Order            int    `json:"order"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	li.AssetID = raw.AssetID
	li.Order = raw.Order
	li.DurationOverride = raw.DurationOverride
	if li.DurationOverride == nil {
		li.DurationOverride = raw.Duration
	}
	return nil
}

type LegacyItems []LegacyItem

func (l LegacyItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]LegacyItem(l))
	return string(b), err
}

func (l *LegacyItems) Scan(src any) error {
	return scanJSON(src, l)
}

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}

type PlaylistFilter struct {
	OwnerID string
	Status  PlaylistStatus
	Search  string
	Page    Page
}
