package model

import (
	"strings"
	"time"
)

type MediaType string

const (
	MediaImage MediaType = "IMAGE"
	MediaVideo MediaType = "VIDEO"
	MediaHTML  MediaType = "HTML"
	MediaURL   MediaType = "URL"
)

// DefaultImageDuration is applied to every non-video asset without an
// explicit duration. Video runs to its own length (0) unless overridden.
const DefaultImageDuration = 10

// ParseMediaType accepts any casing of the four known media types.
func ParseMediaType(s string) (MediaType, bool) {
	switch mt := MediaType(strings.ToUpper(strings.TrimSpace(s))); mt {
	case MediaImage, MediaVideo, MediaHTML, MediaURL:
		return mt, true
	}
	return "", false
}

// MediaTypeFromMIME maps an upload's MIME type to a media type.
func MediaTypeFromMIME(mime string) (MediaType, bool) {
	mime = strings.ToLower(mime)
	switch {
	case strings.HasPrefix(mime, "image/"):
		return MediaImage, true
	case strings.HasPrefix(mime, "video/"):
		return MediaVideo, true
	case strings.HasPrefix(mime, "text/html"):
		return MediaHTML, true
	}
	return "", false
}

// Asset is a single playable item. A nil CampaignID marks a direct asset.
type Asset struct {
	ID              string    `db:"id"               json:"id"`
	Name            string    `db:"name"             json:"name"`
	MediaType       MediaType `db:"media_type"       json:"mediaType"`
	URL             string    `db:"url"              json:"url"`
	Thumbnail       *string   `db:"thumbnail"        json:"thumbnail,omitempty"`
	DurationSeconds *int      `db:"duration_seconds" json:"durationSeconds,omitempty"`
	SizeBytes       *int64    `db:"size_bytes"       json:"sizeBytes,omitempty"`
	OwnerID         string    `db:"owner_id"         json:"ownerId"`
	CampaignID      *string   `db:"campaign_id"      json:"campaignId"`
	CreatedAt       time.Time `db:"created_at"       json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at"       json:"updatedAt"`
}

func (a Asset) IsDirect() bool {
	return a.CampaignID == nil
}

// EffectiveDuration resolves the playback length in seconds.
func (a Asset) EffectiveDuration() int {
	if a.DurationSeconds != nil {
		if *a.DurationSeconds < 0 {
			return 0
		}
		return *a.DurationSeconds
	}
	if a.MediaType == MediaVideo {
		return 0
	}
	return DefaultImageDuration
}

type AssetFilter struct {
	OwnerID    string
	CampaignID string
	MediaType  MediaType
	Search     string
	// DirectOnly restricts the listing to assets without a campaign.
	DirectOnly bool
	Page       Page
}

// AssetUpdate carries a partial update; nil fields are left unchanged.
// ClearCampaign detaches the asset from its campaign.
type AssetUpdate struct {
	Name            *string
	MediaType       *MediaType
	URL             *string
	Thumbnail       *string
	DurationSeconds *int
	CampaignID      *string
	ClearCampaign   bool
}
