package packets

import (
	"time"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

type CampaignResponse struct {
	model.Campaign
	AssetCount    int            `json:"assetCount"`
	PreviewAssets []AssetPreview `json:"previewAssets,omitempty"`
}

type AssetPreview struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	MediaType model.MediaType `json:"mediaType"`
	URL       string          `json:"url"`
	Thumbnail *string         `json:"thumbnail"`
}

type DeleteCampaignResponse struct {
	ID            string `json:"id"`
	DeletedAssets int    `json:"deletedAssets"`
}

type AssetResponse struct {
	model.Asset
	EffectiveDurationSeconds int `json:"effectiveDurationSeconds"`
}

type CampaignWithAssets struct {
	Campaign model.Campaign  `json:"campaign"`
	Assets   []AssetResponse `json:"assets"`
}

// CombinedAssetsResponse is the file-manager view of an owner's assets.
type CombinedAssetsResponse struct {
	Campaigns    []CampaignWithAssets `json:"campaigns"`
	DirectAssets []AssetResponse      `json:"directAssets"`
}

type DownloadResponse struct {
	URL string `json:"url"`
}

type PlaylistResponse struct {
	model.Playlist
	CampaignCount int `json:"campaignCount"`
	AssetCount    int `json:"assetCount"`
}

type PlaylistSummary struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Status        model.PlaylistStatus `json:"status"`
	CampaignCount int                  `json:"campaignCount"`
	AssetCount    int                  `json:"assetCount"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

type DeleteResponse struct {
	ID string `json:"id"`
}

type DeviceDisplayResponse struct {
	Display  model.Display    `json:"display"`
	Playlist *PlaylistSummary `json:"playlist"`
}
