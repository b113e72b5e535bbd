package packets

import (
	"bytes"
	"encoding/json"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

// OptionalRef distinguishes an absent reference from an explicit null.
type OptionalRef struct {
	Set bool
	Ref *model.Ref
}

func (o *OptionalRef) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Ref = nil
		return nil
	}
	var r model.Ref
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	o.Ref = &r
	return nil
}

type CreateCampaignRequest struct {
	Name        string  `json:"name"    binding:"required,max=200"`
	Description *string `json:"description"`
	OwnerID     string  `json:"ownerId" binding:"required"`
}

type UpdateCampaignRequest struct {
	Name        *string `json:"name"        binding:"omitempty,min=1,max=200"`
	Description *string `json:"description"`
}

type CreateAssetRequest struct {
	Name            string     `json:"name"      binding:"required"`
	MediaType       string     `json:"mediaType" binding:"required"`
	URL             string     `json:"url"       binding:"required"`
	OwnerID         string     `json:"ownerId"   binding:"required"`
	CampaignID      *model.Ref `json:"campaignId"`
	Thumbnail       *string    `json:"thumbnail"`
	DurationSeconds *int       `json:"durationSeconds" binding:"omitempty,gte=0"`
	SizeBytes       *int64     `json:"sizeBytes"       binding:"omitempty,gte=0"`
}

type UpdateAssetRequest struct {
	Name            *string     `json:"name"      binding:"omitempty,min=1"`
	MediaType       *string     `json:"mediaType"`
	URL             *string     `json:"url"       binding:"omitempty,min=1"`
	Thumbnail       *string     `json:"thumbnail"`
	DurationSeconds *int        `json:"durationSeconds" binding:"omitempty,gte=0"`
	CampaignID      OptionalRef `json:"campaignId"`
}

type CreatePlaylistRequest struct {
	Name        string            `json:"name"    binding:"required"`
	Description *string           `json:"description"`
	OwnerID     string            `json:"ownerId" binding:"required"`
	Status      string            `json:"status"`
	CampaignIDs []model.Ref       `json:"campaignIds"`
	AssetIDs    []model.Ref       `json:"assetIds"`
	Schedule    *model.Schedule   `json:"schedule"`
	LegacyItems model.LegacyItems `json:"legacyItems"`
}

// UpdatePlaylistRequest is partial: absent fields are left unchanged.
type UpdatePlaylistRequest struct {
	Name        *string            `json:"name" binding:"omitempty,min=1"`
	Description *string            `json:"description"`
	Status      *string            `json:"status"`
	CampaignIDs *[]model.Ref       `json:"campaignIds"`
	AssetIDs    *[]model.Ref       `json:"assetIds"`
	Schedule    *model.Schedule    `json:"schedule"`
	LegacyItems *model.LegacyItems `json:"legacyItems"`
}

type AddCampaignRequest struct {
	CampaignID model.Ref `json:"campaignId"`
}

type AddAssetRequest struct {
	AssetID model.Ref `json:"assetId"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type CreateDisplayRequest struct {
	Name       string  `json:"name"     binding:"required"`
	DeviceID   string  `json:"deviceId" binding:"required"`
	OwnerID    string  `json:"ownerId"  binding:"required"`
	Location   string  `json:"location"`
	Resolution string  `json:"resolution"`
	Status     string  `json:"status"`
	PlaylistID *string `json:"playlistId"`
}

type UpdateDisplayRequest struct {
	Name       *string `json:"name"     binding:"omitempty,min=1"`
	DeviceID   *string `json:"deviceId" binding:"omitempty,min=1"`
	Location   *string `json:"location"`
	Resolution *string `json:"resolution"`
	Status     *string `json:"status"`
}

// AssignPlaylistRequest assigns a playlist; a null playlistId unassigns.
type AssignPlaylistRequest struct {
	PlaylistID *string `json:"playlistId"`
}

// HeartbeatRequest is optional; an empty body counts one minute.
type HeartbeatRequest struct {
	Minutes *int `json:"minutes" binding:"omitempty,gte=0,lte=1440"`
}
