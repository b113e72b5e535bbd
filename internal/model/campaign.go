package model

import "time"

// MaxAssetsPerCampaign caps how many assets may share one campaign.
const MaxAssetsPerCampaign = 9

// Campaign is a named, owner-scoped container of assets.
type Campaign struct {
	ID          string    `db:"id"          json:"id"`
	Name        string    `db:"name"        json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	OwnerID     string    `db:"owner_id"    json:"ownerId"`
	CreatedAt   time.Time `db:"created_at"  json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at"  json:"updatedAt"`
}

type CampaignFilter struct {
	OwnerID string
	Search  string
	Page    Page
}
