// Package capacity enforces the membership limits on campaigns and
// playlists.
//
// The checks are advisory: they run immediately before the write but are
// not atomic with it, so two concurrent writers can both pass and jointly
// exceed a limit.
package capacity

import (
	"context"

	"github.com/Nixie-Tech-LLC/marquee/internal/apperr"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

type Store interface {
	CountAssetsByCampaign(ctx context.Context, campaignIDs []string) (map[string]int, error)
	GetPlaylistByID(ctx context.Context, id string) (model.Playlist, error)
}

type Policy struct {
	store Store
}

func NewPolicy(store Store) *Policy {
	return &Policy{store: store}
}

// CanAddAssetToCampaign reports whether one more asset fits in the campaign.
func (p *Policy) CanAddAssetToCampaign(ctx context.Context, campaignID string) (bool, error) {
	counts, err := p.store.CountAssetsByCampaign(ctx, []string{campaignID})
	if err != nil {
		return false, err
	}
	return counts[campaignID] < model.MaxAssetsPerCampaign, nil
}

// CanAddCampaignToPlaylist reports whether one more campaign fits in the
// playlist.
func (p *Policy) CanAddCampaignToPlaylist(ctx context.Context, playlistID string) (bool, error) {
	pl, err := p.store.GetPlaylistByID(ctx, playlistID)
	if err != nil {
		return false, err
	}
	return len(pl.CampaignIDs) < model.MaxCampaignsPerPlaylist, nil
}

// RequireAssetSlot returns a conflict when the campaign is full.
func (p *Policy) RequireAssetSlot(ctx context.Context, campaignID string) error {
	ok, err := p.CanAddAssetToCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Conflict("campaign already has the maximum of %d assets", model.MaxAssetsPerCampaign)
	}
	return nil
}

// RequireCampaignSlot returns a conflict when the playlist is full.
func (p *Policy) RequireCampaignSlot(ctx context.Context, playlistID string) error {
	ok, err := p.CanAddCampaignToPlaylist(ctx, playlistID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Conflict("playlist already has the maximum of %d campaigns", model.MaxCampaignsPerPlaylist)
	}
	return nil
}

// CheckCampaignList validates a full replacement campaign list.
func CheckCampaignList(ids []string) error {
	if len(ids) > model.MaxCampaignsPerPlaylist {
		return apperr.Conflict("a playlist may reference at most %d campaigns", model.MaxCampaignsPerPlaylist)
	}
	return nil
}
