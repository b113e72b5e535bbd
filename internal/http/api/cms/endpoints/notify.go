package endpoints

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/redis"
)

// invalidator drops cached player ETags; *redis.ETagCache is the real one.
type invalidator interface {
	Invalidate(ctx context.Context, playlistIDs ...string)
}

var _ invalidator = (*redis.ETagCache)(nil)

// notifier invalidates cached player ETags after content changes so the
// next player poll gets a fresh payload instead of 304 Not Modified.
type notifier struct {
	store db.Store
	cache invalidator
}

func (n notifier) playlistsChanged(ctx context.Context, ids ...string) {
	n.cache.Invalidate(ctx, ids...)
}

func (n notifier) campaignChanged(ctx context.Context, campaignID string) {
	ids, err := n.store.PlaylistsReferencing(ctx, campaignID, "")
	if err != nil {
		log.Error().Err(err).Str("campaign_id", campaignID).Msg("failed to get playlists for campaign notification")
		return
	}
	n.cache.Invalidate(ctx, ids...)
}

func (n notifier) assetChanged(ctx context.Context, a model.Asset) {
	ids, err := n.store.PlaylistsReferencing(ctx, "", a.ID)
	if err != nil {
		log.Error().Err(err).Str("asset_id", a.ID).Msg("failed to get playlists for asset notification")
		return
	}
	n.cache.Invalidate(ctx, ids...)
	if a.CampaignID != nil {
		n.campaignChanged(ctx, *a.CampaignID)
	}
}
