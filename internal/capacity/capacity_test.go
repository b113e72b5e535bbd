package capacity_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/marquee/internal/apperr"
	"github.com/Nixie-Tech-LLC/marquee/internal/capacity"
	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

func TestAssetSlotsPerCampaign(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	policy := capacity.NewPolicy(store)

	c, err := store.CreateCampaign(ctx, model.Campaign{Name: "Promo", OwnerID: "o"})
	require.NoError(t, err)

	for i := 0; i < model.MaxAssetsPerCampaign; i++ {
		require.NoError(t, policy.RequireAssetSlot(ctx, c.ID), "asset %d", i)
		_, err := store.CreateAsset(ctx, model.Asset{Name: fmt.Sprintf("a%d", i), MediaType: model.MediaImage, OwnerID: "o", CampaignID: &c.ID})
		require.NoError(t, err)
	}

	ok, err := policy.CanAddAssetToCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	err = policy.RequireAssetSlot(ctx, c.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestCampaignSlotsPerPlaylist(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	policy := capacity.NewPolicy(store)

	ids := make([]string, model.MaxCampaignsPerPlaylist)
	for i := range ids {
		ids[i] = fmt.Sprintf("c%d", i)
	}
	pl, err := store.CreatePlaylist(ctx, model.Playlist{Name: "Lobby", OwnerID: "o", CampaignIDs: ids[:6]})
	require.NoError(t, err)

	require.NoError(t, policy.RequireCampaignSlot(ctx, pl.ID))

	pl.CampaignIDs = ids
	_, err = store.SavePlaylist(ctx, pl)
	require.NoError(t, err)

	err = policy.RequireCampaignSlot(ctx, pl.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = policy.CanAddCampaignToPlaylist(ctx, "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCheckCampaignList(t *testing.T) {
	assert.NoError(t, capacity.CheckCampaignList(make([]string, 7)))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(capacity.CheckCampaignList(make([]string, 8))))
}
