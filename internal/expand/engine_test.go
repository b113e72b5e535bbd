package expand_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/marquee/internal/apperr"
	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/expand"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

const owner = "owner-1"

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *db.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, ctx: context.Background(), store: db.NewMemoryStore()}
}

func (f *fixture) campaign(name string) model.Campaign {
	c, err := f.store.CreateCampaign(f.ctx, model.Campaign{Name: name, OwnerID: owner})
	require.NoError(f.t, err)
	return c
}

func (f *fixture) asset(name string, mt model.MediaType, url string, duration *int, campaignID string) model.Asset {
	a := model.Asset{Name: name, MediaType: mt, URL: url, DurationSeconds: duration, OwnerID: owner}
	if campaignID != "" {
		a.CampaignID = &campaignID
	}
	out, err := f.store.CreateAsset(f.ctx, a)
	require.NoError(f.t, err)
	return out
}

func (f *fixture) playlist(p model.Playlist) model.Playlist {
	p.OwnerID = owner
	if p.Name == "" {
		p.Name = "Lobby"
	}
	out, err := f.store.CreatePlaylist(f.ctx, p)
	require.NoError(f.t, err)
	return out
}

func (f *fixture) expand(id string) expand.ExpandedPlaylist {
	out, err := expand.NewEngine(f.store).Expand(f.ctx, expand.Target{PlaylistID: id})
	require.NoError(f.t, err)
	return out
}

func ids(e expand.ExpandedPlaylist) []string {
	out := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		out = append(out, it.Asset.ID)
	}
	return out
}

func intp(v int) *int { return &v }

func TestExpandPreservesCampaignThenDirectOrder(t *testing.T) {
	f := newFixture(t)
	a := f.campaign("A")
	b := f.campaign("B")
	a1 := f.asset("a1", model.MediaImage, "https://cdn/a1.png", nil, a.ID)
	a2 := f.asset("a2", model.MediaImage, "https://cdn/a2.png", nil, a.ID)
	b1 := f.asset("b1", model.MediaVideo, "https://cdn/b1.mp4", intp(30), b.ID)
	d2 := f.asset("d2", model.MediaImage, "https://cdn/d2.png", nil, "")
	d1 := f.asset("d1", model.MediaImage, "https://cdn/d1.png", nil, "")

	pl := f.playlist(model.Playlist{
		Status:      model.PlaylistActive,
		CampaignIDs: []string{a.ID, b.ID},
		AssetIDs:    []string{d1.ID, d2.ID},
	})

	out := f.expand(pl.ID)
	assert.Equal(t, []string{a1.ID, a2.ID, b1.ID, d1.ID, d2.ID}, ids(out))
	require.Len(t, out.Campaigns, 2)
	assert.Equal(t, a.ID, out.Campaigns[0].Campaign.ID)
	assert.Equal(t, 2, out.Campaigns[0].AssetCount)
	assert.Equal(t, 20, out.Campaigns[0].DurationSeconds)
	assert.Equal(t, 30, out.Campaigns[1].DurationSeconds)
}

func TestExpandDeduplicatesAtFirstOccurrence(t *testing.T) {
	f := newFixture(t)
	a := f.campaign("A")
	a1 := f.asset("a1", model.MediaImage, "https://cdn/a1.png", nil, a.ID)
	a2 := f.asset("a2", model.MediaImage, "https://cdn/a2.png", nil, a.ID)
	d1 := f.asset("d1", model.MediaImage, "https://cdn/d1.png", nil, "")

	pl := f.playlist(model.Playlist{
		Status:      model.PlaylistActive,
		CampaignIDs: []string{a.ID, a.ID},
		AssetIDs:    []string{a2.ID, d1.ID, d1.ID},
	})

	out := f.expand(pl.ID)
	assert.Equal(t, []string{a1.ID, a2.ID, d1.ID}, ids(out))
	require.NotNil(t, out.Items[1].Campaign, "a2 keeps its campaign position")
	assert.Equal(t, a.ID, out.Items[1].Campaign.ID)
}

func TestExpandInactiveIsEmpty(t *testing.T) {
	f := newFixture(t)
	a := f.campaign("A")
	f.asset("a1", model.MediaImage, "https://cdn/a1.png", nil, a.ID)
	d1 := f.asset("d1", model.MediaImage, "https://cdn/d1.png", nil, "")

	pl := f.playlist(model.Playlist{
		Status:      model.PlaylistInactive,
		CampaignIDs: []string{a.ID},
		AssetIDs:    []string{d1.ID},
		LegacyItems: model.LegacyItems{{AssetID: d1.ID}},
	})

	out := f.expand(pl.ID)
	assert.Empty(t, out.Items)
	assert.Equal(t, 0, out.TotalDurationSeconds())
}

func TestExpandSkipsMissingReferences(t *testing.T) {
	f := newFixture(t)
	a := f.campaign("A")
	a1 := f.asset("a1", model.MediaImage, "https://cdn/a1.png", nil, a.ID)

	pl := f.playlist(model.Playlist{
		Status:      model.PlaylistActive,
		CampaignIDs: []string{"deleted-campaign", a.ID},
		AssetIDs:    []string{"deleted-asset"},
	})

	out := f.expand(pl.ID)
	assert.Equal(t, []string{a1.ID}, ids(out))
	assert.Len(t, out.Campaigns, 1)
}

func TestExpandPromoScenario(t *testing.T) {
	f := newFixture(t)
	promo := f.campaign("Promo")
	img := f.asset("img", model.MediaImage, "https://cdn/img.png", intp(10), promo.ID)
	vid := f.asset("vid", model.MediaVideo, "https://cdn/vid.mp4", nil, promo.ID)

	pl := f.playlist(model.Playlist{
		Name:        "Lobby",
		Status:      model.PlaylistActive,
		CampaignIDs: []string{promo.ID},
		AssetIDs:    []string{},
	})

	out := f.expand(pl.ID)
	require.Len(t, out.Items, 2)
	assert.Equal(t, img.ID, out.Items[0].Asset.ID)
	assert.Equal(t, 10, out.Items[0].DurationSeconds)
	assert.Equal(t, vid.ID, out.Items[1].Asset.ID)
	assert.Equal(t, 0, out.Items[1].DurationSeconds)
	assert.Equal(t, 10, out.TotalDurationSeconds())
	assert.False(t, out.Legacy)
}

func TestExpandLegacyFallbackSkippedWhenDirectAssetsExist(t *testing.T) {
	f := newFixture(t)
	direct := f.asset("direct", model.MediaImage, "https://cdn/direct.png", nil, "")
	old := f.asset("old", model.MediaImage, "https://cdn/old.png", nil, "")

	pl := f.playlist(model.Playlist{
		Status:      model.PlaylistActive,
		AssetIDs:    []string{direct.ID},
		LegacyItems: model.LegacyItems{{AssetID: old.ID, DurationOverride: intp(5)}},
	})

	out := f.expand(pl.ID)
	assert.Equal(t, []string{direct.ID}, ids(out))
	assert.False(t, out.Legacy)
}

func TestExpandLegacyFallbackAppliesOverrides(t *testing.T) {
	f := newFixture(t)
	first := f.asset("first", model.MediaVideo, "https://cdn/first.mp4", nil, "")
	second := f.asset("second", model.MediaImage, "https://cdn/second.png", nil, "")

	pl := f.playlist(model.Playlist{
		Status:      model.PlaylistActive,
		CampaignIDs: []string{"gone"},
		LegacyItems: model.LegacyItems{
			{AssetID: second.ID, Order: 2},
			{AssetID: first.ID, DurationOverride: intp(5), Order: 1},
			{AssetID: "missing", Order: 3},
		},
	})

	out := f.expand(pl.ID)
	assert.Equal(t, []string{first.ID, second.ID}, ids(out))
	assert.Equal(t, 5, out.Items[0].DurationSeconds)
	assert.Equal(t, 10, out.Items[1].DurationSeconds)
	assert.True(t, out.Legacy)
}

func TestExpandByDevice(t *testing.T) {
	f := newFixture(t)
	d1 := f.asset("d1", model.MediaImage, "https://cdn/d1.png", nil, "")
	pl := f.playlist(model.Playlist{Status: model.PlaylistActive, AssetIDs: []string{d1.ID}})

	_, err := f.store.CreateDisplay(f.ctx, model.Display{Name: "lobby", DeviceID: "dev-1", OwnerID: owner, PlaylistID: &pl.ID})
	require.NoError(t, err)
	_, err = f.store.CreateDisplay(f.ctx, model.Display{Name: "idle", DeviceID: "dev-2", OwnerID: owner})
	require.NoError(t, err)

	engine := expand.NewEngine(f.store)

	out, err := engine.Expand(f.ctx, expand.Target{DeviceID: "dev-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{d1.ID}, ids(out))

	_, err = engine.Expand(f.ctx, expand.Target{DeviceID: "dev-2"})
	assert.True(t, errors.Is(err, expand.ErrMissingTarget))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = engine.Expand(f.ctx, expand.Target{DeviceID: "unknown"})
	assert.True(t, errors.Is(err, expand.ErrMissingTarget))

	_, err = engine.Expand(f.ctx, expand.Target{})
	assert.True(t, errors.Is(err, expand.ErrMissingTarget))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestExpandUnknownPlaylist(t *testing.T) {
	f := newFixture(t)
	_, err := expand.NewEngine(f.store).Expand(f.ctx, expand.Target{PlaylistID: "nope"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.False(t, errors.Is(err, expand.ErrMissingTarget))
}

func TestExpandIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a := f.campaign("A")
	f.asset("a1", model.MediaImage, "https://cdn/a1.png", nil, a.ID)
	f.asset("a2", model.MediaHTML, "https://cdn/a2.html", intp(15), a.ID)
	d1 := f.asset("d1", model.MediaVideo, "https://cdn/d1.mp4", nil, "")
	pl := f.playlist(model.Playlist{Status: model.PlaylistActive, CampaignIDs: []string{a.ID}, AssetIDs: []string{d1.ID}})

	for _, shape := range []expand.Shape{expand.ShapeNested, expand.ShapeFlat, expand.ShapeStrict} {
		first, err := json.Marshal(expand.Render(f.expand(pl.ID), shape))
		require.NoError(t, err)
		second, err := json.Marshal(expand.Render(f.expand(pl.ID), shape))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(second), "shape %s", shape)
	}
}
