package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/marquee/internal/apperr"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

// stores returns every Store implementation available to the test run.
// PostgreSQL is included when TEST_DATABASE_URL is set.
func stores(t *testing.T) map[string]Store {
	out := map[string]Store{"memory": NewMemoryStore()}

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		return out
	}
	conn, err := Init(url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, RunMigrations(conn, "../../migrations"))
	_, err = conn.Exec(`TRUNCATE campaigns, assets, playlists, displays, playback_logs CASCADE;`)
	require.NoError(t, err)
	out["postgres"] = NewStore(conn)
	return out
}

// TestStoreIntegration runs the same behaviour checks against each store.
func TestStoreIntegration(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Ping(ctx))

			var camp model.Campaign
			t.Run("Campaign Management", func(t *testing.T) {
				var err error
				camp, err = store.CreateCampaign(ctx, model.Campaign{Name: "Spring", OwnerID: "int-owner"})
				require.NoError(t, err)
				assert.NotEmpty(t, camp.ID)

				_, err = store.CreateCampaign(ctx, model.Campaign{Name: "Spring", OwnerID: "int-owner"})
				assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

				desc := "seasonal"
				updated, err := store.UpdateCampaign(ctx, camp.ID, nil, &desc)
				require.NoError(t, err)
				assert.Equal(t, "Spring", updated.Name)
				require.NotNil(t, updated.Description)
				assert.Equal(t, desc, *updated.Description)

				_, err = store.GetCampaignByID(ctx, "00000000-0000-0000-0000-000000000000")
				assert.ErrorIs(t, err, apperr.ErrNotFound)
			})

			var img, direct model.Asset
			t.Run("Asset Management", func(t *testing.T) {
				var err error
				img, err = store.CreateAsset(ctx, model.Asset{
					Name: "hero", MediaType: model.MediaImage, URL: "https://cdn/hero.png",
					OwnerID: "int-owner", CampaignID: &camp.ID,
				})
				require.NoError(t, err)
				direct, err = store.CreateAsset(ctx, model.Asset{
					Name: "ticker", MediaType: model.MediaURL, URL: "https://news.example.com", OwnerID: "int-owner",
				})
				require.NoError(t, err)

				counts, err := store.CountAssetsByCampaign(ctx, []string{camp.ID})
				require.NoError(t, err)
				assert.Equal(t, 1, counts[camp.ID])

				list, total, err := store.ListAssets(ctx, model.AssetFilter{
					OwnerID: "int-owner", DirectOnly: true,
					Page: model.Page{}.Normalize("createdAt", AssetSortKeys...),
				})
				require.NoError(t, err)
				assert.Equal(t, 1, total)
				require.Len(t, list, 1)
				assert.Equal(t, direct.ID, list[0].ID)

				d := 20
				got, err := store.UpdateAsset(ctx, direct.ID, model.AssetUpdate{DurationSeconds: &d})
				require.NoError(t, err)
				assert.Equal(t, 20, got.EffectiveDuration())
			})

			t.Run("Playlist Management", func(t *testing.T) {
				p, err := store.CreatePlaylist(ctx, model.Playlist{
					Name: "Foyer", OwnerID: "int-owner",
					CampaignIDs: []string{camp.ID}, AssetIDs: []string{direct.ID},
					Schedule:    &model.Schedule{DaysOfWeek: []int{1, 5}},
					LegacyItems: model.LegacyItems{{AssetID: img.ID, Order: 1}},
				})
				require.NoError(t, err)
				assert.Equal(t, model.PlaylistActive, p.Status)

				got, err := store.GetPlaylistByID(ctx, p.ID)
				require.NoError(t, err)
				assert.Equal(t, []string{camp.ID}, got.CampaignIDs)
				require.NotNil(t, got.Schedule)
				assert.Equal(t, []int{1, 5}, got.Schedule.DaysOfWeek)
				require.Len(t, got.LegacyItems, 1)

				refs, err := store.PlaylistsReferencing(ctx, camp.ID, "")
				require.NoError(t, err)
				assert.Equal(t, []string{p.ID}, refs)
				refs, err = store.PlaylistsReferencing(ctx, "", direct.ID)
				require.NoError(t, err)
				assert.Equal(t, []string{p.ID}, refs)

				got.CampaignIDs = nil
				got.Status = model.PlaylistInactive
				saved, err := store.SavePlaylist(ctx, got)
				require.NoError(t, err)
				assert.Empty(t, saved.CampaignIDs)
				assert.Equal(t, model.PlaylistInactive, saved.Status)

				require.NoError(t, store.DeletePlaylist(ctx, p.ID))
				assert.ErrorIs(t, store.DeletePlaylist(ctx, p.ID), apperr.ErrNotFound)
			})

			t.Run("Display Management", func(t *testing.T) {
				d, err := store.CreateDisplay(ctx, model.Display{Name: "Foyer TV", DeviceID: "int-dev", OwnerID: "int-owner"})
				require.NoError(t, err)
				_, err = store.CreateDisplay(ctx, model.Display{Name: "dup", DeviceID: "int-dev", OwnerID: "int-owner"})
				assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

				at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
				_, err = store.RecordDisplayActivity(ctx, "int-dev", 3, at)
				require.NoError(t, err)
				got, err := store.RecordDisplayActivity(ctx, "int-dev", 2, at.Add(time.Minute))
				require.NoError(t, err)
				assert.Equal(t, 5, got.TotalActiveMinutes)
				assert.Equal(t, model.DisplayOnline, got.Status)
				require.NotNil(t, got.LastActiveAt)
				assert.True(t, got.LastActiveAt.Equal(at.Add(time.Minute)))

				require.NoError(t, store.DeleteDisplay(ctx, d.ID))
			})

			t.Run("Playback Logs", func(t *testing.T) {
				start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
				n, err := store.InsertPlaybackLogs(ctx, []model.PlaybackLogEntry{
					{DeviceID: "int-dev", AssetID: img.ID, StartTime: start, EndTime: start.Add(10 * time.Second), DurationSeconds: 10, LoggedAt: start},
					{DeviceID: "int-dev", AssetID: direct.ID, StartTime: start.Add(time.Hour), EndTime: start.Add(time.Hour + 5*time.Second), DurationSeconds: 5, LoggedAt: start},
				})
				require.NoError(t, err)
				assert.Equal(t, 2, n)

				logs, total, err := store.ListPlaybackLogs(ctx, model.PlaybackFilter{
					DeviceID: "int-dev", From: start, To: start.Add(30 * time.Minute),
				})
				require.NoError(t, err)
				assert.Equal(t, 1, total)
				require.Len(t, logs, 1)
				assert.Equal(t, img.ID, logs[0].AssetID)
			})

			t.Run("Campaign Cascade", func(t *testing.T) {
				removed, err := store.DeleteCampaign(ctx, camp.ID)
				require.NoError(t, err)
				assert.Equal(t, 1, removed)
				_, err = store.GetAssetByID(ctx, img.ID)
				assert.ErrorIs(t, err, apperr.ErrNotFound)
			})
		})
	}
}
