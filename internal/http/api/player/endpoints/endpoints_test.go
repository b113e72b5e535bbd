package endpoints_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/expand"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api/player/endpoints"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/playback"
)

func newRouter(store db.Store, shape expand.Shape) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api.MountGroup(r, api.GroupConfig{},
		endpoints.PlayerModule(store, nil, shape),
		endpoints.PlaybackModule(store, playback.NewIngester(store)),
	)
	return r
}

func get(r *gin.Engine, path string, header ...string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	r.ServeHTTP(w, req)
	return w
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func data(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.True(t, env.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

// seedPromo builds the "Promo" campaign with an image and a video, an HTML
// direct asset and a "Lobby" playlist referencing both.
func seedPromo(t *testing.T, store *db.MemoryStore) model.Playlist {
	ctx := context.Background()
	c, err := store.CreateCampaign(ctx, model.Campaign{Name: "Promo", OwnerID: "o"})
	require.NoError(t, err)
	ten := 10
	_, err = store.CreateAsset(ctx, model.Asset{Name: "img", MediaType: model.MediaImage, URL: "https://cdn/img.png", DurationSeconds: &ten, OwnerID: "o", CampaignID: &c.ID})
	require.NoError(t, err)
	_, err = store.CreateAsset(ctx, model.Asset{Name: "vid", MediaType: model.MediaVideo, URL: "https://cdn/vid.mp4", OwnerID: "o", CampaignID: &c.ID})
	require.NoError(t, err)
	html, err := store.CreateAsset(ctx, model.Asset{Name: "menu", MediaType: model.MediaHTML, URL: "https://cdn/menu.html", OwnerID: "o"})
	require.NoError(t, err)

	p, err := store.CreatePlaylist(ctx, model.Playlist{Name: "Lobby", OwnerID: "o", CampaignIDs: []string{c.ID}, AssetIDs: []string{html.ID}})
	require.NoError(t, err)
	return p
}

func TestPlayerStrictShapeDropsHTML(t *testing.T) {
	store := db.NewMemoryStore()
	p := seedPromo(t, store)
	r := newRouter(store, expand.ShapeStrict)

	w := get(r, "/player/playlist/"+p.ID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("ETag"))

	var out expand.StrictPlaylist
	data(t, w, &out)
	assert.Equal(t, p.ID, out.PlaylistID)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "image", out.Items[0].MediaType)
	assert.Equal(t, 10, out.Items[0].DurationSeconds)
	assert.Equal(t, "video", out.Items[1].MediaType)
	assert.Equal(t, 0, out.Items[1].DurationSeconds)
}

func TestPlayerShapeOverride(t *testing.T) {
	store := db.NewMemoryStore()
	p := seedPromo(t, store)
	r := newRouter(store, expand.ShapeStrict)

	w := get(r, "/player/playlist?playlistId="+p.ID+"&shape=nested")
	require.Equal(t, http.StatusOK, w.Code)
	var nested expand.NestedPlaylist
	data(t, w, &nested)
	assert.Len(t, nested.Items, 3)
	assert.Equal(t, 10, nested.TotalDurationSeconds)
	require.Len(t, nested.Campaigns, 1)
	assert.Equal(t, "Promo", nested.Campaigns[0].Name)

	w = get(r, "/player/playlist?playlistId="+p.ID+"&shape=flat&case=snake")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"playlist_id"`)
	assert.Contains(t, w.Body.String(), `"duration_seconds"`)
	assert.NotContains(t, w.Body.String(), `"mediaType"`)

	w = get(r, "/player/playlist?playlistId="+p.ID+"&shape=cube")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlayerConditionalGet(t *testing.T) {
	store := db.NewMemoryStore()
	p := seedPromo(t, store)
	r := newRouter(store, expand.ShapeStrict)

	first := get(r, "/player/playlist/"+p.ID)
	require.Equal(t, http.StatusOK, first.Code)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	w := get(r, "/player/playlist/"+p.ID, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.Bytes())

	w = get(r, "/player/playlist/"+p.ID, endpoints.XIfNoneMatchHeader, "W/"+etag)
	assert.Equal(t, http.StatusNotModified, w.Code)

	// identical content hashes identically
	again := get(r, "/player/playlist/"+p.ID)
	assert.Equal(t, first.Body.String(), again.Body.String())
	assert.Equal(t, etag, again.Header().Get("ETag"))

	p.Status = model.PlaylistInactive
	_, err := store.SavePlaylist(context.Background(), p)
	require.NoError(t, err)

	w = get(r, "/player/playlist/"+p.ID, "If-None-Match", etag)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, etag, w.Header().Get("ETag"))
	var out expand.StrictPlaylist
	data(t, w, &out)
	assert.NotNil(t, out.Items)
	assert.Empty(t, out.Items)
}

func TestPlayerTargets(t *testing.T) {
	store := db.NewMemoryStore()
	p := seedPromo(t, store)
	ctx := context.Background()
	_, err := store.CreateDisplay(ctx, model.Display{Name: "tv", DeviceID: "dev-1", OwnerID: "o", PlaylistID: &p.ID})
	require.NoError(t, err)
	_, err = store.CreateDisplay(ctx, model.Display{Name: "idle", DeviceID: "dev-2", OwnerID: "o"})
	require.NoError(t, err)
	r := newRouter(store, expand.ShapeFlat)

	w := get(r, "/player/playlist?deviceId=dev-1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var flat expand.FlatPlaylist
	data(t, w, &flat)
	assert.Equal(t, p.ID, flat.PlaylistID)
	assert.Len(t, flat.Items, 3)

	assert.Equal(t, http.StatusBadRequest, get(r, "/player/playlist").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/player/playlist?deviceId=dev-2").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/player/playlist?deviceId=ghost").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/player/playlist/ghost").Code)
}

func playbackRecord(device, asset string, start time.Time, seconds int) string {
	return fmt.Sprintf(`{"deviceId":%q,"assetId":%q,"startTime":%q,"endTime":%q}`,
		device, asset, start.Format(time.RFC3339), start.Add(time.Duration(seconds)*time.Second).Format(time.RFC3339))
}

func TestPlaybackLogAndReports(t *testing.T) {
	store := db.NewMemoryStore()
	r := newRouter(store, expand.ShapeStrict)
	now := time.Now().UTC().Truncate(time.Second)
	start := now.Add(-2 * time.Hour)

	single := playbackRecord("dev-1", "a1", start, 10)
	w := post(r, "/playback/log", single)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res playback.IngestResult
	data(t, w, &res)
	assert.Equal(t, playback.IngestResult{Inserted: 1, Total: 1}, res)

	batch := "[" + strings.Join([]string{
		playbackRecord("dev-1", "a2", start.Add(time.Minute), 20),
		playbackRecord("dev-2", "a1", start.Add(2*time.Minute), 30),
	}, ",") + "]"
	w = post(r, "/playback/log", batch)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// one bad record rejects the whole batch
	bad := "[" + playbackRecord("dev-3", "a1", start, 5) + `,{"deviceId":"dev-3"}]`
	w = post(r, "/playback/log", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(r, "/playback/stats")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stats struct {
		Stats playback.Stats `json:"stats"`
	}
	data(t, w, &stats)
	assert.Equal(t, 3, stats.Stats.TotalPlays)
	assert.Equal(t, 60, stats.Stats.TotalDurationSeconds)
	assert.Equal(t, 2, stats.Stats.UniqueDevices)

	w = get(r, "/playback/report?groupBy=asset")
	require.Equal(t, http.StatusOK, w.Code)
	var report struct {
		Rows []playback.ReportRow `json:"rows"`
	}
	data(t, w, &report)
	require.Len(t, report.Rows, 2)
	assert.Equal(t, "a1", report.Rows[0].Key)
	assert.Equal(t, 2, report.Rows[0].Plays)

	w = get(r, "/playback/logs?limit=2&deviceId=dev-1")
	require.Equal(t, http.StatusOK, w.Code)
	var logs struct {
		Data       []model.PlaybackLogEntry `json:"data"`
		Pagination model.Pagination         `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	require.Len(t, logs.Data, 2)
	assert.Equal(t, "a2", logs.Data[0].AssetID)
	assert.Equal(t, 2, logs.Pagination.Total)

	w = get(r, "/playback/dashboard")
	require.Equal(t, http.StatusOK, w.Code)
	var dash playback.Dashboard
	data(t, w, &dash)
	assert.Len(t, dash.TopDevices, 2)

	w = get(r, "/playback/analysis")
	require.Equal(t, http.StatusOK, w.Code)
	var analysis struct {
		Assets []playback.AssetAnalysis `json:"assets"`
	}
	data(t, w, &analysis)
	require.NotEmpty(t, analysis.Assets)
	assert.Equal(t, 2, analysis.Assets[0].Devices)

	w = get(r, "/playback/timeline?interval=hour")
	require.Equal(t, http.StatusOK, w.Code)
	var timeline struct {
		Buckets []playback.Bucket `json:"buckets"`
	}
	data(t, w, &timeline)
	plays := 0
	for _, b := range timeline.Buckets {
		plays += b.Plays
	}
	assert.Equal(t, 3, plays)

	assert.Equal(t, http.StatusBadRequest, get(r, "/playback/report?groupBy=week").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/playback/stats?startDate=yesterday").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/playback/timeline?interval=minute").Code)
}
