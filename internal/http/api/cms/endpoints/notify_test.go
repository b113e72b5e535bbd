package endpoints

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

// recorder keeps every invalidated playlist id.
type recorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *recorder) Invalidate(_ context.Context, playlistIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, playlistIDs...)
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.ids
	r.ids = nil
	return out
}

func newNotifyRouter(t *testing.T, store db.Store, rec *recorder) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	campaigns := newCampaignController(store, nil)
	campaigns.notify.cache = rec
	assets := newAssetController(store, nil, nil)
	assets.notify.cache = rec
	playlists := newPlaylistController(store, nil)
	playlists.notify.cache = rec

	r := gin.New()
	api.MountGroup(r, api.GroupConfig{},
		api.ModuleFunc(campaigns.routes),
		api.ModuleFunc(assets.routes),
		api.ModuleFunc(playlists.routes),
	)
	return r
}

func send(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestCampaignDeleteInvalidatesPlaylistsOfCascadedAssets(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	rec := &recorder{}
	r := newNotifyRouter(t, store, rec)

	c, err := store.CreateCampaign(ctx, model.Campaign{Name: "Promo", OwnerID: "o"})
	require.NoError(t, err)
	a, err := store.CreateAsset(ctx, model.Asset{Name: "a", MediaType: model.MediaImage, URL: "https://cdn/a.png", OwnerID: "o", CampaignID: &c.ID})
	require.NoError(t, err)
	// rows written before direct assets had to be campaign-free
	p, err := store.CreatePlaylist(ctx, model.Playlist{Name: "Lobby", OwnerID: "o", Status: model.PlaylistActive, AssetIDs: []string{a.ID}})
	require.NoError(t, err)

	w := send(r, http.MethodDelete, "/campaigns/"+c.ID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, rec.take(), p.ID)
}

func TestContentMutationsInvalidateReferencingPlaylists(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	rec := &recorder{}
	r := newNotifyRouter(t, store, rec)

	c, err := store.CreateCampaign(ctx, model.Campaign{Name: "Promo", OwnerID: "o"})
	require.NoError(t, err)
	member, err := store.CreateAsset(ctx, model.Asset{Name: "m", MediaType: model.MediaImage, URL: "https://cdn/m.png", OwnerID: "o", CampaignID: &c.ID})
	require.NoError(t, err)
	direct, err := store.CreateAsset(ctx, model.Asset{Name: "d", MediaType: model.MediaImage, URL: "https://cdn/d.png", OwnerID: "o"})
	require.NoError(t, err)

	viaCampaign, err := store.CreatePlaylist(ctx, model.Playlist{Name: "A", OwnerID: "o", Status: model.PlaylistActive, CampaignIDs: []string{c.ID}})
	require.NoError(t, err)
	viaAsset, err := store.CreatePlaylist(ctx, model.Playlist{Name: "B", OwnerID: "o", Status: model.PlaylistActive, AssetIDs: []string{direct.ID}})
	require.NoError(t, err)

	w := send(r, http.MethodPut, "/assets/"+member.ID, `{"durationSeconds":20}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{viaCampaign.ID}, rec.take())

	w = send(r, http.MethodPut, "/assets/"+direct.ID, `{"name":"renamed"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{viaAsset.ID}, rec.take())

	w = send(r, http.MethodPut, "/campaigns/"+c.ID, `{"name":"Promo 2"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{viaCampaign.ID}, rec.take())

	w = send(r, http.MethodPatch, "/playlists/"+viaAsset.ID+"/status", `{"status":"inactive"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{viaAsset.ID}, rec.take())

	w = send(r, http.MethodDelete, "/assets/"+direct.ID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{viaAsset.ID}, rec.take())
}
