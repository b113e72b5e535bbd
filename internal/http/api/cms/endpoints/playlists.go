package endpoints

import (
	"context"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/apperr"
	"github.com/Nixie-Tech-LLC/marquee/internal/capacity"
	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api/cms/packets"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/redis"
)

type PlaylistController struct {
	store  db.Store
	policy *capacity.Policy
	notify notifier
}

func newPlaylistController(store db.Store, cache *redis.ETagCache) *PlaylistController {
	return &PlaylistController{
		store:  store,
		policy: capacity.NewPolicy(store),
		notify: notifier{store: store, cache: cache},
	}
}

// PlaylistModule mounts the /playlists endpoints.
func PlaylistModule(store db.Store, cache *redis.ETagCache) api.Module {
	return api.ModuleFunc(newPlaylistController(store, cache).routes)
}

func (pc *PlaylistController) routes(c *api.Controller) {
	c.GET("/playlists", pc.listPlaylists)
	c.POST("/playlists", pc.createPlaylist)
	c.GET("/playlists/:id", pc.getPlaylist)
	c.PUT("/playlists/:id", pc.updatePlaylist)
	c.PATCH("/playlists/:id", pc.updatePlaylist)
	c.DELETE("/playlists/:id", pc.deletePlaylist)

	c.POST("/playlists/:id/campaigns", pc.addCampaign)
	c.DELETE("/playlists/:id/campaigns/:cid", pc.removeCampaign)
	c.POST("/playlists/:id/assets", pc.addAsset)
	c.DELETE("/playlists/:id/assets/:aid", pc.removeAsset)
	c.PATCH("/playlists/:id/status", pc.updateStatus)
}

// checkCampaigns fails with a validation error naming the first id that
// does not resolve to a campaign.
func (pc *PlaylistController) checkCampaigns(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := pc.store.GetCampaignsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(found))
	for _, c := range found {
		have[c.ID] = true
	}
	for _, id := range ids {
		if !have[id] {
			return apperr.Validation("campaign %s does not exist", id)
		}
	}
	return nil
}

// checkAssets requires every id to name an existing direct asset. Campaign
// members only reach a playlist through their campaign.
func (pc *PlaylistController) checkAssets(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := pc.store.GetAssetsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	have := make(map[string]model.Asset, len(found))
	for _, a := range found {
		have[a.ID] = a
	}
	for _, id := range ids {
		a, ok := have[id]
		if !ok {
			return apperr.Validation("asset %s does not exist", id)
		}
		if !a.IsDirect() {
			return apperr.Validation("asset %s belongs to a campaign", id)
		}
	}
	return nil
}

// withCounts attaches the campaign count and the total number of assets the
// playlist references, campaign members included.
func (pc *PlaylistController) withCounts(ctx context.Context, p model.Playlist) (packets.PlaylistResponse, error) {
	resp := packets.PlaylistResponse{Playlist: p, CampaignCount: len(p.CampaignIDs), AssetCount: len(p.AssetIDs)}
	if len(p.CampaignIDs) == 0 {
		return resp, nil
	}
	counts, err := pc.store.CountAssetsByCampaign(ctx, p.CampaignIDs)
	if err != nil {
		return resp, err
	}
	for _, id := range p.CampaignIDs {
		resp.AssetCount += counts[id]
	}
	return resp, nil
}

func (pc *PlaylistController) respond(ctx *gin.Context, op string, p model.Playlist) (any, *api.APIError) {
	resp, err := pc.withCounts(ctx.Request.Context(), p)
	if err != nil {
		return nil, api.Fail("playlist", op+": counts", err)
	}
	return resp, nil
}

func (pc *PlaylistController) listPlaylists(ctx *gin.Context) (any, *api.APIError) {
	f := model.PlaylistFilter{
		OwnerID: ctx.Query("ownerId"),
		Search:  strings.TrimSpace(ctx.Query("search")),
		Page:    api.ParsePage(ctx, "createdAt", db.PlaylistSortKeys...),
	}
	if s := ctx.Query("status"); s != "" {
		f.Status = model.PlaylistStatus(s)
		if !f.Status.Valid() {
			return nil, api.BadRequest("status must be one of active, inactive, scheduled")
		}
	}

	list, total, err := pc.store.ListPlaylists(ctx.Request.Context(), f)
	if err != nil {
		return nil, api.Fail("playlist", "list", err)
	}
	out := make([]packets.PlaylistResponse, 0, len(list))
	for _, p := range list {
		resp, err := pc.withCounts(ctx.Request.Context(), p)
		if err != nil {
			return nil, api.Fail("playlist", "list: counts", err)
		}
		out = append(out, resp)
	}
	return api.Paged(out, model.NewPagination(f.Page, total)), nil
}

func (pc *PlaylistController) createPlaylist(ctx *gin.Context) (any, *api.APIError) {
	var req packets.CreatePlaylistRequest
	if apiErr := api.BindJSON(ctx, &req); apiErr != nil {
		return nil, apiErr
	}
	c := ctx.Request.Context()

	p := model.Playlist{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		OwnerID:     req.OwnerID,
		Status:      model.PlaylistStatus(req.Status),
		CampaignIDs: model.RefIDs(req.CampaignIDs),
		AssetIDs:    model.RefIDs(req.AssetIDs),
		Schedule:    req.Schedule,
		LegacyItems: req.LegacyItems,
	}
	if p.Name == "" {
		return nil, api.BadRequest("name is required")
	}
	if p.Status == "" {
		p.Status = model.PlaylistActive
	}
	if !p.Status.Valid() {
		return nil, api.BadRequest("status must be one of active, inactive, scheduled")
	}
	if err := p.Schedule.Validate(); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	if err := capacity.CheckCampaignList(p.CampaignIDs); err != nil {
		return nil, api.Fail("playlist", "create", err)
	}
	if err := pc.checkCampaigns(c, p.CampaignIDs); err != nil {
		return nil, api.Fail("playlist", "create: campaigns", err)
	}
	if err := pc.checkAssets(c, p.AssetIDs); err != nil {
		return nil, api.Fail("playlist", "create: assets", err)
	}

	created, err := pc.store.CreatePlaylist(c, p)
	if err != nil {
		return nil, api.Fail("playlist", "create", err)
	}
	log.Info().Str("playlist_id", created.ID).Int("campaigns", len(created.CampaignIDs)).Msg("[playlist] created")

	resp, err := pc.withCounts(c, created)
	if err != nil {
		return nil, api.Fail("playlist", "create: counts", err)
	}
	return api.Created(resp), nil
}

func (pc *PlaylistController) getPlaylist(ctx *gin.Context) (any, *api.APIError) {
	p, err := pc.store.GetPlaylistByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		return nil, api.Lookup("playlist", "playlist", err)
	}
	return pc.respond(ctx, "get", p)
}

// updatePlaylist applies a partial update. Changed campaign and asset lists
// are re-validated in full.
func (pc *PlaylistController) updatePlaylist(ctx *gin.Context) (any, *api.APIError) {
	var req packets.UpdatePlaylistRequest
	if apiErr := api.BindJSON(ctx, &req); apiErr != nil {
		return nil, apiErr
	}
	c := ctx.Request.Context()

	p, err := pc.store.GetPlaylistByID(c, ctx.Param("id"))
	if err != nil {
		return nil, api.Lookup("playlist", "playlist", err)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, api.BadRequest("name cannot be empty")
		}
		p.Name = name
	}
	if req.Description != nil {
		p.Description = req.Description
	}
	if req.Status != nil {
		st := model.PlaylistStatus(*req.Status)
		if !st.Valid() {
			return nil, api.BadRequest("status must be one of active, inactive, scheduled")
		}
		p.Status = st
	}
	if req.Schedule != nil {
		if err := req.Schedule.Validate(); err != nil {
			return nil, api.BadRequest(err.Error())
		}
		p.Schedule = req.Schedule
	}
	if req.LegacyItems != nil {
		p.LegacyItems = *req.LegacyItems
	}
	if req.CampaignIDs != nil {
		ids := model.RefIDs(*req.CampaignIDs)
		if err := capacity.CheckCampaignList(ids); err != nil {
			return nil, api.Fail("playlist", "update", err)
		}
		if err := pc.checkCampaigns(c, ids); err != nil {
			return nil, api.Fail("playlist", "update: campaigns", err)
		}
		p.CampaignIDs = ids
	}
	if req.AssetIDs != nil {
		ids := model.RefIDs(*req.AssetIDs)
		if err := pc.checkAssets(c, ids); err != nil {
			return nil, api.Fail("playlist", "update: assets", err)
		}
		p.AssetIDs = ids
	}

	return pc.save(ctx, "update", p)
}

func (pc *PlaylistController) save(ctx *gin.Context, op string, p model.Playlist) (any, *api.APIError) {
	saved, err := pc.store.SavePlaylist(ctx.Request.Context(), p)
	if err != nil {
		return nil, api.Fail("playlist", op, err)
	}
	pc.notify.playlistsChanged(ctx.Request.Context(), saved.ID)
	return pc.respond(ctx, op, saved)
}

func (pc *PlaylistController) deletePlaylist(ctx *gin.Context) (any, *api.APIError) {
	id := ctx.Param("id")
	if err := pc.store.DeletePlaylist(ctx.Request.Context(), id); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, api.Lookup("playlist", "playlist", err)
		}
		return nil, api.Fail("playlist", "delete", err)
	}
	pc.notify.playlistsChanged(ctx.Request.Context(), id)
	log.Info().Str("playlist_id", id).Msg("[playlist] deleted")
	return packets.DeleteResponse{ID: id}, nil
}

func (pc *PlaylistController) addCampaign(ctx *gin.Context) (any, *api.APIError) {
	var req packets.AddCampaignRequest
	if apiErr := api.BindJSON(ctx, &req); apiErr != nil {
		return nil, apiErr
	}
	campaignID := req.CampaignID.ID()
	if campaignID == "" {
		return nil, api.BadRequest("campaignId is required")
	}
	c := ctx.Request.Context()

	p, err := pc.store.GetPlaylistByID(c, ctx.Param("id"))
	if err != nil {
		return nil, api.Lookup("playlist", "playlist", err)
	}
	if slices.Contains(p.CampaignIDs, campaignID) {
		return nil, api.FromError(apperr.Conflict("campaign is already in this playlist"))
	}
	if err := pc.checkCampaigns(c, []string{campaignID}); err != nil {
		return nil, api.Fail("playlist", "add campaign", err)
	}
	if err := pc.policy.RequireCampaignSlot(c, p.ID); err != nil {
		return nil, api.Fail("playlist", "add campaign", err)
	}

	p.CampaignIDs = append(p.CampaignIDs, campaignID)
	return pc.save(ctx, "add campaign", p)
}

func (pc *PlaylistController) removeCampaign(ctx *gin.Context) (any, *api.APIError) {
	p, err := pc.store.GetPlaylistByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		return nil, api.Lookup("playlist", "playlist", err)
	}
	cid := ctx.Param("cid")
	i := slices.Index(p.CampaignIDs, cid)
	if i < 0 {
		return nil, api.FromError(apperr.NotFound("campaign is not in this playlist"))
	}
	p.CampaignIDs = slices.Delete(p.CampaignIDs, i, i+1)
	return pc.save(ctx, "remove campaign", p)
}

func (pc *PlaylistController) addAsset(ctx *gin.Context) (any, *api.APIError) {
	var req packets.AddAssetRequest
	if apiErr := api.BindJSON(ctx, &req); apiErr != nil {
		return nil, apiErr
	}
	assetID := req.AssetID.ID()
	if assetID == "" {
		return nil, api.BadRequest("assetId is required")
	}
	c := ctx.Request.Context()

	p, err := pc.store.GetPlaylistByID(c, ctx.Param("id"))
	if err != nil {
		return nil, api.Lookup("playlist", "playlist", err)
	}
	if slices.Contains(p.AssetIDs, assetID) {
		return nil, api.FromError(apperr.Conflict("asset is already in this playlist"))
	}
	if err := pc.checkAssets(c, []string{assetID}); err != nil {
		return nil, api.Fail("playlist", "add asset", err)
	}

	p.AssetIDs = append(p.AssetIDs, assetID)
	return pc.save(ctx, "add asset", p)
}

func (pc *PlaylistController) removeAsset(ctx *gin.Context) (any, *api.APIError) {
	p, err := pc.store.GetPlaylistByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		return nil, api.Lookup("playlist", "playlist", err)
	}
	i := slices.Index(p.AssetIDs, ctx.Param("aid"))
	if i < 0 {
		return nil, api.FromError(apperr.NotFound("asset is not in this playlist"))
	}
	p.AssetIDs = slices.Delete(p.AssetIDs, i, i+1)
	return pc.save(ctx, "remove asset", p)
}

func (pc *PlaylistController) updateStatus(ctx *gin.Context) (any, *api.APIError) {
	var req packets.UpdateStatusRequest
	if apiErr := api.BindJSON(ctx, &req); apiErr != nil {
		return nil, apiErr
	}
	st := model.PlaylistStatus(req.Status)
	if !st.Valid() {
		return nil, api.BadRequest("status must be one of active, inactive, scheduled")
	}

	p, err := pc.store.GetPlaylistByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		return nil, api.Lookup("playlist", "playlist", err)
	}
	p.Status = st
	return pc.save(ctx, "status", p)
}
