package endpoints

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/apperr"
	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api/cms/packets"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

type DisplayController struct {
	store db.Store
	now   func() time.Time
}

// DisplayModule mounts the /displays endpoints, including the player
// heartbeat and the device lookup.
func DisplayModule(store db.Store) api.Module {
	ctl := &DisplayController{store: store, now: time.Now}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/displays", ctl.listDisplays)
		c.POST("/displays", ctl.createDisplay)
		c.GET("/displays/device/:deviceId", ctl.getByDevice)
		c.GET("/displays/:id", ctl.getDisplay)
		c.PUT("/displays/:id", ctl.updateDisplay)
		c.DELETE("/displays/:id", ctl.deleteDisplay)
		c.PUT("/displays/:id/playlist", ctl.assignPlaylist)
		// players post heartbeats with their device id in place of :id
		c.POST("/displays/:id/playback", ctl.heartbeat)
	})
}

func (dc *DisplayController) listDisplays(ctx *gin.Context) (any, *api.APIError) {
	f := model.DisplayFilter{
		OwnerID: ctx.Query("ownerId"),
		Search:  strings.TrimSpace(ctx.Query("search")),
		Page:    api.ParsePage(ctx, "createdAt", db.DisplaySortKeys...),
	}
	if s := ctx.Query("status"); s != "" {
		f.Status = model.DisplayStatus(s)
		if !f.Status.Valid() {
			return nil, api.BadRequest("status must be one of online, offline, maintenance")
		}
	}

	list, total, err := dc.store.ListDisplays(ctx.Request.Context(), f)
	if err != nil {
		return nil, api.Fail("display", "list", err)
	}
	return api.Paged(list, model.NewPagination(f.Page, total)), nil
}

func (dc *DisplayController) requirePlaylist(ctx *gin.Context, id *string) error {
	if id == nil || *id == "" {
		return nil
	}
	if _, err := dc.store.GetPlaylistByID(ctx.Request.Context(), *id); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.Validation("playlist %s does not exist", *id)
		}
		return err
	}
	return nil
}

func (dc *DisplayController) createDisplay(ctx *gin.Context) (any, *api.APIError) {
	var req packets.CreateDisplayRequest
	if apiErr := api.BindJSON(ctx, &req); apiErr != nil {
		return nil, apiErr
	}
	d := model.Display{
		Name:       strings.TrimSpace(req.Name),
		DeviceID:   strings.TrimSpace(req.DeviceID),
		OwnerID:    req.OwnerID,
		Location:   req.Location,
		Resolution: req.Resolution,
		Status:     model.DisplayStatus(req.Status),
	}
	if d.Name == "" || d.DeviceID == "" {
		return nil, api.BadRequest("name and deviceId are required")
	}
	if d.Status != "" && !d.Status.Valid() {
		return nil, api.BadRequest("status must be one of online, offline, maintenance")
	}
	if err := dc.requirePlaylist(ctx, req.PlaylistID); err != nil {
		return nil, api.Fail("display", "create: playlist check", err)
	}
	if req.PlaylistID != nil && *req.PlaylistID != "" {
		d.PlaylistID = req.PlaylistID
	}

	created, err := dc.store.CreateDisplay(ctx.Request.Context(), d)
	if err != nil {
		return nil, api.Fail("display", "create", err)
	}
	log.Info().Str("display_id", created.ID).Str("device_id", created.DeviceID).Msg("[display] created")
	return api.Created(created), nil
}

func (dc *DisplayController) getDisplay(ctx *gin.Context) (any, *api.APIError) {
	d, err := dc.store.GetDisplayByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		return nil, api.Lookup("display", "display", err)
	}
	return d, nil
}

func (dc *DisplayController) updateDisplay(ctx *gin.Context) (any, *api.APIError) {
	var req packets.UpdateDisplayRequest
	if apiErr := api.BindJSON(ctx, &req); apiErr != nil {
		return nil, apiErr
	}
	d, err := dc.store.GetDisplayByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		return nil, api.Lookup("display", "display", err)
	}

	if req.Name != nil {
		d.Name = strings.TrimSpace(*req.Name)
	}
	if req.DeviceID != nil {
		d.DeviceID = strings.TrimSpace(*req.DeviceID)
	}
	if d.Name == "" || d.DeviceID == "" {
		return nil, api.BadRequest("name and deviceId cannot be empty")
	}
	if req.Location != nil {
		d.Location = *req.Location
	}
	if req.Resolution != nil {
		d.Resolution = *req.Resolution
	}
	if req.Status != nil {
		st := model.DisplayStatus(*req.Status)
		if !st.Valid() {
			return nil, api.BadRequest("status must be one of online, offline, maintenance")
		}
		d.Status = st
	}

	saved, err := dc.store.SaveDisplay(ctx.Request.Context(), d)
	if err != nil {
		return nil, api.Fail("display", "update", err)
	}
	return saved, nil
}

func (dc *DisplayController) deleteDisplay(ctx *gin.Context) (any, *api.APIError) {
	id := ctx.Param("id")
	if err := dc.store.DeleteDisplay(ctx.Request.Context(), id); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, api.Lookup("display", "display", err)
		}
		return nil, api.Fail("display", "delete", err)
	}
	log.Info().Str("display_id", id).Msg("[display] deleted")
	return packets.DeleteResponse{ID: id}, nil
}

// assignPlaylist sets the display's playlist; a null playlistId unassigns.
func (dc *DisplayController) assignPlaylist(ctx *gin.Context) (any, *api.APIError) {
	var req packets.AssignPlaylistRequest
	if apiErr := api.BindJSON(ctx, &req); apiErr != nil {
		return nil, apiErr
	}
	d, err := dc.store.GetDisplayByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		return nil, api.Lookup("display", "display", err)
	}
	if err := dc.requirePlaylist(ctx, req.PlaylistID); err != nil {
		return nil, api.Fail("display", "assign playlist", err)
	}

	d.PlaylistID = nil
	if req.PlaylistID != nil && *req.PlaylistID != "" {
		d.PlaylistID = req.PlaylistID
	}
	saved, err := dc.store.SaveDisplay(ctx.Request.Context(), d)
	if err != nil {
		return nil, api.Fail("display", "assign playlist", err)
	}
	return saved, nil
}

// heartbeat records player activity. minutes defaults to 1.
func (dc *DisplayController) heartbeat(ctx *gin.Context) (any, *api.APIError) {
	var req packets.HeartbeatRequest
	if apiErr := api.BindOptionalJSON(ctx, &req); apiErr != nil {
		return nil, apiErr
	}
	minutes := 1
	if req.Minutes != nil {
		minutes = *req.Minutes
	}

	d, err := dc.store.RecordDisplayActivity(ctx.Request.Context(), ctx.Param("id"), minutes, dc.now())
	if err != nil {
		return nil, api.Lookup("display", "display", err)
	}
	return d, nil
}

// getByDevice returns the display with a summary of its assigned playlist.
// A dangling playlist id yields a null summary.
func (dc *DisplayController) getByDevice(ctx *gin.Context) (any, *api.APIError) {
	c := ctx.Request.Context()
	d, err := dc.store.GetDisplayByDeviceID(c, ctx.Param("deviceId"))
	if err != nil {
		return nil, api.Lookup("display", "display", err)
	}

	resp := packets.DeviceDisplayResponse{Display: d}
	if d.PlaylistID == nil {
		return resp, nil
	}
	p, err := dc.store.GetPlaylistByID(c, *d.PlaylistID)
	switch {
	case apperr.KindOf(err) == apperr.KindNotFound:
		log.Warn().Str("device_id", d.DeviceID).Str("playlist_id", *d.PlaylistID).Msg("[display] assigned playlist is missing")
		return resp, nil
	case err != nil:
		return nil, api.Fail("display", "device lookup: playlist", err)
	}

	summary := packets.PlaylistSummary{
		ID:            p.ID,
		Name:          p.Name,
		Status:        p.Status,
		CampaignCount: len(p.CampaignIDs),
		AssetCount:    len(p.AssetIDs),
		UpdatedAt:     p.UpdatedAt,
	}
	if len(p.CampaignIDs) > 0 {
		counts, err := dc.store.CountAssetsByCampaign(c, p.CampaignIDs)
		if err != nil {
			return nil, api.Fail("display", "device lookup: counts", err)
		}
		for _, id := range p.CampaignIDs {
			summary.AssetCount += counts[id]
		}
	}
	resp.Playlist = &summary
	return resp, nil
}
