package endpoints

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/apperr"
	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api/cms/packets"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/redis"
)

// previewSize is how many assets a campaign list row previews.
const previewSize = 3

type CampaignController struct {
	store  db.Store
	notify notifier
}

func newCampaignController(store db.Store, cache *redis.ETagCache) *CampaignController {
	return &CampaignController{store: store, notify: notifier{store: store, cache: cache}}
}

// CampaignModule mounts the /campaigns endpoints.
func CampaignModule(store db.Store, cache *redis.ETagCache) api.Module {
	return api.ModuleFunc(newCampaignController(store, cache).routes)
}

func (cc *CampaignController) routes(c *api.Controller) {
	c.GET("/campaigns", cc.listCampaigns)
	c.POST("/campaigns", cc.createCampaign)
	c.GET("/campaigns/:id", cc.getCampaign)
	c.PUT("/campaigns/:id", cc.updateCampaign)
	c.DELETE("/campaigns/:id", cc.deleteCampaign)
}

func (cc *CampaignController) withCount(ctx *gin.Context, c model.Campaign) (packets.CampaignResponse, error) {
	counts, err := cc.store.CountAssetsByCampaign(ctx.Request.Context(), []string{c.ID})
	if err != nil {
		return packets.CampaignResponse{}, err
	}
	return packets.CampaignResponse{Campaign: c, AssetCount: counts[c.ID]}, nil
}

func (cc *CampaignController) listCampaigns(ctx *gin.Context) (any, *api.APIError) {
	page := api.ParsePage(ctx, "createdAt", db.CampaignSortKeys...)
	list, total, err := cc.store.ListCampaigns(ctx.Request.Context(), model.CampaignFilter{
		OwnerID: ctx.Query("ownerId"),
		Search:  strings.TrimSpace(ctx.Query("search")),
		Page:    page,
	})
	if err != nil {
		return nil, api.Fail("campaign", "list", err)
	}

	ids := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.ID
	}
	counts, err := cc.store.CountAssetsByCampaign(ctx.Request.Context(), ids)
	if err != nil {
		return nil, api.Fail("campaign", "list: counts", err)
	}

	out := make([]packets.CampaignResponse, 0, len(list))
	for _, c := range list {
		row := packets.CampaignResponse{Campaign: c, AssetCount: counts[c.ID]}
		if row.AssetCount > 0 {
			assets, err := cc.store.ListAssetsByCampaign(ctx.Request.Context(), c.ID)
			if err != nil {
				return nil, api.Fail("campaign", "list: preview", err)
			}
			for i, a := range assets {
				if i == previewSize {
					break
				}
				row.PreviewAssets = append(row.PreviewAssets, packets.AssetPreview{
					ID: a.ID, Name: a.Name, MediaType: a.MediaType, URL: a.URL, Thumbnail: a.Thumbnail,
				})
			}
		}
		out = append(out, row)
	}
	return api.Paged(out, model.NewPagination(page, total)), nil
}

func (cc *CampaignController) createCampaign(ctx *gin.Context) (any, *api.APIError) {
	var req packets.CreateCampaignRequest
	if apiErr := api.BindJSON(ctx, &req); apiErr != nil {
		return nil, apiErr
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, api.BadRequest("name is required")
	}

	c, err := cc.store.CreateCampaign(ctx.Request.Context(), model.Campaign{
		Name:        name,
		Description: req.Description,
		OwnerID:     req.OwnerID,
	})
	if err != nil {
		return nil, api.Fail("campaign", "create", err)
	}
	log.Info().Str("campaign_id", c.ID).Str("owner_id", c.OwnerID).Msg("[campaign] created")
	return api.Created(packets.CampaignResponse{Campaign: c}), nil
}

func (cc *CampaignController) getCampaign(ctx *gin.Context) (any, *api.APIError) {
	c, err := cc.store.GetCampaignByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		return nil, api.Lookup("campaign", "campaign", err)
	}
	resp, err := cc.withCount(ctx, c)
	if err != nil {
		return nil, api.Fail("campaign", "get", err)
	}
	return resp, nil
}

func (cc *CampaignController) updateCampaign(ctx *gin.Context) (any, *api.APIError) {
	var req packets.UpdateCampaignRequest
	if apiErr := api.BindJSON(ctx, &req); apiErr != nil {
		return nil, apiErr
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			return nil, api.BadRequest("name cannot be empty")
		}
		req.Name = &trimmed
	}

	id := ctx.Param("id")
	c, err := cc.store.UpdateCampaign(ctx.Request.Context(), id, req.Name, req.Description)
	if err != nil {
		return nil, api.Fail("campaign", "update", err)
	}
	cc.notify.campaignChanged(ctx.Request.Context(), id)

	resp, err := cc.withCount(ctx, c)
	if err != nil {
		return nil, api.Fail("campaign", "update", err)
	}
	return resp, nil
}

// deleteCampaign refuses while any playlist references the campaign, and
// otherwise removes the campaign together with its assets.
func (cc *CampaignController) deleteCampaign(ctx *gin.Context) (any, *api.APIError) {
	c := ctx.Request.Context()
	id := ctx.Param("id")
	if _, err := cc.store.GetCampaignByID(c, id); err != nil {
		return nil, api.Lookup("campaign", "campaign", err)
	}

	refs, err := cc.store.PlaylistsReferencing(c, id, "")
	if err != nil {
		return nil, api.Fail("campaign", "delete", err)
	}
	if len(refs) > 0 {
		return nil, api.FromError(apperr.Conflict("campaign is used by %d playlist(s): %s", len(refs), strings.Join(refs, ", ")))
	}

	// the cascade below takes these with it
	members, err := cc.store.ListAssetsByCampaign(c, id)
	if err != nil {
		return nil, api.Fail("campaign", "delete: assets", err)
	}

	removed, err := cc.store.DeleteCampaign(c, id)
	if err != nil {
		return nil, api.Fail("campaign", "delete", err)
	}
	for _, a := range members {
		cc.notify.assetChanged(c, a)
	}
	log.Info().Str("campaign_id", id).Int("deleted_assets", removed).Msg("[campaign] deleted")
	return packets.DeleteCampaignResponse{ID: id, DeletedAssets: removed}, nil
}
