package endpoints

import (
	"context"
	"net/http"
	"strconv"
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
	"github.com/Nixie-Tech-LLC/marquee/internal/storage"
)

// maxUploadBytes caps multipart asset uploads.
const maxUploadBytes = 512 << 20

type AssetController struct {
	store  db.Store
	files  storage.Storage
	policy *capacity.Policy
	notify notifier
}

func newAssetController(store db.Store, cache *redis.ETagCache, files storage.Storage) *AssetController {
	return &AssetController{
		store:  store,
		files:  files,
		policy: capacity.NewPolicy(store),
		notify: notifier{store: store, cache: cache},
	}
}

// AssetModule mounts the /assets endpoints.
func AssetModule(store db.Store, cache *redis.ETagCache, files storage.Storage) api.Module {
	return api.ModuleFunc(newAssetController(store, cache, files).routes)
}

func (ac *AssetController) routes(c *api.Controller) {
	c.GET("/assets", ac.listAssets)
	c.POST("/assets", ac.createAsset)
	c.POST("/assets/upload", ac.uploadAsset)
	c.GET("/assets/:id", ac.getAsset)
	c.GET("/assets/:id/download", ac.downloadAsset)
	c.PUT("/assets/:id", ac.updateAsset)
	c.DELETE("/assets/:id", ac.deleteAsset)
}

func assetResponse(a model.Asset) packets.AssetResponse {
	return packets.AssetResponse{Asset: a, EffectiveDurationSeconds: a.EffectiveDuration()}
}

func assetResponses(list []model.Asset) []packets.AssetResponse {
	out := make([]packets.AssetResponse, 0, len(list))
	for _, a := range list {
		out = append(out, assetResponse(a))
	}
	return out
}

// requireCampaignSlot checks that the campaign exists and has room.
func (ac *AssetController) requireCampaignSlot(ctx context.Context, campaignID string) error {
	if _, err := ac.store.GetCampaignByID(ctx, campaignID); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.Validation("campaign %s does not exist", campaignID)
		}
		return err
	}
	return ac.policy.RequireAssetSlot(ctx, campaignID)
}

// requireNotDirectlyUsed blocks moving an asset into a campaign while
// playlists still list it among their direct assets.
func (ac *AssetController) requireNotDirectlyUsed(ctx context.Context, assetID string) error {
	refs, err := ac.store.PlaylistsReferencing(ctx, "", assetID)
	if err != nil {
		return err
	}
	if len(refs) > 0 {
		return apperr.Conflict("asset is a direct asset of %d playlist(s): %s", len(refs), strings.Join(refs, ", "))
	}
	return nil
}

func (ac *AssetController) listAssets(ctx *gin.Context) (any, *api.APIError) {
	if ctx.Query("view") == "combined" {
		return ac.combinedView(ctx)
	}

	f := model.AssetFilter{
		OwnerID:    ctx.Query("ownerId"),
		CampaignID: ctx.Query("campaignId"),
		Search:     strings.TrimSpace(ctx.Query("search")),
		DirectOnly: ctx.Query("direct") == "true",
		Page:       api.ParsePage(ctx, "createdAt", db.AssetSortKeys...),
	}
	if t := ctx.Query("type"); t != "" {
		mt, ok := model.ParseMediaType(t)
		if !ok {
			return nil, api.BadRequest("type must be one of IMAGE, VIDEO, HTML, URL")
		}
		f.MediaType = mt
	}

	list, total, err := ac.store.ListAssets(ctx.Request.Context(), f)
	if err != nil {
		return nil, api.Fail("asset", "list", err)
	}
	return api.Paged(assetResponses(list), model.NewPagination(f.Page, total)), nil
}

// combinedView groups an owner's assets under their campaigns and lists
// campaign-less assets separately.
func (ac *AssetController) combinedView(ctx *gin.Context) (any, *api.APIError) {
	ownerID := ctx.Query("ownerId")
	c := ctx.Request.Context()

	campaigns, _, err := ac.store.ListCampaigns(c, model.CampaignFilter{
		OwnerID: ownerID,
		Page:    model.Page{Page: 1, Limit: model.MaxPageLimit, SortBy: "name", SortOrder: "asc"},
	})
	if err != nil {
		return nil, api.Fail("asset", "combined: campaigns", err)
	}

	out := packets.CombinedAssetsResponse{
		Campaigns:    make([]packets.CampaignWithAssets, 0, len(campaigns)),
		DirectAssets: []packets.AssetResponse{},
	}
	for _, camp := range campaigns {
		assets, err := ac.store.ListAssetsByCampaign(c, camp.ID)
		if err != nil {
			return nil, api.Fail("asset", "combined: campaign assets", err)
		}
		out.Campaigns = append(out.Campaigns, packets.CampaignWithAssets{Campaign: camp, Assets: assetResponses(assets)})
	}

	direct, _, err := ac.store.ListAssets(c, model.AssetFilter{
		OwnerID:    ownerID,
		DirectOnly: true,
		Page:       model.Page{Page: 1, Limit: model.MaxPageLimit, SortBy: "createdAt", SortOrder: "desc"},
	})
	if err != nil {
		return nil, api.Fail("asset", "combined: direct", err)
	}
	out.DirectAssets = assetResponses(direct)
	return out, nil
}

func (ac *AssetController) createAsset(ctx *gin.Context) (any, *api.APIError) {
	var req packets.CreateAssetRequest
	if apiErr := api.BindJSON(ctx, &req); apiErr != nil {
		return nil, apiErr
	}
	mt, ok := model.ParseMediaType(req.MediaType)
	if !ok {
		return nil, api.FromError(apperr.UnsupportedMedia("unsupported media type %q", req.MediaType))
	}

	a := model.Asset{
		Name:            strings.TrimSpace(req.Name),
		MediaType:       mt,
		URL:             strings.TrimSpace(req.URL),
		Thumbnail:       req.Thumbnail,
		DurationSeconds: req.DurationSeconds,
		SizeBytes:       req.SizeBytes,
		OwnerID:         req.OwnerID,
	}
	if a.Name == "" || a.URL == "" {
		return nil, api.BadRequest("name and url are required")
	}
	return ac.create(ctx, a, req.CampaignID)
}

func (ac *AssetController) create(ctx *gin.Context, a model.Asset, campaign *model.Ref) (any, *api.APIError) {
	c := ctx.Request.Context()
	if campaign != nil && campaign.ID() != "" {
		id := campaign.ID()
		if err := ac.requireCampaignSlot(c, id); err != nil {
			return nil, api.Fail("asset", "create: campaign check", err)
		}
		a.CampaignID = &id
	}

	created, err := ac.store.CreateAsset(c, a)
	if err != nil {
		return nil, api.Fail("asset", "create", err)
	}
	ac.notify.assetChanged(c, created)
	log.Info().Str("asset_id", created.ID).Str("media_type", string(created.MediaType)).Msg("[asset] created")
	return api.Created(assetResponse(created)), nil
}

// uploadAsset stores a multipart file and creates the asset pointing at it.
// The media type comes from the file's MIME type.
func (ac *AssetController) uploadAsset(ctx *gin.Context) (any, *api.APIError) {
	if ac.files == nil {
		return nil, api.FromError(apperr.New(apperr.KindUnavailable, "file uploads are not configured"))
	}
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxUploadBytes)

	fh, err := ctx.FormFile("file")
	if err != nil {
		return nil, api.BadRequest("file is required")
	}
	ownerID := ctx.PostForm("ownerId")
	if ownerID == "" {
		return nil, api.BadRequest("ownerId is required")
	}

	contentType := storage.ContentType(fh)
	mt, ok := model.MediaTypeFromMIME(contentType)
	if !ok {
		return nil, api.FromError(apperr.UnsupportedMedia("unsupported file type %q", contentType))
	}

	a := model.Asset{
		Name:      strings.TrimSpace(ctx.PostForm("name")),
		MediaType: mt,
		OwnerID:   ownerID,
	}
	if a.Name == "" {
		a.Name = fh.Filename
	}
	if d := ctx.PostForm("durationSeconds"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 {
			return nil, api.BadRequest("durationSeconds must be a non-negative integer")
		}
		a.DurationSeconds = &n
	}

	var campaign *model.Ref
	if cid := ctx.PostForm("campaignId"); cid != "" {
		ref := model.IDRef(cid)
		campaign = &ref
		// check capacity before spending the upload
		if err := ac.requireCampaignSlot(ctx.Request.Context(), cid); err != nil {
			return nil, api.Fail("asset", "upload: campaign check", err)
		}
	}

	stored, err := ac.files.SaveFile(ctx.Request.Context(), fh)
	if err != nil {
		return nil, api.Fail("asset", "upload: store file", err)
	}
	a.URL = stored.URL
	a.SizeBytes = &stored.SizeBytes
	return ac.create(ctx, a, campaign)
}

func (ac *AssetController) getAsset(ctx *gin.Context) (any, *api.APIError) {
	a, err := ac.store.GetAssetByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		return nil, api.Lookup("asset", "asset", err)
	}
	return assetResponse(a), nil
}

// downloadAsset redirects to the asset url, or returns it as JSON when
// redirect=false.
func (ac *AssetController) downloadAsset(ctx *gin.Context) (any, *api.APIError) {
	a, err := ac.store.GetAssetByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		return nil, api.Lookup("asset", "asset", err)
	}
	if a.URL == "" {
		return nil, api.FromError(apperr.NotFound("asset has no file"))
	}
	if ctx.Query("redirect") == "false" {
		return packets.DownloadResponse{URL: a.URL}, nil
	}
	ctx.Redirect(http.StatusFound, a.URL)
	return nil, nil
}

func (ac *AssetController) updateAsset(ctx *gin.Context) (any, *api.APIError) {
	var req packets.UpdateAssetRequest
	if apiErr := api.BindJSON(ctx, &req); apiErr != nil {
		return nil, apiErr
	}
	c := ctx.Request.Context()

	existing, err := ac.store.GetAssetByID(c, ctx.Param("id"))
	if err != nil {
		return nil, api.Lookup("asset", "asset", err)
	}

	u := model.AssetUpdate{
		Name:            req.Name,
		URL:             req.URL,
		Thumbnail:       req.Thumbnail,
		DurationSeconds: req.DurationSeconds,
	}
	if req.MediaType != nil {
		mt, ok := model.ParseMediaType(*req.MediaType)
		if !ok {
			return nil, api.FromError(apperr.UnsupportedMedia("unsupported media type %q", *req.MediaType))
		}
		u.MediaType = &mt
	}
	if req.CampaignID.Set {
		if req.CampaignID.Ref == nil || req.CampaignID.Ref.ID() == "" {
			u.ClearCampaign = true
		} else if id := req.CampaignID.Ref.ID(); existing.CampaignID == nil || *existing.CampaignID != id {
			if err := ac.requireNotDirectlyUsed(c, existing.ID); err != nil {
				return nil, api.Fail("asset", "update: playlist check", err)
			}
			if err := ac.requireCampaignSlot(c, id); err != nil {
				return nil, api.Fail("asset", "update: campaign check", err)
			}
			u.CampaignID = &id
		}
	}

	updated, err := ac.store.UpdateAsset(c, existing.ID, u)
	if err != nil {
		return nil, api.Fail("asset", "update", err)
	}
	ac.notify.assetChanged(c, existing)
	if updated.CampaignID != nil && (existing.CampaignID == nil || *existing.CampaignID != *updated.CampaignID) {
		ac.notify.campaignChanged(c, *updated.CampaignID)
	}
	return assetResponse(updated), nil
}

func (ac *AssetController) deleteAsset(ctx *gin.Context) (any, *api.APIError) {
	c := ctx.Request.Context()
	a, err := ac.store.GetAssetByID(c, ctx.Param("id"))
	if err != nil {
		return nil, api.Lookup("asset", "asset", err)
	}
	if err := ac.store.DeleteAsset(c, a.ID); err != nil {
		return nil, api.Fail("asset", "delete", err)
	}
	ac.notify.assetChanged(c, a)
	return packets.DeleteResponse{ID: a.ID}, nil
}
