package endpoints

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/expand"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
	"github.com/Nixie-Tech-LLC/marquee/internal/redis"
)

// XIfNoneMatchHeader is accepted alongside If-None-Match for players whose
// HTTP stack strips conditional headers.
const XIfNoneMatchHeader = "X-If-None-Match"

type PlayerController struct {
	store  db.Store
	engine *expand.Engine
	cache  *redis.ETagCache
	shape  expand.Shape
}

// PlayerModule mounts the playlist endpoints polled by players. shape is the
// default output shape; ?shape= overrides it per request.
func PlayerModule(store db.Store, cache *redis.ETagCache, shape expand.Shape) api.Module {
	ctl := &PlayerController{store: store, engine: expand.NewEngine(store), cache: cache, shape: shape}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/player/playlist", ctl.getPlaylist)
		c.GET("/player/playlist/:id", ctl.getPlaylist)
	})
}

// requestETags returns the entity tags the client already holds.
func requestETags(ctx *gin.Context) []string {
	raw := ctx.GetHeader("If-None-Match")
	if raw == "" {
		raw = ctx.GetHeader(XIfNoneMatchHeader)
	}
	if raw == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimPrefix(strings.TrimSpace(t), "W/")
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func matches(tags []string, etag string) bool {
	for _, t := range tags {
		if t == etag || t == "*" {
			return true
		}
	}
	return false
}

func computeETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func notModified(ctx *gin.Context, etag string) {
	ctx.Header("ETag", etag)
	ctx.Status(http.StatusNotModified)
	ctx.Writer.WriteHeaderNow()
}

// playlistFor resolves the playlist id behind a target without expanding
// it. Failures are left for the engine to report.
func (pc *PlayerController) playlistFor(ctx *gin.Context, t expand.Target) string {
	if t.PlaylistID != "" {
		return t.PlaylistID
	}
	if t.DeviceID == "" {
		return ""
	}
	d, err := pc.store.GetDisplayByDeviceID(ctx.Request.Context(), t.DeviceID)
	if err != nil || d.PlaylistID == nil {
		return ""
	}
	return *d.PlaylistID
}

func (pc *PlayerController) getPlaylist(ctx *gin.Context) (any, *api.APIError) {
	target := expand.Target{PlaylistID: ctx.Param("id")}
	if target.PlaylistID == "" {
		target.PlaylistID = strings.TrimSpace(ctx.Query("playlistId"))
		target.DeviceID = strings.TrimSpace(ctx.Query("deviceId"))
	}

	shape := pc.shape
	if s := ctx.Query("shape"); s != "" {
		parsed, ok := expand.ParseShape(s)
		if !ok {
			return nil, api.BadRequest("shape must be one of nested, flat, strict")
		}
		shape = parsed
	}
	// the strict firmware format has fixed keys
	snake := shape != expand.ShapeStrict && ctx.Query("case") == "snake"
	variant := string(shape)
	if snake {
		variant += ":snake"
	}

	c := ctx.Request.Context()
	held := requestETags(ctx)
	if len(held) > 0 {
		if id := pc.playlistFor(ctx, target); id != "" {
			if cached, ok := pc.cache.Get(c, id, variant); ok && matches(held, cached) {
				notModified(ctx, cached)
				return nil, nil
			}
		}
	}

	expanded, err := pc.engine.Expand(c, target)
	if err != nil {
		return nil, api.Fail("player", "expand", err)
	}

	data := expand.Render(expanded, shape)
	if snake {
		if data, err = expand.SnakeCase(data); err != nil {
			return nil, api.Fail("player", "snake case", err)
		}
	}
	body, err := json.Marshal(api.Response{Success: true, Data: data})
	if err != nil {
		return nil, api.Fail("player", "encode", err)
	}

	etag := computeETag(body)
	pc.cache.Set(c, expanded.Playlist.ID, variant, etag)
	if matches(held, etag) {
		notModified(ctx, etag)
		return nil, nil
	}

	ctx.Header("ETag", etag)
	ctx.Header("Cache-Control", "no-cache")
	ctx.Data(http.StatusOK, "application/json; charset=utf-8", body)
	return nil, nil
}
