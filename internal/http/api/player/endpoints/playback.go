package endpoints

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api/player/packets"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/playback"
)

type PlaybackController struct {
	ingester *playback.Ingester
	reports  *playback.Service
	now      func() time.Time
}

// PlaybackModule mounts proof-of-play ingestion and the reporting routes.
func PlaybackModule(store db.Store, ingester *playback.Ingester) api.Module {
	ctl := &PlaybackController{
		ingester: ingester,
		reports:  playback.NewService(store),
		now:      func() time.Time { return time.Now().UTC() },
	}
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("/playback/log", ctl.logPlayback)
		c.GET("/playback/report", ctl.report)
		c.GET("/playback/stats", ctl.stats)
		c.GET("/playback/logs", ctl.logs)
		c.GET("/playback/dashboard", ctl.dashboard)
		c.GET("/playback/analysis", ctl.analysis)
		c.GET("/playback/timeline", ctl.timeline)
	})
}

// logPlayback accepts one record or an array. An invalid record rejects the
// whole batch; rows the store refuses are only counted.
func (pc *PlaybackController) logPlayback(ctx *gin.Context) (any, *api.APIError) {
	raw, err := ctx.GetRawData()
	if err != nil {
		return nil, api.BadRequest("could not read request body")
	}
	entries, err := playback.DecodeEntries(raw)
	if err != nil {
		return nil, api.Fail("playback", "log: decode", err)
	}
	result, err := pc.ingester.Ingest(ctx.Request.Context(), entries)
	if err != nil {
		return nil, api.Fail("playback", "log", err)
	}
	return api.Created(result), nil
}

func filterFrom(ctx *gin.Context) model.PlaybackFilter {
	return model.PlaybackFilter{
		DeviceID:   ctx.Query("deviceId"),
		AssetID:    ctx.Query("assetId"),
		PlaylistID: ctx.Query("playlistId"),
	}
}

// load reads the requested window and every entry inside it.
func (pc *PlaybackController) load(ctx *gin.Context, op string) (playback.Window, []model.PlaybackLogEntry, *api.APIError) {
	w, err := playback.ParseWindow(ctx.Query("startDate"), ctx.Query("endDate"), pc.now())
	if err != nil {
		return w, nil, api.FromError(err)
	}
	entries, err := pc.reports.Load(ctx.Request.Context(), filterFrom(ctx), w)
	if err != nil {
		return w, nil, api.Fail("playback", op, err)
	}
	return w, entries, nil
}

func (pc *PlaybackController) report(ctx *gin.Context) (any, *api.APIError) {
	group, err := playback.ParseGroupBy(ctx.Query("groupBy"))
	if err != nil {
		return nil, api.FromError(err)
	}
	w, entries, apiErr := pc.load(ctx, "report")
	if apiErr != nil {
		return nil, apiErr
	}
	return packets.ReportResponse{Window: w, GroupBy: group, Rows: playback.Report(entries, group)}, nil
}

func (pc *PlaybackController) stats(ctx *gin.Context) (any, *api.APIError) {
	w, entries, apiErr := pc.load(ctx, "stats")
	if apiErr != nil {
		return nil, apiErr
	}
	return packets.StatsResponse{Window: w, Stats: playback.ComputeStats(entries)}, nil
}

func (pc *PlaybackController) logs(ctx *gin.Context) (any, *api.APIError) {
	w, err := playback.ParseWindow(ctx.Query("startDate"), ctx.Query("endDate"), pc.now())
	if err != nil {
		return nil, api.FromError(err)
	}
	f := filterFrom(ctx)
	f.Page = api.ParsePage(ctx, "startTime", "startTime")

	entries, total, err := pc.reports.Logs(ctx.Request.Context(), f, w)
	if err != nil {
		return nil, api.Fail("playback", "logs", err)
	}
	if entries == nil {
		entries = []model.PlaybackLogEntry{}
	}
	return api.Paged(entries, model.NewPagination(f.Page, total)), nil
}

func (pc *PlaybackController) dashboard(ctx *gin.Context) (any, *api.APIError) {
	w, entries, apiErr := pc.load(ctx, "dashboard")
	if apiErr != nil {
		return nil, apiErr
	}
	return playback.BuildDashboard(entries, w), nil
}

func (pc *PlaybackController) analysis(ctx *gin.Context) (any, *api.APIError) {
	w, entries, apiErr := pc.load(ctx, "analysis")
	if apiErr != nil {
		return nil, apiErr
	}
	return packets.AnalysisResponse{Window: w, Assets: playback.Analyze(entries)}, nil
}

func (pc *PlaybackController) timeline(ctx *gin.Context) (any, *api.APIError) {
	interval, err := playback.ParseInterval(ctx.Query("interval"))
	if err != nil {
		return nil, api.FromError(err)
	}
	w, entries, apiErr := pc.load(ctx, "timeline")
	if apiErr != nil {
		return nil, apiErr
	}
	buckets, err := playback.Timeline(entries, w, interval)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.TimelineResponse{Window: w, Interval: interval, Buckets: buckets}, nil
}
