package main

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/marquee/internal/config"
	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/expand"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
	cmsapi "github.com/Nixie-Tech-LLC/marquee/internal/http/api/cms/endpoints"
	playerapi "github.com/Nixie-Tech-LLC/marquee/internal/http/api/player/endpoints"
	systemapi "github.com/Nixie-Tech-LLC/marquee/internal/http/api/system/endpoints"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/marquee/internal/mail"
	"github.com/Nixie-Tech-LLC/marquee/internal/playback"
	"github.com/Nixie-Tech-LLC/marquee/internal/redis"
	"github.com/Nixie-Tech-LLC/marquee/internal/storage"
)

// Deps is everything the route table needs.
type Deps struct {
	Config   *config.Config
	Store    db.Store
	Cache    *redis.ETagCache
	Files    storage.Storage
	Ingester *playback.Ingester
	Mailer   mail.Sender
}

// RegisterRoutes sets up all application routes
func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(middleware.RequestLogger(), middleware.Metrics())
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"If-None-Match",
			playerapi.XIfNoneMatchHeader,
			middleware.RequestIDHeader,
		},
		ExposeHeaders: []string{
			"Content-Length",
			"ETag",
			middleware.RequestIDHeader,
		},
		AllowCredentials: false,
	}))

	shape, ok := expand.ParseShape(d.Config.PlayerShape)
	if !ok {
		shape = expand.ShapeStrict
	}

	// health pings the cache only when one is configured
	var cachePinger systemapi.Pinger
	if d.Cache != nil {
		cachePinger = d.Cache
	}

	api.MountGroup(r, api.GroupConfig{},
		systemapi.HealthModule(d.Store, cachePinger),
		systemapi.DiscoveryModule(r.Routes),
		systemapi.MetricsModule(),
		systemapi.QuoteModule(d.Mailer),
	)

	// content management; no auth layer exists yet, GroupConfig.Middleware
	// is where one goes
	api.MountGroup(r, api.GroupConfig{},
		cmsapi.CampaignModule(d.Store, d.Cache),
		cmsapi.AssetModule(d.Store, d.Cache, d.Files),
		cmsapi.PlaylistModule(d.Store, d.Cache),
		cmsapi.DisplayModule(d.Store),
	)

	api.MountGroup(r, api.GroupConfig{},
		playerapi.PlayerModule(d.Store, d.Cache, shape),
		playerapi.PlaybackModule(d.Store, d.Ingester),
	)

	// Static content
	if !d.Config.UseSpaces {
		r.Static(uploadsPath, d.Config.UploadDir)
	}
}
