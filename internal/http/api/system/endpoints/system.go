package endpoints

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/apperr"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
)

const healthTimeout = 3 * time.Second

// Pinger is anything the health check can ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status string    `json:"status"`
	Store  string    `json:"store"`
	Cache  string    `json:"cache"`
	Time   time.Time `json:"time"`
}

// HealthModule mounts GET /health. The store is required; a failing cache
// only degrades the report.
func HealthModule(store Pinger, cache Pinger) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/health", func(ctx *gin.Context) (any, *api.APIError) {
			pctx, cancel := context.WithTimeout(ctx.Request.Context(), healthTimeout)
			defer cancel()

			if err := store.Ping(pctx); err != nil {
				log.Error().Err(err).Msg("[health] store ping failed")
				return nil, api.FromError(apperr.Wrap(apperr.KindUnavailable, err, "store unavailable"))
			}
			resp := HealthResponse{Status: "ok", Store: "ok", Cache: "ok", Time: time.Now().UTC()}
			if cache == nil {
				resp.Cache = "disabled"
			} else if err := cache.Ping(pctx); err != nil {
				log.Warn().Err(err).Msg("[health] cache ping failed")
				resp.Status, resp.Cache = "degraded", "unavailable"
			}
			return resp, nil
		})
	})
}

type RouteInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// DiscoveryModule mounts GET /api, listing every registered route.
func DiscoveryModule(routes func() gin.RoutesInfo) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/api", func(ctx *gin.Context) (any, *api.APIError) {
			all := routes()
			out := make([]RouteInfo, 0, len(all))
			for _, r := range all {
				out = append(out, RouteInfo{Method: r.Method, Path: r.Path})
			}
			sort.Slice(out, func(i, j int) bool {
				if out[i].Path != out[j].Path {
					return out[i].Path < out[j].Path
				}
				return out[i].Method < out[j].Method
			})
			return out, nil
		})
	})
}

// MetricsModule exposes the Prometheus registry on GET /metrics.
func MetricsModule() api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.Raw(http.MethodGet, "/metrics", gin.WrapH(promhttp.Handler()))
	})
}
