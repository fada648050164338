package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"parkvision-backend/config"
	"parkvision-backend/internal/live"
	"parkvision-backend/internal/mw"
	"parkvision-backend/internal/parking"
	"parkvision-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, s store.Store, orch *parking.Orchestrator, hub *live.Hub, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, orch, hub, cfg.Lots, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	ttl := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)
	// scans and queue events change state without an HTTP write
	orch.AddNotifier(cacheFlusher{store: cacheStore})

	admin := mw.AdminAuth(cfg.Server.JWTSecret)

	// the websocket is long-lived and stays outside the limiter and cache
	r.GET("/api/live", handler.GetLive)

	api := r.Group("/api")
	api.Use(rateLimiter, mw.FlushOnWrite(cacheStore))
	{
		// camera events
		api.POST("/lots/:lot_id/entry", handler.PostEntry)
		api.POST("/lots/:lot_id/scan", handler.PostScan)
		api.POST("/exit", handler.PostExit)

		api.GET("/lots", caching, handler.GetLots)
		api.GET("/lots/:lot_id/occupancy", caching, handler.GetOccupancy)
		api.GET("/sessions", caching, handler.GetSessions)
		api.GET("/sessions/plate/:plate/latest", caching, handler.GetLatestSession)

		api.GET("/allowed", admin, handler.GetAllowed)
		api.POST("/allowed", admin, handler.PostAllowed)
		api.DELETE("/allowed/:plate", admin, handler.DeleteAllowed)
		api.GET("/security", handler.GetSecurity)
		api.PUT("/security", admin, handler.PutSecurity)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}

// cacheFlusher empties the response cache after every orchestrator event.
type cacheFlusher struct {
	store *cache.Cache
}

func (f cacheFlusher) Notify(parking.Event) {
	f.store.Flush()
}
