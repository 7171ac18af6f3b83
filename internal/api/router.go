package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dorm-assignment-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router. Successful writes flush
// responseCache so cached reads never outlive the change that staled them.
func NewRouter(h *Handler, limiter *mw.ClientLimiter, responseCache *mw.ResponseCache, gatherer prometheus.Gatherer, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger(log))

	rateLimiter := mw.RateLimiter(limiter)
	caching := mw.Cache(responseCache)

	r.GET("/healthz", h.Healthz)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.Use(rateLimiter, mw.Invalidate(responseCache))
	{
		api.POST("/assign", h.Assign)
		api.GET("/assignments", h.ListAssignments)

		api.GET("/people", caching, h.ListPeople)
		api.POST("/people", h.CreatePerson)
		api.DELETE("/people", h.DeleteAllPeople)
		api.GET("/people/:id", h.GetPerson)
		api.DELETE("/people/:id", h.DeletePerson)
		api.POST("/people/:id/release", h.ReleasePerson)
		api.GET("/waiting", caching, h.GetWaiting)

		api.GET("/dorms", caching, h.GetDorms)
		api.GET("/dorms/:dorm_id/rooms", caching, h.GetRooms)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
