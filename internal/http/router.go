package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/config"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/http/handler"
	httpmiddleware "github.com/Hkhorsha1359/KoachCalltakerAgent/internal/http/middleware"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/middleware"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/tenant"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, agentHandler *handler.AgentHandler, authMiddleware *httpmiddleware.Auth, resolver *tenant.Resolver, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1", httpmiddleware.Tenant(resolver))
	{
		reservation := v1.Group("/reservation")
		{
			reservation.GET("/lookup", agentHandler.LookupReservation)
		}

		v1.GET("/accounts", agentHandler.Accounts)
		v1.POST("/accounts/invalidate", authMiddleware.RequireAdmin, agentHandler.InvalidateAccounts)

		agent := v1.Group("/agent")
		{
			agent.POST("/context", agentHandler.AgentContext)
			agent.POST("/reply", agentHandler.ModelReply)
		}

		v1.GET("/calls", authMiddleware.RequireAdmin, agentHandler.RecentCalls)
	}

	return r
}
