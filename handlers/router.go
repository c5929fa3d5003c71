package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Router groups every handler served by the API
type Router struct {
	ServiceName string
	Documents   *DocumentHandler
	Compliance  *ComplianceHandler
	Chat        *ChatHandler
}

// Engine builds the gin engine. Nil handlers leave their routes unregistered.
func (rt Router) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if rt.ServiceName != "" {
		r.Use(otelgin.Middleware(rt.ServiceName))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	if h := rt.Documents; h != nil {
		api.POST("/documents", h.Upload)
		api.GET("/documents", h.List)
		api.GET("/documents/:id", h.Get)
		api.GET("/documents/:id/results", h.Results)
		api.GET("/jobs/:id", h.GetJobStatus)
	}
	if h := rt.Compliance; h != nil {
		api.POST("/compliance/check", h.Check)
		api.GET("/llm/providers", h.Providers)
	}
	if h := rt.Chat; h != nil {
		api.POST("/chat", h.Chat)
		api.GET("/chat/:session_id", h.Summary)
		api.DELETE("/chat/:session_id", h.Clear)
	}
	return r
}
