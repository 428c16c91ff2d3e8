package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every endpoint
func NewRouter(h *Handler, hub *Hub, corsOrigins string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(SetupCORS(corsOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/status", h.Status)
		api.GET("/stats", h.Stats)
		api.GET("/channels/:channel/records", h.Records)
		api.GET("/channels/:channel/export", h.Export)

		admin := api.Group("/admin")
		admin.POST("/login", h.Login)
		admin.POST("/logout", h.Logout)
		admin.POST("/category", h.SwitchCategory)
		admin.POST("/model", h.LoadModel)
	}

	if hub != nil {
		router.GET("/ws/live", hub.LiveWebSocket())
	}

	return router
}
