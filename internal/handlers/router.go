package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mossy-p/emocall/internal/middleware"
)

type RouterConfig struct {
	AllowedOrigins    []string
	AssetsDir         string
	ModelsDir         string
	OperatorJWTSecret string
}

// SetupRouter wires the HTTP surface: static client and model files, the
// signaling socket and the room API.
func SetupRouter(cfg RouterConfig, signaling *Signaling, rooms *Rooms) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ws", signaling.HandleSignaling)

	api := router.Group("/api", CORS(cfg.AllowedOrigins))
	{
		api.GET("/ice-servers", rooms.ICEServers)
		api.GET("/rooms/:roomId", rooms.GetRoom)

		// Operator listing is only exposed when a secret is configured.
		if cfg.OperatorJWTSecret != "" {
			api.GET("/rooms", middleware.JWTAuth(cfg.OperatorJWTSecret), rooms.ListRooms)
		}
	}

	if cfg.ModelsDir != "" {
		router.Static("/models", cfg.ModelsDir)
	}
	if cfg.AssetsDir != "" {
		router.NoRoute(gin.WrapH(http.FileServer(http.Dir(cfg.AssetsDir))))
	}

	return router
}
