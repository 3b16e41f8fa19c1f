package handlers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// OriginAllowed reports whether a websocket upgrade from origin may proceed.
// Requests without an Origin header are not from a browser and are allowed.
func OriginAllowed(allowedOrigins []string, origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}
	return false
}

// CORS applies the allowed origins to the JSON API.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowOriginFunc = func(origin string) bool {
		return OriginAllowed(allowedOrigins, origin)
	}
	config.AllowCredentials = true
	config.AllowHeaders = []string{"Authorization", "Content-Type", "Origin", "Accept"}
	config.AllowMethods = []string{"GET", "OPTIONS"}
	config.MaxAge = 12 * time.Hour
	return cors.New(config)
}
