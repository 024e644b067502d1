package api

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thewpminute/podloom/app/apperr"
	"github.com/thewpminute/podloom/app/ratelimit"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey, imageDir, imageBaseUrl string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey, imageDir, imageBaseUrl)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey, imageDir, imageBaseUrl string) {
	// Public read endpoints. These never block on upstream fetches: a
	// cache miss schedules a background refresh and reports cache_miss.
	// The episodes route additionally recognizes the API key so
	// authenticated callers can use the remote flag.
	r.GET("/feeds/:id/episodes", optionalAuth(apiAccessKey), handler.limit("get_episodes", ratelimit.PlaylistLimit), handler.GetEpisodes)
	r.GET("/feeds/:id/episodes/:episodeID/extensions", handler.limit("get_extensions", ratelimit.PlaylistLimit), handler.GetEpisodePayload)
	r.GET("/feeds/:id/search", handler.limit("search", ratelimit.SearchLimit), handler.SearchEpisodes)

	// Cached artwork
	r.Static(imageBaseUrl, imageDir)

	// Health endpoint
	r.GET("/health", handler.GetHealth)

	// Administrative endpoints (authenticated when a key is configured)
	api := r.Group("/api")
	if apiAccessKey != "" {
		api.Use(authMiddleware(apiAccessKey))
		log.Printf("API endpoints enabled with authentication")
	} else {
		log.Printf("API endpoints enabled WITHOUT authentication (API_ACCESS_KEY not set)")
	}
	{
		api.GET("/feeds", handler.limit("list_feeds", ratelimit.ListLimit), handler.ListFeeds)
		api.POST("/feeds", handler.limit("add_feed", ratelimit.AddLimit), handler.AddFeed)
		api.PATCH("/feeds/:id", handler.limit("rename_feed", ratelimit.AddLimit), handler.RenameFeed)
		api.DELETE("/feeds/:id", handler.limit("delete_feed", ratelimit.AddLimit), handler.DeleteFeed)
		api.POST("/feeds/:id/refresh", handler.limit("refresh_feed", ratelimit.RefreshLimit), handler.RefreshFeed)
		api.GET("/feeds/:id/raw", handler.limit("raw_feed", ratelimit.RefreshLimit), handler.GetRawFeed)
	}

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

// authMiddleware creates authentication middleware for API endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Set("caller", "api")
		c.Next()
	}
}

// optionalAuth marks callers that present the configured API key so
// privileged query flags on public routes can be honored. Anonymous
// requests pass through unmarked; the route itself stays public.
func optionalAuth(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		// When no key is configured the deployment is open, matching
		// the /api group.
		if providedKey == apiAccessKey {
			c.Set("caller", "api")
		}

		c.Next()
	}
}

// limit gates an endpoint on the fixed-window budget for its action
// family before any work happens.
func (h *Handler) limit(action string, max int) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := ratelimit.Identity(c.GetString("caller"), c.ClientIP())
		if !h.limiter.Allow(action, identity, max, ratelimit.Window) {
			err := &apperr.RateLimitError{Action: action}
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   err.Error(),
				"message": "Too many requests, try again later",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
