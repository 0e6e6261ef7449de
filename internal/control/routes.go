package control

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/frartenzo/webeep-sync/internal/version"
)

// RouteConfig carries the route-level options.
type RouteConfig struct {
	Auth TokenAuthConfig
}

// SetupRoutes builds the gin handler tree for the control API.
func SetupRoutes(api *API, routeConfig *RouteConfig) http.Handler {
	r := gin.New()

	rateLimitStore := memory.NewStore()
	rateLimiter := limiter.New(rateLimitStore, limiter.Rate{
		Period: 1 * time.Second,
		Limit:  20,
	})

	r.Use(gin.Recovery())
	r.Use(sloggin.New(slog.Default()))
	r.Use(mgin.NewMiddleware(rateLimiter))

	r.GET("/", func(c *gin.Context) {
		c.PureJSON(http.StatusOK, gin.H{
			"app":     version.AppName,
			"version": version.Version,
		})
	})

	v1 := r.Group("/v1")
	v1.Use(TokenAuth(routeConfig.Auth))
	{
		v1.GET("/status", api.Status)

		v1.GET("/courses", api.Courses)
		v1.PUT("/courses/:id", api.UpdateCourse)

		v1.POST("/sync", api.StartSync)
		v1.DELETE("/sync", api.StopSync)

		v1.GET("/settings", api.Settings)
		v1.PUT("/settings", api.UpdateSettings)

		v1.GET("/events", api.Events)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r
}
