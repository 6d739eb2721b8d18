package controlplane

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cellarsync/cellarsync/internal/controlplane/handlers"
	"github.com/cellarsync/cellarsync/internal/controlplane/middleware"
	"github.com/cellarsync/cellarsync/internal/syncmgr"
	"github.com/cellarsync/cellarsync/internal/version"
)

const requestsPerSecond = 50

type RouteConfig struct {
	Auth middleware.TokenAuthConfig
}

func SetupRoutes(mgr *syncmgr.Manager, bottles handlers.BottleStore, routeConfig *RouteConfig) http.Handler {
	r := gin.New()

	syncH := handlers.NewSyncHandler(mgr)
	bottleH := handlers.NewBottleHandler(bottles, mgr)

	r.Use(middleware.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.CORS())
	r.Use(middleware.Gzip())
	r.Use(middleware.RateLimit(requestsPerSecond))

	r.GET("/", IndexHandler)

	v1 := r.Group("/v1")
	v1.Use(middleware.TokenAuth(routeConfig.Auth))
	{
		v1Sync := v1.Group("/sync")
		{
			v1Sync.GET("/status", syncH.Status)
			v1Sync.GET("/events", syncH.Events)
			v1Sync.GET("/ws", syncH.Watch)
			v1Sync.POST("/push", syncH.Push)
			v1Sync.POST("/pull", syncH.Pull)
			v1Sync.POST("/resolve", syncH.Resolve)
			v1Sync.POST("/test-connection", syncH.TestConnection)
		}

		v1Bottles := v1.Group("/bottles")
		{
			v1Bottles.GET("", bottleH.List)
			v1Bottles.POST("", bottleH.Create)
			v1Bottles.GET("/:id", bottleH.Get)
			v1Bottles.DELETE("/:id", bottleH.Delete)
			v1Bottles.POST("/:id/events", bottleH.AddEvent)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})

	return r.Handler()
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func IndexHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"app": version.AppName, "version": version.Detailed()})
}
