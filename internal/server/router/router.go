package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/banjarejo/greensmart/internal/domain/models"
	"github.com/banjarejo/greensmart/internal/server/handlers"
	"github.com/banjarejo/greensmart/internal/service/session"
)

// New wires the Gin engine with required routes and middlewares.
func New(sessions *session.Manager, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	auth := handlers.NewAuthHandler(sessions, named(logger, "handlers.auth"))
	mutations := handlers.NewMutationHandler(named(logger, "handlers.mutation"))
	views := handlers.NewViewsHandler(named(logger, "handlers.views"))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.POST("/api/login", auth.Login)

	api := r.Group("/api")
	api.Use(handlers.IdentityMiddleware(sessions, named(logger, "handlers.identity")))
	api.POST("/logout", auth.Logout)

	inventory := handlers.NewResource[models.InventoryItem](models.CollectionInventory, named(logger, "handlers.inventaris"))
	api.GET("/inventaris", inventory.List)
	api.POST("/inventaris", inventory.Create)
	api.PUT("/inventaris/:id", inventory.Update)
	api.DELETE("/inventaris/:id", inventory.Delete)
	api.GET("/inventaris/stream", inventory.Stream)

	progress := handlers.NewResource[models.ProgressEntry](models.CollectionProgress, named(logger, "handlers.progres"))
	api.GET("/progres", progress.List)
	api.POST("/progres", progress.Create)
	api.PUT("/progres/:id", progress.Update)
	api.DELETE("/progres/:id", progress.Delete)
	api.GET("/progres/stream", progress.Stream)

	// Mutation writes adjust the referenced inventory item, so create, update
	// and delete go through the dedicated handler; reads share the generic
	// resource surface.
	mutres := handlers.NewResource[models.Mutation](models.CollectionMutations, named(logger, "handlers.mutasi"))
	api.GET("/mutasi", mutres.List)
	api.POST("/mutasi", mutations.Record)
	api.PUT("/mutasi/:id", mutations.Update)
	api.DELETE("/mutasi/:id", mutations.Delete)
	api.GET("/mutasi/stream", mutres.Stream)

	activities := handlers.NewResource[models.ActivityReport](models.CollectionActivities, named(logger, "handlers.kegiatan"))
	api.GET("/kegiatan", activities.List)
	api.POST("/kegiatan", activities.Create)
	api.PUT("/kegiatan/:id", activities.Update)
	api.DELETE("/kegiatan/:id", activities.Delete)
	api.GET("/kegiatan/stream", activities.Stream)

	partnerships := handlers.NewResource[models.Partnership](models.CollectionPartnerships, named(logger, "handlers.kerjaSama"))
	api.GET("/kerjaSama", partnerships.List)
	api.POST("/kerjaSama", partnerships.Create)
	api.PUT("/kerjaSama/:id", partnerships.Update)
	api.DELETE("/kerjaSama/:id", partnerships.Delete)
	api.GET("/kerjaSama/stream", partnerships.Stream)

	// The audit log is read-only over HTTP; entries are appended only as a
	// side effect of other writes.
	logs := handlers.NewResource[models.LogEntry](models.CollectionLog, named(logger, "handlers.log"))
	api.GET("/log", logs.List)
	api.GET("/log/stream", logs.Stream)

	api.GET("/dashboard", views.Dashboard)
	api.GET("/galeri", views.Gallery)

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func named(logger *zap.Logger, component string) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.Named(component)
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
