package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appsvc "service-order-attachments/internal/app"
	"service-order-attachments/internal/bootstrap"
	"service-order-attachments/internal/logging"
	"service-order-attachments/internal/transport/http/handler"
	"service-order-attachments/internal/transport/http/middleware"
	"service-order-attachments/web"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	cfg := app.Config

	gin.SetMode(cfg.App.GinMode)
	router := gin.New()
	router.Use(logging.Middleware(app.Logger), gin.Recovery(), cors.New(corsConfig(cfg.App.CORSOrigins)))
	router.SetHTMLTemplate(web.Templates())
	router.MaxMultipartMemory = cfg.MaxUploadBytes() + 1<<20

	messages := appsvc.NewMessages(cfg.App.Locale)

	checks := make(map[string]handler.Check)
	for name, check := range app.HealthChecks() {
		checks[name] = check
	}
	healthHandler := handler.NewHealthHandler(cfg.App.Name, cfg.App.Env, app.StartedAt, checks)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})))

	pageHandler := handler.NewPageHandler(app.Controller, messages, handler.PageOptions{
		CookieName: cfg.Session.CookieName,
		CookieTTL:  time.Duration(cfg.Session.TTLMinutes) * time.Minute,
		MaxBytes:   cfg.MaxUploadBytes(),
	}, app.Logger)
	router.GET("/", pageHandler.Index)
	router.POST("/upload", pageHandler.Upload)
	router.POST("/search", pageHandler.Search)
	router.POST("/capture", pageHandler.Capture)
	router.GET("/preview", pageHandler.Preview)

	if app.Objects != nil {
		objectHandler := handler.NewObjectHandler(app.Objects, cfg.Storage.Bucket, app.Logger)
		router.GET("/storage/v1/object/public/:bucket/*key", objectHandler.Get)
	}

	v1 := router.Group("/api/v1")

	// Only signed-in operators add operators. The first one comes from the
	// "operator add" command.
	if app.Auth != nil {
		requireOperator := middleware.AuthJWT(cfg.Auth.JWTSecret)
		authHandler := handler.NewAuthHandler(app.Auth)
		authGroup := v1.Group("/auth")
		authGroup.POST("/register", requireOperator, authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/me", requireOperator, authHandler.Me)
	}

	// auth.enabled guards the JSON API. The browser page above stays open and
	// is meant for the internal network.
	attachmentHandler := handler.NewAttachmentHandler(app.Attachments, messages, cfg.MaxUploadBytes())
	attachmentGroup := v1.Group("")
	if cfg.Auth.Enabled {
		attachmentGroup.Use(middleware.AuthJWT(cfg.Auth.JWTSecret))
		if app.Auth != nil {
			attachmentHandler.WithOperatorDefaults(app.Auth)
		}
	}
	attachmentGroup.POST("/attachments", attachmentHandler.Upload)
	attachmentGroup.GET("/service-orders/:service_order/attachments", attachmentHandler.Search)

	return router
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	c.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	return c
}
