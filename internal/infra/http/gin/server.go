package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"staybook/internal/infra/config"
	"staybook/internal/infra/obs"
)

type Handlers struct {
	Auth           AuthHTTP
	Properties     PropertyHTTP
	Availability   AvailabilityHTTP
	Reviews        ReviewHTTP
	Bookings       BookingHTTP
	Me             MeHTTP
	Host           HostHTTP
	Admin          AdminHTTP
	AuthMiddleware gin.HandlerFunc
	Metrics        http.Handler
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the gin engine without touching the global gin mode, so
// tests can drive it through httptest.
func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{"Content-Length", "Content-Type", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.Metrics))
	}

	api := router.Group("/api/v1")
	if h.Auth != nil {
		api.POST("/auth/register", h.Auth.Register)
		api.POST("/auth/login", h.Auth.Login)
		api.POST("/auth/logout", h.Auth.Logout)
		api.GET("/auth/me", h.Auth.Me)
	}
	if h.Properties != nil {
		api.GET("/properties/:id", h.Properties.Get)
	}
	if h.Availability != nil {
		api.GET("/properties/:id/availability", h.Availability.Check)
	}
	if h.Reviews != nil {
		api.GET("/properties/:id/reviews", h.Reviews.List)
		api.POST("/properties/:id/reviews", h.Reviews.Submit)
		api.GET("/properties/:id/reviews/eligibility", h.Reviews.Eligibility)
	}
	if h.Bookings != nil {
		api.POST("/bookings", h.Bookings.Create)
		api.GET("/bookings/:id", h.Bookings.Get)
		api.PATCH("/bookings/:id", h.Bookings.Update)
		api.POST("/bookings/:id/cancel", h.Bookings.Cancel)
	}
	if h.Me != nil {
		api.GET("/me/bookings", h.Me.ListBookings)
	}
	if h.Host != nil {
		hostGroup := api.Group("/host")
		hostGroup.GET("/properties", h.Host.ListProperties)
		hostGroup.POST("/properties", h.Host.CreateProperty)
		hostGroup.POST("/properties/:id/activate", h.Host.Activate)
		hostGroup.POST("/properties/:id/deactivate", h.Host.Deactivate)
		hostGroup.POST("/properties/:id/blocked-dates", h.Host.BlockDates)
		hostGroup.DELETE("/properties/:id/blocked-dates", h.Host.UnblockDates)
		hostGroup.POST("/properties/:id/photos", h.Host.UploadPhoto)
		hostGroup.GET("/properties/:id/bookings", h.Host.PropertyBookings)
		hostGroup.PUT("/bookings/:id/status", h.Host.SetBookingStatus)
	}
	if h.Admin != nil {
		adminGroup := api.Group("/admin")
		adminGroup.POST("/users/:id/cancel-bookings", h.Admin.CancelGuestBookings)
		adminGroup.DELETE("/users/:id", h.Admin.DeleteUser)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug", "dev", "local":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
