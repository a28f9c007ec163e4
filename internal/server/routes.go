package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"golang-em-checker/pkg/logger"
)

// Config holds the HTTP host settings
type Config struct {
	Addr              string
	AllowedOrigins    []string
	MultipartMemory   int64
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
}

// DefaultConfig returns the default HTTP host settings
func DefaultConfig() *Config {
	return &Config{
		Addr:              ":8080",
		MultipartMemory:   32 << 20,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
	}
}

// NewHTTPServer wraps the router in an http.Server with the read timeouts
// of config applied
func NewHTTPServer(service Reconciler, config *Config, log logger.Logger) *http.Server {
	if config == nil {
		config = DefaultConfig()
	}
	return &http.Server{
		Addr:              config.Addr,
		Handler:           NewRouter(service, config, log),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		ReadTimeout:       config.ReadTimeout,
	}
}

// NewRouter builds the gin engine serving the reconciliation API
func NewRouter(service Reconciler, config *Config, log logger.Logger) *gin.Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log.WithComponent("http")))
	r.Use(cors.New(corsConfig(config.AllowedOrigins)))
	if config.MultipartMemory > 0 {
		r.MaxMultipartMemory = config.MultipartMemory
	}

	RegisterRoutes(r, NewReconciliationHandler(service, log))
	return r
}

// RegisterRoutes mounts the API under /api
func RegisterRoutes(r *gin.Engine, handler *ReconciliationHandler) {
	api := r.Group("/api")

	api.GET("/health", handler.Health)
	api.POST("/reconcile", handler.Reconcile)
}

func corsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowMethods:  []string{"GET", "POST"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
		config.AllowCredentials = true
	}
	return config
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(logger.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}).Info("Handled request")
	}
}
