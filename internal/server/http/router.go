package http

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	authapp "mlwio/internal/auth/app"
	catalogapp "mlwio/internal/catalog/app"
	"mlwio/internal/observability"
	"mlwio/internal/shared/logging"
)

// RouterDeps are the services the API is built from.
type RouterDeps struct {
	Auth           *authapp.Service
	Catalog        *catalogapp.Service
	Download       http.Handler
	HTTPMetrics    *observability.HTTPMetrics
	MetricsHandler http.Handler
	Tracer         trace.Tracer
	Degraded       func() map[string]string
}

// RouterConfig carries the HTTP-facing settings.
type RouterConfig struct {
	Production     bool
	AllowedOrigins []string
	Cookie         CookieConfig
	RateLimit      RateLimitConfig
	MetricsPath    string
	StaticDir      string
}

// NewRouter creates the gin engine with every API route.
func NewRouter(deps RouterDeps, cfg RouterConfig) *gin.Engine {
	logger := logging.NewComponentLogger("Router")
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(ObservabilityMiddleware(deps.HTTPMetrics, deps.Tracer, logging.NewComponentLogger("HTTP")))
	engine.Use(RecoveryMiddleware(logger))
	if corsMiddleware := CORSMiddleware(cfg.AllowedOrigins, cfg.Production); corsMiddleware != nil {
		engine.Use(corsMiddleware)
	}

	cookie := cfg.Cookie
	cookie.Secure = cookie.Secure || cfg.Production
	authHandler := NewAuthHandler(deps.Auth, cookie)
	contentHandler := NewContentHandler(deps.Catalog, deps.Auth)
	healthHandler := NewHealthHandler(deps.Degraded)
	requireAuth := RequireAuth(deps.Auth, authHandler.cookie.Name, logger)

	api := engine.Group("/api")
	{
		auth := api.Group("/auth")
		auth.POST("/login", authHandler.HandleLogin)
		auth.POST("/logout", authHandler.HandleLogout)
		auth.GET("/me", authHandler.HandleMe)

		content := api.Group("/content")
		content.GET("", contentHandler.HandleList)
		content.GET("/search", contentHandler.HandleSearch)
		content.GET("/:id", contentHandler.HandleGet)
		content.POST("", requireAuth, contentHandler.HandleCreate)
		content.PUT("/:id", requireAuth, contentHandler.HandleUpdate)
		content.DELETE("/:id", requireAuth, contentHandler.HandleDelete)

		api.GET("/upload-logs", requireAuth, contentHandler.HandleUploadLogs)
		api.GET("/health", healthHandler.Handle)
		if deps.Download != nil {
			api.GET("/download", RateLimitMiddleware(cfg.RateLimit), gin.WrapH(deps.Download))
		}
	}

	if deps.MetricsHandler != nil {
		metricsPath := cfg.MetricsPath
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		engine.GET(metricsPath, gin.WrapH(deps.MetricsHandler))
	}

	engine.NoRoute(staticFallback(cfg.StaticDir))
	return engine
}

// staticFallback serves the built web client from dir. Unknown non-API paths
// get index.html so client-side routes survive a reload.
func staticFallback(dir string) gin.HandlerFunc {
	dir = strings.TrimSpace(dir)
	return func(c *gin.Context) {
		reqPath := c.Request.URL.Path
		if dir == "" || strings.HasPrefix(reqPath, "/api/") || (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
			respondError(c, http.StatusNotFound, msgNotFound)
			return
		}
		candidate := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+reqPath)))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			c.File(candidate)
			return
		}
		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); err != nil {
			respondError(c, http.StatusNotFound, msgNotFound)
			return
		}
		c.File(index)
	}
}
