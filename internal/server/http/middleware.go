package http

import (
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	authapp "mlwio/internal/auth/app"
	authdomain "mlwio/internal/auth/domain"
	"mlwio/internal/observability"
	"mlwio/internal/shared/logging"
)

const sessionContextKey = "mlwio.session"

// RecoveryMiddleware turns handler panics into 500 responses. An
// http.ErrAbortHandler panic is re-raised so net/http drops the connection
// without logging; the download relay uses it to cut a broken stream.
func RecoveryMiddleware(logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}
			logger.Error("Panic serving %s %s: %v\n%s", c.Request.Method, c.Request.URL.Path, rec, debug.Stack())
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respondError(c, http.StatusInternalServerError, msgInternal)
		}()
		c.Next()
	}
}

// ObservabilityMiddleware traces each request, records Prometheus metrics
// and writes one latency line per request.
func ObservabilityMiddleware(metrics *observability.HTTPMetrics, tracer trace.Tracer, latencyLogger logging.Logger) gin.HandlerFunc {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("mlwio")
	}
	latencyLogger = logging.OrNop(latencyLogger)
	return func(c *gin.Context) {
		done := metrics.Start()
		start := time.Now()
		ctx, span := tracer.Start(c.Request.Context(), observability.SpanHTTPServer,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(semconv.HTTPMethod(c.Request.Method)),
		)
		c.Request = c.Request.WithContext(ctx)

		defer func() {
			route := c.FullPath()
			status := c.Writer.Status()
			span.SetAttributes(semconv.HTTPRoute(route), semconv.HTTPStatusCode(status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
			if len(c.Errors) > 0 {
				span.SetAttributes(attribute.String(observability.AttrError, c.Errors.String()))
			}
			span.End()
			done(c.Request.Method, route, status)

			latency := time.Since(start)
			latencyLogger.Info(
				"route=%s method=%s status=%d latency_ms=%.2f bytes=%d",
				routeOrPath(route, c.Request.URL.Path),
				c.Request.Method,
				status,
				float64(latency.Microseconds())/1000.0,
				c.Writer.Size(),
			)
		}()
		c.Next()
	}
}

func routeOrPath(route, path string) string {
	if route != "" {
		return route
	}
	return path
}

// CORSMiddleware allows the configured browser origins to call the API with
// credentials. Outside production, any origin is echoed back when none are
// configured. It returns nil when no cross-origin access should be granted.
func CORSMiddleware(allowedOrigins []string, production bool) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Disposition", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	switch {
	case len(allowedOrigins) > 0:
		cfg.AllowOrigins = allowedOrigins
	case !production:
		cfg.AllowOriginFunc = func(string) bool { return true }
	default:
		return nil
	}
	return cors.New(cfg)
}

// RequireAuth rejects requests that do not carry a live session cookie.
func RequireAuth(service *authapp.Service, cookieName string, logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(cookieName)
		if err != nil || sessionID == "" {
			logger.Warn("Unauthorized access attempt - %s %s", c.Request.Method, c.Request.URL.Path)
			respondError(c, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		session, err := service.Authenticate(c.Request.Context(), sessionID)
		if err != nil {
			if errors.Is(err, authdomain.ErrSessionNotFound) || errors.Is(err, authdomain.ErrSessionExpired) {
				logger.Warn("Unauthorized access attempt - %s %s", c.Request.Method, c.Request.URL.Path)
				respondError(c, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			respondInternal(c, logger, "Session lookup", err)
			return
		}
		c.Set(sessionContextKey, session)
		c.Next()
	}
}

// CurrentSession returns the session stored by RequireAuth.
func CurrentSession(c *gin.Context) (authdomain.Session, bool) {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return authdomain.Session{}, false
	}
	session, ok := value.(authdomain.Session)
	return session, ok
}
