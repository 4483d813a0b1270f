package restapi

import (
	"net/http"
	"time"

	"portfolio_aggregator/internal/app/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// RouterOptions holds the transport-level knobs of SetupRouter.
type RouterOptions struct {
	AllowedOrigins []string
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

// SetupRouter builds the gin engine with middleware and routes.
func SetupRouter(portfolioHandler *PortfolioHandler, opts RouterOptions, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	if len(opts.AllowedOrigins) == 0 || (len(opts.AllowedOrigins) == 1 && opts.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = opts.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", requestIDHeader}
	corsConfig.ExposeHeaders = []string{requestIDHeader, "Retry-After"}
	router.Use(cors.New(corsConfig))

	router.Use(requestID())
	router.Use(zapLogger(logger.Named("HTTP")))
	router.Use(gin.Recovery())

	router.GET("/healthz", portfolioHandler.Health)
	if opts.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/portfolios", portfolioHandler.GetPortfoliosHandler)
		v1.GET("/portfolios/:wallet", portfolioHandler.GetPortfolioHandler)
		v1.GET("/networks", portfolioHandler.GetNetworksHandler)
	}

	return router
}

// requestID propagates or assigns X-Request-ID and stores it on the request context.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Set("request_id", id)
		c.Request = c.Request.WithContext(service.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func zapLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString("request_id")),
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Warn("Request failed", fields...)
		default:
			logger.Debug("Request served", fields...)
		}
	}
}
