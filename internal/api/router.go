package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/expense-tracker/graphql-api/internal/api/graphql"
	"github.com/expense-tracker/graphql-api/internal/api/handler"
	"github.com/expense-tracker/graphql-api/internal/api/session"
	"github.com/expense-tracker/graphql-api/internal/core/ports"
)

// Deps is everything the HTTP layer needs from the rest of the process.
type Deps struct {
	Auth         ports.AuthService
	Transactions ports.TransactionService
	Session      session.Options
	CORSOrigin   string
	// Readiness lists the dependencies probed by /health/ready.
	Readiness map[string]handler.Pinger
	Logger    zerolog.Logger
	// Registry receives request metrics and backs /metrics. Nil means the
	// default Prometheus registry, where the custom metrics live.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if d.Registry != nil {
		registerer, gatherer = d.Registry, d.Registry
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Logger))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "expense_tracker",
		Registerer: registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- GraphQL ---
	schema, err := graphql.NewSchema(graphql.NewResolver(d.Auth, d.Transactions, d.Logger))
	if err != nil {
		return nil, fmt.Errorf("graphql schema: %w", err)
	}
	gql := graphql.NewHandler(schema)
	sessions := session.NewManager(d.Auth, d.Session, d.Logger)

	gqlGroup := e.Group("/graphql",
		echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
			AllowOrigins:     []string{d.CORSOrigin},
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAccept},
			AllowCredentials: true,
		}),
		echomiddleware.BodyLimit("1M"),
		sessions.Middleware(),
	)
	gqlGroup.POST("", gql.Serve)
	gqlGroup.GET("", gql.Serve)
	gqlGroup.OPTIONS("", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.Readiness)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))

	return e, nil
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			p := c.Path()
			return p == "/health" || p == "/metrics"
		},
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				evt = log.Error().Err(v.Error)
			}
			evt.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
