package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/medicaldate/clinic-portal/docs"
	"github.com/medicaldate/clinic-portal/internal/api/handler"
	"github.com/medicaldate/clinic-portal/internal/api/middleware"
	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
	"github.com/medicaldate/clinic-portal/internal/core/service"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Log          zerolog.Logger
	Sessions     middleware.SessionOpener
	Backend      ports.AuthBackend
	Refresher    service.Refresher
	Fetcher      *service.Fetcher
	Audit        ports.AuditRecorder
	CheckTimeout time.Duration

	// Watcher enables /api/auth/session/stream when set.
	Watcher       handler.SessionWatcher
	WatchInterval time.Duration

	// Mock serves /mock-api when set.
	Mock ports.MockAuthService

	// Mongo and Redis are only used by the readiness check and may be nil.
	Mongo *mongo.Database
	Redis *redis.Client
}

// view is a guarded portal page.
type view struct {
	path  string
	name  string
	title string
	req   service.GuardRequirements
}

var views = []view{
	{path: "/dashboard", name: "home", title: "Dashboard"},
	{path: "/dashboard/admin", name: "admin", title: "Administration", req: service.GuardRequirements{
		Roles: []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin},
	}},
	{path: "/dashboard/doctor", name: "doctor", title: "Doctor", req: service.GuardRequirements{
		Roles: []domain.Role{domain.RoleDoctor},
	}},
	{path: "/dashboard/secretary", name: "secretary", title: "Front desk", req: service.GuardRequirements{
		Roles: []domain.Role{domain.RoleSecretary},
	}},
	{path: "/dashboard/patient", name: "patient", title: "My health", req: service.GuardRequirements{
		Roles: []domain.Role{domain.RolePatient},
	}},
	{path: "/dashboard/analytics", name: "analytics", title: "Analytics", req: service.GuardRequirements{
		Permissions: []domain.Permission{domain.PermAnalyticsRead},
	}},
	{path: "/dashboard/billing", name: "billing", title: "Billing", req: service.GuardRequirements{
		Roles:       []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleSecretary},
		Permissions: []domain.Permission{domain.PermBillingWrite},
	}},
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddleware("portal"))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.Sessions, deps.Backend, deps.Refresher, deps.Audit, deps.Log)
	proxyHandler := handler.NewProxyHandler(deps.Sessions, deps.Fetcher, deps.Audit, deps.Log)
	dashboardHandler := handler.NewDashboardHandler()

	// --- Auth routes ---
	auth := e.Group("/api/auth")
	auth.POST("/login/:role", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/me", authHandler.Me)
	auth.GET("/session", authHandler.Session)
	if deps.Watcher != nil {
		streamHandler := handler.NewStreamHandler(deps.Sessions, deps.Watcher, deps.WatchInterval, deps.Log)
		auth.GET("/session/stream", streamHandler.Stream)
	}

	// --- Backend proxy ---
	e.Any("/api/v1/*", proxyHandler.Forward, echomiddleware.BodyLimit("10M"))

	// --- Views ---
	e.GET(service.DefaultLoginPath, dashboardHandler.Login)
	for _, v := range views {
		guard := middleware.Guard(deps.Sessions, v.req, deps.CheckTimeout, deps.Log)
		e.GET(v.path, dashboardHandler.View(v.name, v.title), guard)
	}

	// --- Mock backend ---
	if deps.Mock != nil {
		mockHandler := handler.NewMockHandler(deps.Mock)
		bearer := middleware.Auth(deps.Mock)

		mock := e.Group("/mock-api/auth")
		mock.POST("/login/:role", mockHandler.Login)
		mock.POST("/refresh", mockHandler.Refresh)
		mock.POST("/logout", mockHandler.Logout, bearer)
		mock.GET("/me", mockHandler.Me, bearer)
	}

	// --- Health checks, metrics and docs (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Mongo, deps.Redis)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthDepsHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Status >= 500 {
				event = log.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
