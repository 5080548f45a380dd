package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/birimbahub/marketplace/docs"
	"github.com/birimbahub/marketplace/internal/api/handler"
	"github.com/birimbahub/marketplace/internal/api/middleware"
	"github.com/birimbahub/marketplace/internal/core/domain"
	"github.com/birimbahub/marketplace/internal/core/ports"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Sessions ports.SessionService
	Profiles ports.RequesterProfileService
	Theme    handler.ThemeReader
	Stream   *handler.StateStream
	Checks   map[string]handler.Check
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("marketplace_http"))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.Sessions, deps.Theme)
	profileHandler := handler.NewProfileHandler(deps.Profiles)
	dashboardHandler := handler.NewDashboardHandler(deps.Theme)
	requireSession := middleware.RequireSession(deps.Sessions)

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/sign-in", authHandler.SignIn)
	auth.POST("/sign-up", authHandler.SignUp)
	auth.POST("/sign-out", authHandler.SignOut)
	auth.GET("/state", authHandler.State)
	if deps.Stream != nil {
		auth.GET("/state/stream", deps.Stream.Handle)
	}

	// --- Session-scoped routes ---
	e.GET("/profiles/:user_id", profileHandler.Get, requireSession)
	e.GET("/dashboard", dashboardHandler.Get, requireSession,
		middleware.RBAC(domain.RoleFarmer, domain.RoleBuyer, domain.RoleSupplier))

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Checks)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	// --- Observability ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
