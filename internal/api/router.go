package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/99minutos/messaging-system/docs"
	"github.com/99minutos/messaging-system/internal/api/handler"
	"github.com/99minutos/messaging-system/internal/api/middleware"
	"github.com/99minutos/messaging-system/internal/core/domain"
	"github.com/99minutos/messaging-system/internal/core/ports"
	"github.com/99minutos/messaging-system/internal/core/service"
	mongodb "github.com/99minutos/messaging-system/internal/infrastructure/db/mongo"
	redisdb "github.com/99minutos/messaging-system/internal/infrastructure/db/redis"
	"github.com/99minutos/messaging-system/internal/infrastructure/security"
	"github.com/99minutos/messaging-system/internal/pkg/config"
)

// Deps are the collaborators NewEcho routes to. NewRouter builds them from
// live connections; tests pass in-memory ones.
type Deps struct {
	Auth     ports.AuthService
	Rooms    ports.RoomService
	Messages ports.MessageService

	// AuthLimiter is shared across instances. When nil, or while it fails,
	// the auth routes are limited per instance.
	AuthLimiter  middleware.WindowLimiter
	HealthChecks map[string]handler.HealthCheck
}

// NewRouter wires repositories, services and handlers on top of the given
// connections and returns the Echo instance with all routes registered.
func NewRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, log zerolog.Logger) (*echo.Echo, error) {
	access, err := security.NewTokenIssuer(domain.TokenAccess, cfg.Auth.AccessSecret, cfg.Auth.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := security.NewTokenIssuer(domain.TokenRefresh, cfg.Auth.RefreshSecret, cfg.Auth.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	users := mongodb.NewUserRepository(db)
	rooms := mongodb.NewRoomRepository(db)
	messages := mongodb.NewMessageRepository(db)
	idem := redisdb.NewIdempotencyStore(rdb, cfg.Redis.IdempotencyTTL)

	deps := Deps{
		Auth:        service.NewAuthService(users, security.NewArgon2idHasher(), access, refresh, log),
		Rooms:       service.NewRoomService(rooms, access, log),
		Messages:    service.NewMessageService(messages, rooms, access, idem, log),
		AuthLimiter: redisdb.NewFixedWindowLimiter(rdb, "ratelimit:auth", cfg.RateLimit.Requests, cfg.RateLimit.Window),
		HealthChecks: map[string]handler.HealthCheck{
			"mongodb": func(ctx context.Context) error { return db.Client().Ping(ctx, nil) },
			"redis":   func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	}
	return NewEcho(cfg, deps, log), nil
}

// ipExtractor trusts X-Forwarded-For only from TRUSTED_PROXIES. Without any,
// the peer address is the client IP.
func ipExtractor(cfg *config.Config) echo.IPExtractor {
	nets, _ := cfg.TrustedProxyNets()
	if len(nets) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range nets {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

// NewEcho registers middleware and routes for deps.
func NewEcho(cfg *config.Config, deps Deps, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)
	e.IPExtractor = ipExtractor(cfg)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: func() string { return ulid.Make().String() },
	}))
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.Metrics())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, handler.HeaderIdempotencyKey},
		AllowCredentials: true,
	}))
	e.Use(middleware.Credentials())

	// --- Handlers ---
	cookies := handler.CookieOptions{Secure: !cfg.IsDevelopment()}
	authHandler := handler.NewAuthHandler(deps.Auth, cookies)
	userHandler := handler.NewUserHandler(deps.Auth)
	roomHandler := handler.NewRoomHandler(deps.Rooms)
	messageHandler := handler.NewMessageHandler(deps.Messages)
	healthHandler := handler.NewHealthHandler(deps.HealthChecks, log)

	limit := middleware.RateLimit(middleware.RateLimitConfig{
		Shared: deps.AuthLimiter,
		Limit:  cfg.RateLimit.Requests,
		Window: cfg.RateLimit.Window,
		Log:    log,
	})

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register, limit)
	auth.POST("/login", authHandler.Login, limit)
	auth.POST("/renew/refresh", authHandler.RenewRefresh)
	auth.POST("/renew/access", authHandler.RenewAccess)
	auth.POST("/logout", authHandler.Logout)

	// --- Users ---
	e.GET("/user", userHandler.Find)
	e.POST("/user", userHandler.Update)

	// --- Rooms ---
	e.GET("/rooms", roomHandler.List)
	e.POST("/rooms", roomHandler.Create)
	e.GET("/rooms/:id", roomHandler.Find)
	e.PATCH("/rooms/:id", roomHandler.Update)
	e.DELETE("/rooms/:id", roomHandler.Delete)

	// --- Messages ---
	e.GET("/messages", messageHandler.List)
	e.POST("/messages", messageHandler.Create)
	e.DELETE("/messages/:id", messageHandler.Delete)

	// --- Health probes (no auth required) ---
	e.GET("/health", healthHandler.Liveness)        // liveness: is the process alive?
	e.GET("/health/ready", healthHandler.Readiness) // readiness: are dependencies up?

	// --- Operations ---
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	if cfg.PublicDir != "" {
		e.Static("/static", cfg.PublicDir)
	}

	return e
}
